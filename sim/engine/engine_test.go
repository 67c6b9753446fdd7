package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(DefaultLayout())
	require.NoError(t, err)

	state := e.GetState()
	assert.Equal(t, "classic", state.LayoutName)
	assert.Equal(t, Point{}, state.Vehicle.Position)
	assert.Nil(t, state.Target)
	assert.Zero(t, state.Ticks)

	assert.Greater(t, e.GetGrid().Len(), 0)
	assert.Less(t, e.GetGrid().Len(), 4128)
	assert.Len(t, e.GetLot().Obstacles(), 22)
}

func TestNewEngine_InvalidLayout(t *testing.T) {
	cfg := DefaultLayout()
	cfg.GridStep = -1
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestSimEngine_TickAndReset(t *testing.T) {
	e := NewEngineWithDefaults()
	grid := e.GetGrid()

	for i := 0; i < 60; i++ {
		e.Tick(Controls{Forward: true}, frame)
	}

	state := e.GetState()
	assert.Equal(t, 60, state.Ticks)
	assert.InDelta(t, 1.0, state.ElapsedTime, 1e-9)
	assert.Greater(t, state.Vehicle.Velocity, 0.0)
	assert.Greater(t, state.Vehicle.Position.X, 0.0)
	assert.Equal(t, state.Vehicle.Position.Scale(DefaultPPU), state.PixelPos)

	e.SetTarget(Point{X: 600, Y: 500})
	require.NotNil(t, e.GetState().Target)

	reset := e.Reset()
	assert.Zero(t, reset.Ticks)
	assert.Zero(t, reset.Vehicle.Velocity)
	assert.Nil(t, reset.Target)
	assert.Same(t, grid, e.GetGrid(), "reset must not rebuild the grid")
}

func TestSimEngine_TargetIsCopied(t *testing.T) {
	e := NewEngineWithDefaults()
	e.SetTarget(Point{X: 10, Y: 20})

	state := e.GetState()
	state.Target.X = 999

	assert.Equal(t, 10.0, e.GetState().Target.X)

	e.ClearTarget()
	assert.Nil(t, e.GetState().Target)
}
