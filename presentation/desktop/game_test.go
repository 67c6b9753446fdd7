package desktop

import (
	"context"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/parkingsim/sim/config"
	"github.com/wricardo/parkingsim/sim/dispatch"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/service"
)

type fakeInput struct {
	pressed map[ebiten.Key]bool
	just    map[ebiten.Key]bool
	click   *engine.Point
}

func newFakeInput() *fakeInput {
	return &fakeInput{pressed: map[ebiten.Key]bool{}, just: map[ebiten.Key]bool{}}
}

func (f *fakeInput) Pressed(key ebiten.Key) bool     { return f.pressed[key] }
func (f *fakeInput) JustPressed(key ebiten.Key) bool { return f.just[key] }

func (f *fakeInput) Click() (int, int, bool) {
	if f.click == nil {
		return 0, 0, false
	}
	p := *f.click
	f.click = nil
	return int(p.X), int(p.Y), true
}

func newTestGame(t *testing.T) (*Game, *fakeInput, service.SimService, *config.Manager) {
	t.Helper()
	layouts, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	svc, err := service.NewSimService(layouts, service.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	in := newFakeInput()
	g, err := NewGame(context.Background(), svc, Options{Input: in, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return g, in, svc, layouts
}

func TestControlsFromKeys(t *testing.T) {
	in := newFakeInput()
	assert.Equal(t, engine.Controls{}, ControlsFromKeys(in))

	in.pressed[ebiten.KeyArrowUp] = true
	in.pressed[ebiten.KeyA] = true
	in.pressed[ebiten.KeySpace] = true
	assert.Equal(t, engine.Controls{Forward: true, Left: true, Brake: true}, ControlsFromKeys(in))

	in = newFakeInput()
	in.pressed[ebiten.KeyS] = true
	in.pressed[ebiten.KeyArrowRight] = true
	assert.Equal(t, engine.Controls{Reverse: true, Right: true}, ControlsFromKeys(in))
}

func TestNewGame(t *testing.T) {
	g, _, _, _ := newTestGame(t)

	w, h := g.Layout(800, 600)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)
	assert.Len(t, g.world.Obstacles, 22)
	assert.NotEmpty(t, g.world.Points)
	assert.InDelta(t, 1.0/60, g.dt, 1e-12)

	cw, ch := g.carSize()
	assert.Equal(t, 128, cw)
	assert.Equal(t, 64, ch)
}

func TestGameUpdateDrives(t *testing.T) {
	g, in, _, _ := newTestGame(t)

	in.pressed[ebiten.KeyArrowUp] = true
	for i := 0; i < 60; i++ {
		require.NoError(t, g.Update())
	}
	assert.Equal(t, 60, g.snap.Sim.Ticks)
	assert.Greater(t, g.snap.Sim.Vehicle.Velocity, 0.0)
	assert.True(t, g.snap.Controls.Forward)

	in.pressed[ebiten.KeyArrowUp] = false
	in.just[ebiten.KeyR] = true
	require.NoError(t, g.Update())
	in.just[ebiten.KeyR] = false
	assert.Equal(t, 1, g.snap.Sim.Ticks, "reset then one tick")
	assert.Equal(t, "reset", g.status)
}

func TestGameUpdateClickSelectsTarget(t *testing.T) {
	g, in, svc, _ := newTestGame(t)

	in.click = &engine.Point{X: 640, Y: 360}
	require.NoError(t, g.Update())
	require.NotNil(t, g.snap.Sim.Target)
	assert.Equal(t, engine.Point{X: 640, Y: 360}, *g.snap.Sim.Target)
	assert.NotEmpty(t, g.snap.Route.RequestID)
	assert.NotEqual(t, "click to pick a target", routeLabel(g.snap))

	require.Eventually(t, func() bool {
		r, _ := svc.Route(context.Background())
		return !r.Pending
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, g.Update())
	assert.True(t, g.snap.Route.Found)
	assert.Contains(t, routeLabel(g.snap), "waypoints")

	in.click = &engine.Point{X: 5000, Y: 10}
	require.NoError(t, g.Update())
	assert.Contains(t, g.status, "invalid target")
}

func TestGameUpdateToggles(t *testing.T) {
	g, in, _, _ := newTestGame(t)

	in.just[ebiten.KeyG] = true
	require.NoError(t, g.Update())
	assert.False(t, g.showGrid)

	in.just[ebiten.KeyG] = false
	in.just[ebiten.KeyEscape] = true
	assert.ErrorIs(t, g.Update(), ebiten.Termination)
}

func TestGameUpdateStopsOnCancel(t *testing.T) {
	g, _, _, _ := newTestGame(t)
	ctx, cancel := context.WithCancel(context.Background())
	g.ctx = ctx
	cancel()
	assert.ErrorIs(t, g.Update(), ebiten.Termination)
}

func TestGameCycleLayout(t *testing.T) {
	g, in, _, layouts := newTestGame(t)

	// Only the built-in layout exists
	in.just[ebiten.KeyL] = true
	require.NoError(t, g.Update())
	assert.Equal(t, "no layout files found", g.status)

	small := engine.DefaultLayout()
	small.Name = "small"
	small.Field = engine.Size{Width: 600, Height: 400}
	small.Lots.Columns = 4
	small.Lots.FreeSlots = nil
	require.NoError(t, layouts.SaveLayout("small", small))

	require.NoError(t, g.Update())
	assert.Equal(t, "loaded layout small", g.status)
	w, h := g.Layout(0, 0)
	assert.Equal(t, 600, w)
	assert.Equal(t, 400, h)
	assert.Len(t, g.world.Obstacles, 8)
}

func TestNextLayout(t *testing.T) {
	infos := []*config.LayoutInfo{
		{LayoutID: "classic", Name: "classic"},
		{LayoutID: "compact", Name: "Compact lot"},
		{LayoutID: "wide", Name: "wide"},
	}
	next, ok := nextLayout(infos, "classic")
	assert.True(t, ok)
	assert.Equal(t, "compact", next)

	next, _ = nextLayout(infos, "Compact lot")
	assert.Equal(t, "wide", next)

	next, _ = nextLayout(infos, "wide")
	assert.Equal(t, "classic", next)

	next, _ = nextLayout(infos, "unknown")
	assert.Equal(t, "classic", next)

	_, ok = nextLayout(nil, "classic")
	assert.False(t, ok)
}

func TestRouteLabel(t *testing.T) {
	snap := &service.Snapshot{Sim: &engine.SimState{}}
	assert.Equal(t, "click to pick a target", routeLabel(snap))

	snap.Route = dispatch.Route{RequestID: "a", Pending: true}
	assert.Equal(t, "searching...", routeLabel(snap))

	snap.Route = dispatch.Route{RequestID: "a", Error: "path not found"}
	assert.Equal(t, "no path: path not found", routeLabel(snap))
}
