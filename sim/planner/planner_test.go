package planner

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/parkingsim/sim/engine"
)

func openGrid(t *testing.T, width, height, step float64) *engine.Grid {
	t.Helper()
	grid, err := engine.BuildGrid(nil, engine.Size{Width: width, Height: height}, step)
	require.NoError(t, err)
	return grid
}

func classicGrid(t *testing.T) *engine.Grid {
	t.Helper()
	e, err := engine.NewEngine(engine.DefaultLayout())
	require.NoError(t, err)
	return e.GetGrid()
}

// enclosedGrid walls in the square 110..180 with 30px thick sides
func enclosedGrid(t *testing.T) *engine.Grid {
	t.Helper()
	walls := []engine.Obstacle{
		engine.NewObstacle(engine.Rect{X: 80, Y: 80, W: 140, H: 30}, 0, true),
		engine.NewObstacle(engine.Rect{X: 80, Y: 190, W: 140, H: 30}, 0, true),
		engine.NewObstacle(engine.Rect{X: 80, Y: 80, W: 30, H: 140}, 0, true),
		engine.NewObstacle(engine.Rect{X: 190, Y: 80, W: 30, H: 140}, 0, true),
	}
	grid, err := engine.BuildGrid(walls, engine.Size{Width: 300, Height: 300}, 10)
	require.NoError(t, err)
	return grid
}

// assertValidPath checks grid membership, 4-adjacency and the acceptance box
func assertValidPath(t *testing.T, grid *engine.Grid, path Path, target engine.Point, box float64) {
	t.Helper()
	require.GreaterOrEqual(t, len(path), 2)
	assert.Equal(t, target, path[len(path)-1], "literal target is appended")

	lattice := path[:len(path)-1]
	for i, p := range lattice {
		assert.True(t, grid.Contains(p), "waypoint %d %v is not walkable", i, p)
		if i == 0 {
			continue
		}
		prev, okPrev := grid.Locate(lattice[i-1])
		cur, okCur := grid.Locate(p)
		require.True(t, okPrev && okCur, "waypoints %d and %d are off the lattice", i-1, i)
		assert.Equal(t, 1, engine.ManhattanDistance(prev, cur), "waypoints %d and %d are not 4-adjacent", i-1, i)
	}
	assert.True(t, engine.Centered(target, box).Contains(lattice[len(lattice)-1]))
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyAStar, false},
		{"astar", StrategyAStar, false},
		{" AStar ", StrategyAStar, false},
		{"greedy", StrategyGreedy, false},
		{"dijkstra", "", true},
	}

	for _, test := range tests {
		t.Run(test.in, func(t *testing.T) {
			got, err := ParseStrategy(test.in)
			if test.wantErr {
				assert.ErrorIs(t, err, ErrUnknownStrategy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	p, err := New(StrategyGreedy, Options{})
	require.NoError(t, err)
	assert.Equal(t, StrategyGreedy, p.Strategy())

	p, err = New("", Options{})
	require.NoError(t, err)
	assert.Equal(t, StrategyAStar, p.Strategy())

	_, err = New("bfs", Options{})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestPath_Length(t *testing.T) {
	assert.Zero(t, Path(nil).Length())
	assert.Zero(t, Path{{X: 1, Y: 1}}.Length())
	assert.InDelta(t, 11.0, Path{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 3, Y: 10}}.Length(), 1e-9)
}

func TestPlanners_EmptyGrid(t *testing.T) {
	full := engine.NewObstacle(engine.Rect{X: -10, Y: -10, W: 500, H: 500}, 0, true)
	grid, err := engine.BuildGrid([]engine.Obstacle{full}, engine.Size{Width: 100, Height: 100}, 10)
	require.NoError(t, err)

	for _, p := range []Planner{NewAStar(Options{}), NewGreedy(Options{})} {
		t.Run(string(p.Strategy()), func(t *testing.T) {
			_, err := p.Plan(context.Background(), grid, engine.Point{}, engine.Point{X: 50, Y: 50})
			assert.ErrorIs(t, err, ErrEmptyGrid)

			_, err = p.Plan(context.Background(), nil, engine.Point{}, engine.Point{X: 50, Y: 50})
			assert.ErrorIs(t, err, ErrEmptyGrid)
		})
	}
}

func TestPlanners_CancelledContext(t *testing.T) {
	grid := classicGrid(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, p := range []Planner{NewAStar(Options{}), NewGreedy(Options{})} {
		t.Run(string(p.Strategy()), func(t *testing.T) {
			_, err := p.Plan(ctx, grid, engine.Point{}, engine.Point{X: 1200, Y: 700})
			assert.ErrorIs(t, err, context.Canceled)
			assert.False(t, errors.Is(err, ErrPathNotFound))
		})
	}
}

func TestNotFoundError_Is(t *testing.T) {
	var err error = &NotFoundError{Strategy: StrategyAStar, Expansions: 3, Reason: "open set exhausted"}
	assert.ErrorIs(t, err, ErrPathNotFound)
	assert.Contains(t, err.Error(), "open set exhausted")

	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Equal(t, 3, nf.Expansions)
	assert.False(t, math.IsNaN(nf.Partial.Length()))
}
