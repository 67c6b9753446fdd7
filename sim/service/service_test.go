package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/parkingsim/sim/config"
	"github.com/wricardo/parkingsim/sim/dispatch"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/planner"
)

func newTestService(t *testing.T, opts Options) (SimService, *config.Manager) {
	t.Helper()
	layouts, err := config.NewManager(t.TempDir())
	require.NoError(t, err)

	opts.Logger = zerolog.Nop()
	svc, err := NewSimService(layouts, opts)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc, layouts
}

func TestNewSimService(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	snap, err := svc.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "classic", snap.Sim.LayoutName)
	assert.Equal(t, string(planner.StrategyAStar), snap.Strategy)
	assert.False(t, snap.Route.Pending)

	_, err = NewSimService(mustManager(t), Options{Layout: "ghost", Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, config.ErrLayoutNotFound)

	_, err = NewSimService(mustManager(t), Options{Strategy: "bfs", Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, planner.ErrUnknownStrategy)
}

func mustManager(t *testing.T) *config.Manager {
	t.Helper()
	m, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func TestSimService_Drive(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	res, err := svc.Drive(ctx, engine.Controls{Forward: true}, 60, 0)
	require.NoError(t, err)
	assert.Equal(t, 60, res.Ticks)
	assert.False(t, res.Truncated)
	assert.Greater(t, res.End.Velocity, 0.0)
	assert.Greater(t, res.Distance, 0.0)
	assert.Equal(t, 60, res.State.Ticks)

	res, err = svc.Drive(ctx, engine.Controls{Brake: true}, MaxDriveTicks+10, DefaultDt)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Equal(t, MaxDriveTicks, res.Ticks)
	assert.InDelta(t, 0, res.End.Velocity, 1e-9)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = svc.Drive(cancelled, engine.Controls{}, 10, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimService_ControlsAndTick(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	require.NoError(t, svc.SetControls(ctx, engine.Controls{Forward: true, Left: true}))
	for i := 0; i < 30; i++ {
		_, err := svc.Tick(ctx, DefaultDt)
		require.NoError(t, err)
	}

	snap, err := svc.State(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Controls.Forward)
	assert.Equal(t, 30, snap.Sim.Ticks)
	assert.Greater(t, snap.Sim.Vehicle.Steering, 0.0)

	snap, err = svc.Reset(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Sim.Ticks)
	assert.Equal(t, engine.Controls{}, snap.Controls)
}

func TestSimService_SelectTarget(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	target := engine.Point{X: 640, Y: 360}

	route, err := svc.SelectTarget(ctx, target)
	require.NoError(t, err)
	assert.NotEmpty(t, route.RequestID)

	require.Eventually(t, func() bool {
		r, _ := svc.Route(ctx)
		return !r.Pending && r.RequestID == route.RequestID
	}, 5*time.Second, 10*time.Millisecond)

	final, err := svc.Route(ctx)
	require.NoError(t, err)
	assert.True(t, final.Found)
	assert.Equal(t, target, final.Path[len(final.Path)-1])

	snap, err := svc.State(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Sim.Target)
	assert.Equal(t, target, *snap.Sim.Target)
}

func TestSimService_SelectTargetRejectsOutside(t *testing.T) {
	svc, _ := newTestService(t, Options{})

	for _, p := range []engine.Point{{X: -1, Y: 10}, {X: 1280, Y: 10}, {X: 10, Y: 720}} {
		_, err := svc.SelectTarget(context.Background(), p)
		assert.ErrorIs(t, err, ErrInvalidTarget, "%v", p)
	}
}

func TestSimService_PlanPath(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()
	start := engine.Point{X: 0, Y: 360}

	res, err := svc.PlanPath(ctx, PlanRequest{Start: &start, Target: engine.Point{X: 1200, Y: 360}, Strategy: "greedy"})
	require.NoError(t, err)
	assert.Equal(t, planner.StrategyGreedy, res.Strategy)

	res, err = svc.PlanPath(ctx, PlanRequest{Target: engine.Point{X: 640, Y: 360}})
	require.NoError(t, err)
	assert.Equal(t, planner.StrategyAStar, res.Strategy)
	assert.Equal(t, engine.Point{X: 0, Y: 0}, res.Waypoints[0], "defaults to the car position")

	// Deep inside an occupied slot: nothing walkable near the target
	_, err = svc.PlanPath(ctx, PlanRequest{Target: engine.Point{X: 182, Y: 207}})
	assert.ErrorIs(t, err, planner.ErrPathNotFound)

	_, err = svc.PlanPath(ctx, PlanRequest{Target: engine.Point{X: 10, Y: 10}, Strategy: "bfs"})
	assert.ErrorIs(t, err, planner.ErrUnknownStrategy)

	route, err := svc.Route(ctx)
	require.NoError(t, err)
	assert.Empty(t, route.RequestID, "synchronous plans leave the route alone")
}

func TestSimService_PlanPathRejectsNonFiniteStart(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	for _, strategy := range []string{"astar", "greedy"} {
		for _, start := range []engine.Point{{X: math.NaN(), Y: 0}, {X: 0, Y: math.Inf(-1)}} {
			start := start
			_, err := svc.PlanPath(ctx, PlanRequest{Start: &start, Target: engine.Point{X: 100, Y: 100}, Strategy: strategy})
			assert.ErrorIs(t, err, ErrInvalidTarget, "%s %v", strategy, start)
		}

		far := engine.Point{X: 1e300, Y: 0}
		res, err := svc.PlanPath(ctx, PlanRequest{Start: &far, Target: engine.Point{X: 1200, Y: 30}, Strategy: strategy})
		require.NoError(t, err, strategy)
		assert.Equal(t, engine.Point{X: 1200, Y: 30}, res.Waypoints[len(res.Waypoints)-1])
	}
}

func TestSimService_GridAndDescribePoint(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	info, err := svc.Grid(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 86, info.Cols)
	assert.Equal(t, 48, info.Rows)
	assert.Len(t, info.Points, info.Walkable)
	assert.Len(t, info.Obstacles, 22)
	assert.Equal(t, 1, info.Components)

	info, err = svc.Grid(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, info.Points)

	pt, err := svc.DescribePoint(ctx, engine.Point{X: 182, Y: 207})
	require.NoError(t, err)
	assert.True(t, pt.InBounds)
	assert.True(t, pt.Blocked)
	assert.False(t, pt.OnGrid)
	require.NotNil(t, pt.Slot)
	assert.Equal(t, engine.SlotRef{Row: 0, Column: 0}, *pt.Slot)
	assert.True(t, pt.Occupied)
	require.NotNil(t, pt.Nearest)
	assert.Greater(t, pt.Distance, 0.0)

	free, err := svc.DescribePoint(ctx, engine.Point{X: 630, Y: 500})
	require.NoError(t, err)
	require.NotNil(t, free.Slot)
	assert.Equal(t, engine.SlotRef{Row: 1, Column: 5}, *free.Slot)
	assert.False(t, free.Occupied)

	open, err := svc.DescribePoint(ctx, engine.Point{X: 30, Y: 45})
	require.NoError(t, err)
	assert.True(t, open.OnGrid)
	assert.Nil(t, open.Slot)
	assert.Zero(t, open.Distance)
}

func TestSimService_LoadLayout(t *testing.T) {
	svc, layouts := newTestService(t, Options{})
	ctx := context.Background()

	small := engine.DefaultLayout()
	small.Name = "small"
	small.Field = engine.Size{Width: 600, Height: 400}
	small.Lots.Columns = 4
	small.Lots.FreeSlots = nil
	small.Planner.Strategy = "greedy"
	require.NoError(t, layouts.SaveLayout("small", small))

	_, err := svc.SelectTarget(ctx, engine.Point{X: 640, Y: 360})
	require.NoError(t, err)

	snap, err := svc.LoadLayout(ctx, "small")
	require.NoError(t, err)
	assert.Equal(t, "small", snap.Sim.LayoutName)
	assert.Equal(t, "greedy", snap.Strategy)
	assert.Empty(t, snap.Route.RequestID)

	infos, err := svc.ListLayouts(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "small", infos[0].LayoutID)

	layout, err := svc.Layout(ctx)
	require.NoError(t, err)
	assert.Equal(t, 600.0, layout.Field.Width)

	_, err = svc.LoadLayout(ctx, "ghost")
	assert.ErrorIs(t, err, config.ErrLayoutNotFound)
}

func TestSimService_StrategyOverride(t *testing.T) {
	svc, _ := newTestService(t, Options{Strategy: "greedy"})

	snap, err := svc.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "greedy", snap.Strategy)
}

func TestSimService_RouteHookMayReadState(t *testing.T) {
	svc, _ := newTestService(t, Options{})
	ctx := context.Background()

	var mu sync.Mutex
	var seen []dispatch.Route
	svc.OnRouteUpdate(func(r dispatch.Route) {
		_, err := svc.State(ctx)
		assert.NoError(t, err)
		mu.Lock()
		seen = append(seen, r)
		mu.Unlock()
	})

	_, err := svc.SelectTarget(ctx, engine.Point{X: 300, Y: 360})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		r, _ := svc.Route(ctx)
		return !r.Pending
	}, 5*time.Second, 10*time.Millisecond)

	_, err = svc.Reset(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, len(seen), 3, "pending, found and cleared")
}
