package service

import (
	"context"

	"github.com/wricardo/parkingsim/sim/config"
	"github.com/wricardo/parkingsim/sim/dispatch"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/planner"
)

// SimService defines all simulation operations used by the adapters
type SimService interface {
	// Simulation
	State(ctx context.Context) (*Snapshot, error)
	SetControls(ctx context.Context, controls engine.Controls) error
	Tick(ctx context.Context, dt float64) (*engine.SimState, error)
	Drive(ctx context.Context, controls engine.Controls, ticks int, dt float64) (*DriveResult, error)
	Reset(ctx context.Context) (*Snapshot, error)

	// Routing
	SelectTarget(ctx context.Context, target engine.Point) (*dispatch.Route, error)
	PlanPath(ctx context.Context, req PlanRequest) (*planner.Result, error)
	Route(ctx context.Context) (*dispatch.Route, error)
	OnRouteUpdate(fn func(dispatch.Route))

	// World
	Grid(ctx context.Context, includePoints bool) (*GridInfo, error)
	DescribePoint(ctx context.Context, p engine.Point) (*PointInfo, error)

	// Layouts
	ListLayouts(ctx context.Context) ([]*config.LayoutInfo, error)
	LoadLayout(ctx context.Context, name string) (*Snapshot, error)
	Layout(ctx context.Context) (*engine.LayoutConfig, error)

	Close() error
}

// LayoutStore handles layout loading
type LayoutStore interface {
	LoadLayout(name string) (*engine.LayoutConfig, error)
	ListLayouts() ([]*config.LayoutInfo, error)
	GetDefault() *engine.LayoutConfig
}
