package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wricardo/parkingsim/sim/config"
	"github.com/wricardo/parkingsim/sim/dispatch"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/planner"
)

const (
	// MaxDriveTicks caps a single Drive call
	MaxDriveTicks = 3600
	// DefaultDt is one frame at 60 ticks per second
	DefaultDt = 1.0 / 60
)

var ErrInvalidTarget = errors.New("invalid target")

// Options configures a SimService
type Options struct {
	// Layout id to start with; empty uses the store default
	Layout string
	// Strategy overrides the layout's planner strategy when set
	Strategy string
	Logger   zerolog.Logger
}

// simServiceImpl implements the SimService interface
type simServiceImpl struct {
	layouts  LayoutStore
	strategy string
	logger   zerolog.Logger
	routes   *dispatch.Dispatcher

	mu       sync.RWMutex
	engine   *engine.SimEngine
	controls engine.Controls
}

// NewSimService builds the engine for the starting layout and the route dispatcher
func NewSimService(layouts LayoutStore, opts Options) (SimService, error) {
	s := &simServiceImpl{
		layouts:  layouts,
		strategy: opts.Strategy,
		logger:   opts.Logger.With().Str("component", "service").Logger(),
	}

	layout := layouts.GetDefault()
	if opts.Layout != "" {
		var err error
		layout, err = layouts.LoadLayout(opts.Layout)
		if err != nil {
			return nil, fmt.Errorf("failed to load layout %s: %w", opts.Layout, err)
		}
	}

	eng, err := engine.NewEngine(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	p, err := s.plannerFor(layout, "")
	if err != nil {
		return nil, err
	}

	s.engine = eng
	s.routes = dispatch.New(eng.GetGrid(), p, opts.Logger)

	s.logger.Info().
		Str("layout", layout.Name).
		Str("strategy", string(p.Strategy())).
		Int("walkable", eng.GetGrid().Len()).
		Msg("simulation ready")
	return s, nil
}

// plannerFor resolves the strategy: explicit override, then service option, then layout
func (s *simServiceImpl) plannerFor(layout *engine.LayoutConfig, override string) (planner.Planner, error) {
	name := override
	if name == "" {
		name = s.strategy
	}
	if name == "" {
		name = layout.Planner.Strategy
	}
	strategy, err := planner.ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	return planner.New(strategy, planner.OptionsFromConfig(layout.Planner))
}

func (s *simServiceImpl) snapshot() *Snapshot {
	return &Snapshot{
		Sim:      s.engine.GetState(),
		Controls: s.controls,
		Route:    s.routes.State(),
		Strategy: string(s.routes.Strategy()),
	}
}

// State returns the current frame snapshot
func (s *simServiceImpl) State(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(), nil
}

// SetControls replaces the held driver input used by Tick
func (s *simServiceImpl) SetControls(ctx context.Context, controls engine.Controls) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls = controls
	return nil
}

// Tick advances the simulation one step with the held controls
func (s *simServiceImpl) Tick(ctx context.Context, dt float64) (*engine.SimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Tick(s.controls, dt)
	return s.engine.GetState(), nil
}

// Drive runs ticks steps with fixed controls. dt <= 0 selects DefaultDt.
func (s *simServiceImpl) Drive(ctx context.Context, controls engine.Controls, ticks int, dt float64) (*DriveResult, error) {
	if ticks <= 0 {
		ticks = 1
	}
	if dt <= 0 || math.IsNaN(dt) {
		dt = DefaultDt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &DriveResult{Start: s.engine.GetVehicle()}
	if ticks > MaxDriveTicks {
		result.Truncated = true
		result.Limit = MaxDriveTicks
		ticks = MaxDriveTicks
	}

	for i := 0; i < ticks; i++ {
		if i%60 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		s.engine.Tick(controls, dt)
		result.Ticks++
	}

	result.End = s.engine.GetVehicle()
	result.Distance = engine.Distance(result.Start.Position, result.End.Position)
	result.State = s.engine.GetState()
	return result, nil
}

// Reset puts the car back on the start position and drops the route
func (s *simServiceImpl) Reset(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	s.engine.Reset()
	s.controls = engine.Controls{}
	name := s.engine.GetLayout().Name
	s.mu.Unlock()

	// Route hooks may read the state, so they run without the lock held
	s.routes.Clear()
	s.logger.Info().Str("layout", name).Msg("simulation reset")
	return s.State(ctx)
}

func (s *simServiceImpl) checkTarget(target engine.Point) error {
	if !target.Finite() {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidTarget)
	}
	field := s.engine.GetLayout().Field
	if !(engine.Rect{W: field.Width, H: field.Height}).Contains(target) {
		return fmt.Errorf("%w: (%g, %g) is outside the %gx%g field", ErrInvalidTarget, target.X, target.Y, field.Width, field.Height)
	}
	return nil
}

// SelectTarget records target and starts an asynchronous search from the car
func (s *simServiceImpl) SelectTarget(ctx context.Context, target engine.Point) (*dispatch.Route, error) {
	s.mu.Lock()
	if err := s.checkTarget(target); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.engine.SetTarget(target)
	start := s.engine.PixelPosition()
	s.mu.Unlock()

	if _, err := s.routes.Submit(start, target); err != nil {
		return nil, fmt.Errorf("failed to submit route: %w", err)
	}
	route := s.routes.State()
	return &route, nil
}

// PlanPath runs a search synchronously without touching the active route
func (s *simServiceImpl) PlanPath(ctx context.Context, req PlanRequest) (*planner.Result, error) {
	s.mu.RLock()
	if err := s.checkTarget(req.Target); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	layout := s.engine.GetLayout()
	grid := s.engine.GetGrid()
	start := s.engine.PixelPosition()
	s.mu.RUnlock()

	if req.Start != nil {
		if !req.Start.Finite() {
			return nil, fmt.Errorf("%w: start coordinates must be finite", ErrInvalidTarget)
		}
		start = *req.Start
	}
	p, err := s.plannerFor(layout, req.Strategy)
	if err != nil {
		return nil, err
	}

	res, err := p.Plan(ctx, grid, start, req.Target)
	if err != nil {
		s.logger.Debug().Err(err).Str("strategy", string(p.Strategy())).Msg("plan failed")
		return nil, err
	}
	return res, nil
}

// Route returns the latest asynchronous route
func (s *simServiceImpl) Route(ctx context.Context) (*dispatch.Route, error) {
	route := s.routes.State()
	return &route, nil
}

// OnRouteUpdate forwards route changes to fn
func (s *simServiceImpl) OnRouteUpdate(fn func(dispatch.Route)) {
	s.routes.OnUpdate(fn)
}

// Grid describes the walkable lattice of the active layout
func (s *simServiceImpl) Grid(ctx context.Context, includePoints bool) (*GridInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grid := s.engine.GetGrid()
	_, components := grid.Components()
	info := &GridInfo{
		Width:      grid.Bounds().Width,
		Height:     grid.Bounds().Height,
		Step:       grid.Step(),
		Cols:       grid.Cols(),
		Rows:       grid.Rows(),
		Walkable:   grid.Len(),
		Components: components,
		Obstacles:  s.engine.GetLot().Obstacles(),
	}
	if includePoints {
		info.Points = grid.Points()
	}
	return info, nil
}

// DescribePoint reports the slot, hitbox and nearest walkable point at p
func (s *simServiceImpl) DescribePoint(ctx context.Context, p engine.Point) (*PointInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	field := s.engine.GetLayout().Field
	grid := s.engine.GetGrid()
	lot := s.engine.GetLot()

	info := &PointInfo{
		Point:    p,
		InBounds: (engine.Rect{W: field.Width, H: field.Height}).Contains(p),
		OnGrid:   grid.Contains(p),
		Blocked:  lot.Blocked(p),
	}
	for _, obs := range lot.Obstacles() {
		if obs.Rect.Contains(p) {
			ref := obs.Slot
			info.Slot = &ref
			info.Occupied = obs.Occupied
			break
		}
	}
	if c, ok := grid.Nearest(p); ok {
		nearest := grid.PointAt(c)
		info.Nearest = &nearest
		info.Distance = engine.Distance(p, nearest)
	}
	return info, nil
}

// ListLayouts returns the available layouts
func (s *simServiceImpl) ListLayouts(ctx context.Context) ([]*config.LayoutInfo, error) {
	return s.layouts.ListLayouts()
}

// LoadLayout swaps the active layout. The car restarts and the route is cleared.
func (s *simServiceImpl) LoadLayout(ctx context.Context, name string) (*Snapshot, error) {
	layout, err := s.layouts.LoadLayout(name)
	if err != nil {
		return nil, err
	}
	eng, err := engine.NewEngine(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	p, err := s.plannerFor(layout, "")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.engine = eng
	s.controls = engine.Controls{}
	s.mu.Unlock()
	s.routes.Reconfigure(eng.GetGrid(), p)

	s.logger.Info().
		Str("layout", layout.Name).
		Str("strategy", string(p.Strategy())).
		Int("walkable", eng.GetGrid().Len()).
		Msg("layout loaded")
	return s.State(ctx)
}

// Layout returns the active layout
func (s *simServiceImpl) Layout(ctx context.Context) (*engine.LayoutConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.GetLayout(), nil
}

// Close stops every in-flight search
func (s *simServiceImpl) Close() error {
	return s.routes.Close()
}
