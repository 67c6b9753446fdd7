// Package dispatch runs path searches off the simulation loop.
//
// A Dispatcher owns at most one in-flight search. Submitting a new target
// cancels the previous search and its result is discarded. While a search
// runs the route is reported as pending so adapters can show it.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/planner"
)

var ErrClosed = errors.New("dispatcher closed")

// Route is a snapshot of the most recent request
type Route struct {
	RequestID  string           `json:"request_id,omitempty"`
	Pending    bool             `json:"pending"`
	Found      bool             `json:"found"`
	Start      engine.Point     `json:"start"`
	Target     *engine.Point    `json:"target,omitempty"`
	Path       planner.Path     `json:"path,omitempty"`
	Strategy   planner.Strategy `json:"strategy,omitempty"`
	Expansions int              `json:"expansions"`
	Duration   time.Duration    `json:"duration"`
	Error      string           `json:"error,omitempty"`

	// Err is the search error, nil while pending or on success
	Err error `json:"-"`
}

// Dispatcher schedules searches and keeps the latest route
type Dispatcher struct {
	logger zerolog.Logger

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	grid   *engine.Grid
	plan   planner.Planner
	cancel context.CancelFunc
	route  Route
	hook   func(Route)
	closed bool
}

// New creates a dispatcher searching grid with p
func New(grid *engine.Grid, p planner.Planner, logger zerolog.Logger) *Dispatcher {
	ctx, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		logger: logger.With().Str("component", "dispatch").Logger(),
		ctx:    ctx,
		stop:   stop,
		grid:   grid,
		plan:   p,
	}
}

// OnUpdate registers fn to receive every route change. fn runs outside the lock.
func (d *Dispatcher) OnUpdate(fn func(Route)) {
	d.mu.Lock()
	d.hook = fn
	d.mu.Unlock()
}

// Submit starts a search from start to target and returns its request id.
// Any in-flight search is cancelled.
func (d *Dispatcher) Submit(start, target engine.Point) (string, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", ErrClosed
	}
	if d.cancel != nil {
		d.cancel()
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(d.ctx)
	d.cancel = cancel
	goal := target
	d.route = Route{
		RequestID: id,
		Pending:   true,
		Start:     start,
		Target:    &goal,
		Strategy:  d.plan.Strategy(),
	}
	snapshot, hook := d.route, d.hook
	grid, p := d.grid, d.plan
	d.wg.Add(1)
	d.mu.Unlock()

	d.logger.Debug().
		Str("request_id", id).
		Str("strategy", string(p.Strategy())).
		Float64("x", target.X).
		Float64("y", target.Y).
		Msg("route requested")
	notify(hook, snapshot)

	go d.run(ctx, cancel, id, grid, p, start, target)
	return id, nil
}

func (d *Dispatcher) run(ctx context.Context, cancel context.CancelFunc, id string, grid *engine.Grid, p planner.Planner, start, target engine.Point) {
	defer d.wg.Done()
	defer cancel()

	res, err := p.Plan(ctx, grid, start, target)

	d.mu.Lock()
	if d.route.RequestID != id {
		d.mu.Unlock()
		d.logger.Debug().Str("request_id", id).Msg("route superseded")
		return
	}
	if errors.Is(err, context.Canceled) {
		// Cancelled without a newer request: the dispatcher is closing or was cleared
		d.mu.Unlock()
		return
	}

	route := d.route
	route.Pending = false
	if err != nil {
		route.Err = err
		route.Error = err.Error()
		var nf *planner.NotFoundError
		if errors.As(err, &nf) {
			route.Path = nf.Partial
			route.Expansions = nf.Expansions
		}
	} else {
		route.Found = true
		route.Path = res.Waypoints
		route.Expansions = res.Expansions
		route.Duration = res.Duration
	}
	d.route = route
	d.cancel = nil
	hook := d.hook
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn().Err(err).Str("request_id", id).Int("expansions", route.Expansions).Msg("route not found")
	} else {
		d.logger.Info().
			Str("request_id", id).
			Int("waypoints", len(route.Path)).
			Int("expansions", route.Expansions).
			Dur("duration", route.Duration).
			Msg("route found")
	}
	notify(hook, route)
}

// State returns the latest route
func (d *Dispatcher) State() Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.route
}

// Pending reports whether a search is running
func (d *Dispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.route.Pending
}

// Clear cancels any search and forgets the route
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.route = Route{}
	hook := d.hook
	d.mu.Unlock()
	notify(hook, Route{})
}

// Reconfigure swaps the grid and planner, e.g. after a layout reload.
// The current route is cleared.
func (d *Dispatcher) Reconfigure(grid *engine.Grid, p planner.Planner) {
	d.mu.Lock()
	d.grid = grid
	d.plan = p
	d.mu.Unlock()
	d.Clear()
}

// Strategy returns the active planner's strategy
func (d *Dispatcher) Strategy() planner.Strategy {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plan.Strategy()
}

// Wait blocks until no search is running or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every search and waits for the workers to exit
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.stop()
	d.wg.Wait()
	return nil
}

func notify(hook func(Route), r Route) {
	if hook != nil {
		hook(r)
	}
}
