// Package planner finds waypoint paths across the walkable lattice.
//
// Two strategies sit behind the Planner interface. A* is the default and
// the only one with optimality guarantees. Greedy reproduces the box
// expansion search of the first prototype and is kept for comparison; a
// node's score may be overwritten with a worse value, so its paths are an
// approximation.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/wricardo/parkingsim/sim/engine"
)

// Strategy names a search algorithm
type Strategy string

const (
	StrategyAStar  Strategy = "astar"
	StrategyGreedy Strategy = "greedy"
)

const (
	DefaultAStarTargetBox  = 30.0
	DefaultGreedyTargetBox = 15.0
	DefaultSeedBox         = 50.0
	DefaultExpandBox       = 50.0

	// defaultExpansionFactor bounds a search at this many expansions per walkable point
	defaultExpansionFactor = 4

	// cancellation is polled once per this many expansions
	ctxCheckInterval = 64
)

var (
	ErrPathNotFound    = errors.New("path not found")
	ErrEmptyGrid       = errors.New("grid has no walkable points")
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// NotFoundError reports a failed search together with the best partial path
type NotFoundError struct {
	Strategy   Strategy
	Partial    Path
	Expansions int
	Reason     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s after %d expansions (%s)", ErrPathNotFound, e.Strategy, e.Expansions, e.Reason)
}

// Is lets errors.Is match ErrPathNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrPathNotFound
}

// Planner computes a path from start to target over grid
type Planner interface {
	Strategy() Strategy
	Plan(ctx context.Context, grid *engine.Grid, start, target engine.Point) (*Result, error)
}

// Result is a successful search
type Result struct {
	Strategy   Strategy      `json:"strategy"`
	Waypoints  Path          `json:"waypoints"`
	Expansions int           `json:"expansions"`
	Duration   time.Duration `json:"duration"`
}

// Options tunes a strategy. Zero values select the strategy defaults.
type Options struct {
	MaxExpansions int
	TargetBox     float64
	SeedBox       float64
	ExpandBox     float64
}

// OptionsFromConfig converts the planner section of a layout
func OptionsFromConfig(cfg engine.PlannerConfig) Options {
	return Options{
		MaxExpansions: cfg.MaxExpansions,
		TargetBox:     cfg.TargetBox,
		SeedBox:       cfg.SeedBox,
		ExpandBox:     cfg.ExpandBox,
	}
}

func (o Options) maxExpansions(grid *engine.Grid) int {
	if o.MaxExpansions > 0 {
		return o.MaxExpansions
	}
	return defaultExpansionFactor * grid.Len()
}

// ParseStrategy maps a configuration string onto a Strategy. Empty means A*.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAStar:
		return StrategyAStar, nil
	case StrategyGreedy:
		return StrategyGreedy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// New returns the planner for strategy
func New(strategy Strategy, opts Options) (Planner, error) {
	switch strategy {
	case StrategyAStar, "":
		return NewAStar(opts), nil
	case StrategyGreedy:
		return NewGreedy(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// Path is an ordered list of waypoints in playfield pixels
type Path []engine.Point

// LineString converts the path into a simplefeatures geometry
func (p Path) LineString() geom.LineString {
	if len(p) < 2 {
		return geom.LineString{}
	}
	coords := make([]float64, 0, 2*len(p))
	for _, pt := range p {
		coords = append(coords, pt.X, pt.Y)
	}
	return geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
}

// Length returns the total Euclidean length of the path
func (p Path) Length() float64 {
	return p.LineString().Length()
}

// WKT renders the path as a well-known-text LINESTRING
func (p Path) WKT() string {
	return p.LineString().AsText()
}

func checkGrid(grid *engine.Grid) error {
	if grid == nil || grid.Len() == 0 {
		return ErrEmptyGrid
	}
	return nil
}
