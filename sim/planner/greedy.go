package planner

import (
	"context"
	"time"

	"github.com/wricardo/parkingsim/sim/engine"
)

type scoredCell struct {
	cell  engine.Cell
	score float64
}

// Greedy repeatedly jumps to the lowest scored visited point and rescores
// every lattice point in a box around it. Scores are overwritten without
// pruning, so the result is not a shortest path. Seed and expansion boxes are
// centred on their point. The classic form of this search anchors them at the
// point's top-left corner instead, which skews expansion towards +x/+y.
type Greedy struct {
	opts Options
}

// NewGreedy creates a greedy box expansion planner
func NewGreedy(opts Options) *Greedy {
	if opts.TargetBox <= 0 {
		opts.TargetBox = DefaultGreedyTargetBox
	}
	if opts.SeedBox <= 0 {
		opts.SeedBox = DefaultSeedBox
	}
	if opts.ExpandBox <= 0 {
		opts.ExpandBox = DefaultExpandBox
	}
	return &Greedy{opts: opts}
}

// Strategy implements Planner
func (g *Greedy) Strategy() Strategy { return StrategyGreedy }

// Plan runs the search and appends the literal target on success
func (g *Greedy) Plan(ctx context.Context, grid *engine.Grid, start, target engine.Point) (*Result, error) {
	began := time.Now()
	res, expansions, err := g.search(ctx, grid, start, target)
	meters().record(ctx, StrategyGreedy, expansions, time.Since(began), err)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(began)
	return res, nil
}

func (g *Greedy) search(ctx context.Context, grid *engine.Grid, start, target engine.Point) (*Result, int, error) {
	if err := checkGrid(grid); err != nil {
		return nil, 0, err
	}
	goal := engine.Centered(target, g.opts.TargetBox)
	limit := g.opts.maxExpansions(grid)

	var visited []scoredCell
	byCell := make(map[int]int)
	assign := func(c engine.Cell, score float64) {
		key := grid.Index(c)
		if idx, ok := byCell[key]; ok {
			visited[idx].score = score
			return
		}
		byCell[key] = len(visited)
		visited = append(visited, scoredCell{cell: c, score: score})
	}

	for _, c := range grid.CellsIn(engine.Centered(start, g.opts.SeedBox)) {
		assign(c, 1+engine.Distance(grid.PointAt(c), target))
	}
	if len(visited) == 0 {
		// Start sits inside a hitbox or off the field; seed from the closest walkable point instead
		c, ok := grid.Nearest(start)
		if !ok {
			return nil, 0, &NotFoundError{Strategy: StrategyGreedy, Reason: "no walkable point near the start"}
		}
		assign(c, 1+engine.Distance(grid.PointAt(c), target))
	}

	var path Path
	onPath := make(map[engine.Cell]bool)
	current := pickLowest(visited)
	path = append(path, grid.PointAt(current))
	onPath[current] = true

	steps := 0
	for !goal.Contains(grid.PointAt(current)) {
		if steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, steps, err
			}
		}
		if steps >= limit {
			return nil, steps, &NotFoundError{
				Strategy:   StrategyGreedy,
				Partial:    path,
				Expansions: steps,
				Reason:     "expansion limit reached",
			}
		}

		steps++
		for _, c := range grid.CellsIn(engine.Centered(grid.PointAt(current), g.opts.ExpandBox)) {
			assign(c, float64(steps)+engine.Distance(grid.PointAt(c), target))
		}
		current = pickLowest(visited)
		if !onPath[current] {
			onPath[current] = true
			path = append(path, grid.PointAt(current))
		}
	}

	path = append(path, target)
	return &Result{Strategy: StrategyGreedy, Waypoints: path, Expansions: steps}, steps, nil
}

// pickLowest returns the lowest scored cell, earliest inserted on ties
func pickLowest(visited []scoredCell) engine.Cell {
	best := 0
	for i := 1; i < len(visited); i++ {
		if visited[i].score < visited[best].score {
			best = i
		}
	}
	return visited[best].cell
}
