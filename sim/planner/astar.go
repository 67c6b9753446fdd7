package planner

import (
	"container/heap"
	"context"
	"time"

	"github.com/wricardo/parkingsim/sim/engine"
)

// searchNode lives in the arena slice. Parents are arena indices.
type searchNode struct {
	cell      engine.Cell
	g         float64
	h         float64
	f         float64
	parent    int
	seq       int
	heapIndex int
	closed    bool
}

// openQueue orders arena indices by f, then g, then insertion sequence
type openQueue struct {
	items []int
	nodes *[]searchNode
}

func (q *openQueue) Len() int { return len(q.items) }

func (q *openQueue) Less(i, j int) bool {
	a := &(*q.nodes)[q.items[i]]
	b := &(*q.nodes)[q.items[j]]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.g != b.g {
		return a.g < b.g
	}
	return a.seq < b.seq
}

func (q *openQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	(*q.nodes)[q.items[i]].heapIndex = i
	(*q.nodes)[q.items[j]].heapIndex = j
}

func (q *openQueue) Push(x any) {
	idx := x.(int)
	(*q.nodes)[idx].heapIndex = len(q.items)
	q.items = append(q.items, idx)
}

func (q *openQueue) Pop() any {
	n := len(q.items)
	idx := q.items[n-1]
	q.items = q.items[:n-1]
	(*q.nodes)[idx].heapIndex = -1
	return idx
}

// AStar searches the 4-connected lattice with a Euclidean heuristic.
// Every transition costs one grid step so g and h share units.
type AStar struct {
	opts Options
}

// NewAStar creates an A* planner
func NewAStar(opts Options) *AStar {
	if opts.TargetBox <= 0 {
		opts.TargetBox = DefaultAStarTargetBox
	}
	return &AStar{opts: opts}
}

// Strategy implements Planner
func (a *AStar) Strategy() Strategy { return StrategyAStar }

// Plan runs the search. The returned path starts at the walkable point
// nearest to start and ends with the literal target.
func (a *AStar) Plan(ctx context.Context, grid *engine.Grid, start, target engine.Point) (*Result, error) {
	began := time.Now()
	res, expansions, err := a.search(ctx, grid, start, target)
	meters().record(ctx, StrategyAStar, expansions, time.Since(began), err)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(began)
	return res, nil
}

func (a *AStar) search(ctx context.Context, grid *engine.Grid, start, target engine.Point) (*Result, int, error) {
	if err := checkGrid(grid); err != nil {
		return nil, 0, err
	}
	startCell, ok := grid.Nearest(start)
	if !ok {
		return nil, 0, &NotFoundError{Strategy: StrategyAStar, Reason: "no walkable point near the start"}
	}
	goal := engine.Centered(target, a.opts.TargetBox)
	limit := a.opts.maxExpansions(grid)
	step := grid.Step()

	nodes := make([]searchNode, 0, 64)
	byCell := make(map[int]int, 64)
	open := &openQueue{nodes: &nodes}
	seq := 0

	push := func(idx int) {
		nodes[idx].seq = seq
		seq++
		heap.Push(open, idx)
	}

	h := engine.Distance(grid.PointAt(startCell), target)
	nodes = append(nodes, searchNode{cell: startCell, h: h, f: h, parent: -1, heapIndex: -1})
	byCell[grid.Index(startCell)] = 0
	push(0)

	best := 0
	expansions := 0
	for open.Len() > 0 {
		if expansions%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, expansions, err
			}
		}
		if expansions >= limit {
			return nil, expansions, &NotFoundError{
				Strategy:   StrategyAStar,
				Partial:    a.reconstruct(grid, nodes, best),
				Expansions: expansions,
				Reason:     "expansion limit reached",
			}
		}

		currentIdx := heap.Pop(open).(int)
		current := nodes[currentIdx]
		nodes[currentIdx].closed = true

		if goal.Contains(grid.PointAt(current.cell)) {
			path := append(a.reconstruct(grid, nodes, currentIdx), target)
			return &Result{Strategy: StrategyAStar, Waypoints: path, Expansions: expansions}, expansions, nil
		}
		if current.h < nodes[best].h {
			best = currentIdx
		}
		expansions++

		for _, next := range grid.Neighbors4(current.cell) {
			tentativeG := current.g + step
			key := grid.Index(next)

			idx, seen := byCell[key]
			if !seen {
				nh := engine.Distance(grid.PointAt(next), target)
				nodes = append(nodes, searchNode{
					cell:      next,
					g:         tentativeG,
					h:         nh,
					f:         tentativeG + nh,
					parent:    currentIdx,
					heapIndex: -1,
				})
				idx = len(nodes) - 1
				byCell[key] = idx
				push(idx)
				continue
			}

			n := &nodes[idx]
			if tentativeG >= n.g {
				continue
			}
			n.g = tentativeG
			n.f = tentativeG + n.h
			n.parent = currentIdx
			if n.closed {
				n.closed = false
				push(idx)
			} else {
				heap.Fix(open, n.heapIndex)
			}
		}
	}

	return nil, expansions, &NotFoundError{
		Strategy:   StrategyAStar,
		Partial:    a.reconstruct(grid, nodes, best),
		Expansions: expansions,
		Reason:     "open set exhausted",
	}
}

func (a *AStar) reconstruct(grid *engine.Grid, nodes []searchNode, end int) Path {
	var path Path
	for idx := end; idx >= 0; idx = nodes[idx].parent {
		path = append(path, grid.PointAt(nodes[idx].cell))
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
