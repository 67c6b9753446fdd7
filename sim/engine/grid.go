package engine

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidGrid = errors.New("invalid grid")

// Grid is the walkable lattice. It is built once and never mutated.
type Grid struct {
	cols, rows int
	step       float64
	bounds     Size
	walkable   []bool
	count      int
}

// BuildGrid scans the field at step and keeps every lattice point that lies
// outside all obstacle hitboxes.
func BuildGrid(obstacles []Obstacle, bounds Size, step float64) (*Grid, error) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: step must be positive, got %g", ErrInvalidGrid, step)
	}
	if bounds.Width <= 0 || bounds.Height <= 0 {
		return nil, fmt.Errorf("%w: bounds must be positive, got %gx%g", ErrInvalidGrid, bounds.Width, bounds.Height)
	}

	cols := int(math.Ceil(bounds.Width / step))
	rows := int(math.Ceil(bounds.Height / step))
	if cols*rows > MaxLatticePoints {
		return nil, fmt.Errorf("%w: %d lattice points exceeds %d", ErrInvalidGrid, cols*rows, MaxLatticePoints)
	}

	g := &Grid{
		cols:     cols,
		rows:     rows,
		step:     step,
		bounds:   bounds,
		walkable: make([]bool, cols*rows),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if blocked(obstacles, g.PointAt(Cell{Col: col, Row: row})) {
				continue
			}
			g.walkable[row*cols+col] = true
			g.count++
		}
	}
	return g, nil
}

// Cols returns the lattice width
func (g *Grid) Cols() int { return g.cols }

// Rows returns the lattice height
func (g *Grid) Rows() int { return g.rows }

// Step returns the lattice spacing
func (g *Grid) Step() float64 { return g.step }

// Bounds returns the scanned field size
func (g *Grid) Bounds() Size { return g.bounds }

// Len returns the number of walkable points
func (g *Grid) Len() int { return g.count }

// InBounds reports whether c addresses a lattice point
func (g *Grid) InBounds(c Cell) bool {
	return c.Col >= 0 && c.Row >= 0 && c.Col < g.cols && c.Row < g.rows
}

// Index flattens c into a row-major index
func (g *Grid) Index(c Cell) int {
	return c.Row*g.cols + c.Col
}

// CellAt is the inverse of Index
func (g *Grid) CellAt(idx int) Cell {
	return Cell{Col: idx % g.cols, Row: idx / g.cols}
}

// PointAt returns the pixel position of c
func (g *Grid) PointAt(c Cell) Point {
	return Point{X: float64(c.Col) * g.step, Y: float64(c.Row) * g.step}
}

// Walkable reports whether c is a walkable lattice point
func (g *Grid) Walkable(c Cell) bool {
	return g.InBounds(c) && g.walkable[g.Index(c)]
}

// Locate returns the cell whose lattice point is exactly p
func (g *Grid) Locate(p Point) (Cell, bool) {
	col := math.Round(p.X / g.step)
	row := math.Round(p.Y / g.step)
	c := Cell{Col: int(col), Row: int(row)}
	if !g.InBounds(c) || g.PointAt(c) != p {
		return Cell{}, false
	}
	return c, true
}

// Contains reports whether p is a member of the walkable set
func (g *Grid) Contains(p Point) bool {
	c, ok := g.Locate(p)
	return ok && g.walkable[g.Index(c)]
}

// Points returns the walkable points in row-major order
func (g *Grid) Points() []Point {
	out := make([]Point, 0, g.count)
	for idx, ok := range g.walkable {
		if ok {
			out = append(out, g.PointAt(g.CellAt(idx)))
		}
	}
	return out
}

// Nearest returns the walkable cell closest to p. Ties go to the first cell in row-major order.
func (g *Grid) Nearest(p Point) (Cell, bool) {
	best := -1
	bestDist := math.Inf(1)
	for idx, ok := range g.walkable {
		if !ok {
			continue
		}
		d := Distance(p, g.PointAt(g.CellAt(idx)))
		if d < bestDist {
			bestDist = d
			best = idx
		}
	}
	if best < 0 {
		return Cell{}, false
	}
	return g.CellAt(best), true
}

// CellsIn returns the walkable cells whose points fall inside r, row-major.
// A rect with a non-finite corner or extent yields nil.
func (g *Grid) CellsIn(r Rect) []Cell {
	if !finite(r.X, r.Y, r.X+r.W, r.Y+r.H) {
		return nil
	}
	// Clamp before converting so far-off rects never produce wrapped indices
	minColF := math.Max(0, math.Floor(r.X/g.step))
	maxColF := math.Min(float64(g.cols-1), math.Ceil((r.X+r.W)/g.step))
	minRowF := math.Max(0, math.Floor(r.Y/g.step))
	maxRowF := math.Min(float64(g.rows-1), math.Ceil((r.Y+r.H)/g.step))
	if minColF > maxColF || minRowF > maxRowF {
		return nil
	}
	minCol, maxCol := int(minColF), int(maxColF)
	minRow, maxRow := int(minRowF), int(maxRowF)

	var out []Cell
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			c := Cell{Col: col, Row: row}
			if g.walkable[g.Index(c)] && r.Contains(g.PointAt(c)) {
				out = append(out, c)
			}
		}
	}
	return out
}

var neighborOffsets = [...]Cell{
	{Col: 0, Row: -1},
	{Col: 1, Row: 0},
	{Col: 0, Row: 1},
	{Col: -1, Row: 0},
}

// Neighbors4 returns the walkable 4-connected neighbours of c
func (g *Grid) Neighbors4(c Cell) []Cell {
	out := make([]Cell, 0, len(neighborOffsets))
	for _, d := range neighborOffsets {
		n := Cell{Col: c.Col + d.Col, Row: c.Row + d.Row}
		if g.Walkable(n) {
			out = append(out, n)
		}
	}
	return out
}

// Components labels every walkable cell with a 4-connected component id.
// Blocked cells get -1. The second value is the number of components.
func (g *Grid) Components() ([]int, int) {
	labels := make([]int, len(g.walkable))
	for i := range labels {
		labels[i] = -1
	}

	next := 0
	for idx, ok := range g.walkable {
		if !ok || labels[idx] >= 0 {
			continue
		}
		queue := []Cell{g.CellAt(idx)}
		labels[idx] = next
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, n := range g.Neighbors4(current) {
				nIdx := g.Index(n)
				if labels[nIdx] >= 0 {
					continue
				}
				labels[nIdx] = next
				queue = append(queue, n)
			}
		}
		next++
	}
	return labels, next
}

// Connected reports whether two walkable cells share a component
func (g *Grid) Connected(a, b Cell) bool {
	if !g.Walkable(a) || !g.Walkable(b) {
		return false
	}
	labels, _ := g.Components()
	return labels[g.Index(a)] == labels[g.Index(b)]
}
