package engine

import "math"

const (
	// Validation constants
	MinFieldSize     = 15
	MaxFieldSize     = 8192
	MinGridStep      = 1
	MaxSteeringLimit = 90
	MaxLatticePoints = 1 << 20
	DefaultPPU       = 32
)

// Point represents a 2D coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scale returns p multiplied by k
func (p Point) Scale(k float64) Point {
	return Point{X: p.X * k, Y: p.Y * k}
}

// Size represents playfield bounds
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle anchored at its top-left corner
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether p lies inside r. The right and bottom edges are excluded.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// ContainsRect reports whether o lies entirely inside r
func (r Rect) ContainsRect(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.X+o.W <= r.X+r.W && o.Y+o.H <= r.Y+r.H
}

// Inflate grows r by margin on every side
func (r Rect) Inflate(margin float64) Rect {
	return Rect{X: r.X - margin, Y: r.Y - margin, W: r.W + 2*margin, H: r.H + 2*margin}
}

// Centered returns a size x size box centred on p
func Centered(p Point, size float64) Rect {
	return Rect{X: p.X - size/2, Y: p.Y - size/2, W: size, H: size}
}

// Cell addresses one lattice point by column and row
type Cell struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Finite reports whether p has no NaN or infinite coordinate
func (p Point) Finite() bool {
	return finite(p.X, p.Y)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Distance returns the Euclidean distance between two points
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// ManhattanDistance calculates the Manhattan distance between two cells
func ManhattanDistance(from, to Cell) int {
	return abs(from.Col-to.Col) + abs(from.Row-to.Row)
}

// SimState is the snapshot exposed to presentation adapters
type SimState struct {
	Vehicle     VehicleState `json:"vehicle"`
	PixelPos    Point        `json:"pixel_pos"`
	Target      *Point       `json:"target,omitempty"`
	Ticks       int          `json:"ticks"`
	ElapsedTime float64      `json:"elapsed_time"`
	LayoutName  string       `json:"layout_name"`
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
