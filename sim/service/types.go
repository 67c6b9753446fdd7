package service

import (
	"github.com/wricardo/parkingsim/sim/dispatch"
	"github.com/wricardo/parkingsim/sim/engine"
)

// Snapshot is everything an adapter needs to draw one frame
type Snapshot struct {
	Sim      *engine.SimState `json:"sim"`
	Controls engine.Controls  `json:"controls"`
	Route    dispatch.Route   `json:"route"`
	Strategy string           `json:"strategy"`
}

// DriveResult contains the outcome of a burst of ticks
type DriveResult struct {
	Ticks     int                 `json:"ticks"`
	Truncated bool                `json:"truncated,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
	Start     engine.VehicleState `json:"start"`
	End       engine.VehicleState `json:"end"`
	Distance  float64             `json:"distance"`
	State     *engine.SimState    `json:"state"`
}

// PlanRequest asks for a synchronous search. Coordinates are playfield pixels.
type PlanRequest struct {
	// Start defaults to the car position
	Start  *engine.Point `json:"start,omitempty"`
	Target engine.Point  `json:"target"`
	// Strategy defaults to the active planner
	Strategy string `json:"strategy,omitempty"`
}

// GridInfo describes the walkable lattice
type GridInfo struct {
	Width      float64           `json:"width"`
	Height     float64           `json:"height"`
	Step       float64           `json:"step"`
	Cols       int               `json:"cols"`
	Rows       int               `json:"rows"`
	Walkable   int               `json:"walkable"`
	Components int               `json:"components"`
	Obstacles  []engine.Obstacle `json:"obstacles"`
	Points     []engine.Point    `json:"points,omitempty"`
}

// PointInfo explains what lies at a playfield point
type PointInfo struct {
	Point    engine.Point    `json:"point"`
	InBounds bool            `json:"in_bounds"`
	OnGrid   bool            `json:"on_grid"`
	Blocked  bool            `json:"blocked"`
	Slot     *engine.SlotRef `json:"slot,omitempty"`
	Occupied bool            `json:"occupied,omitempty"`
	Nearest  *engine.Point   `json:"nearest,omitempty"`
	Distance float64         `json:"distance"`
}
