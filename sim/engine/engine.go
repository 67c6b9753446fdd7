package engine

import "fmt"

// Engine provides the main interface for simulation operations
type Engine interface {
	// Simulation state
	GetState() *SimState
	Reset() *SimState
	Tick(controls Controls, dt float64)

	// Vehicle
	GetVehicle() VehicleState
	PixelPosition() Point

	// Static world
	GetLayout() *LayoutConfig
	GetLot() *Lot
	GetGrid() *Grid

	// Target selection
	SetTarget(target Point)
	ClearTarget()
}

// SimEngine implements the Engine interface
type SimEngine struct {
	layout  *LayoutConfig
	lot     *Lot
	grid    *Grid
	vehicle *Vehicle
	target  *Point
	ticks   int
	elapsed float64
}

// NewEngine validates layout, builds the lot and computes the walkable grid once
func NewEngine(layout *LayoutConfig) (*SimEngine, error) {
	if err := ValidateLayout(layout); err != nil {
		return nil, err
	}

	lot, err := NewLot(layout.Lots)
	if err != nil {
		return nil, fmt.Errorf("failed to build lot: %w", err)
	}

	grid, err := BuildGrid(lot.Obstacles(), layout.Field, layout.GridStep)
	if err != nil {
		return nil, fmt.Errorf("failed to build grid: %w", err)
	}

	return &SimEngine{
		layout:  layout,
		lot:     lot,
		grid:    grid,
		vehicle: NewVehicle(layout.Start, 0, layout.Vehicle),
	}, nil
}

// NewEngineWithDefaults creates an engine on the classic layout
func NewEngineWithDefaults() *SimEngine {
	e, err := NewEngine(DefaultLayout())
	if err != nil {
		panic(fmt.Sprintf("default layout is invalid: %v", err))
	}
	return e
}

// GetState returns a snapshot of the simulation
func (e *SimEngine) GetState() *SimState {
	state := &SimState{
		Vehicle:     e.vehicle.VehicleState,
		PixelPos:    e.PixelPosition(),
		Ticks:       e.ticks,
		ElapsedTime: e.elapsed,
		LayoutName:  e.layout.Name,
	}
	if e.target != nil {
		t := *e.target
		state.Target = &t
	}
	return state
}

// Reset puts the car back on the start position. The grid is kept.
func (e *SimEngine) Reset() *SimState {
	e.vehicle = NewVehicle(e.layout.Start, 0, e.layout.Vehicle)
	e.target = nil
	e.ticks = 0
	e.elapsed = 0
	return e.GetState()
}

// Tick applies controls and integrates the car over dt
func (e *SimEngine) Tick(controls Controls, dt float64) {
	e.vehicle.ApplyControls(controls, dt)
	e.vehicle.Update(dt)
	e.ticks++
	if dt > 0 {
		e.elapsed += dt
	}
}

// GetVehicle returns a copy of the vehicle state
func (e *SimEngine) GetVehicle() VehicleState {
	return e.vehicle.VehicleState
}

// PixelPosition returns the car position scaled into playfield pixels
func (e *SimEngine) PixelPosition() Point {
	return e.vehicle.PixelPosition(e.layout.PPU)
}

// GetLayout returns the layout the engine was built from
func (e *SimEngine) GetLayout() *LayoutConfig {
	return e.layout
}

// GetLot returns the slot registry
func (e *SimEngine) GetLot() *Lot {
	return e.lot
}

// GetGrid returns the walkable lattice
func (e *SimEngine) GetGrid() *Grid {
	return e.grid
}

// SetTarget records the last selected target
func (e *SimEngine) SetTarget(target Point) {
	e.target = &target
}

// ClearTarget forgets the selected target
func (e *SimEngine) ClearTarget() {
	e.target = nil
}
