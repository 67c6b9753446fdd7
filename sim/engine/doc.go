// Package engine provides the core simulation model for the parking lot simulator.
//
// The engine package implements:
//   - Parking lot registry with occupied/free slots and inflated hitboxes
//   - Walkable lattice construction from obstacle hitboxes
//   - Bicycle-model vehicle kinematics and driver controls
//   - Layout configuration validation and defaults
//
// Core Types:
//
// The Engine interface defines the main contract for simulation operations,
// implemented by SimEngine. Lot holds the parking slots, Grid is the walkable
// lattice derived from them once at startup, and Vehicle integrates position
// and heading from acceleration and steering every tick.
//
// Usage:
//
//	layout := engine.DefaultLayout()
//	sim, err := engine.NewEngine(layout)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Drive forward for one tick
//	sim.Tick(engine.Controls{Forward: true}, 1.0/60)
//	state := sim.GetState()
//
// Coordinates:
//
// The vehicle lives in world units; the lot, the grid and every planner input
// live in pixels. PixelPosition converts with the layout's pixels-per-unit
// factor.
package engine
