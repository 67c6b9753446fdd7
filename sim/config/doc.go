// Package config manages parking lot layouts stored as JSON files.
//
// Layout Format:
//
// Each file in the layouts directory describes one lot:
//   - Field size and grid step for the walkable lattice
//   - Slot rows (columns, spacing, slot size, hitbox margin, free slots)
//   - Vehicle parameters (length, limits, control rates)
//   - Planner selection and tuning (strategy, expansion cap, box sizes)
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	layout, err := manager.LoadLayout("wide")
//	infos, err := manager.ListLayouts()
//	def := manager.GetDefault()
//
// When no valid file exists the built-in classic layout is the default.
package config
