package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/parkingsim/sim/config"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/planner"
)

// ValidationResult captures the outcome of validating a single layout file.
// Notes are informational; Errors make the layout invalid.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Notes  []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) note(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// validateLayout parses and validates a layout file, then checks that the
// start position and every free slot are reachable on the walkable lattice.
func validateLayout(path string) ValidationResult {
	result := ValidationResult{File: filepath.Base(path), Valid: true}

	layout, err := engine.LoadLayout(path)
	if err != nil {
		result.fail("%v", err)
		return result
	}
	eng, err := engine.NewEngine(layout)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	grid := eng.GetGrid()
	lot := eng.GetLot()
	result.note("%d walkable points on a %dx%d lattice", grid.Len(), grid.Cols(), grid.Rows())

	start := eng.PixelPosition()
	if lot.Blocked(start) {
		result.note("start (%g, %g) lies inside a slot hitbox", start.X, start.Y)
	}
	startCell, ok := grid.Nearest(start)
	if !ok {
		result.fail("no walkable point near the start position")
		return result
	}

	_, components := grid.Components()
	if components > 1 {
		result.note("lattice splits into %d disconnected regions", components)
	}

	free := lot.FreeSlots()
	if len(free) == 0 {
		result.note("no free slots")
	}
	for _, slot := range free {
		centre := engine.Point{X: slot.Rect.X + slot.Rect.W/2, Y: slot.Rect.Y + slot.Rect.H/2}
		cell, ok := grid.Nearest(centre)
		if !ok || !grid.Connected(startCell, cell) {
			result.fail("free slot (row %d, column %d) is unreachable from the start", slot.Slot.Row, slot.Slot.Column)
			continue
		}
		result.note("free slot (row %d, column %d) reachable", slot.Slot.Row, slot.Slot.Column)
	}
	return result
}

// layoutFiles returns the explicit arguments or every *.json file in dir
func layoutFiles(args []string, dir string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("error finding layout files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no layout files in %s", dir)
	}
	return files, nil
}

func printValidation(w io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
		}
		for _, msg := range result.Errors {
			fmt.Fprintln(w, "  ❌ "+msg)
		}
		for _, msg := range result.Notes {
			fmt.Fprintln(w, "  • "+msg)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All layouts are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some layouts have errors")
	}
	return allValid
}

var errInvalidLayouts = errors.New("some layouts are invalid")

func (a *app) runValidate(ctx context.Context, cmd *cli.Command) error {
	files, err := layoutFiles(cmd.Args().Slice(), a.settings.LayoutsDir)
	if err != nil {
		return err
	}

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		results = append(results, validateLayout(file))
	}
	if !printValidation(a.out, results) {
		return errInvalidLayouts
	}
	return nil
}

// LayoutStats summarises one layout's lattice
type LayoutStats struct {
	ID         string
	Name       string
	Field      engine.Size
	Step       float64
	Lattice    int
	Walkable   int
	Components int
	Largest    int
	Slots      int
	Free       int
	// Route from the start to the first free slot, if there is one
	Approach *planner.Result
	// ApproachErr is set when the approach search failed
	ApproachErr error
}

// analyzeLayout computes lattice statistics and plans the approach to the first free slot
func analyzeLayout(ctx context.Context, id string, layout *engine.LayoutConfig) (*LayoutStats, error) {
	eng, err := engine.NewEngine(layout)
	if err != nil {
		return nil, err
	}
	grid := eng.GetGrid()
	lot := eng.GetLot()

	labels, components := grid.Components()
	sizes := make([]int, components)
	for _, l := range labels {
		if l >= 0 {
			sizes[l]++
		}
	}
	largest := 0
	for _, n := range sizes {
		largest = max(largest, n)
	}

	stats := &LayoutStats{
		ID:         id,
		Name:       layout.Name,
		Field:      layout.Field,
		Step:       grid.Step(),
		Lattice:    grid.Cols() * grid.Rows(),
		Walkable:   grid.Len(),
		Components: components,
		Largest:    largest,
		Slots:      len(lot.Obstacles()),
		Free:       len(lot.FreeSlots()),
	}

	if free := lot.FreeSlots(); len(free) > 0 {
		strategy, err := planner.ParseStrategy(layout.Planner.Strategy)
		if err != nil {
			return nil, err
		}
		p, err := planner.New(strategy, planner.OptionsFromConfig(layout.Planner))
		if err != nil {
			return nil, err
		}
		// Aim at the slot mouth on the aisle side, the slot body itself is blocked
		slot := free[0].Rect
		target := engine.Point{X: slot.X + slot.W/2, Y: slot.Y + slot.H/2}
		if c, ok := grid.Nearest(target); ok {
			target = grid.PointAt(c)
		}
		stats.Approach, stats.ApproachErr = p.Plan(ctx, grid, eng.PixelPosition(), target)
	}
	return stats, nil
}

func printStats(w io.Writer, s *LayoutStats) {
	fmt.Fprintf(w, "\n=== %s (%s) ===\n", s.ID, s.Name)
	fmt.Fprintf(w, "Field: %gx%g, step %g\n", s.Field.Width, s.Field.Height, s.Step)
	fmt.Fprintf(w, "Slots: %d (%d free)\n", s.Slots, s.Free)
	fmt.Fprintf(w, "Walkable: %d of %d lattice points (%.1f%%)\n", s.Walkable, s.Lattice, 100*float64(s.Walkable)/float64(max(s.Lattice, 1)))
	if s.Components == 1 {
		fmt.Fprintln(w, "✅ Lattice is fully connected")
	} else {
		fmt.Fprintf(w, "⚠️  %d regions, largest holds %d points\n", s.Components, s.Largest)
	}
	switch {
	case s.Approach != nil:
		fmt.Fprintf(w, "Approach to first free slot: %d waypoints, %.1f px, %d expansions (%s)\n",
			len(s.Approach.Waypoints), s.Approach.Waypoints.Length(), s.Approach.Expansions, s.Approach.Strategy)
	case s.ApproachErr != nil:
		fmt.Fprintf(w, "⚠️  Approach to first free slot failed: %v\n", s.ApproachErr)
	}
}

func (a *app) runAnalyze(ctx context.Context, cmd *cli.Command) error {
	layouts, err := config.NewManager(a.settings.LayoutsDir)
	if err != nil {
		return err
	}
	infos, err := layouts.ListLayouts()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		return fmt.Errorf("no valid layouts in %s", layouts.Dir())
	}

	for _, info := range infos {
		layout, err := layouts.LoadLayout(info.LayoutID)
		if err != nil {
			return err
		}
		stats, err := analyzeLayout(ctx, info.LayoutID, layout)
		if err != nil {
			return fmt.Errorf("failed to analyze %s: %w", info.LayoutID, err)
		}
		printStats(a.out, stats)
	}
	return nil
}
