package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

var ErrInvalidLayout = errors.New("invalid layout")

// SlotRef addresses a parking slot by row and column
type SlotRef struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// LotConfig describes the rows of parking slots
type LotConfig struct {
	Columns      int       `json:"columns"`
	OriginX      float64   `json:"origin_x"`
	Spacing      float64   `json:"spacing"`
	LotWidth     float64   `json:"lot_width"`
	LotHeight    float64   `json:"lot_height"`
	RowYOffsets  []float64 `json:"row_y_offsets"`
	HitboxMargin float64   `json:"hitbox_margin"`
	FreeSlots    []SlotRef `json:"free_slots"`
}

// PlannerConfig selects and tunes the path search
type PlannerConfig struct {
	Strategy      string  `json:"strategy"`
	MaxExpansions int     `json:"max_expansions,omitempty"`
	TargetBox     float64 `json:"target_box,omitempty"`
	SeedBox       float64 `json:"seed_box,omitempty"`
	ExpandBox     float64 `json:"expand_box,omitempty"`
}

// LayoutConfig represents one lot layout loaded from JSON
type LayoutConfig struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Field       Size          `json:"field"`
	GridStep    float64       `json:"grid_step"`
	PPU         float64       `json:"ppu"`
	Start       Point         `json:"start"`
	Lots        LotConfig     `json:"lots"`
	Vehicle     VehicleParams `json:"vehicle"`
	Planner     PlannerConfig `json:"planner"`
}

// ValidateLayout validates a layout for correctness
func ValidateLayout(cfg *LayoutConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: layout is nil", ErrInvalidLayout)
	}
	if cfg.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLayout)
	}

	if cfg.Field.Width < MinFieldSize || cfg.Field.Width > MaxFieldSize ||
		cfg.Field.Height < MinFieldSize || cfg.Field.Height > MaxFieldSize {
		return fmt.Errorf("%w: field must be between %d and %d on each side, got %gx%g",
			ErrInvalidLayout, MinFieldSize, MaxFieldSize, cfg.Field.Width, cfg.Field.Height)
	}

	if cfg.GridStep < MinGridStep {
		return fmt.Errorf("%w: grid_step must be at least %d, got %g", ErrInvalidLayout, MinGridStep, cfg.GridStep)
	}
	points := math.Ceil(cfg.Field.Width/cfg.GridStep) * math.Ceil(cfg.Field.Height/cfg.GridStep)
	if points > MaxLatticePoints {
		return fmt.Errorf("%w: grid_step %g yields %.0f lattice points (max %d)",
			ErrInvalidLayout, cfg.GridStep, points, MaxLatticePoints)
	}

	if cfg.PPU <= 0 {
		return fmt.Errorf("%w: ppu must be positive, got %g", ErrInvalidLayout, cfg.PPU)
	}

	if err := validateLots(&cfg.Lots); err != nil {
		return err
	}
	if err := ValidateVehicleParams(cfg.Vehicle); err != nil {
		return err
	}

	switch cfg.Planner.Strategy {
	case "", "astar", "greedy":
	default:
		return fmt.Errorf("%w: planner.strategy must be astar or greedy, got %q", ErrInvalidLayout, cfg.Planner.Strategy)
	}
	if cfg.Planner.MaxExpansions < 0 || cfg.Planner.TargetBox < 0 || cfg.Planner.SeedBox < 0 || cfg.Planner.ExpandBox < 0 {
		return fmt.Errorf("%w: planner limits cannot be negative", ErrInvalidLayout)
	}

	return nil
}

func validateLots(lots *LotConfig) error {
	if lots.Columns < 0 {
		return fmt.Errorf("%w: lots.columns cannot be negative, got %d", ErrInvalidLayout, lots.Columns)
	}
	if lots.Columns == 0 {
		return nil
	}
	if lots.LotWidth <= 0 || lots.LotHeight <= 0 {
		return fmt.Errorf("%w: lot dimensions must be positive, got %gx%g", ErrInvalidLayout, lots.LotWidth, lots.LotHeight)
	}
	if lots.HitboxMargin < 0 {
		return fmt.Errorf("%w: lots.hitbox_margin cannot be negative, got %g", ErrInvalidLayout, lots.HitboxMargin)
	}
	if len(lots.RowYOffsets) == 0 {
		return fmt.Errorf("%w: lots.row_y_offsets needs at least one row", ErrInvalidLayout)
	}
	for _, ref := range lots.FreeSlots {
		if ref.Row < 0 || ref.Row >= len(lots.RowYOffsets) || ref.Column < 0 || ref.Column >= lots.Columns {
			return fmt.Errorf("%w: free slot (row %d, column %d) is outside the lot", ErrInvalidLayout, ref.Row, ref.Column)
		}
	}
	return nil
}

// ValidateVehicleParams checks the fixed physical parameters of the vehicle
func ValidateVehicleParams(p VehicleParams) error {
	if p.Length <= 0 {
		return fmt.Errorf("%w: vehicle.length must be positive, got %g", ErrInvalidLayout, p.Length)
	}
	if p.MaxSteering <= 0 || p.MaxSteering >= MaxSteeringLimit {
		return fmt.Errorf("%w: vehicle.max_steering must be inside (0, %d), got %g",
			ErrInvalidLayout, MaxSteeringLimit, p.MaxSteering)
	}
	if p.MaxVelocity <= 0 || p.MaxAcceleration <= 0 {
		return fmt.Errorf("%w: vehicle velocity and acceleration limits must be positive", ErrInvalidLayout)
	}
	if p.BrakeDeceleration < 0 || p.FreeDeceleration < 0 || p.SteeringRate < 0 || p.AccelerationRate < 0 {
		return fmt.Errorf("%w: vehicle rates cannot be negative", ErrInvalidLayout)
	}
	return nil
}

// LoadLayout loads a layout from a JSON file
func LoadLayout(filename string) (*LayoutConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var cfg LayoutConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse layout '%s': %w", filename, err)
	}

	if err := ValidateLayout(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultVehicleParams returns the parameters of the stock car
func DefaultVehicleParams() VehicleParams {
	return VehicleParams{
		Length:            4,
		MaxVelocity:       20,
		MaxAcceleration:   5,
		MaxSteering:       30,
		BrakeDeceleration: 10,
		FreeDeceleration:  2,
		SteeringRate:      30,
		AccelerationRate:  1,
	}
}

// DefaultLayout returns the classic lot: two rows of eleven slots on a 1280x720 field
func DefaultLayout() *LayoutConfig {
	return &LayoutConfig{
		Name:        "classic",
		Description: "Two rows of eleven slots, one free slot in the lower row",
		Field:       Size{Width: 1280, Height: 720},
		GridStep:    15,
		PPU:         DefaultPPU,
		Start:       Point{X: 0, Y: 0},
		Lots: LotConfig{
			Columns:      11,
			OriginX:      145,
			Spacing:      90,
			LotWidth:     75,
			LotHeight:    135,
			RowYOffsets:  []float64{140, 440},
			HitboxMargin: 15,
			FreeSlots:    []SlotRef{{Row: 1, Column: 5}},
		},
		Vehicle: DefaultVehicleParams(),
		Planner: PlannerConfig{Strategy: "astar"},
	}
}
