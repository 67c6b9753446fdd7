package engine

import "fmt"

// Obstacle is a parking slot with its collision hitbox
type Obstacle struct {
	Slot     SlotRef `json:"slot"`
	Rect     Rect    `json:"rect"`
	Hitbox   Rect    `json:"hitbox"`
	Occupied bool    `json:"occupied"`
}

// NewObstacle builds an obstacle whose hitbox is rect grown by margin on each side
func NewObstacle(rect Rect, margin float64, occupied bool) Obstacle {
	return Obstacle{
		Rect:     rect,
		Hitbox:   rect.Inflate(margin),
		Occupied: occupied,
	}
}

// Lot is the fixed registry of parking slots
type Lot struct {
	obstacles []Obstacle
	margin    float64
}

// NewLot lays out cfg.Columns slots on every configured row.
// Every slot starts occupied except the ones listed in cfg.FreeSlots.
func NewLot(cfg LotConfig) (*Lot, error) {
	if err := validateLots(&cfg); err != nil {
		return nil, err
	}

	free := make(map[SlotRef]bool, len(cfg.FreeSlots))
	for _, ref := range cfg.FreeSlots {
		free[ref] = true
	}

	lot := &Lot{
		obstacles: make([]Obstacle, 0, cfg.Columns*len(cfg.RowYOffsets)),
		margin:    cfg.HitboxMargin,
	}
	for row, y := range cfg.RowYOffsets {
		for col := 0; col < cfg.Columns; col++ {
			ref := SlotRef{Row: row, Column: col}
			rect := Rect{
				X: cfg.OriginX + cfg.Spacing*float64(col),
				Y: y,
				W: cfg.LotWidth,
				H: cfg.LotHeight,
			}
			obs := NewObstacle(rect, cfg.HitboxMargin, !free[ref])
			obs.Slot = ref
			lot.obstacles = append(lot.obstacles, obs)
		}
	}
	return lot, nil
}

// Obstacles returns a copy of the slot list in row-major order
func (l *Lot) Obstacles() []Obstacle {
	out := make([]Obstacle, len(l.obstacles))
	copy(out, l.obstacles)
	return out
}

// Margin returns the hitbox inflation applied to every slot
func (l *Lot) Margin() float64 {
	return l.margin
}

// Slot returns the obstacle at ref
func (l *Lot) Slot(ref SlotRef) (Obstacle, error) {
	for _, obs := range l.obstacles {
		if obs.Slot == ref {
			return obs, nil
		}
	}
	return Obstacle{}, fmt.Errorf("slot (row %d, column %d) not found", ref.Row, ref.Column)
}

// FreeSlots returns the unoccupied slots
func (l *Lot) FreeSlots() []Obstacle {
	var out []Obstacle
	for _, obs := range l.obstacles {
		if !obs.Occupied {
			out = append(out, obs)
		}
	}
	return out
}

// CountOccupied counts the occupied slots
func (l *Lot) CountOccupied() int {
	count := 0
	for _, obs := range l.obstacles {
		if obs.Occupied {
			count++
		}
	}
	return count
}

// Blocked reports whether p lies inside any hitbox
func (l *Lot) Blocked(p Point) bool {
	return blocked(l.obstacles, p)
}

func blocked(obstacles []Obstacle, p Point) bool {
	for _, obs := range obstacles {
		if obs.Hitbox.Contains(p) {
			return true
		}
	}
	return false
}
