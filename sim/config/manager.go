package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/parkingsim/sim/engine"
)

var (
	ErrLayoutNotFound = errors.New("layout not found")
	ErrInvalidLayout  = errors.New("invalid layout")
)

// DefaultLayoutName is tried first when picking the default layout
const DefaultLayoutName = "classic"

// LayoutInfo summarises one layout file
type LayoutInfo struct {
	Filename    string  `json:"filename"`
	LayoutID    string  `json:"layout_id"` // identifier accepted by LoadLayout
	Name        string  `json:"name"`      // display name
	Description string  `json:"description"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	GridStep    float64 `json:"grid_step"`
	Slots       int     `json:"slots"`
	FreeSlots   int     `json:"free_slots"`
	Strategy    string  `json:"strategy"`
}

// Manager handles layout loading and caching
type Manager struct {
	layoutDir     string
	defaultLayout *engine.LayoutConfig
	layouts       map[string]*engine.LayoutConfig
	mu            sync.RWMutex
}

// NewManager creates a layout manager reading layoutDir
func NewManager(layoutDir string) (*Manager, error) {
	if _, err := os.Stat(layoutDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("layout directory does not exist: %s", layoutDir)
	}

	m := &Manager{
		layoutDir: layoutDir,
		layouts:   make(map[string]*engine.LayoutConfig),
	}

	m.defaultLayout = m.pickDefault()
	return m, nil
}

// Dir returns the directory layouts are read from
func (m *Manager) Dir() string {
	return m.layoutDir
}

// LoadLayout loads a layout by id, with or without the .json suffix
func (m *Manager) LoadLayout(name string) (*engine.LayoutConfig, error) {
	id, err := layoutID(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	if layout, exists := m.layouts[id]; exists {
		m.mu.RUnlock()
		return layout, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if layout, exists := m.layouts[id]; exists {
		return layout, nil
	}

	data, err := os.ReadFile(filepath.Join(m.layoutDir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLayoutNotFound, id)
		}
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}

	var layout engine.LayoutConfig
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLayout, id, err)
	}
	if err := engine.ValidateLayout(&layout); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidLayout, id, err)
	}

	m.layouts[id] = &layout
	return &layout, nil
}

// ListLayouts describes every valid layout in the directory, sorted by id.
// Files that fail to load are skipped.
func (m *Manager) ListLayouts() ([]*LayoutInfo, error) {
	entries, err := os.ReadDir(m.layoutDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout directory: %w", err)
	}

	var layouts []*LayoutInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		layout, err := m.LoadLayout(id)
		if err != nil {
			continue
		}

		layouts = append(layouts, Describe(entry.Name(), id, layout))
	}

	sort.Slice(layouts, func(i, j int) bool { return layouts[i].LayoutID < layouts[j].LayoutID })
	return layouts, nil
}

// Describe builds the summary of layout
func Describe(filename, id string, layout *engine.LayoutConfig) *LayoutInfo {
	slots := layout.Lots.Columns * len(layout.Lots.RowYOffsets)
	strategy := layout.Planner.Strategy
	if strategy == "" {
		strategy = "astar"
	}
	return &LayoutInfo{
		Filename:    filename,
		LayoutID:    id,
		Name:        layout.Name,
		Description: layout.Description,
		Width:       layout.Field.Width,
		Height:      layout.Field.Height,
		GridStep:    layout.GridStep,
		Slots:       slots,
		FreeSlots:   len(layout.Lots.FreeSlots),
		Strategy:    strategy,
	}
}

// GetDefault returns the default layout
func (m *Manager) GetDefault() *engine.LayoutConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultLayout
}

// SetDefault sets the default layout by id
func (m *Manager) SetDefault(name string) error {
	layout, err := m.LoadLayout(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLayout = layout
	return nil
}

// RefreshCache drops every cached layout and picks the default again
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.layouts = make(map[string]*engine.LayoutConfig)
	m.mu.Unlock()

	def := m.pickDefault()

	m.mu.Lock()
	m.defaultLayout = def
	m.mu.Unlock()
}

// SaveLayout validates layout and writes it as <name>.json
func (m *Manager) SaveLayout(name string, layout *engine.LayoutConfig) error {
	if err := engine.ValidateLayout(layout); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLayout, err)
	}
	id, err := layoutID(name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.layoutDir, id+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write layout file: %w", err)
	}

	m.mu.Lock()
	m.layouts[id] = layout
	m.mu.Unlock()

	return nil
}

// pickDefault prefers classic, then the first valid file, then the built-in layout
func (m *Manager) pickDefault() *engine.LayoutConfig {
	if layout, err := m.LoadLayout(DefaultLayoutName); err == nil {
		return layout
	}

	layouts, err := m.ListLayouts()
	if err != nil || len(layouts) == 0 {
		return engine.DefaultLayout()
	}

	layout, err := m.LoadLayout(layouts[0].LayoutID)
	if err != nil {
		return engine.DefaultLayout()
	}
	return layout
}

// layoutID strips the .json suffix and rejects anything that is not a plain file name
func layoutID(name string) (string, error) {
	id := strings.TrimSuffix(strings.TrimSpace(name), ".json")
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: %q", ErrLayoutNotFound, name)
	}
	return id, nil
}
