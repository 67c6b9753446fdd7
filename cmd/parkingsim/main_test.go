package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/parkingsim/sim/config"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/planner"
	"github.com/wricardo/parkingsim/sim/service"
	"github.com/wricardo/parkingsim/transport/websocket"
)

const layoutsDir = "../../configs"

// run executes the CLI with root flags pointing at the bundled layouts
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runIn(t, layoutsDir, args...)
}

func runIn(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(viper.Reset)

	var out, logs bytes.Buffer
	a := &app{out: &out, logOut: &logs}
	full := append([]string{AppName, "--config-dir", t.TempDir(), "--layouts-dir", dir, "--log-level", "disabled"}, args...)
	err := a.command().Run(context.Background(), full)
	return out.String(), err
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint("640, 360.5")
	require.NoError(t, err)
	assert.Equal(t, engine.Point{X: 640, Y: 360.5}, p)

	for _, bad := range []string{"", "1", "1,2,3", "a,2", "1,b"} {
		_, err := parsePoint(bad)
		assert.Error(t, err, bad)
	}
}

func TestCheckLoopback(t *testing.T) {
	for _, addr := range []string{"127.0.0.1:8080", "localhost:9000", "[::1]:8080", "127.0.0.2:1"} {
		assert.NoError(t, checkLoopback(addr), addr)
	}
	for _, addr := range []string{"0.0.0.0:8080", ":8080", "192.168.1.10:80", "example.com:80", "nohost"} {
		assert.Error(t, checkLoopback(addr), addr)
	}
}

func TestPlanCommand(t *testing.T) {
	out, err := run(t, "plan", "--to", "640,360")
	require.NoError(t, err)

	var res struct {
		Strategy   string         `json:"strategy"`
		Waypoints  []engine.Point `json:"waypoints"`
		Expansions int            `json:"expansions"`
		Length     float64        `json:"length"`
		WKT        string         `json:"wkt"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "astar", res.Strategy)
	require.NotEmpty(t, res.Waypoints)
	assert.Equal(t, engine.Point{X: 640, Y: 360}, res.Waypoints[len(res.Waypoints)-1])
	assert.Greater(t, res.Length, 0.0)
	assert.True(t, strings.HasPrefix(res.WKT, "LINESTRING"), res.WKT)
}

func TestPlanCommand_StrategyAndStart(t *testing.T) {
	out, err := run(t, "--strategy", "greedy", "plan", "--from", "0,360", "--to", "1200,360")
	require.NoError(t, err)
	assert.Contains(t, out, `"strategy": "greedy"`)
}

func TestPlanCommand_Errors(t *testing.T) {
	_, err := run(t, "plan", "--to", "nope")
	assert.Error(t, err)

	_, err = run(t, "plan", "--to", "5000,10")
	assert.ErrorIs(t, err, service.ErrInvalidTarget)

	_, err = run(t, "plan", "--from", "NaN,0", "--to", "100,100")
	assert.ErrorIs(t, err, service.ErrInvalidTarget)

	_, err = run(t, "plan", "--to", "182,207")
	assert.ErrorIs(t, err, planner.ErrPathNotFound)

	_, err = run(t, "--strategy", "bfs", "plan", "--to", "10,10")
	assert.ErrorIs(t, err, planner.ErrUnknownStrategy)
}

func TestValidateLayout(t *testing.T) {
	res := validateLayout(filepath.Join(layoutsDir, "classic.json"))
	assert.True(t, res.Valid, res.Errors)
	assert.Equal(t, "classic.json", res.File)
	assert.Contains(t, res.Notes, "free slot (row 1, column 5) reachable")

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	res = validateLayout(path)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)

	// Both rows span the whole field, sealing the start off from the lower slot
	sealed := engine.DefaultLayout()
	sealed.Name = "sealed"
	sealed.Field = engine.Size{Width: 600, Height: 600}
	sealed.Lots = engine.LotConfig{
		Columns:      7,
		Spacing:      90,
		LotWidth:     90,
		LotHeight:    100,
		RowYOffsets:  []float64{100, 350},
		HitboxMargin: 15,
		FreeSlots:    []engine.SlotRef{{Row: 1, Column: 0}},
	}
	data, err := json.Marshal(sealed)
	require.NoError(t, err)
	path = filepath.Join(t.TempDir(), "sealed.json")
	require.NoError(t, os.WriteFile(path, data, 0644))

	res = validateLayout(path)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "free slot (row 1, column 0) is unreachable from the start")
	assert.Contains(t, res.Notes, "lattice splits into 3 disconnected regions")
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "classic.json")
	assert.Contains(t, out, "wide.json")
	assert.Contains(t, out, "All layouts are valid")

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "broken"}`), 0644))
	out, err = run(t, "validate", path)
	assert.ErrorIs(t, err, errInvalidLayouts)
	assert.Contains(t, out, "INVALID")
}

func TestLayoutFiles(t *testing.T) {
	files, err := layoutFiles([]string{"a.json"}, "ignored")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json"}, files)

	files, err = layoutFiles(nil, layoutsDir)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = layoutFiles(nil, t.TempDir())
	assert.Error(t, err)
}

func TestAnalyzeLayout(t *testing.T) {
	stats, err := analyzeLayout(context.Background(), "classic", engine.DefaultLayout())
	require.NoError(t, err)

	assert.Equal(t, 86*48, stats.Lattice)
	assert.Equal(t, 1, stats.Components)
	assert.Equal(t, stats.Walkable, stats.Largest)
	assert.Equal(t, 22, stats.Slots)
	assert.Equal(t, 1, stats.Free)
	require.NoError(t, stats.ApproachErr)
	require.NotNil(t, stats.Approach)
	assert.NotEmpty(t, stats.Approach.Waypoints)

	var buf bytes.Buffer
	printStats(&buf, stats)
	assert.Contains(t, buf.String(), "Lattice is fully connected")
	assert.Contains(t, buf.String(), "Slots: 22 (1 free)")
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := run(t, "analyze")
	require.NoError(t, err)
	for _, id := range []string{"classic", "compact", "wide"} {
		assert.Contains(t, out, "=== "+id)
	}

	_, err = runIn(t, t.TempDir(), "analyze")
	assert.Error(t, err)
}

func TestNewHTTPHandler(t *testing.T) {
	layouts, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	svc, err := service.NewSimService(layouts, service.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	hub := websocket.NewHub(svc, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	handler := newHTTPHandler(svc, hub)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plan_path")
}

func TestTickLoop(t *testing.T) {
	layouts, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	svc, err := service.NewSimService(layouts, service.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	hub := websocket.NewHub(svc, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tickLoop(ctx, svc, hub, 200) }()

	require.Eventually(t, func() bool {
		snap, _ := svc.State(context.Background())
		return snap.Sim.Ticks >= 5
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
