// Package desktop draws the simulation in an ebiten window and feeds it
// keyboard and mouse input.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/rs/zerolog"

	"github.com/wricardo/parkingsim/sim/config"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/service"
)

// DefaultTPS matches the simulation's fixed step
const DefaultTPS = 60

// Options configures the desktop window
type Options struct {
	TPS    int
	Title  string
	Theme  *Theme
	Logger zerolog.Logger
	// Input replaces the ebiten keyboard and mouse, mostly for tests
	Input Input
}

// Game implements ebiten.Game on top of a SimService
type Game struct {
	ctx    context.Context
	svc    service.SimService
	in     Input
	theme  Theme
	logger zerolog.Logger
	dt     float64

	layout   *engine.LayoutConfig
	world    *service.GridInfo
	snap     *service.Snapshot
	status   string
	showGrid bool

	carImage *ebiten.Image
}

// NewGame loads the world from svc and prepares the first frame
func NewGame(ctx context.Context, svc service.SimService, opts Options) (*Game, error) {
	tps := opts.TPS
	if tps <= 0 {
		tps = DefaultTPS
	}
	g := &Game{
		ctx:      ctx,
		svc:      svc,
		in:       opts.Input,
		theme:    DefaultTheme(),
		logger:   opts.Logger.With().Str("component", "desktop").Logger(),
		dt:       1 / float64(tps),
		showGrid: true,
	}
	if g.in == nil {
		g.in = ebitenInput{}
	}
	if opts.Theme != nil {
		g.theme = *opts.Theme
	}
	if err := g.refreshWorld(); err != nil {
		return nil, err
	}
	return g, nil
}

// refreshWorld reloads the static parts of the scene after a layout change
func (g *Game) refreshWorld() error {
	layout, err := g.svc.Layout(g.ctx)
	if err != nil {
		return fmt.Errorf("failed to read layout: %w", err)
	}
	world, err := g.svc.Grid(g.ctx, true)
	if err != nil {
		return fmt.Errorf("failed to read grid: %w", err)
	}
	snap, err := g.svc.State(g.ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	g.layout, g.world, g.snap = layout, world, snap
	g.carImage = nil
	return nil
}

// nextLayout returns the id of the layout after current, wrapping around
func nextLayout(infos []*config.LayoutInfo, current string) (string, bool) {
	if len(infos) == 0 {
		return "", false
	}
	for i, info := range infos {
		if info.Name == current || info.LayoutID == current {
			return infos[(i+1)%len(infos)].LayoutID, true
		}
	}
	return infos[0].LayoutID, true
}

func (g *Game) cycleLayout() error {
	infos, err := g.svc.ListLayouts(g.ctx)
	if err != nil {
		return err
	}
	id, ok := nextLayout(infos, g.layout.Name)
	if !ok {
		g.status = "no layout files found"
		return nil
	}
	if _, err := g.svc.LoadLayout(g.ctx, id); err != nil {
		return err
	}
	g.status = "loaded layout " + id
	return g.refreshWorld()
}

// Update handles input and advances the simulation by one tick
func (g *Game) Update() error {
	if g.ctx.Err() != nil || g.in.JustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	switch {
	case g.in.JustPressed(ebiten.KeyR):
		if _, err := g.svc.Reset(g.ctx); err != nil {
			return err
		}
		g.status = "reset"
	case g.in.JustPressed(ebiten.KeyG):
		g.showGrid = !g.showGrid
	case g.in.JustPressed(ebiten.KeyL):
		if err := g.cycleLayout(); err != nil {
			g.logger.Warn().Err(err).Msg("layout switch failed")
			g.status = err.Error()
		}
	}

	if err := g.svc.SetControls(g.ctx, ControlsFromKeys(g.in)); err != nil {
		return err
	}
	if _, err := g.svc.Tick(g.ctx, g.dt); err != nil {
		return err
	}

	if x, y, ok := g.in.Click(); ok {
		target := engine.Point{X: float64(x), Y: float64(y)}
		if _, err := g.svc.SelectTarget(g.ctx, target); err != nil {
			if !errors.Is(err, service.ErrInvalidTarget) {
				return err
			}
			g.status = err.Error()
		} else {
			g.status = ""
		}
	}

	snap, err := g.svc.State(g.ctx)
	if err != nil {
		return err
	}
	g.snap = snap
	return nil
}

// Draw renders the lot, the lattice, the car and the route
func (g *Game) Draw(screen *ebiten.Image) {
	t := g.theme
	screen.Fill(t.Background)

	for _, obs := range g.world.Obstacles {
		r := obs.Rect
		vector.StrokeRect(screen, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), t.BorderWidth, t.LotBorder, false)
		fill := t.Occupied
		if !obs.Occupied {
			fill = t.Free
		}
		vector.DrawFilledRect(screen, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), fill, false)
	}

	if g.showGrid {
		for _, p := range g.world.Points {
			vector.DrawFilledCircle(screen, float32(p.X), float32(p.Y), t.DotRadius, t.GridDot, false)
		}
	}

	g.drawCar(screen)

	car := g.snap.Sim.PixelPos
	if target := g.snap.Sim.Target; target != nil {
		vector.StrokeLine(screen, float32(car.X), float32(car.Y), float32(target.X), float32(target.Y), t.RouteWidth, t.Route, true)
	}

	route := g.snap.Route
	lineColor, width := t.Route, t.RouteWidth
	if !route.Found {
		lineColor, width = t.Partial, t.RouteWidth/2
	}
	drawPolyline(screen, route.Path, width, lineColor)

	g.drawHUD(screen)
}

func drawPolyline(screen *ebiten.Image, path []engine.Point, width float32, clr color.Color) {
	for i := 0; i+1 < len(path); i++ {
		a, b := path[i], path[i+1]
		vector.StrokeLine(screen, float32(a.X), float32(a.Y), float32(b.X), float32(b.Y), width, clr, true)
	}
}

// carSize is the sprite size in pixels: the wheelbase long, half as wide
func (g *Game) carSize() (int, int) {
	length := g.layout.Vehicle.Length * g.layout.PPU
	return int(math.Max(length, 2)), int(math.Max(length/2, 1))
}

func (g *Game) drawCar(screen *ebiten.Image) {
	w, h := g.carSize()
	if g.carImage == nil {
		g.carImage = ebiten.NewImage(w, h)
		g.carImage.Fill(g.theme.Car)
		// Windscreen marks the front
		vector.DrawFilledRect(g.carImage, float32(w)*0.7, 2, float32(w)*0.1, float32(h)-4, g.theme.CarFront, false)
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(-float64(w)/2, -float64(h)/2)
	// Heading grows counter-clockwise while screen y points down
	op.GeoM.Rotate(-g.snap.Sim.Vehicle.Heading * math.Pi / 180)
	op.GeoM.Translate(g.snap.Sim.PixelPos.X, g.snap.Sim.PixelPos.Y)
	screen.DrawImage(g.carImage, op)
}

// routeLabel summarises the active route for the HUD
func routeLabel(snap *service.Snapshot) string {
	route := snap.Route
	switch {
	case route.RequestID == "":
		return "click to pick a target"
	case route.Pending:
		return "searching..."
	case route.Found:
		return fmt.Sprintf("%d waypoints, %.0f px, %d expansions", len(route.Path), route.Path.Length(), route.Expansions)
	default:
		return "no path: " + route.Error
	}
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	v := g.snap.Sim.Vehicle
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s | %s | v=%.1f heading=%.0f steer=%.0f",
		g.snap.Sim.LayoutName, g.snap.Strategy, v.Velocity, v.Heading, v.Steering), 10, 5)
	ebitenutil.DebugPrintAt(screen, "route: "+routeLabel(g.snap), 10, 20)
	if g.status != "" {
		ebitenutil.DebugPrintAt(screen, g.status, 10, 35)
	}

	height := int(g.layout.Field.Height)
	ebitenutil.DebugPrintAt(screen, "Arrows/WASD: Drive | Space: Brake | Click: Target | R: Reset | L: Layout | G: Grid | ESC: Quit", 10, height-20)
}

// Layout keeps the logical screen equal to the playfield
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return int(g.layout.Field.Width), int(g.layout.Field.Height)
}

// Run opens the window and blocks until it is closed or ctx is done
func Run(ctx context.Context, svc service.SimService, opts Options) error {
	game, err := NewGame(ctx, svc, opts)
	if err != nil {
		return err
	}

	tps := opts.TPS
	if tps <= 0 {
		tps = DefaultTPS
	}
	title := opts.Title
	if title == "" {
		title = "Parking Simulator"
	}

	ebiten.SetTPS(tps)
	ebiten.SetWindowSize(game.Layout(0, 0))
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	game.logger.Info().Int("tps", tps).Str("layout", game.layout.Name).Msg("opening window")
	return ebiten.RunGame(game)
}
