package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/parkingsim/sim/dispatch"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/planner"
	"github.com/wricardo/parkingsim/sim/service"
)

const (
	// maxRouteWait bounds how long route_status blocks for a pending search
	maxRouteWait = 10 * time.Second
	routePoll    = 20 * time.Millisecond

	// Waypoints printed before the listing is elided
	maxListedWaypoints = 40
)

// Server exposes the simulation as MCP tools
type Server struct {
	service   service.SimService
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server that calls svc directly
func NewServer(svc service.SimService) *Server {
	s := &Server{service: svc}
	s.initMCPServer()
	return s
}

// initMCPServer initializes the MCP server with all tools
func (s *Server) initMCPServer() {
	s.mcpServer = server.NewMCPServer(
		"Parking Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Parking Simulator - MCP Interface

A car starts in the top-left corner of a parking lot with two rows of slots.
Occupied slots are obstacles. Coordinates are playfield pixels, x to the right
and y downwards.

AVAILABLE TOOLS:
- get_state: Car position, heading, speed, target and route
- list_layouts / load_layout: Inspect and switch parking lot layouts
- grid_info: Lattice size, walkable points and obstacles
- describe_point: What lies at a pixel (slot, hitbox, nearest walkable point)
- plan_path: Synchronous search between two points, returns waypoints
- select_target: Set the car's target and start a background search
- route_status: Result of the background search, optionally waiting for it
- drive: Hold controls for a number of ticks (60 ticks per second)
- reset: Put the car back on its start position

TIP: describe_point a free slot before planning to it; targets inside an
occupied slot's hitbox have no walkable neighbours.`),
	)

	s.registerTools()
}

func pointProps(prefix, what string) map[string]interface{} {
	return map[string]interface{}{
		prefix + "x": map[string]interface{}{
			"type":        "number",
			"description": what + " x in pixels",
		},
		prefix + "y": map[string]interface{}{
			"type":        "number",
			"description": what + " y in pixels",
		},
	}
}

func merge(props ...map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, p := range props {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_state",
		Description: "Get the current simulation state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleGetState)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_layouts",
		Description: "List available parking lot layouts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListLayouts)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "load_layout",
		Description: "Switch to another layout. The car restarts and the route is cleared.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Layout id as shown by list_layouts",
				},
			},
			Required: []string{"name"},
		},
	}, s.handleLoadLayout)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "grid_info",
		Description: "Describe the walkable lattice and the slot obstacles",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleGridInfo)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_point",
		Description: "Explain what lies at a pixel: slot, hitbox, nearest walkable point",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: pointProps("", "Point"),
			Required:   []string{"x", "y"},
		},
	}, s.handleDescribePoint)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "plan_path",
		Description: "Search a path synchronously. Does not change the car's route.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: merge(
				pointProps("target_", "Target"),
				pointProps("start_", "Start (defaults to the car)"),
				map[string]interface{}{
					"strategy": map[string]interface{}{
						"type":        "string",
						"enum":        []string{string(planner.StrategyAStar), string(planner.StrategyGreedy)},
						"description": "Search strategy (defaults to the layout's)",
					},
				},
			),
			Required: []string{"target_x", "target_y"},
		},
	}, s.handlePlanPath)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "select_target",
		Description: "Set the car's target and start a background search from the car",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: pointProps("", "Target"),
			Required:   []string{"x", "y"},
		},
	}, s.handleSelectTarget)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "route_status",
		Description: "Get the background route. Optionally wait for a pending search.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"wait_ms": map[string]interface{}{
					"type":        "number",
					"description": "Milliseconds to wait while the search is pending (max 10000)",
				},
			},
		},
	}, s.handleRouteStatus)

	controls := map[string]interface{}{}
	for _, name := range []string{"forward", "reverse", "brake", "left", "right"} {
		controls[name] = map[string]interface{}{
			"type":        "boolean",
			"description": "Hold " + name,
		}
	}
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "drive",
		Description: "Hold the given controls for a number of ticks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: merge(controls, map[string]interface{}{
				"ticks": map[string]interface{}{
					"type":        "number",
					"description": fmt.Sprintf("Ticks to simulate (1-%d)", service.MaxDriveTicks),
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the manoeuvre",
				},
			}),
			Required: []string{"ticks"},
		},
	}, s.handleDrive)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "reset",
		Description: "Put the car back on its start position and clear the route",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleReset)
}

// MCPServer returns the underlying MCP server for serving
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin and stdout until the client disconnects
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP answers single JSON-RPC messages posted to it
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := s.mcpServer.HandleMessage(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Write(responseData)
}

// Argument helpers

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func numberArg(args map[string]interface{}, key string) (float64, bool) {
	v, ok := args[key].(float64)
	return v, ok
}

func pointArg(args map[string]interface{}, prefix string) (engine.Point, error) {
	x, okX := numberArg(args, prefix+"x")
	y, okY := numberArg(args, prefix+"y")
	if !okX || !okY {
		return engine.Point{}, fmt.Errorf("%sx and %sy must be numbers", prefix, prefix)
	}
	return engine.Point{X: x, Y: y}, nil
}

// Tool handlers

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.service.State(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSnapshot(snap)), nil
}

func (s *Server) handleListLayouts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layouts, err := s.service.ListLayouts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Layouts:\n\n")
	for _, info := range layouts {
		fmt.Fprintf(&b, "- %s: %s\n  %s\n  Field %gx%g, step %g, %d slots (%d free), strategy %s\n\n",
			info.LayoutID, info.Name, info.Description, info.Width, info.Height,
			info.GridStep, info.Slots, info.FreeSlots, info.Strategy)
	}
	if len(layouts) == 0 {
		b.WriteString("(only the built-in classic layout is available)\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleLoadLayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, _ := arguments(request)["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	snap, err := s.service.LoadLayout(ctx, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Loaded layout %s\n\n%s", name, formatSnapshot(snap))), nil
}

func (s *Server) handleGridInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.service.Grid(ctx, false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Field: %gx%g pixels, lattice step %g (%d x %d)\n", info.Width, info.Height, info.Step, info.Cols, info.Rows)
	fmt.Fprintf(&b, "Walkable points: %d in %d connected region(s)\n\n", info.Walkable, info.Components)
	b.WriteString("Slots (row, column: rect, state):\n")
	for _, obs := range info.Obstacles {
		state := "occupied"
		if !obs.Occupied {
			state = "FREE"
		}
		fmt.Fprintf(&b, "  (%d, %d): x=%g y=%g w=%g h=%g  %s\n",
			obs.Slot.Row, obs.Slot.Column, obs.Rect.X, obs.Rect.Y, obs.Rect.W, obs.Rect.H, state)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleDescribePoint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := pointArg(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := s.service.DescribePoint(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatPointInfo(info)), nil
}

func (s *Server) handlePlanPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	target, err := pointArg(args, "target_")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := service.PlanRequest{Target: target}
	req.Strategy, _ = args["strategy"].(string)
	if _, ok := args["start_x"]; ok {
		start, err := pointArg(args, "start_")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		req.Start = &start
	}

	res, err := s.service.PlanPath(ctx, req)
	if err != nil {
		var nf *planner.NotFoundError
		if errors.As(err, &nf) {
			msg := fmt.Sprintf("No path found (%s).\nBest partial path, %d waypoints:\n%s",
				nf.Reason, len(nf.Partial), formatPath(nf.Partial))
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Path found with %s: %d waypoints, length %.1f px, %d expansions in %s\n",
		res.Strategy, len(res.Waypoints), res.Waypoints.Length(), res.Expansions, res.Duration.Round(time.Microsecond))
	b.WriteString(formatPath(res.Waypoints))
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleSelectTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := pointArg(arguments(request), "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	route, err := s.service.SelectTarget(ctx, target)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Target set to (%g, %g). Search %s started; use route_status to follow it.",
		target.X, target.Y, route.RequestID)), nil
}

func (s *Server) handleRouteStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wait := time.Duration(0)
	if ms, ok := numberArg(arguments(request), "wait_ms"); ok && ms > 0 {
		wait = min(time.Duration(ms)*time.Millisecond, maxRouteWait)
	}

	route, err := s.service.Route(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	deadline := time.Now().Add(wait)
	for route.Pending && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return mcp.NewToolResultError(ctx.Err().Error()), nil
		case <-time.After(routePoll):
		}
		if route, err = s.service.Route(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(formatRoute(route)), nil
}

func (s *Server) handleDrive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	ticks, ok := numberArg(args, "ticks")
	if !ok || ticks < 1 {
		return mcp.NewToolResultError("ticks must be a positive number"), nil
	}

	var controls engine.Controls
	controls.Forward, _ = args["forward"].(bool)
	controls.Reverse, _ = args["reverse"].(bool)
	controls.Brake, _ = args["brake"].(bool)
	controls.Left, _ = args["left"].(bool)
	controls.Right, _ = args["right"].(bool)

	res, err := s.service.Drive(ctx, controls, int(ticks), 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatDrive(res)), nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.service.Reset(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Simulation reset\n\n" + formatSnapshot(snap)), nil
}

// Formatting helpers

func formatVehicle(v engine.VehicleState) string {
	return fmt.Sprintf("position (%.2f, %.2f) units, heading %.1f°, velocity %.2f, steering %.1f°",
		v.Position.X, v.Position.Y, v.Heading, v.Velocity, v.Steering)
}

func formatSnapshot(snap *service.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Layout: %s (strategy %s)\n", snap.Sim.LayoutName, snap.Strategy)
	fmt.Fprintf(&b, "Car: pixel (%.1f, %.1f), %s\n", snap.Sim.PixelPos.X, snap.Sim.PixelPos.Y, formatVehicle(snap.Sim.Vehicle))
	fmt.Fprintf(&b, "Ticks: %d (%.2fs)\n", snap.Sim.Ticks, snap.Sim.ElapsedTime)
	if snap.Sim.Target != nil {
		fmt.Fprintf(&b, "Target: (%g, %g)\n", snap.Sim.Target.X, snap.Sim.Target.Y)
	} else {
		b.WriteString("Target: none\n")
	}
	b.WriteString("Route: " + routeSummary(&snap.Route) + "\n")
	return b.String()
}

func routeSummary(route *dispatch.Route) string {
	switch {
	case route.RequestID == "":
		return "none"
	case route.Pending:
		return "searching (" + route.RequestID + ")"
	case route.Found:
		return fmt.Sprintf("found, %d waypoints, length %.1f px", len(route.Path), route.Path.Length())
	default:
		return "not found: " + route.Error
	}
}

func formatRoute(route *dispatch.Route) string {
	var b strings.Builder
	b.WriteString("Route: " + routeSummary(route) + "\n")
	if route.RequestID == "" || route.Pending {
		return b.String()
	}
	fmt.Fprintf(&b, "Strategy: %s, %d expansions in %s\n", route.Strategy, route.Expansions, route.Duration.Round(time.Microsecond))
	if len(route.Path) > 0 {
		if !route.Found {
			b.WriteString("Best partial path:\n")
		}
		b.WriteString(formatPath(route.Path))
	}
	return b.String()
}

func formatPath(path planner.Path) string {
	var b strings.Builder
	for i, p := range path {
		if i == maxListedWaypoints && len(path) > maxListedWaypoints+1 {
			fmt.Fprintf(&b, "  ... %d more ...\n", len(path)-maxListedWaypoints-1)
			p = path[len(path)-1]
			fmt.Fprintf(&b, "  %d: (%g, %g)\n", len(path)-1, p.X, p.Y)
			break
		}
		fmt.Fprintf(&b, "  %d: (%g, %g)\n", i, p.X, p.Y)
	}
	return b.String()
}

func formatPointInfo(info *service.PointInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Point (%g, %g)\n", info.Point.X, info.Point.Y)
	if !info.InBounds {
		b.WriteString("Outside the playfield\n")
	}
	switch {
	case info.Slot != nil && info.Occupied:
		fmt.Fprintf(&b, "Inside occupied slot row %d column %d\n", info.Slot.Row, info.Slot.Column)
	case info.Slot != nil:
		fmt.Fprintf(&b, "Inside FREE slot row %d column %d\n", info.Slot.Row, info.Slot.Column)
	}
	if info.Blocked {
		b.WriteString("Blocked by a slot hitbox\n")
	}
	if info.OnGrid {
		b.WriteString("On a walkable lattice point\n")
	} else if info.Nearest != nil {
		fmt.Fprintf(&b, "Nearest walkable point: (%g, %g), %.1f px away\n", info.Nearest.X, info.Nearest.Y, info.Distance)
	}
	return b.String()
}

func formatDrive(res *service.DriveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Drove %d ticks, moved %.2f units\n", res.Ticks, res.Distance)
	if res.Truncated {
		fmt.Fprintf(&b, "Truncated to the %d tick limit\n", res.Limit)
	}
	fmt.Fprintf(&b, "Start: %s\n", formatVehicle(res.Start))
	fmt.Fprintf(&b, "End:   %s\n", formatVehicle(res.End))
	fmt.Fprintf(&b, "Pixel position: (%.1f, %.1f)\n", res.State.PixelPos.X, res.State.PixelPos.Y)
	return b.String()
}
