// Package mcp exposes the parking simulator to AI agents over the Model
// Context Protocol.
//
// The server calls the simulation service in-process. Tools return plain
// text meant for a language model to read:
//   - get_state: car, target and route summary
//   - list_layouts, load_layout: layout inspection and switching
//   - grid_info, describe_point: lattice and slot geometry
//   - plan_path: synchronous search with waypoint listing
//   - select_target, route_status: background search and its result
//   - drive: hold controls for a number of ticks
//   - reset: restart the car
//
// Transport Modes:
//   - Stdio: ServeStdio for local MCP clients
//   - HTTP: Server implements http.Handler for single JSON-RPC POSTs
//
// Usage:
//
//	srv := mcp.NewServer(simService)
//	if err := srv.ServeStdio(); err != nil {
//		log.Fatal().Err(err).Msg("mcp server stopped")
//	}
package mcp
