// Package api provides the HTTP REST API for the parking simulator.
//
// The server listens on loopback and backs the browser viewer in static/.
// All endpoints accept and return JSON; coordinates are playfield pixels.
//
// Endpoints:
//
// Simulation:
//   - GET /api/state - Current frame snapshot (car, target, route, controls)
//   - POST /api/controls - Replace the held driver input
//   - POST /api/drive - Run a burst of ticks with fixed controls
//   - POST /api/reset - Put the car back on its start position
//
// Routing:
//   - POST /api/target - Select a target and start an asynchronous search
//   - GET /api/route - Latest route (pending, found or failed)
//   - POST /api/plan - Synchronous search that leaves the route alone
//
// World:
//   - GET /api/grid - Lattice size and obstacles, ?points=true adds every walkable point
//   - GET /api/point?x=..&y=.. - What lies at a point
//
// Layouts:
//   - GET /api/layouts - Available layouts
//   - GET /api/layout - Active layout
//   - POST /api/layouts/{name}/load - Switch layout
//
// Streaming:
//   - GET /ws - WebSocket frames, see package websocket
//
// Error Handling:
//
// Errors are returned as {"error": "message"}. Invalid targets and unknown
// strategies map to 400, unknown layouts to 404. A failed search maps to 422
// and carries the partial path:
//
//	{
//	  "error": "path not found: ...",
//	  "strategy": "astar",
//	  "partial": [{"x": 0, "y": 0}, ...],
//	  "expansions": 64
//	}
package api
