// Package websocket streams simulation frames to browser viewers.
//
// A single Hub fans out every message to all connected viewers. There are no
// sessions: the process drives exactly one simulation.
//
// Message Protocol:
//
// Outgoing messages are JSON objects tagged by type:
//   - {type: "frame", state: {...}} after each simulation tick
//   - {type: "route", route: {...}} when a search starts, finishes or is cleared
//   - {type: "error", error: "..."} in reply to bad input
//
// Incoming messages steer the simulation:
//   - {type: "controls", controls: {forward: true, left: false, ...}}
//   - {type: "target", x: 640, y: 360}
//
// Usage:
//
//	hub := websocket.NewHub(svc, logger)
//	go hub.Run(ctx)
//	svc.OnRouteUpdate(hub.BroadcastRoute)
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Each connection runs a read pump and a write pump. Viewers that fall behind
// the broadcast are dropped rather than stalling the hub.
package websocket
