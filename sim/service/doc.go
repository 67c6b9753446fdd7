// Package service is the single entry point adapters use to drive the simulation.
//
// A SimService owns one engine and one route dispatcher. The desktop window,
// the REST API, the WebSocket hub and the MCP tools all go through it, so
// every adapter sees the same car, target and route.
//
// Locking:
//
// Engine access is guarded by a read/write mutex. Route hooks registered with
// OnRouteUpdate run without that mutex held and may call back into the service.
//
// Usage:
//
//	layouts, _ := config.NewManager("./configs")
//	svc, err := service.NewSimService(layouts, service.Options{Logger: logger})
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//
//	svc.SetControls(ctx, engine.Controls{Forward: true})
//	state, _ := svc.Tick(ctx, service.DefaultDt)
package service
