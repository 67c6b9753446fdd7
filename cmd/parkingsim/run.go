package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/parkingsim/api"
	"github.com/wricardo/parkingsim/presentation/desktop"
	"github.com/wricardo/parkingsim/sim/engine"
	"github.com/wricardo/parkingsim/sim/planner"
	"github.com/wricardo/parkingsim/sim/service"
	"github.com/wricardo/parkingsim/transport/mcp"
	"github.com/wricardo/parkingsim/transport/websocket"
)

func (a *app) runDesktop(ctx context.Context, cmd *cli.Command) error {
	if err := a.applyFlags(cmd); err != nil {
		return err
	}
	svc, _, err := a.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	return desktop.Run(ctx, svc, desktop.Options{TPS: a.settings.TPS, Logger: a.logger})
}

// checkLoopback rejects listen addresses reachable from other machines
func checkLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("address %q is not a loopback address", addr)
	}
	return nil
}

// tickLoop advances the simulation at tps and streams frames to the hub
func tickLoop(ctx context.Context, svc service.SimService, hub *websocket.Hub, tps int) error {
	dt := 1 / float64(tps)
	ticker := time.NewTicker(time.Second / time.Duration(tps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			state, err := svc.Tick(ctx, dt)
			if err != nil {
				return err
			}
			if hub.Clients() > 0 {
				hub.BroadcastFrame(state)
			}
		}
	}
}

// newHTTPHandler mounts the REST API and the MCP endpoint
func newHTTPHandler(svc service.SimService, hub *websocket.Hub) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(svc, hub))
	mainRouter.Handle("/mcp", mcp.NewServer(svc))
	return mainRouter
}

func (a *app) runServe(ctx context.Context, cmd *cli.Command) error {
	if err := a.applyFlags(cmd); err != nil {
		return err
	}
	addr := a.settings.Addr
	if err := checkLoopback(addr); err != nil {
		return err
	}

	svc, _, err := a.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(svc, a.logger)
	go hub.Run(ctx)
	svc.OnRouteUpdate(hub.BroadcastRoute)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      newHTTPHandler(svc, hub),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.logger.Info().
			Str("addr", addr).
			Str("viewer", "http://"+addr+"/").
			Str("websocket", "ws://"+addr+"/ws").
			Str("mcp", "http://"+addr+"/mcp").
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("HTTP server failed: %w", err)
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tickLoop(ctx, svc, hub, a.settings.TPS); err != nil {
			errs <- err
			cancel()
		}
	}()

	<-ctx.Done()
	a.logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("HTTP shutdown failed")
	}
	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

func (a *app) runMCP(ctx context.Context, cmd *cli.Command) error {
	svc, _, err := a.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	a.logger.Info().Msg("MCP stdio server ready")
	return mcp.NewServer(svc).ServeStdio()
}

// parsePoint reads "x,y"
func parsePoint(s string) (engine.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return engine.Point{}, fmt.Errorf("point %q must be x,y", s)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return engine.Point{}, fmt.Errorf("point %q must be two numbers", s)
	}
	return engine.Point{X: x, Y: y}, nil
}

func (a *app) runPlan(ctx context.Context, cmd *cli.Command) error {
	target, err := parsePoint(cmd.String("to"))
	if err != nil {
		return err
	}
	req := service.PlanRequest{Target: target, Strategy: a.settings.Strategy}
	if from := cmd.String("from"); from != "" {
		start, err := parsePoint(from)
		if err != nil {
			return err
		}
		req.Start = &start
	}

	svc, _, err := a.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")

	res, err := svc.PlanPath(ctx, req)
	if err != nil {
		var nf *planner.NotFoundError
		if errors.As(err, &nf) {
			enc.Encode(map[string]interface{}{
				"error":      err.Error(),
				"strategy":   nf.Strategy,
				"partial":    nf.Partial,
				"expansions": nf.Expansions,
			})
		}
		return err
	}

	return enc.Encode(struct {
		*planner.Result
		Length float64 `json:"length"`
		WKT    string  `json:"wkt"`
	}{res, res.Waypoints.Length(), res.Waypoints.WKT()})
}
