// Command parkingsim runs the parking lot simulator.
//
// Subcommands:
//   - desktop (default): ebiten window with keyboard driving and click-to-route
//   - serve: REST API, WebSocket viewer and /mcp endpoint on a loopback address
//   - mcp: MCP stdio server for AI agents
//   - plan: one-shot path search printed as JSON
//   - validate: layout validation and connectivity checks
//   - analyze: lattice statistics per layout
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/parkingsim/internal/logging"
	"github.com/wricardo/parkingsim/internal/settings"
	"github.com/wricardo/parkingsim/sim/config"
	"github.com/wricardo/parkingsim/sim/service"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "parkingsim"
)

// app carries what every subcommand needs once flags and settings are resolved
type app struct {
	out      io.Writer
	logOut   io.Writer
	envErr   error
	settings *settings.Settings
	logger   zerolog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file if it exists, before viper reads the environment
	a := &app{out: os.Stdout, logOut: os.Stderr, envErr: godotenv.Load()}
	if err := a.command().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// command builds the CLI tree
func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "Drive a car around a parking lot and plan routes between the slots",
		Version: Version,
		Writer:  a.out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config-dir",
				Value: ".",
				Usage: "directory holding parkingsim.yaml",
			},
			&cli.StringFlag{
				Name:  "layouts-dir",
				Usage: "directory of layout JSON files (default ./configs)",
			},
			&cli.StringFlag{
				Name:  "layout",
				Usage: "layout id to start with",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "planner strategy override: astar or greedy",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "console or json",
			},
		},
		Before: a.before,
		Action: a.runDesktop,
		Commands: []*cli.Command{
			{
				Name:   "desktop",
				Usage:  "open the simulator window",
				Flags:  []cli.Flag{tpsFlag()},
				Action: a.runDesktop,
			},
			{
				Name:  "serve",
				Usage: "serve the REST API, WebSocket viewer and /mcp on a loopback address",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "listen address, must be loopback (default 127.0.0.1:8080)",
					},
					tpsFlag(),
				},
				Action: a.runServe,
			},
			{
				Name:   "mcp",
				Usage:  "serve MCP tools over stdio",
				Action: a.runMCP,
			},
			{
				Name:  "plan",
				Usage: "search a path once and print it as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "to",
						Usage:    "target as x,y in pixels",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "from",
						Usage: "start as x,y in pixels (default: the car's start position)",
					},
				},
				Action: a.runPlan,
			},
			{
				Name:      "validate",
				Usage:     "validate layout files and their connectivity",
				ArgsUsage: "[layout.json ...]",
				Action:    a.runValidate,
			},
			{
				Name:   "analyze",
				Usage:  "print lattice statistics for every layout",
				Action: a.runAnalyze,
			},
		},
	}
}

func tpsFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "tps",
		Usage: "simulation ticks per second (default 60)",
	}
}

// before resolves settings: defaults < parkingsim.yaml < PARKINGSIM_* < flags
func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := settings.Load(cmd.String("config-dir")); err != nil {
		return ctx, err
	}
	settings.Override(settings.KeyLayoutsDir, cmd.String("layouts-dir"))
	settings.Override(settings.KeyLayout, cmd.String("layout"))
	settings.Override(settings.KeyStrategy, cmd.String("strategy"))
	settings.Override(settings.KeyLogLevel, cmd.String("log-level"))
	settings.Override(settings.KeyLogFormat, cmd.String("log-format"))

	s, err := settings.Current()
	if err != nil {
		return ctx, err
	}
	a.settings = s
	a.logger = logging.New(logging.Options{Level: s.LogLevel, Format: s.LogFormat, Out: a.logOut})
	if a.envErr != nil && !errors.Is(a.envErr, os.ErrNotExist) {
		a.logger.Warn().Err(a.envErr).Msg("error loading .env file")
	}
	return ctx, nil
}

// applyFlags lets subcommand flags override the resolved settings
func (a *app) applyFlags(cmd *cli.Command) error {
	if cmd.IsSet("tps") {
		settings.Override(settings.KeyTPS, int(cmd.Int("tps")))
	}
	if cmd.IsSet("addr") {
		settings.Override(settings.KeyAddr, cmd.String("addr"))
	}
	s, err := settings.Current()
	if err != nil {
		return err
	}
	a.settings = s
	return nil
}

// newService builds the layout manager and the simulation service
func (a *app) newService() (service.SimService, *config.Manager, error) {
	layouts, err := config.NewManager(a.settings.LayoutsDir)
	if err != nil {
		return nil, nil, err
	}
	svc, err := service.NewSimService(layouts, service.Options{
		Layout:   a.settings.Layout,
		Strategy: a.settings.Strategy,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, layouts, nil
}
