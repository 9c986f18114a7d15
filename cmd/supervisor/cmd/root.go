// Package cmd wires configuration, transports and the supervisor runtime
// into the CLI entry point.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aquarig/supervisor/pkg/alerts"
	"github.com/aquarig/supervisor/pkg/api"
	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/config"
	"github.com/aquarig/supervisor/pkg/db"
	"github.com/aquarig/supervisor/pkg/logger"
	"github.com/aquarig/supervisor/pkg/supervisor"
	"github.com/aquarig/supervisor/pkg/uplink"
)

var (
	// configPath to the configuration JSON file.
	configPath string
	// logLevel overrides the configured log level.
	logLevel string
	// simMode replaces the serial ports with the built-in simulator.
	simMode bool

	rootCmd = &cobra.Command{
		Use:   "supervisor",
		Short: "Run the aquaponics rig supervisory controller.",
		Long: `Starts the rig supervisor: ingests module telemetry from the bus,
watches liveness and fault conditions, publishes status to the remote
server, runs feed and light schedules, and serves the operator console
and HTTP API.

With --sim the serial ports are replaced by a built-in module simulator
and an in-memory uplink, so the full pipeline runs without hardware.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return run(ctx)
		},
	}
)

// Execute runs the supervisor CLI and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&simMode, "sim", false, "run against the built-in module simulator")
}

func run(ctx context.Context) error {
	cfg := supervisor.Config{RigID: "aquarig"}

	if configPath != "" {
		if err := config.LoadAndValidate(configPath, &cfg); err != nil {
			return err
		}
	} else if err := cfg.Validate(); err != nil {
		return err
	}

	if simMode {
		cfg.Sim = true
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	deps, err := buildDeps(cfg, database, log)
	if err != nil {
		return err
	}

	sup, err := supervisor.New(cfg, deps)
	if err != nil {
		return err
	}

	if err := sup.Start(ctx); err != nil {
		return err
	}

	var apiServer *api.Server

	if cfg.ListenAddr != "" {
		apiServer = api.NewServer(cfg.RigID, sup.Store(), sup.Samples(), database, sup.Interpreter(), log)

		go func() {
			if err := apiServer.Start(cfg.ListenAddr); err != nil {
				log.Errorw("api server stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Warnw("api server shutdown", "error", err)
		}
	}

	return sup.Stop(shutdownCtx)
}

// buildDeps selects the transports: the simulator pair in sim mode, the
// configured serial ports otherwise.
func buildDeps(cfg supervisor.Config, database db.Service, log *zap.SugaredLogger) (supervisor.Deps, error) {
	deps := supervisor.Deps{
		Database:   database,
		Log:        log,
		ConsoleOut: os.Stdout,
		ConsoleIn:  os.Stdin,
	}

	for i := range cfg.Webhooks {
		deps.Alerters = append(deps.Alerters, alerts.NewWebhookAlerter(cfg.Webhooks[i], log))
	}

	if cfg.Sim {
		sim := bus.NewSimulator(time.Duration(cfg.IngestPeriod))
		deps.Source = sim
		deps.Commander = sim
		deps.Transport = uplink.NewLoopback(64)

		return deps, nil
	}

	busPort, err := uplink.OpenPort(cfg.BusSerial.Device, cfg.BusSerial.Baud)
	if err != nil {
		return deps, err
	}

	deps.Source = bus.NewStreamSource(busPort, log)
	deps.Commander = bus.NewStreamCommander(busPort)

	transport, err := uplink.OpenSerial(cfg.UplinkSerial)
	if err != nil {
		_ = busPort.Close()
		return deps, err
	}

	deps.Transport = transport

	return deps, nil
}
