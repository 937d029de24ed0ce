package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/angeloszaimis/fleetwatch/config"
	"github.com/angeloszaimis/fleetwatch/internal/dashboard"
	"github.com/angeloszaimis/fleetwatch/internal/handler"
	"github.com/angeloszaimis/fleetwatch/internal/httpserver"
	"github.com/angeloszaimis/fleetwatch/internal/inventory"
	"github.com/angeloszaimis/fleetwatch/internal/ledger"
	"github.com/angeloszaimis/fleetwatch/internal/metrics"
	"github.com/angeloszaimis/fleetwatch/internal/orchestrator"
	"github.com/angeloszaimis/fleetwatch/internal/scheduler"
	"github.com/angeloszaimis/fleetwatch/pkg/logger"
)

const metricsBufferSize = 1024

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "fleetwatch",
		Short: "Fleet reachability monitor",
		Long: `fleetwatch probes every server of a country/club inventory on a schedule,
aggregates the results into per-country and per-club availability, and keeps
a history of snapshot reports. Without a subcommand it runs the server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ./config/config.yaml or ./config.yaml)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(edgeCmd(&configPath))

	return rootCmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func boardCmd() *cobra.Command {
	var (
		apiURL  string
		refresh time.Duration
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the terminal dashboard against a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dashboard.NewAPIClient(apiURL, 10*time.Second)
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(dashboard.NewApp(client, refresh), tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "base URL of the fleetwatch API")
	cmd.Flags().DurationVar(&refresh, "refresh", config.DefaultScanInterval, "poll interval")

	return cmd
}

func edgeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "edge",
		Short: "Answer batch probe requests from peers without scanning",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdge(cmd.Context(), *configPath)
		},
	}
}

func runEdge(parent context.Context, configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := httpserver.New(cfg.Server.Address, handler.Logging(log, setupEdgeRouter(cfg, log)), log)
	if err != nil {
		return err
	}

	log.Info("Edge prober ready", slog.String("addr", srv.Addr()))
	return srv.Run(ctx)
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		return err
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, err := buildService(cfg, log)
	if err != nil {
		log.Error("Failed to build service", slog.Any("err", err))
		return err
	}

	srv, err := httpserver.New(cfg.Server.Address, handler.Logging(log, setupRouter(svc.api, svc.collector)), log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		return err
	}

	svc.collector.Start(ctx)
	svc.scheduler.Start(ctx)

	err = srv.Run(ctx)
	cancel()
	svc.scheduler.Wait()

	if err != nil {
		log.Error("Server stopped with error", slog.Any("err", err))
	}
	return err
}

// service holds the wired components of one server instance.
type service struct {
	collector    *metrics.Collector
	flattener    *inventory.Flattener
	orchestrator *orchestrator.Orchestrator
	scheduler    *scheduler.Scheduler
	ledger       *ledger.Ledger
	api          *handler.APIHandler
}

func buildService(cfg *config.Config, log *slog.Logger) (*service, error) {
	collector := metrics.NewCollector(metricsBufferSize, logger.Component(log, "metrics"))

	orch, err := orchestrator.FromConfig(cfg, collector, log)
	if err != nil {
		return nil, err
	}

	flattener := inventory.NewFlattener(inventory.NewStore(cfg.Inventory), cfg.Inventory.Countries, log)
	sched := scheduler.New(flattener, orch, cfg.Scan.IntervalDuration(), collector, log)
	history := ledger.New(cfg.Ledger.Capacity)

	log.Info("Service configured",
		slog.Int("countries", len(cfg.Inventory.Countries)),
		slog.Int("batch_endpoints", len(cfg.Batch.Endpoints)),
		slog.Bool("client_fallback", cfg.Scan.ClientFallback),
		slog.Duration("interval", cfg.Scan.IntervalDuration()))

	return &service{
		collector:    collector,
		flattener:    flattener,
		orchestrator: orch,
		scheduler:    sched,
		ledger:       history,
		api:          handler.NewAPIHandler(log, sched, history, orch),
	}, nil
}
