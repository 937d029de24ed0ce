package main

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/fleetwatch/config"
	"github.com/angeloszaimis/fleetwatch/internal/handler"
	"github.com/angeloszaimis/fleetwatch/internal/healthcheck"
	"github.com/angeloszaimis/fleetwatch/internal/metrics"
	"github.com/angeloszaimis/fleetwatch/internal/orchestrator"
)

func setupRouter(api *handler.APIHandler, metricsCollector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	api.Routes(mux, metricsCollector)
	return mux
}

// setupEdgeRouter serves only the batch probe endpoint, answered with the
// server-side prober. Batch endpoints in cfg are ignored so an edge never
// forwards to another edge.
func setupEdgeRouter(cfg *config.Config, log *slog.Logger) *http.ServeMux {
	orch := orchestrator.New(orchestrator.Options{
		Server:         healthcheck.NewServerProber(cfg.Scan),
		MaxConcurrency: cfg.Scan.MaxConcurrency,
		Logger:         log,
	})

	mux := http.NewServeMux()
	handler.NewAPIHandler(log, nil, nil, orch).EdgeRoutes(mux)
	return mux
}
