package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/angeloszaimis/fleetwatch/internal/ledger"
	"github.com/angeloszaimis/fleetwatch/internal/metrics"
	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/internal/orchestrator"
	"github.com/angeloszaimis/fleetwatch/internal/scheduler"
	"github.com/angeloszaimis/fleetwatch/pkg/logger"
)

const maxBatchRequestBytes = 8 << 20

// Scanner is the scheduler as seen by the API.
type Scanner interface {
	Current() *scheduler.Board
	ScanNow(force bool) scheduler.TriggerResult
	Subscribe() (<-chan *scheduler.Board, func())
}

// History is the snapshot ledger as seen by the API.
type History interface {
	Snapshot(result *model.ScanResult) (model.SnapshotReport, error)
	History() []model.SnapshotReport
	Clear()
	Len() int
}

// Prober answers batch probe requests and describes the remote endpoints.
type Prober interface {
	Answer(ctx context.Context, items []orchestrator.BatchItem) ([]orchestrator.BatchVerdict, error)
	Endpoints() []orchestrator.EndpointStatus
}

type APIHandler struct {
	logger  *slog.Logger
	scanner Scanner
	history History
	prober  Prober
}

type statusResponse struct {
	*scheduler.Board
	Endpoints []orchestrator.EndpointStatus `json:"endpoints,omitempty"`
	Snapshots int                           `json:"snapshots"`
}

type scanResponse struct {
	Result scheduler.TriggerResult `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewAPIHandler(log *slog.Logger, scanner Scanner, history History, prober Prober) *APIHandler {
	return &APIHandler{
		logger:  logger.Component(log, "api"),
		scanner: scanner,
		history: history,
		prober:  prober,
	}
}

// Routes registers every API route on mux.
func (h *APIHandler) Routes(mux *http.ServeMux, collector *metrics.Collector) {
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("POST /api/scan", h.Scan)
	mux.HandleFunc("GET /api/snapshots", h.ListSnapshots)
	mux.HandleFunc("POST /api/snapshots", h.CreateSnapshot)
	mux.HandleFunc("DELETE /api/snapshots", h.ClearSnapshots)
	mux.HandleFunc("GET /api/endpoints", h.Endpoints)
	mux.HandleFunc("POST /api/probe/batch", h.ProbeBatch)
	mux.HandleFunc("GET /api/ws", h.Stream)
	mux.HandleFunc("GET /healthz", h.Healthz)
	if collector != nil {
		mux.HandleFunc("GET /metrics", collector.Handler())
	}
}

// EdgeRoutes registers only the batch probe endpoint and the liveness route,
// for instances that answer peers without scanning themselves.
func (h *APIHandler) EdgeRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/probe/batch", h.ProbeBatch)
	mux.HandleFunc("GET /healthz", h.Healthz)
}

func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Board:     h.scanner.Current(),
		Endpoints: h.prober.Endpoints(),
		Snapshots: h.history.Len(),
	})
}

// Scan triggers a manual scan. ?force=true queues a follow-up scan when one
// is already running.
func (h *APIHandler) Scan(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = parsed
	}

	result := h.scanner.ScanNow(force)
	h.logger.Info("Manual scan requested", slog.Bool("force", force), slog.String("result", string(result)))

	if result == scheduler.Rejected {
		writeJSON(w, http.StatusServiceUnavailable, scanResponse{Result: result})
		return
	}
	writeJSON(w, http.StatusAccepted, scanResponse{Result: result})
}

func (h *APIHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.history.History())
}

func (h *APIHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	report, err := h.history.Snapshot(h.scanner.Current().Result)
	if errors.Is(err, ledger.ErrNoScan) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("Snapshot failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}

	h.logger.Info("Snapshot taken",
		slog.String("id", report.ID),
		slog.String("availability", report.AvailabilityString()))
	writeJSON(w, http.StatusCreated, report)
}

func (h *APIHandler) ClearSnapshots(w http.ResponseWriter, r *http.Request) {
	h.history.Clear()
	h.logger.Info("Snapshot history cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) Endpoints(w http.ResponseWriter, r *http.Request) {
	endpoints := h.prober.Endpoints()
	if endpoints == nil {
		endpoints = []orchestrator.EndpointStatus{}
	}
	writeJSON(w, http.StatusOK, endpoints)
}

// ProbeBatch answers a batch from a peer instance with one verdict per
// submitted id.
func (h *APIHandler) ProbeBatch(w http.ResponseWriter, r *http.Request) {
	var items []orchestrator.BatchItem
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchRequestBytes)).Decode(&items); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of {id, ip}")
		return
	}

	verdicts, err := h.prober.Answer(r.Context(), items)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Debug("Answered batch", slog.Int("items", len(items)), slog.String("from", extractClientIP(r)))
	writeJSON(w, http.StatusOK, verdicts)
}

func (h *APIHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
