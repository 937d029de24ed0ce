package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/fleetwatch/config"
	"github.com/angeloszaimis/fleetwatch/internal/backend"
	"github.com/angeloszaimis/fleetwatch/internal/circuitbreaker"
	"github.com/angeloszaimis/fleetwatch/internal/healthcheck"
	"github.com/angeloszaimis/fleetwatch/internal/metrics"
	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/internal/strategy"
	"github.com/angeloszaimis/fleetwatch/pkg/logger"
)

// ScanResult sources.
const (
	SourceLocal         = "local"
	SourceBatch         = "batch"
	SourceBatchFallback = "batch+fallback"
)

// Tiers recorded by the orchestrator itself rather than by a prober.
const (
	TierBatch        = "batch"
	TierDeadline     = "deadline"
	TierPanic        = "panic"
	TierInconclusive = "inconclusive"
)

// DefaultSlack is added to the prober budget to form the pass deadline.
const DefaultSlack = 500 * time.Millisecond

var ErrDuplicateTarget = errors.New("duplicate target id")

// Prober decides the status of one target. *healthcheck.Prober implements it.
type Prober interface {
	Probe(ctx context.Context, target model.ProbeTarget) model.ProbeOutcome
	Budget() time.Duration
}

type Options struct {
	// Server probes every target when no batch endpoint is configured, and
	// answers batches submitted to this instance.
	Server Prober
	// Client probes the targets a batch endpoint could not answer for.
	Client         Prober
	Batch          *BatchClient
	ClientFallback bool
	MaxConcurrency int
	Slack          time.Duration
	Metrics        *metrics.Collector
	Logger         *slog.Logger
}

type Orchestrator struct {
	server         Prober
	client         Prober
	batch          *BatchClient
	clientFallback bool
	maxConcurrency int
	slack          time.Duration
	collector      *metrics.Collector
	logger         *slog.Logger
	now            func() time.Time
}

func New(opts Options) *Orchestrator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = config.DefaultMaxConcurrency
	}
	if opts.Slack <= 0 {
		opts.Slack = DefaultSlack
	}
	if opts.Client == nil {
		opts.Client = opts.Server
	}
	return &Orchestrator{
		server:         opts.Server,
		client:         opts.Client,
		batch:          opts.Batch,
		clientFallback: opts.ClientFallback,
		maxConcurrency: opts.MaxConcurrency,
		slack:          opts.Slack,
		collector:      opts.Metrics,
		logger:         logger.Component(opts.Logger, "orchestrator"),
		now:            time.Now,
	}
}

// FromConfig wires the probers, batch endpoints and their breakers from cfg.
func FromConfig(cfg *config.Config, collector *metrics.Collector, log *slog.Logger) (*Orchestrator, error) {
	opts := Options{
		Server:         healthcheck.NewServerProber(cfg.Scan),
		Client:         healthcheck.NewClientProber(cfg.Scan),
		ClientFallback: cfg.Scan.ClientFallback,
		MaxConcurrency: cfg.Scan.MaxConcurrency,
		Metrics:        collector,
		Logger:         log,
	}

	if len(cfg.Batch.Endpoints) > 0 {
		endpoints, err := backend.Parse(cfg.Batch.Endpoints)
		if err != nil {
			return nil, fmt.Errorf("parse batch endpoints: %w", err)
		}
		strat, err := strategy.FromName(cfg.Batch.Strategy)
		if err != nil {
			return nil, err
		}
		breakers := circuitbreaker.NewRegistry(cfg.Batch.FailureThreshold, cfg.Batch.ResetTimeoutDuration())
		opts.Batch = NewBatchClient(endpoints, strat, breakers, cfg.Batch.TimeoutDuration(), collector, log)
	}

	return New(opts), nil
}

// Endpoints reports the batch endpoints, or nil in local mode.
func (o *Orchestrator) Endpoints() []EndpointStatus {
	if o.batch == nil {
		return nil
	}
	return o.batch.Endpoints()
}

// RunBatch probes every target once. The result holds exactly one outcome
// per target. Duplicate ids, a cancelled ctx, or a batch transport failure
// without client fallback yield an error and no result.
func (o *Orchestrator) RunBatch(ctx context.Context, targets []model.ProbeTarget) (*model.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkUnique(targets); err != nil {
		return nil, err
	}

	var (
		outcomes map[string]model.ProbeOutcome
		source   = SourceLocal
	)

	if o.batch == nil || len(targets) == 0 {
		outcomes = o.probeAll(ctx, o.server, targets)
	} else {
		var err error
		outcomes, source, err = o.runRemote(ctx, targets)
		if err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &model.ScanResult{
		Targets:     targets,
		Outcomes:    outcomes,
		CompletedAt: o.now(),
		Source:      source,
	}, nil
}

func (o *Orchestrator) runRemote(ctx context.Context, targets []model.ProbeTarget) (map[string]model.ProbeOutcome, string, error) {
	statuses, err := o.batch.Submit(ctx, targets)
	if err != nil {
		if !o.clientFallback || ctx.Err() != nil {
			return nil, "", err
		}
		o.logger.Warn("Batch transport failed, probing from this instance", slog.Any("err", err))
	}

	outcomes := make(map[string]model.ProbeOutcome, len(targets))
	var pending []model.ProbeTarget
	for _, t := range targets {
		status, ok := statuses[t.ID]
		if !ok {
			pending = append(pending, t)
			continue
		}
		outcomes[t.ID] = model.ProbeOutcome{ID: t.ID, Status: status, Tier: TierBatch}
		o.collector.Emit(metrics.MetricEvent{Type: metrics.EventProbeCompleted, Tier: TierBatch})
	}

	if len(pending) == 0 {
		return outcomes, SourceBatch, nil
	}

	if !o.clientFallback {
		for _, t := range pending {
			outcomes[t.ID] = model.ProbeOutcome{ID: t.ID, Status: model.StatusOffline, Tier: TierInconclusive}
		}
		return outcomes, SourceBatch, nil
	}

	o.logger.Info("Falling back to local probes", slog.Int("targets", len(pending)))
	for id, outcome := range o.probeAll(ctx, o.client, pending) {
		outcomes[id] = outcome
	}
	return outcomes, SourceBatchFallback, nil
}

// Answer serves a batch submitted by another instance, using the server
// prober only. Verdicts follow the order of items.
func (o *Orchestrator) Answer(ctx context.Context, items []BatchItem) ([]BatchVerdict, error) {
	targets := make([]model.ProbeTarget, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			return nil, errors.New("batch item without id")
		}
		targets = append(targets, model.ProbeTarget{ID: item.ID, Address: item.IP, Name: item.ID})
	}
	if err := checkUnique(targets); err != nil {
		return nil, err
	}

	outcomes := o.probeAll(ctx, o.server, targets)

	verdicts := make([]BatchVerdict, 0, len(targets))
	for _, t := range targets {
		verdicts = append(verdicts, BatchVerdict{ID: t.ID, Status: outcomes[t.ID].Status})
	}
	return verdicts, nil
}

// probeAll fans targets out over prober and returns one outcome per target.
func (o *Orchestrator) probeAll(ctx context.Context, prober Prober, targets []model.ProbeTarget) map[string]model.ProbeOutcome {
	outcomes := make(map[string]model.ProbeOutcome, len(targets))
	if len(targets) == 0 {
		return outcomes
	}

	passCtx, cancel := context.WithTimeout(ctx, o.deadline(prober, len(targets)))
	defer cancel()

	results := make(chan model.ProbeOutcome, len(targets))

	g := new(errgroup.Group)
	g.SetLimit(o.maxConcurrency)

	go func() {
		for _, t := range targets {
			g.Go(func() error {
				if passCtx.Err() != nil {
					return nil
				}
				defer func() {
					if r := recover(); r != nil {
						o.logger.Error("Probe panicked", slog.String("target", t.ID), slog.Any("panic", r))
						results <- model.ProbeOutcome{ID: t.ID, Status: model.StatusOffline, Tier: TierPanic}
					}
				}()
				results <- prober.Probe(passCtx, t)
				return nil
			})
		}
	}()

collect:
	for len(outcomes) < len(targets) {
		select {
		case outcome := <-results:
			o.record(outcomes, outcome)
		case <-passCtx.Done():
			break collect
		}
	}

	// Outcomes that raced the deadline are still valid.
	for drained := false; !drained; {
		select {
		case outcome := <-results:
			o.record(outcomes, outcome)
		default:
			drained = true
		}
	}

	missing := 0
	for _, t := range targets {
		if _, ok := outcomes[t.ID]; ok {
			continue
		}
		missing++
		outcomes[t.ID] = model.ProbeOutcome{ID: t.ID, Status: model.StatusOffline, Tier: TierDeadline}
	}
	if missing > 0 {
		o.logger.Warn("Probes missed the pass deadline", slog.Int("missing", missing), slog.Int("targets", len(targets)))
	}

	return outcomes
}

func (o *Orchestrator) record(outcomes map[string]model.ProbeOutcome, outcome model.ProbeOutcome) {
	if _, seen := outcomes[outcome.ID]; seen {
		return
	}
	outcomes[outcome.ID] = outcome
	o.collector.Emit(metrics.MetricEvent{Type: metrics.EventProbeCompleted, Tier: outcome.Tier})
}

// deadline is the prober budget once per wave of concurrent probes, plus
// slack.
func (o *Orchestrator) deadline(prober Prober, n int) time.Duration {
	waves := (n + o.maxConcurrency - 1) / o.maxConcurrency
	return prober.Budget()*time.Duration(waves) + o.slack
}

func checkUnique(targets []model.ProbeTarget) error {
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTarget, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
