// Package scheduler drives periodic and manual scans. At most one scan runs
// at a time; the latest outcome is published as a Board that readers fetch
// lock-free or receive through a subscription.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angeloszaimis/fleetwatch/config"
	"github.com/angeloszaimis/fleetwatch/internal/aggregate"
	"github.com/angeloszaimis/fleetwatch/internal/metrics"
	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/pkg/logger"
)

type State int32

const (
	StateIdle State = iota
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	default:
		return "unknown"
	}
}

// TriggerResult tells a manual caller what happened to its request.
type TriggerResult string

const (
	// Started means a scan began for this request.
	Started TriggerResult = "started"
	// Coalesced means a scan was already running and will serve the request.
	Coalesced TriggerResult = "coalesced"
	// Queued means one follow-up scan runs right after the current one.
	Queued TriggerResult = "queued"
	// Rejected means the scheduler has been stopped.
	Rejected TriggerResult = "rejected"
)

// Inventory produces the targets of a scan. *inventory.Flattener implements it.
type Inventory interface {
	Flatten(ctx context.Context) []model.ProbeTarget
}

// Runner probes a batch. *orchestrator.Orchestrator implements it.
type Runner interface {
	RunBatch(ctx context.Context, targets []model.ProbeTarget) (*model.ScanResult, error)
}

type Scheduler struct {
	inventory Inventory
	runner    Runner
	interval  time.Duration
	collector *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time

	state   atomic.Int32
	queued  atomic.Bool
	stopped atomic.Bool
	board   atomic.Pointer[Board]
	wg      sync.WaitGroup

	ctxMu   sync.Mutex
	baseCtx context.Context

	// mu serialises publishing and guards subscribers.
	mu          sync.Mutex
	subscribers map[int]chan *Board
	nextSub     int
}

func New(inv Inventory, runner Runner, interval time.Duration, collector *metrics.Collector, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = config.DefaultScanInterval
	}
	s := &Scheduler{
		inventory:   inv,
		runner:      runner,
		interval:    interval,
		collector:   collector,
		logger:      logger.Component(log, "scheduler"),
		now:         time.Now,
		baseCtx:     context.Background(),
		subscribers: make(map[int]chan *Board),
	}
	s.board.Store(&Board{
		Countries:   []model.CountryRollup{},
		OfflineList: []model.OfflineEntry{},
		State:       StateIdle.String(),
	})
	return s
}

// Start runs one scan immediately and then one per interval until ctx is
// cancelled. Ticks that find a scan in progress are skipped. Once ctx is
// done an in-flight scan still completes but its result is discarded.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctxMu.Lock()
	s.baseCtx = ctx
	s.ctxMu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.logger.Info("Scheduler started", slog.Duration("interval", s.interval))
	defer s.logger.Info("Scheduler stopped")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stopped.Store(true)
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.begin() {
		s.logger.Debug("Scan in progress, skipping tick")
		s.collector.Emit(metrics.MetricEvent{Type: metrics.EventScanSkipped})
		return
	}
	s.wg.Add(1)
	go s.run(ctx, "timer")
}

// ScanNow requests an immediate scan. A request while a scan is running
// is coalesced into it unless force is set, in which case exactly one
// follow-up scan is queued.
func (s *Scheduler) ScanNow(force bool) TriggerResult {
	if s.stopped.Load() {
		return Rejected
	}

	if s.begin() {
		s.launch("manual")
		return Started
	}

	if force {
		s.queued.Store(true)
		// The running scan may have finished before it could see the flag.
		if s.begin() {
			s.queued.CompareAndSwap(true, false)
			s.launch("manual")
			return Started
		}
		return Queued
	}

	s.collector.Emit(metrics.MetricEvent{Type: metrics.EventScanSkipped})
	return Coalesced
}

func (s *Scheduler) launch(trigger string) {
	s.ctxMu.Lock()
	ctx := s.baseCtx
	s.ctxMu.Unlock()

	s.wg.Add(1)
	go s.run(ctx, trigger)
}

// Current returns the latest board. It never blocks.
func (s *Scheduler) Current() *Board {
	return s.board.Load()
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Subscribe returns a channel that receives the current board and every
// board published afterwards. Slow readers only see the latest one.
// Call cancel to release the subscription.
func (s *Scheduler) Subscribe() (<-chan *Board, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++

	ch := make(chan *Board, 1)
	ch <- s.board.Load()
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
		})
	}
}

// Wait blocks until the loop and every in-flight scan have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) begin() bool {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateScanning)) {
		return false
	}
	s.update(func(b *Board) { b.State = StateScanning.String() })
	return true
}

func (s *Scheduler) run(ctx context.Context, trigger string) {
	defer s.wg.Done()

	for {
		s.guardedScan(ctx, trigger)

		if !s.queued.CompareAndSwap(true, false) || s.stopped.Load() {
			return
		}
		// A manual scan that started in between serves the queued request.
		if !s.begin() {
			return
		}
		trigger = "queued"
	}
}

// guardedScan always returns the scheduler to idle, even if the scan panics.
func (s *Scheduler) guardedScan(ctx context.Context, trigger string) {
	defer func() {
		s.state.Store(int32(StateIdle))
		s.update(func(b *Board) { b.State = StateIdle.String() })
	}()
	defer func() {
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("scan panicked: %v", r))
		}
	}()

	s.scan(ctx, trigger)
}

func (s *Scheduler) scan(ctx context.Context, trigger string) {
	start := s.now()
	s.collector.Emit(metrics.MetricEvent{Type: metrics.EventScanStarted})
	s.logger.Debug("Scan started", slog.String("trigger", trigger))

	scanCtx := context.WithoutCancel(ctx)

	targets := s.inventory.Flatten(scanCtx)
	result, err := s.runner.RunBatch(scanCtx, targets)

	if s.stopped.Load() || ctx.Err() != nil {
		s.logger.Info("Discarding scan finished after shutdown", slog.String("trigger", trigger))
		return
	}

	if err != nil {
		s.collector.Emit(metrics.MetricEvent{Type: metrics.EventScanFailed})
		s.fail(err)
		return
	}

	rollups, online, offline := aggregate.Aggregate(result.Targets, result.Outcomes)
	transitions := diff(s.Current().Result, result)

	s.update(func(b *Board) {
		*b = Board{
			Countries:   rollups,
			Online:      online,
			Offline:     offline,
			Total:       online + offline,
			Source:      result.Source,
			OfflineList: aggregate.OfflineList(result.Targets, result.Outcomes),
			Transitions: transitions,
			UpdatedAt:   result.CompletedAt,
			State:       b.State,
			Result:      result,
		}
	})

	duration := s.now().Sub(start)
	s.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventScanCompleted,
		Duration: duration,
		Online:   online,
		Offline:  offline,
		Source:   result.Source,
	})

	s.logger.Info("Scan completed",
		slog.String("trigger", trigger),
		slog.Int("total", online+offline),
		slog.Int("online", online),
		slog.Int("offline", offline),
		slog.Int("changed", len(transitions)),
		slog.String("source", result.Source),
		slog.Duration("took", duration))

	for _, t := range transitions {
		s.logger.Debug("Target changed status",
			slog.String("target", t.ID),
			slog.String("from", string(t.From)),
			slog.String("to", string(t.To)))
	}
}

// fail keeps the previous board and only records the error.
func (s *Scheduler) fail(err error) {
	s.logger.Warn("Scan failed, keeping previous board", slog.Any("err", err))
	at := s.now()
	s.update(func(b *Board) {
		b.LastError = err.Error()
		b.LastErrorAt = at
	})
}

// update publishes a modified copy of the current board.
func (s *Scheduler) update(mutate func(b *Board)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.board.Load()
	mutate(&next)
	s.board.Store(&next)

	for _, ch := range s.subscribers {
		select {
		case ch <- &next:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- &next:
			default:
			}
		}
	}
}
