package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventScanStarted    EventType = "scan_started"
	EventScanCompleted  EventType = "scan_completed"
	EventScanSkipped    EventType = "scan_skipped"
	EventScanFailed     EventType = "scan_failed"
	EventProbeCompleted EventType = "probe_completed"
	EventEndpointFailed EventType = "endpoint_failed"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Duration  time.Duration
	Online    int
	Offline   int
	Source    string
	Tier      string
	Endpoint  string
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues an event without blocking. A nil collector ignores it.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventScanStarted:
		c.metrics.RecordScanStarted()

	case EventScanCompleted:
		c.metrics.RecordScanCompleted(event.Duration, event.Online, event.Offline, event.Source, event.Timestamp)

	case EventScanSkipped:
		c.metrics.RecordScanSkipped()

	case EventScanFailed:
		c.metrics.RecordScanFailed()

	case EventProbeCompleted:
		c.metrics.RecordTier(event.Tier)

	case EventEndpointFailed:
		c.metrics.RecordEndpointFailure(event.Endpoint)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
