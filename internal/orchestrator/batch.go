package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/fleetwatch/internal/backend"
	"github.com/angeloszaimis/fleetwatch/internal/circuitbreaker"
	"github.com/angeloszaimis/fleetwatch/internal/metrics"
	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/internal/strategy"
	"github.com/angeloszaimis/fleetwatch/pkg/logger"
)

const maxBatchResponseBytes = 8 << 20

// ErrBatchTransport means no batch endpoint produced an answer.
var ErrBatchTransport = errors.New("batch probe transport failure")

// BatchItem is one entry of a batch probe request.
type BatchItem struct {
	ID string `json:"id"`
	IP string `json:"ip"`
}

// BatchVerdict is one entry of a batch probe response.
type BatchVerdict struct {
	ID     string       `json:"id"`
	Status model.Status `json:"status"`
}

// EndpointStatus describes a batch endpoint for the status API.
type EndpointStatus struct {
	URL      string `json:"url"`
	Healthy  bool   `json:"healthy"`
	Breaker  string `json:"breaker"`
	InFlight int    `json:"in_flight"`
	EWMA     string `json:"ewma"`
}

// BatchClient submits batches to remote probe endpoints.
type BatchClient struct {
	client    *http.Client
	endpoints []*backend.Endpoint
	strategy  strategy.Strategy
	breakers  *circuitbreaker.Registry
	collector *metrics.Collector
	logger    *slog.Logger
}

func NewBatchClient(endpoints []*backend.Endpoint, strat strategy.Strategy, breakers *circuitbreaker.Registry, timeout time.Duration, collector *metrics.Collector, log *slog.Logger) *BatchClient {
	if strat == nil {
		strat = strategy.NewOrderedStrategy()
	}
	return &BatchClient{
		client:    &http.Client{Timeout: timeout},
		endpoints: endpoints,
		strategy:  strat,
		breakers:  breakers,
		collector: collector,
		logger:    logger.Component(log, "batch_client"),
	}
}

// Submit sends targets to the endpoints in strategy order and returns the
// verdicts of the first endpoint that answers. Ids the endpoint left out,
// or answered with an unknown status, are absent from the map.
func (c *BatchClient) Submit(ctx context.Context, targets []model.ProbeTarget) (map[string]model.Status, error) {
	items := make([]BatchItem, 0, len(targets))
	submitted := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		items = append(items, BatchItem{ID: t.ID, IP: t.Address})
		submitted[t.ID] = struct{}{}
	}

	body, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	var lastErr error
	for _, endpoint := range c.strategy.Order(c.endpoints) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var verdicts []BatchVerdict
		err := c.breakers.GetBreaker(endpoint.String()).Execute(func() error {
			var postErr error
			verdicts, postErr = c.post(ctx, endpoint, body)
			return postErr
		})
		if err != nil {
			lastErr = err
			c.markFailed(endpoint, err)
			continue
		}

		if endpoint.SetHealthy(true) {
			c.logger.Info("Batch endpoint recovered", slog.String("endpoint", endpoint.String()))
		}

		statuses := make(map[string]model.Status, len(verdicts))
		for _, v := range verdicts {
			if _, ok := submitted[v.ID]; !ok {
				continue
			}
			if v.Status != model.StatusOnline && v.Status != model.StatusOffline {
				continue
			}
			statuses[v.ID] = v.Status
		}
		return statuses, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no endpoints configured")
	}
	c.logger.Warn("Every batch endpoint failed",
		slog.Any("breakers", c.breakers.Stats()),
		slog.Any("err", lastErr))
	return nil, fmt.Errorf("%w: %w", ErrBatchTransport, lastErr)
}

func (c *BatchClient) post(ctx context.Context, endpoint *backend.Endpoint, body []byte) ([]BatchVerdict, error) {
	endpoint.IncrementInFlight()
	defer endpoint.DecrementInFlight()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("endpoint returned %s", resp.Status)
	}

	var verdicts []BatchVerdict
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBatchResponseBytes)).Decode(&verdicts); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}

	endpoint.RecordResponse(time.Since(start))
	return verdicts, nil
}

func (c *BatchClient) markFailed(endpoint *backend.Endpoint, err error) {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		c.logger.Debug("Skipping batch endpoint, circuit open", slog.String("endpoint", endpoint.String()))
		return
	}

	c.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventEndpointFailed,
		Endpoint: endpoint.String(),
	})

	if endpoint.SetHealthy(false) {
		c.logger.Warn("Batch endpoint down",
			slog.String("endpoint", endpoint.String()),
			slog.Any("err", err))
	}
}

// Endpoints reports the state of every configured endpoint in configuration
// order.
func (c *BatchClient) Endpoints() []EndpointStatus {
	out := make([]EndpointStatus, 0, len(c.endpoints))
	for _, e := range c.endpoints {
		out = append(out, EndpointStatus{
			URL:      e.String(),
			Healthy:  e.IsHealthy(),
			Breaker:  c.breakers.GetBreaker(e.String()).State().String(),
			InFlight: e.InFlight(),
			EWMA:     e.EWMATime().String(),
		})
	}
	return out
}
