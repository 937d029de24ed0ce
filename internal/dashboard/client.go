package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/internal/orchestrator"
	"github.com/angeloszaimis/fleetwatch/internal/scheduler"
)

const maxResponseBytes = 8 << 20

// Status mirrors GET /api/status.
type Status struct {
	scheduler.Board
	Endpoints []orchestrator.EndpointStatus `json:"endpoints"`
	Snapshots int                           `json:"snapshots"`
}

// Client is the part of the monitor API the dashboard uses.
type Client interface {
	Status(ctx context.Context) (*Status, error)
	Scan(ctx context.Context, force bool) (scheduler.TriggerResult, error)
	Snapshot(ctx context.Context) (*model.SnapshotReport, error)
	Snapshots(ctx context.Context) ([]model.SnapshotReport, error)
	ClearSnapshots(ctx context.Context) error
	BaseURL() string
}

// APIClient talks to a running `fleetwatch serve`.
type APIClient struct {
	http    *http.Client
	baseURL string
}

func NewAPIClient(baseURL string, timeout time.Duration) (*APIClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (c *APIClient) BaseURL() string {
	return c.baseURL
}

func (c *APIClient) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/api/status", http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *APIClient) Scan(ctx context.Context, force bool) (scheduler.TriggerResult, error) {
	path := "/api/scan"
	if force {
		path += "?force=true"
	}
	var resp struct {
		Result scheduler.TriggerResult `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, path, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.Result, nil
}

func (c *APIClient) Snapshot(ctx context.Context) (*model.SnapshotReport, error) {
	var report model.SnapshotReport
	if err := c.do(ctx, http.MethodPost, "/api/snapshots", http.StatusCreated, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *APIClient) Snapshots(ctx context.Context) ([]model.SnapshotReport, error) {
	var reports []model.SnapshotReport
	if err := c.do(ctx, http.MethodGet, "/api/snapshots", http.StatusOK, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (c *APIClient) ClearSnapshots(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/snapshots", http.StatusNoContent, nil)
}

// do sends a request and decodes the body into out unless out is nil.
func (c *APIClient) do(ctx context.Context, method, path string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != want {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
