package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/angeloszaimis/fleetwatch/config"
)

// ErrStoreUnavailable is returned when no central store is configured.
var ErrStoreUnavailable = errors.New("inventory store unavailable")

// Store fetches every club configuration at once, keyed by ClubKey.
type Store interface {
	FetchAll(ctx context.Context) (map[string][]config.ServerEntry, error)
}

// NopStore is used when no central store is configured.
type NopStore struct{}

func (NopStore) FetchAll(context.Context) (map[string][]config.ServerEntry, error) {
	return nil, ErrStoreUnavailable
}

// HTTPStore reads the club mapping as a JSON object from a configuration
// service.
type HTTPStore struct {
	url    string
	client *http.Client
}

// NewHTTPStore returns a store reading from url with the given timeout.
func NewHTTPStore(url string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) FetchAll(ctx context.Context) (map[string][]config.ServerEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch club configurations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch club configurations: unexpected status %d", resp.StatusCode)
	}

	const maxBody = 8 * 1024 * 1024
	var mapping map[string][]config.ServerEntry
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&mapping); err != nil {
		return nil, fmt.Errorf("decode club configurations: %w", err)
	}
	return mapping, nil
}

// FileStore reads the club mapping from a YAML document on disk. The file
// is re-read on every fetch so edits apply to the next scan.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) FetchAll(context.Context) (map[string][]config.ServerEntry, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read club configurations: %w", err)
	}

	var mapping map[string][]config.ServerEntry
	if err := yaml.Unmarshal(content, &mapping); err != nil {
		return nil, fmt.Errorf("parse club configurations: %w", err)
	}
	return mapping, nil
}

// NewStore picks the store implied by the inventory config: the HTTP store
// wins over the file store, and neither means NopStore.
func NewStore(cfg config.InventoryConfig) Store {
	switch {
	case cfg.StoreURL != "":
		return NewHTTPStore(cfg.StoreURL, cfg.StoreTimeoutDuration())
	case cfg.StoreFile != "":
		return NewFileStore(cfg.StoreFile)
	default:
		return NopStore{}
	}
}
