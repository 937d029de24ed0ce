package healthcheck

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FetchTier issues a plain GET to the target and treats any settled
// response as online, whatever its status code. Only a transport-level
// failure counts as offline.
//
// This is an approximation: a host that answers with an error page, or a
// middlebox answering on its behalf, looks exactly like a healthy server.
// It exists for the fallback path only and is never part of the batch
// endpoint's prober.
type FetchTier struct {
	timeout time.Duration
	client  *http.Client
}

func NewFetchTier(timeout time.Duration) *FetchTier {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // reachability only, the body is discarded
	}
	transport.DisableKeepAlives = true

	return &FetchTier{
		timeout: timeout,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (t *FetchTier) Name() string           { return TierFetch }
func (t *FetchTier) Timeout() time.Duration { return t.timeout }

func (t *FetchTier) Probe(ctx context.Context, address string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL(address), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.Body.Close()
}

func fetchURL(address string) string {
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return address
	}
	host, port := splitAddress(address)
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return "http://" + host + "/"
}
