package backend

import (
	"net/url"
	"sync"
	"time"
)

// Endpoint is one remote batch probe endpoint.
type Endpoint struct {
	url              *url.URL
	mutex            sync.Mutex
	isHealthy        bool
	inFlight         int
	ewmaResponseTime time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// New creates an Endpoint for u. Endpoints start healthy until a batch
// against them fails.
func New(u *url.URL) *Endpoint {
	return &Endpoint{
		url:       u,
		isHealthy: true,
	}
}

// Parse builds endpoints from raw URLs, keeping their order.
func Parse(raw []string) ([]*Endpoint, error) {
	endpoints := make([]*Endpoint, 0, len(raw))
	for _, r := range raw {
		u, err := url.Parse(r)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, New(u))
	}
	return endpoints, nil
}

func (e *Endpoint) URL() *url.URL {
	return e.url
}

func (e *Endpoint) String() string {
	return e.url.String()
}

func (e *Endpoint) IsHealthy() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.isHealthy
}

// SetHealthy updates the health flag and reports whether it changed.
func (e *Endpoint) SetHealthy(healthy bool) (changed bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.isHealthy == healthy {
		return false
	}

	e.isHealthy = healthy
	return true
}

func (e *Endpoint) IncrementInFlight() {
	e.mutex.Lock()
	e.inFlight++
	e.mutex.Unlock()
}

func (e *Endpoint) DecrementInFlight() {
	e.mutex.Lock()
	if e.inFlight > 0 {
		e.inFlight--
	}
	e.mutex.Unlock()
}

func (e *Endpoint) InFlight() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.inFlight
}

// RecordResponse folds a batch round-trip time into the EWMA.
func (e *Endpoint) RecordResponse(duration time.Duration) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.hasEWMA {
		e.ewmaResponseTime = duration
		e.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	e.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(e.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the smoothed round-trip time, or 0 before the first
// recorded batch.
func (e *Endpoint) EWMATime() time.Duration {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.hasEWMA {
		return 0
	}
	return e.ewmaResponseTime
}
