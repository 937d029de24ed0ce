package strategy

import (
	"sync/atomic"

	"github.com/angeloszaimis/fleetwatch/internal/backend"
)

type roundRobinStrategy struct {
	current uint64
}

func (rb *roundRobinStrategy) Order(endpoints []*backend.Endpoint) []*backend.Endpoint {
	if len(endpoints) == 0 {
		return nil
	}

	n := atomic.AddUint64(&rb.current, 1)
	start := int((n - 1) % uint64(len(endpoints)))

	rotated := make([]*backend.Endpoint, 0, len(endpoints))
	rotated = append(rotated, endpoints[start:]...)
	rotated = append(rotated, endpoints[:start]...)

	return healthyFirst(rotated)
}

func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{
		current: 0,
	}
}
