package strategy

import (
	"fmt"

	"github.com/angeloszaimis/fleetwatch/config"
	"github.com/angeloszaimis/fleetwatch/internal/backend"
)

type Strategy interface {
	Order(endpoints []*backend.Endpoint) []*backend.Endpoint
}

// FromName returns the strategy configured under name.
func FromName(name string) (Strategy, error) {
	switch name {
	case config.StrategyOrdered, "":
		return NewOrderedStrategy(), nil
	case config.StrategyRoundRobin:
		return NewRoundRobinStrategy(), nil
	case config.StrategyLeastResponse:
		return NewLeastResponseStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown endpoint strategy %q", name)
	}
}

// healthyFirst stably partitions endpoints into healthy then unhealthy.
func healthyFirst(endpoints []*backend.Endpoint) []*backend.Endpoint {
	ordered := make([]*backend.Endpoint, 0, len(endpoints))
	var unhealthy []*backend.Endpoint

	for _, e := range endpoints {
		if e.IsHealthy() {
			ordered = append(ordered, e)
			continue
		}
		unhealthy = append(unhealthy, e)
	}

	return append(ordered, unhealthy...)
}
