package strategy

import "github.com/angeloszaimis/fleetwatch/internal/backend"

type orderedStrategy struct{}

func (o *orderedStrategy) Order(endpoints []*backend.Endpoint) []*backend.Endpoint {
	return healthyFirst(endpoints)
}

func NewOrderedStrategy() Strategy {
	return &orderedStrategy{}
}
