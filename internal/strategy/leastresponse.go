package strategy

import (
	"sort"
	"time"

	"github.com/angeloszaimis/fleetwatch/internal/backend"
)

type leastResponseStrategy struct{}

// Order puts endpoints without samples first, then ascending by EWMA scaled
// by the batches already in flight.
func (l *leastResponseStrategy) Order(endpoints []*backend.Endpoint) []*backend.Endpoint {
	ordered := healthyFirst(endpoints)

	scores := make(map[*backend.Endpoint]time.Duration, len(ordered))
	for _, e := range ordered {
		scores[e] = e.EWMATime() * (time.Duration(e.InFlight()) + 1)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.IsHealthy() != b.IsHealthy() {
			return a.IsHealthy()
		}
		return scores[a] < scores[b]
	})

	return ordered
}

func NewLeastResponseStrategy() Strategy {
	return &leastResponseStrategy{}
}
