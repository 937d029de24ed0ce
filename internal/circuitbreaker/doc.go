// Package circuitbreaker guards remote batch probe endpoints.
//
// A breaker stops the orchestrator from waiting on an endpoint that keeps
// failing: after the failure threshold the circuit opens and calls are
// rejected with ErrOpen, so the scan goes straight to the next endpoint or
// to local probing. Once the reset timeout has passed, a single trial call
// is let through (HALF-OPEN); its result closes or re-opens the circuit.
//
//   - CLOSED: endpoint healthy, calls pass through
//   - OPEN: endpoint failing, calls rejected
//   - HALF-OPEN: one trial call in flight
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(3, time.Minute)
//	err := registry.GetBreaker(endpoint).Execute(func() error {
//	    return client.Probe(ctx, endpoint, items)
//	})
//	if errors.Is(err, circuitbreaker.ErrOpen) {
//	    // skip endpoint
//	}
package circuitbreaker
