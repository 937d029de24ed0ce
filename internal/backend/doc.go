// Package backend tracks the remote batch probe endpoints: their health as
// seen by the orchestrator, in-flight batches, and an exponentially weighted
// moving average (EWMA) of batch round-trip times.
package backend
