// Package orchestrator runs one probe pass over a batch of targets and
// returns a complete ScanResult or an error, never a partial result.
//
// With batch endpoints configured the whole batch is submitted remotely,
// one endpoint at a time behind a circuit breaker. Targets the endpoint
// could not answer for are probed locally with the client prober when
// client fallback is enabled. Without endpoints every target is probed
// locally with the server prober.
//
// Local probing fans out through an errgroup bounded by max_concurrency.
// All probes of a pass share one deadline; a probe that has not reported
// by then is recorded offline.
package orchestrator
