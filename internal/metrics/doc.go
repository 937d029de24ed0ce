// Package metrics collects runtime statistics about fleet scans.
//
// It uses a channel-based event pipeline to asynchronously record:
//   - Scans started, completed, skipped (overlap guard) and failed
//   - Scan duration with percentile calculations (P50, P95, P99)
//   - Which probe tier decided each outcome
//   - Batch endpoint failures
//   - Online/offline totals of the latest completed scan
//
// The collector runs in a dedicated goroutine. Producers call Emit, which
// never blocks: when the buffer is full the event is dropped so probing is
// never slowed down by bookkeeping.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventScanCompleted,
//		Duration: 1800 * time.Millisecond,
//		Online:   118,
//		Offline:  2,
//	})
//
//	snapshot := collector.Snapshot()
//
// On shutdown the collector drains buffered events before stopping.
package metrics
