package model

import "time"

// ScanResult is a complete pass over a batch of targets. Every target has
// exactly one entry in Outcomes.
type ScanResult struct {
	Targets     []ProbeTarget           `json:"targets"`
	Outcomes    map[string]ProbeOutcome `json:"outcomes"`
	CompletedAt time.Time               `json:"completed_at"`
	// Source is "local", "batch" or "batch+fallback".
	Source string `json:"source,omitempty"`
}

// StatusOf returns the recorded status for id. Targets without an outcome
// count as offline.
func (r *ScanResult) StatusOf(id string) Status {
	if r == nil {
		return StatusOffline
	}
	if o, ok := r.Outcomes[id]; ok && o.Online() {
		return StatusOnline
	}
	return StatusOffline
}

// Online counts targets with an online outcome.
func (r *ScanResult) Online() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, t := range r.Targets {
		if r.StatusOf(t.ID) == StatusOnline {
			n++
		}
	}
	return n
}

// Offline counts every target that is not online.
func (r *ScanResult) Offline() int {
	if r == nil {
		return 0
	}
	return len(r.Targets) - r.Online()
}

// Total is the number of targets in the batch.
func (r *ScanResult) Total() int {
	if r == nil {
		return 0
	}
	return len(r.Targets)
}
