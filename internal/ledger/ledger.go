// Package ledger keeps a bounded, in-memory history of snapshot reports,
// most recent first.
package ledger

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angeloszaimis/fleetwatch/internal/aggregate"
	"github.com/angeloszaimis/fleetwatch/internal/model"
)

// DefaultCapacity is used when a non-positive capacity is given.
const DefaultCapacity = 50

// ErrNoScan is returned when a snapshot is requested before any scan completed.
var ErrNoScan = errors.New("no completed scan to snapshot")

type Ledger struct {
	mu       sync.RWMutex
	capacity int
	reports  []model.SnapshotReport
	now      func() time.Time
}

func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		reports:  make([]model.SnapshotReport, 0, capacity),
		now:      time.Now,
	}
}

// Snapshot freezes result into a report, prepends it to the history and
// evicts the oldest report past capacity.
func (l *Ledger) Snapshot(result *model.ScanResult) (model.SnapshotReport, error) {
	if result == nil {
		return model.SnapshotReport{}, ErrNoScan
	}

	total := result.Total()
	online := result.Online()
	report := model.SnapshotReport{
		ID:           uuid.NewString(),
		Timestamp:    l.now(),
		Total:        total,
		Online:       online,
		Offline:      total - online,
		OfflineList:  aggregate.OfflineList(result.Targets, result.Outcomes),
		Availability: Availability(online, total),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.reports = append([]model.SnapshotReport{report}, l.reports...)
	if len(l.reports) > l.capacity {
		l.reports = l.reports[:l.capacity]
	}

	return report, nil
}

// History returns a copy of the stored reports, most recent first.
func (l *Ledger) History() []model.SnapshotReport {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.SnapshotReport, len(l.reports))
	copy(out, l.reports)
	return out
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = l.reports[:0]
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.reports)
}

func (l *Ledger) Capacity() int {
	return l.capacity
}

// Availability is online/total as a percentage rounded to one decimal.
// Zero targets yield 0.
func Availability(online, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(online) / float64(total) * 100
	return math.Round(pct*10) / 10
}
