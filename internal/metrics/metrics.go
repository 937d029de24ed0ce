package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxDurationSamples = 1000

type Metrics struct {
	mutex            sync.RWMutex
	scansStarted     int64
	scansCompleted   int64
	scansSkipped     int64
	scansFailed      int64
	scanDurations    []time.Duration
	tierHits         map[string]int64
	endpointFailures map[string]int64
	lastOnline       int
	lastOffline      int
	lastSource       string
	lastScanAt       time.Time
	startTime        time.Time
}

type Snapshot struct {
	Uptime           time.Duration    `json:"uptime"`
	ScansStarted     int64            `json:"scans_started"`
	ScansCompleted   int64            `json:"scans_completed"`
	ScansSkipped     int64            `json:"scans_skipped"`
	ScansFailed      int64            `json:"scans_failed"`
	AvgScan          time.Duration    `json:"avg_scan"`
	P50Scan          time.Duration    `json:"p50_scan"`
	P95Scan          time.Duration    `json:"p95_scan"`
	P99Scan          time.Duration    `json:"p99_scan"`
	TierHits         map[string]int64 `json:"tier_hits"`
	EndpointFailures map[string]int64 `json:"endpoint_failures"`
	LastOnline       int              `json:"last_online"`
	LastOffline      int              `json:"last_offline"`
	LastSource       string           `json:"last_source,omitempty"`
	LastScanAt       time.Time        `json:"last_scan_at"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		tierHits:         make(map[string]int64),
		endpointFailures: make(map[string]int64),
		startTime:        time.Now(),
	}
}

func (m *Metrics) RecordScanStarted() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.scansStarted++
}

func (m *Metrics) RecordScanSkipped() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.scansSkipped++
}

func (m *Metrics) RecordScanFailed() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.scansFailed++
}

func (m *Metrics) RecordScanCompleted(duration time.Duration, online, offline int, source string, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.scansCompleted++
	m.scanDurations = append(m.scanDurations, duration)
	if len(m.scanDurations) > maxDurationSamples {
		m.scanDurations = m.scanDurations[1:]
	}
	m.lastOnline = online
	m.lastOffline = offline
	m.lastSource = source
	m.lastScanAt = at
}

func (m *Metrics) RecordTier(tier string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tierHits[tier]++
}

func (m *Metrics) RecordEndpointFailure(endpoint string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.endpointFailures[endpoint]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:           time.Since(m.startTime),
		ScansStarted:     m.scansStarted,
		ScansCompleted:   m.scansCompleted,
		ScansSkipped:     m.scansSkipped,
		ScansFailed:      m.scansFailed,
		TierHits:         make(map[string]int64, len(m.tierHits)),
		EndpointFailures: make(map[string]int64, len(m.endpointFailures)),
		LastOnline:       m.lastOnline,
		LastOffline:      m.lastOffline,
		LastSource:       m.lastSource,
		LastScanAt:       m.lastScanAt,
	}
	for tier, n := range m.tierHits {
		snap.TierHits[tier] = n
	}
	for endpoint, n := range m.endpointFailures {
		snap.EndpointFailures[endpoint] = n
	}

	if len(m.scanDurations) > 0 {
		sorted := make([]time.Duration, len(m.scanDurations))
		copy(sorted, m.scanDurations)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.AvgScan = average(sorted)
		snap.P50Scan = percentile(sorted, 0.50)
		snap.P95Scan = percentile(sorted, 0.95)
		snap.P99Scan = percentile(sorted, 0.99)
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
