package model

import (
	"strconv"
	"time"
)

// OfflineEntry identifies an offline target in a report.
type OfflineEntry struct {
	Club    string `json:"club"`
	Country string `json:"country"`
	Name    string `json:"name"`
	Address string `json:"ip"`
}

// SnapshotReport is an immutable point-in-time summary of one scan.
type SnapshotReport struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Total        int            `json:"total"`
	Online       int            `json:"online"`
	Offline      int            `json:"offline"`
	OfflineList  []OfflineEntry `json:"offline_list"`
	Availability float64        `json:"availability"`
}

// AvailabilityString formats the availability percentage with one decimal.
func (r SnapshotReport) AvailabilityString() string {
	return strconv.FormatFloat(r.Availability, 'f', 1, 64)
}
