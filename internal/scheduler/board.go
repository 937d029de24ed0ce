package scheduler

import (
	"time"

	"github.com/angeloszaimis/fleetwatch/internal/model"
)

// Board is the published view of the latest completed scan. Boards are
// immutable once published.
type Board struct {
	Countries   []model.CountryRollup `json:"countries"`
	Online      int                   `json:"online"`
	Offline     int                   `json:"offline"`
	Total       int                   `json:"total"`
	Source      string                `json:"source,omitempty"`
	OfflineList []model.OfflineEntry  `json:"offline_list"`
	Transitions []Transition          `json:"transitions,omitempty"`
	UpdatedAt   time.Time             `json:"updated_at"`
	State       string                `json:"state"`
	LastError   string                `json:"last_error,omitempty"`
	LastErrorAt time.Time             `json:"last_error_at,omitzero"`

	Result *model.ScanResult `json:"-"`
}

// HasResult reports whether at least one scan has completed.
func (b *Board) HasResult() bool {
	return b != nil && b.Result != nil
}

// Transition is a target whose status differs from the previous scan.
type Transition struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Club    string       `json:"club"`
	Country string       `json:"country"`
	From    model.Status `json:"from"`
	To      model.Status `json:"to"`
}

// diff compares two results target by target. Targets absent from prev are
// not transitions.
func diff(prev, next *model.ScanResult) []Transition {
	if prev == nil || next == nil {
		return nil
	}

	known := make(map[string]struct{}, len(prev.Targets))
	for _, t := range prev.Targets {
		known[t.ID] = struct{}{}
	}

	var out []Transition
	for _, t := range next.Targets {
		if _, ok := known[t.ID]; !ok {
			continue
		}
		from, to := prev.StatusOf(t.ID), next.StatusOf(t.ID)
		if from == to {
			continue
		}
		out = append(out, Transition{
			ID:      t.ID,
			Name:    t.Name,
			Club:    t.Club,
			Country: t.Country,
			From:    from,
			To:      to,
		})
	}
	return out
}
