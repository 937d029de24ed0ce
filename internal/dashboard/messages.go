package dashboard

import (
	"time"

	"github.com/angeloszaimis/fleetwatch/internal/model"
)

// StatusMsg delivers a successful poll.
type StatusMsg struct {
	Status  *Status
	History []model.SnapshotReport
}

// FetchErrorMsg signals a poll failure.
type FetchErrorMsg struct{ Err error }

// ActionMsg reports the outcome of a key-triggered API call.
type ActionMsg struct {
	Notice string
	Err    error
}

// TickMsg triggers the next scheduled poll.
type TickMsg time.Time
