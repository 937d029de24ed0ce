package handler_test

import (
	"context"
	"errors"
	"sync"

	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/internal/orchestrator"
	"github.com/angeloszaimis/fleetwatch/internal/scheduler"
)

type fakeScanner struct {
	mu      sync.Mutex
	board   *scheduler.Board
	result  scheduler.TriggerResult
	forced  []bool
	updates chan *scheduler.Board
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{
		board:   &scheduler.Board{Countries: []model.CountryRollup{}, State: "idle"},
		result:  scheduler.Started,
		updates: make(chan *scheduler.Board, 4),
	}
}

func (f *fakeScanner) Current() *scheduler.Board {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.board
}

func (f *fakeScanner) ScanNow(force bool) scheduler.TriggerResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced = append(f.forced, force)
	return f.result
}

func (f *fakeScanner) Subscribe() (<-chan *scheduler.Board, func()) {
	f.updates <- f.Current()
	return f.updates, func() {}
}

func (f *fakeScanner) publish(b *scheduler.Board) {
	f.mu.Lock()
	f.board = b
	f.mu.Unlock()
	f.updates <- b
}

type fakeProber struct {
	endpoints []orchestrator.EndpointStatus
	items     []orchestrator.BatchItem
}

func (f *fakeProber) Answer(_ context.Context, items []orchestrator.BatchItem) ([]orchestrator.BatchVerdict, error) {
	f.items = items
	verdicts := make([]orchestrator.BatchVerdict, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			return nil, errors.New("batch item without id")
		}
		status := model.StatusOnline
		if item.IP == "N/A" {
			status = model.StatusOffline
		}
		verdicts = append(verdicts, orchestrator.BatchVerdict{ID: item.ID, Status: status})
	}
	return verdicts, nil
}

func (f *fakeProber) Endpoints() []orchestrator.EndpointStatus {
	return f.endpoints
}

func completedBoard(total, offline int) *scheduler.Board {
	result := &model.ScanResult{Outcomes: map[string]model.ProbeOutcome{}}
	for i := 0; i < total; i++ {
		id := string(rune('a' + i))
		result.Targets = append(result.Targets, model.ProbeTarget{ID: id, Name: id, Club: "A", Country: "Spain"})
		status := model.StatusOnline
		if i < offline {
			status = model.StatusOffline
		}
		result.Outcomes[id] = model.ProbeOutcome{ID: id, Status: status}
	}
	return &scheduler.Board{
		Countries: []model.CountryRollup{{Country: "Spain", Total: total, Offline: offline,
			Clubs: []model.ClubRollup{{Club: "A", Total: total, Offline: offline}}}},
		Online:  total - offline,
		Offline: offline,
		Total:   total,
		State:   "idle",
		Result:  result,
	}
}
