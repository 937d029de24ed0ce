package orchestrator_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angeloszaimis/fleetwatch/internal/model"
	"github.com/angeloszaimis/fleetwatch/internal/orchestrator"
)

type behaviour int

const (
	answerOnline behaviour = iota
	answerOffline
	hang
	explode
	slow
)

// fakeProber answers per address. Unknown addresses are online.
type fakeProber struct {
	budget  time.Duration
	plan    map[string]behaviour
	release chan struct{}
	calls   atomic.Int32

	mu    sync.Mutex
	seen  []string
	delay time.Duration
}

func newFakeProber(budget time.Duration) *fakeProber {
	return &fakeProber{
		budget:  budget,
		plan:    map[string]behaviour{},
		release: make(chan struct{}),
		delay:   10 * time.Millisecond,
	}
}

func (f *fakeProber) Budget() time.Duration { return f.budget }

func (f *fakeProber) Probe(ctx context.Context, t model.ProbeTarget) model.ProbeOutcome {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, t.ID)
	f.mu.Unlock()

	switch f.plan[t.Address] {
	case answerOffline:
		return model.ProbeOutcome{ID: t.ID, Status: model.StatusOffline, Tier: "fake"}
	case hang:
		<-f.release
		return model.ProbeOutcome{ID: t.ID, Status: model.StatusOnline, Tier: "fake"}
	case explode:
		panic("boom")
	case slow:
		time.Sleep(f.delay)
	}
	return model.ProbeOutcome{ID: t.ID, Status: model.StatusOnline, Tier: "fake"}
}

func (f *fakeProber) probed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

// batchServer is a stand-in remote batch endpoint.
type batchServer struct {
	*httptest.Server
	hits    atomic.Int32
	fail    atomic.Bool
	offline map[string]bool
	omit    map[string]bool
}

func newBatchServer() *batchServer {
	b := &batchServer{offline: map[string]bool{}, omit: map[string]bool{}}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.hits.Add(1)
		if b.fail.Load() {
			http.Error(w, "probe fleet unavailable", http.StatusBadGateway)
			return
		}

		var items []orchestrator.BatchItem
		if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		verdicts := make([]orchestrator.BatchVerdict, 0, len(items))
		for _, item := range items {
			if b.omit[item.ID] {
				continue
			}
			status := model.StatusOnline
			if b.offline[item.ID] {
				status = model.StatusOffline
			}
			verdicts = append(verdicts, orchestrator.BatchVerdict{ID: item.ID, Status: status})
		}
		_ = json.NewEncoder(w).Encode(verdicts)
	}))
	return b
}

func targets(n int) []model.ProbeTarget {
	out := make([]model.ProbeTarget, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.ProbeTarget{
			ID:      fmt.Sprintf("es/club/%d", i),
			Address: fmt.Sprintf("10.0.0.%d", i),
			Name:    fmt.Sprintf("srv-%d", i),
			Club:    "club",
			Country: "Spain",
		})
	}
	return out
}

