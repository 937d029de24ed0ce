// Package dashboard is the terminal front end of the monitor. It polls the
// HTTP API, renders country rollups with drill-down into clubs, the offline
// list and the snapshot history, and triggers scans and snapshots.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/angeloszaimis/fleetwatch/internal/model"
)

type connState int

const (
	stateConnected connState = iota
	stateDisconnected
)

// App is the root Bubble Tea model.
type App struct {
	client       Client
	pollInterval time.Duration

	fetching bool
	status   *Status
	history  []model.SnapshotReport

	connState        connState
	consecutiveFails int
	lastError        error
	// lastUpdated only moves on a successful poll, so a stale board shows.
	lastUpdated time.Time
	notice      string

	cursor   int
	expanded map[string]bool

	width, height int
	showHelp      bool
	now           func() time.Time
}

func NewApp(c Client, interval time.Duration) *App {
	return &App{
		client:       c,
		pollInterval: interval,
		connState:    stateDisconnected,
		fetching:     true, // Init() always issues an immediate fetchCmd
		expanded:     make(map[string]bool),
		now:          time.Now,
	}
}

func (app *App) Init() tea.Cmd {
	return fetchCmd(app.client, app.pollInterval)
}

func (app *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		app.width = msg.Width
		app.height = msg.Height

	case StatusMsg:
		app.fetching = false
		app.status = msg.Status
		app.history = msg.History
		app.consecutiveFails = 0
		app.lastError = nil
		app.connState = stateConnected
		if !msg.Status.UpdatedAt.IsZero() {
			app.lastUpdated = msg.Status.UpdatedAt
		}
		app.clampCursor()
		return app, tickCmd(app.pollInterval)

	case FetchErrorMsg:
		app.fetching = false
		app.consecutiveFails++
		app.lastError = msg.Err
		app.connState = stateDisconnected
		return app, tea.Tick(backoffDuration(app.consecutiveFails), func(t time.Time) tea.Msg {
			return TickMsg(t)
		})

	case ActionMsg:
		if msg.Err != nil {
			app.notice = StyleError.Render(msg.Err.Error())
			return app, nil
		}
		app.notice = msg.Notice
		return app, app.refresh()

	case TickMsg:
		return app, app.refresh()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return app, tea.Quit
		case key.Matches(msg, keys.Scan):
			return app, scanCmd(app.client, false)
		case key.Matches(msg, keys.ForceScan):
			return app, scanCmd(app.client, true)
		case key.Matches(msg, keys.Snapshot):
			return app, snapshotCmd(app.client)
		case key.Matches(msg, keys.Clear):
			return app, clearCmd(app.client)
		case key.Matches(msg, keys.Up):
			if app.cursor > 0 {
				app.cursor--
			}
		case key.Matches(msg, keys.Down):
			app.cursor++
			app.clampCursor()
		case key.Matches(msg, keys.Expand):
			if name := app.selectedCountry(); name != "" {
				app.expanded[name] = !app.expanded[name]
			}
		case key.Matches(msg, keys.Help):
			app.showHelp = !app.showHelp
		}
	}

	return app, nil
}

func (app *App) View() string {
	parts := []string{renderHeader(app)}

	if app.status != nil {
		parts = append(parts,
			renderTotals(app),
			renderCountries(app),
			renderOffline(app),
			renderHistory(app),
		)
	}
	if app.notice != "" {
		parts = append(parts, app.notice)
	}
	parts = append(parts, renderFooter(app))

	return strings.Join(parts, "\n")
}

// refresh starts a poll unless one is already in flight.
func (app *App) refresh() tea.Cmd {
	if app.fetching {
		return nil
	}
	app.fetching = true
	return fetchCmd(app.client, app.pollInterval)
}

func (app *App) selectedCountry() string {
	if app.status == nil || len(app.status.Countries) == 0 {
		return ""
	}
	return app.status.Countries[app.cursor].Country
}

func (app *App) clampCursor() {
	n := 0
	if app.status != nil {
		n = len(app.status.Countries)
	}
	if app.cursor >= n {
		app.cursor = n - 1
	}
	if app.cursor < 0 {
		app.cursor = 0
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchCmd polls the status and the snapshot history.
func fetchCmd(c Client, interval time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout(interval))
		defer cancel()

		status, err := c.Status(ctx)
		if err != nil {
			return FetchErrorMsg{Err: err}
		}
		history, err := c.Snapshots(ctx)
		if err != nil {
			return FetchErrorMsg{Err: err}
		}
		return StatusMsg{Status: status, History: history}
	}
}

func scanCmd(c Client, force bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		result, err := c.Scan(ctx, force)
		if err != nil {
			return ActionMsg{Err: err}
		}
		return ActionMsg{Notice: fmt.Sprintf("Scan %s", result)}
	}
}

func snapshotCmd(c Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		report, err := c.Snapshot(ctx)
		if err != nil {
			return ActionMsg{Err: err}
		}
		return ActionMsg{Notice: fmt.Sprintf("Snapshot taken: %s%% available", report.AvailabilityString())}
	}
}

func clearCmd(c Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := c.ClearSnapshots(ctx); err != nil {
			return ActionMsg{Err: err}
		}
		return ActionMsg{Notice: "Snapshot history cleared"}
	}
}

func requestTimeout(interval time.Duration) time.Duration {
	timeout := interval - 500*time.Millisecond
	if timeout < 500*time.Millisecond {
		timeout = 500 * time.Millisecond
	}
	return timeout
}

// backoffDuration returns min(2^fails seconds, 60s).
func backoffDuration(fails int) time.Duration {
	const maxBackoff = 60 * time.Second
	if fails <= 0 {
		return time.Second
	}
	if fails >= 6 {
		return maxBackoff
	}
	return time.Duration(1<<fails) * time.Second
}
