package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/angeloszaimis/fleetwatch/internal/ledger"
)

const maxOfflineRows = 10
const maxHistoryRows = 5

func renderHeader(app *App) string {
	width := app.width
	if width <= 0 {
		width = 80
	}

	baseURL := ""
	if app.client != nil {
		baseURL = app.client.BaseURL()
	}

	left := "fleetwatch " + baseURL
	var right string

	switch {
	case app.connState == stateDisconnected && app.lastError != nil:
		msg := app.lastError.Error()
		if len(msg) > 40 {
			msg = msg[:40] + "..."
		}
		right = StyleError.Render("● DISCONNECTED  " + msg)
	case app.status == nil:
		right = StyleDim.Render("Connecting...")
	default:
		right = StyleGreen.Render("● " + strings.ToUpper(app.status.State))
	}

	if !app.lastUpdated.IsZero() {
		right += StyleDim.Render("  updated " + humanize.RelTime(app.lastUpdated, app.now(), "ago", "from now"))
	} else if app.status != nil {
		right += StyleDim.Render("  no scan yet")
	}

	spacing := width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if spacing < 1 {
		spacing = 1
	}

	return StyleHeader.Width(width).Render(left + strings.Repeat(" ", spacing) + right)
}

func renderTotals(app *App) string {
	s := app.status
	pct := ledger.Availability(s.Online, s.Total)
	line := fmt.Sprintf("Total %d   Online %s   Offline %s   Availability %s",
		s.Total,
		StyleGreen.Render(fmt.Sprint(s.Online)),
		StyleRed.Render(fmt.Sprint(s.Offline)),
		AvailabilityStyle(pct).Render(fmt.Sprintf("%.1f%%", pct)))

	if s.Source != "" {
		line += StyleDim.Render("   via " + s.Source)
	}
	if s.LastError != "" {
		line += "\n" + StyleError.Render("Last scan failed: "+s.LastError)
	}
	return line
}

func renderCountries(app *App) string {
	var b strings.Builder
	b.WriteString(StyleSection.Render("Countries"))

	if len(app.status.Countries) == 0 {
		b.WriteString("\n" + StyleDim.Render("  no targets"))
		return b.String()
	}

	for i, c := range app.status.Countries {
		marker := "  "
		if i == app.cursor {
			marker = "> "
		}
		fold := "+"
		if app.expanded[c.Country] {
			fold = "-"
		}
		name := c.Country
		if c.Virtual {
			name += " (virtual)"
		}

		row := fmt.Sprintf("%s%s %-24s %4d/%-4d online", marker, fold, name, c.Online(), c.Total)
		if c.Offline > 0 {
			row += "  " + StyleRed.Render(fmt.Sprintf("%d offline", c.Offline))
		}
		if i == app.cursor {
			row = StyleSelected.Render(row)
		}
		b.WriteString("\n" + row)

		if !app.expanded[c.Country] {
			continue
		}
		for _, club := range c.Clubs {
			clubRow := fmt.Sprintf("      %-22s %4d/%-4d", club.Club, club.Online(), club.Total)
			if club.Offline > 0 {
				clubRow = StyleYellow.Render(clubRow)
			}
			b.WriteString("\n" + clubRow)
		}
	}
	return b.String()
}

func renderOffline(app *App) string {
	var b strings.Builder
	b.WriteString(StyleSection.Render("Offline"))

	list := app.status.OfflineList
	if len(list) == 0 {
		b.WriteString("\n" + StyleGreen.Render("  everything is reachable"))
		return b.String()
	}

	for i, e := range list {
		if i == maxOfflineRows {
			b.WriteString("\n" + StyleDim.Render(fmt.Sprintf("  … and %d more", len(list)-maxOfflineRows)))
			break
		}
		b.WriteString("\n" + StyleRed.Render(fmt.Sprintf("  %-16s %-20s %-16s %s", e.Country, e.Club, e.Name, e.Address)))
	}
	return b.String()
}

func renderHistory(app *App) string {
	var b strings.Builder
	b.WriteString(StyleSection.Render(fmt.Sprintf("Snapshots (%d)", len(app.history))))

	if len(app.history) == 0 {
		b.WriteString("\n" + StyleDim.Render("  press s to take one"))
		return b.String()
	}

	for i, r := range app.history {
		if i == maxHistoryRows {
			break
		}
		b.WriteString(fmt.Sprintf("\n  %-20s %s  %d/%d online",
			humanize.RelTime(r.Timestamp, app.now(), "ago", "from now"),
			AvailabilityStyle(r.Availability).Render(r.AvailabilityString()+"%"),
			r.Online, r.Total))
	}
	return b.String()
}

func renderFooter(app *App) string {
	width := app.width
	if width <= 0 {
		width = 80
	}
	text := "? for help"
	if app.showHelp {
		text = helpText
	}
	return StyleDim.Width(width).Render(text)
}
