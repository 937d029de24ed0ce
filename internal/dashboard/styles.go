package dashboard

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#10b981")
	colorYellow = lipgloss.Color("#f59e0b")
	colorRed    = lipgloss.Color("#ef4444")
	colorGray   = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f8fafc")
	colorDark   = lipgloss.Color("#1e293b")
)

var StyleHeader = lipgloss.NewStyle().
	Background(colorDark).
	Foreground(colorWhite).
	Padding(0, 1)

var StyleSection = lipgloss.NewStyle().
	Bold(true).
	Underline(true).
	Foreground(colorGray)

var (
	StyleSelected = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	StyleError    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	StyleDim      = lipgloss.NewStyle().Foreground(colorGray)
	StyleGreen    = lipgloss.NewStyle().Foreground(colorGreen)
	StyleYellow   = lipgloss.NewStyle().Foreground(colorYellow)
	StyleRed      = lipgloss.NewStyle().Foreground(colorRed)
)

// AvailabilityStyle colours a percentage: green from 99, yellow from 90,
// red below.
func AvailabilityStyle(pct float64) lipgloss.Style {
	switch {
	case pct >= 99:
		return StyleGreen
	case pct >= 90:
		return StyleYellow
	default:
		return StyleRed
	}
}
