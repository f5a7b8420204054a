// Package tui is the HerboLive terminal interface: a paginated catalog of
// plant cards, a search tab fed by the progressive search coordinator, and a
// detail modal.
package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	LightBackground = lipgloss.Color("#f6f7f2")
	LightForeground = lipgloss.Color("#1f2d1b")
	LightPrimary    = lipgloss.Color("#2e5e2a") // herb green
	LightAccent     = lipgloss.Color("#8bc34a")
	LightMuted      = lipgloss.Color("#7b8a72")
	LightBorder     = lipgloss.Color("#c9d3c0")
	LightCard       = lipgloss.Color("#ffffff")

	DarkBackground = lipgloss.Color("#121a12")
	DarkForeground = lipgloss.Color("#eef2ea")
	DarkPrimary    = lipgloss.Color("#8bc34a")
	DarkAccent     = lipgloss.Color("#c5e1a5")
	DarkMuted      = lipgloss.Color("#6f7f68")
	DarkBorder     = lipgloss.Color("#2f4a2c")
	DarkCard       = lipgloss.Color("#1a261a")

	Destructive = lipgloss.Color("#e53935")
	Warning     = lipgloss.Color("#ffc107")
	Info        = lipgloss.Color("#2196f3")
)

// Theme holds the current color scheme.
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light theme.
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
	}
}

// DarkTheme returns the dark theme.
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// DetectTheme picks the dark theme when COLORFGBG reports a dark background
// or HERBOLIVE_DARK_MODE=1, and the light theme otherwise.
func DetectTheme() Theme {
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	if os.Getenv("HERBOLIVE_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the styled components.
type Styles struct {
	Theme Theme

	Header    lipgloss.Style
	Footer    lipgloss.Style
	TabActive lipgloss.Style
	Tab       lipgloss.Style

	Card         lipgloss.Style
	CardSelected lipgloss.Style
	CardTitle    lipgloss.Style
	CardSubtitle lipgloss.Style

	Muted   lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Spinner lipgloss.Style

	PageCurrent lipgloss.Style
	Page        lipgloss.Style

	Modal lipgloss.Style
}

// NewStyles creates the styles for theme.
func NewStyles(theme Theme) Styles {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Padding(0, 1)

	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),
		TabActive: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			Underline(true).
			Padding(0, 1),
		Tab: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Card:         card,
		CardSelected: card.BorderForeground(theme.Accent).BorderStyle(lipgloss.ThickBorder()),
		CardTitle:    lipgloss.NewStyle().Foreground(theme.Primary).Bold(true),
		CardSubtitle: lipgloss.NewStyle().Foreground(theme.Muted).Italic(true),

		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Error:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Warning).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(Info),
		Spinner: lipgloss.NewStyle().Foreground(theme.Accent),

		PageCurrent: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(theme.Foreground).
			Padding(0, 1).
			Bold(true),
		Page: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Modal: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(theme.Primary).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}
