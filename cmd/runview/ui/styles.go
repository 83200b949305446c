// Package ui provides the visual styling for the runview terminal form.
// Light and dark palettes are selected from the environment or the config file.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Status colors shared by both palettes.
var (
	ColorOK      = lipgloss.Color("#43a047")
	ColorFailed  = lipgloss.Color("#e53935")
	ColorWarning = lipgloss.Color("#ffb300")
	colorOnBrand = lipgloss.Color("#ffffff")
)

// Theme is a palette for the form.
type Theme struct {
	Text    lipgloss.Color // payload and results
	Subtle  lipgloss.Color // hints, endpoint, help descriptions
	Brand   lipgloss.Color // header and section labels
	Focus   lipgloss.Color // border of the pane receiving keys
	Editing lipgloss.Color // border of the focused editor
	Frame   lipgloss.Color // idle borders and dividers
	IsDark  bool
}

// LightTheme is used unless a dark terminal is detected.
func LightTheme() Theme {
	return Theme{
		Text:    "#1f2430",
		Subtle:  "#8a8f98",
		Brand:   "#1f4e79",
		Focus:   "#1f4e79",
		Editing: "#2e7d32",
		Frame:   "#c8ccd2",
	}
}

func DarkTheme() Theme {
	return Theme{
		Text:    "#e6e6e6",
		Subtle:  "#6b7280",
		Brand:   "#7fb4e6",
		Focus:   "#7fb4e6",
		Editing: "#81c784",
		Frame:   "#3a3f4b",
		IsDark:  true,
	}
}

// DetectTheme picks dark mode from RUNVIEW_DARK_MODE=1 or a dark COLORFGBG
// background, and light mode otherwise.
func DetectTheme() Theme {
	if os.Getenv("RUNVIEW_DARK_MODE") == "1" {
		return DarkTheme()
	}

	// COLORFGBG is "foreground;background"; ANSI 0-6 and 8 are dark backgrounds.
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil {
			if (bg >= 0 && bg <= 6) || bg == 8 {
				return DarkTheme()
			}
		}
	}

	return LightTheme()
}

// Styles are the rendered pieces of the form.
type Styles struct {
	Theme Theme

	Header lipgloss.Style
	Label  lipgloss.Style
	Muted  lipgloss.Style
	Bold   lipgloss.Style

	Input        lipgloss.Style
	InputFocused lipgloss.Style
	Pane         lipgloss.Style
	PaneFocused  lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style

	Spinner lipgloss.Style
	Divider lipgloss.Style
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// NewStyles derives every style from theme.
func NewStyles(theme Theme) Styles {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Frame).
		Padding(0, 1)

	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Brand).
			Foreground(colorOnBrand).
			Padding(0, 2).
			Bold(true),
		Label: fg(theme.Brand).Bold(true),
		Muted: fg(theme.Subtle),
		Bold:  fg(theme.Text).Bold(true),

		Input:        box,
		InputFocused: box.BorderForeground(theme.Editing),
		Pane:         box,
		PaneFocused:  box.BorderForeground(theme.Focus),

		Success: fg(ColorOK).Bold(true),
		Error:   fg(ColorFailed).Bold(true),
		Warning: fg(ColorWarning).Bold(true),

		Spinner: fg(theme.Editing),
		Divider: fg(theme.Frame),
	}
}

// DefaultStyles uses the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// Frame returns the border style for an editor (input) or output pane.
func (s Styles) Frame(input, focused bool) lipgloss.Style {
	switch {
	case input && focused:
		return s.InputFocused
	case input:
		return s.Input
	case focused:
		return s.PaneFocused
	}
	return s.Pane
}

// RenderDivider returns a horizontal rule width cells wide.
func (s Styles) RenderDivider(width int) string {
	if width < 0 {
		width = 0
	}
	return s.Divider.Render(strings.Repeat("─", width))
}
