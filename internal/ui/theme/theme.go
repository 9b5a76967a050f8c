// Package theme holds the terminal palette and lipgloss styles used to
// render quizzes.
package theme

import (
	"charm.land/lipgloss/v2"
)

// Color palette
var (
	Primary = lipgloss.Color("#8B5CF6") // Violet
	Reading = lipgloss.Color("#14B8A6") // Teal, ruby readings
	Accent  = lipgloss.Color("#F97316") // Orange, answer slot
	Success = lipgloss.Color("#22C55E") // Green
	Error   = lipgloss.Color("#F43F5E") // Rose
	Warning = lipgloss.Color("#EAB308") // Amber
	Text    = lipgloss.Color("#F8FAFC") // White
	TextDim = lipgloss.Color("#94A3B8") // Slate
	Border  = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Prompt = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Math = lipgloss.NewStyle().
		Foreground(Warning)

	Ruby = lipgloss.NewStyle().
		Foreground(Reading)

	Gloss = lipgloss.NewStyle().
		Foreground(TextDim)
)

// Answer slot and options
var (
	Blank = lipgloss.NewStyle().
		Foreground(Accent).
		Bold(true)

	OptionIndex = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	Option = lipgloss.NewStyle().
		Foreground(Text)

	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	Rule = lipgloss.NewStyle().
		Foreground(Border)
)

// Badges for the scheduling stage a question was served from.
var (
	BadgeNew = lipgloss.NewStyle().
			Foreground(Text).
			Background(Primary).
			Padding(0, 1)

	BadgeDue = lipgloss.NewStyle().
			Foreground(Text).
			Background(Reading).
			Padding(0, 1)

	BadgeRepair = lipgloss.NewStyle().
			Foreground(Text).
			Background(Accent).
			Padding(0, 1)

	BadgeTest = lipgloss.NewStyle().
			Foreground(Text).
			Background(Border).
			Padding(0, 1)
)

// Emphasis applies the token style names used in quiz files. Unknown names
// are ignored.
func Emphasis(s lipgloss.Style, names []string) lipgloss.Style {
	for _, n := range names {
		switch n {
		case "bold":
			s = s.Bold(true)
		case "italic":
			s = s.Italic(true)
		case "underline":
			s = s.Underline(true)
		}
	}
	return s
}
