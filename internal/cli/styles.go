// Package cli implements the line-based operator prompter used on the
// ambiguous resolution branches.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#7AA2F7")
	// SuccessColor indicates successful operations.
	SuccessColor = lipgloss.Color("#9ECE6A")
	// WarningColor indicates warnings or caution messages.
	WarningColor = lipgloss.Color("#E0AF68")
	// ErrorColor indicates errors or failure messages.
	ErrorColor = lipgloss.Color("#F7768E")
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#565F89")

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	// SuccessStyle formats success messages.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor)

	// WarningStyle formats warning messages.
	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// ErrorStyle formats error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// PromptStyle is used for user prompts.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor).
			Padding(0, 2)
)

// FormatPrompt formats an input prompt.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox renders titled content in a styled box.
func RenderBox(title, content string) string {
	return BoxStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		TitleStyle.Render(title),
		content,
	))
}
