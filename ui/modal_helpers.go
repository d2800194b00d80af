package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ackKind selects the title color of an acknowledge modal.
type ackKind int

const (
	ackInfo ackKind = iota
	ackWarning
	ackError
)

// modalWidthFor fits a modal of at most preferred columns into a screen of width.
func modalWidthFor(preferred, width int) int {
	return min(preferred, max(width-10, 20))
}

// renderModalFrame stacks a centered title, a body and a footer, each
// separated by a rule, and centers the result on the screen.
func renderModalFrame(title string, titleColor lipgloss.TerminalColor, body, footer string, modalWidth, width, height int) string {
	titleSection := lipgloss.NewStyle().
		Bold(true).
		Foreground(titleColor).
		Width(modalWidth).
		Align(lipgloss.Center).
		Render(title)

	section := lipgloss.NewStyle().
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor)

	content := strings.Join([]string{
		titleSection,
		section.Render(body),
		section.Render(footer),
	}, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

// renderAckModal renders a message that only needs Enter to dismiss.
func renderAckModal(title, message string, kind ackKind, width, height int) string {
	modalWidth := modalWidthFor(60, width)

	titleColor := accentColor
	switch kind {
	case ackWarning:
		titleColor = warningColor
	case ackError:
		titleColor = dangerColor
	}

	centered := lipgloss.NewStyle().Width(modalWidth).Align(lipgloss.Center)
	lines := []string{""}
	for _, line := range strings.Split(message, "\n") {
		lines = append(lines, centered.Render(line))
	}
	lines = append(lines, "")

	footer := centered.Foreground(dimColor).Render("Press Enter to acknowledge")
	return renderModalFrame(title, titleColor, strings.Join(lines, "\n"), footer, modalWidth, width, height)
}
