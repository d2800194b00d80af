package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type binding struct {
	keys string
	desc string
}

var (
	globalBindings = []binding{
		{"Alt+N", "New conversation"},
		{"Alt+S", "Conversations"},
		{"Alt+F", "Search cached messages"},
		{"Alt+M", "Select model"},
		{"Alt+K", "API keys"},
		{"Alt+P", "MCP servers"},
		{"Alt+H", "Toggle this help"},
		{"Alt+Q", "Quit"},
	}
	chatBindings = []binding{
		{"Enter", "Send message"},
		{"Alt+Enter", "New line"},
		{"Esc", "Cancel the reply"},
		{"y / n", "Approve or reject a tool call"},
		{"Alt+R", "Toggle reasoning"},
		{"Alt+T", "Toggle tool calling"},
		{"Ctrl+Y", "Copy last reply"},
		{"PgUp/PgDn", "Scroll"},
	}
)

func bindingBlock(heading string, bindings []binding) string {
	blue := lipgloss.NewStyle().Foreground(accentColor)
	lines := []string{blue.Render("## " + heading)}
	for _, b := range bindings {
		lines = append(lines, fmt.Sprintf("• %-11s %s", b.keys, b.desc))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (a AppView) renderHelpModal(width, height int) string {
	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)

	title := green.Render("moochat " + a.version + " - Keyboard Shortcuts")

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		bindingBlock("Global", globalBindings),
		"",
		bindingBlock("Chat", chatBindings),
		"",
		HelpStyle.Render("Press Esc to close"),
	)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
