package ui

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"moochat/config"
	"moochat/model"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

const codeBar = "┃"

// renderMarkdown renders content for a terminal of the given width.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	content = preprocessLinks(content)

	// autolink off: terminals detect plain URLs on their own
	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width-4, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)

	return strings.TrimRight(postProcessMarkdown(string(rendered), width), "\n")
}

// renderMarkdownCmd renders a finalized message off the update loop.
func renderMarkdownCmd(id, content string, width int) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		out := renderMarkdown(content, width)
		if config.DebugLog != nil {
			config.DebugLog.Printf("[UI] rendered message %s (%d chars) in %v", id, len(content), time.Since(start))
		}
		return markdownRenderedMsg{MessageID: id, Width: width, Rendered: out}
	}
}

func postProcessMarkdown(rendered string, width int) string {
	rendered = fixInlineCode(rendered)
	rendered = fixMarkdownLinks(rendered)
	return frameCodeBlocks(rendered, width)
}

// preprocessLinks replaces [text](url) with the bare url.
func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

// fixInlineCode swaps the renderer's blue background for red text.
func fixInlineCode(s string) string {
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func fixMarkdownLinks(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, codeBar) {
			lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
		}
	}
	return strings.Join(lines, "\n")
}

// frameCodeBlocks replaces the renderer's left bar on code lines with a
// horizontal rule above and below the block.
func frameCodeBlocks(s string, width int) string {
	const darkGray, reset = "\x1b[90m", "\x1b[0m"

	ruleLen := max(width-4, 10)
	top := func() string {
		label := "[code]"
		left := (ruleLen - len(label)) / 2
		right := ruleLen - len(label) - left
		return darkGray + strings.Repeat("━", left) + reset + label + darkGray + strings.Repeat("━", right) + reset
	}
	bottom := darkGray + strings.Repeat("━", ruleLen) + reset

	var out []string
	inBlock := false
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, codeBar) {
			if !inBlock {
				inBlock = true
				out = append(out, "", top(), "")
			}
			out = append(out, stripCodeBlockPrefix(line))
			continue
		}
		if inBlock {
			inBlock = false
			out = append(out, "", bottom, "")
		}
		out = append(out, line)
	}
	if inBlock {
		out = append(out, "", bottom, "")
	}
	return strings.Join(out, "\n")
}

func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, codeBar)
	if idx < 0 {
		return line
	}
	rest := line[idx+len(codeBar):]
	return strings.TrimPrefix(rest, " ")
}

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// formatUserMessage draws a green bar down the left of every line.
func formatUserMessage(header, content string) string {
	bar := UserStyle.Render("┃")
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", bar, header)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(&b, "%s %s\n", bar, line)
	}
	b.WriteString("\n")
	return b.String()
}

// formatArgValue prints a tool argument the way it appeared in JSON.
func formatArgValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func toolStateLabel(s model.ToolUseState) string {
	switch s {
	case model.ToolUsePending:
		return SelectedStyle.Render("awaiting approval")
	case model.ToolUseApproved:
		return UserStyle.Render("approved")
	case model.ToolUseCompleted:
		return UserStyle.Render("completed")
	case model.ToolUseRejected:
		return ErrorStyle.Render("rejected")
	case model.ToolUseFailed:
		return ErrorStyle.Render("failed")
	default:
		return DimStyle.Render(string(s))
	}
}

// renderToolUse draws the box for a proposed tool call.
func renderToolUse(tu *model.ToolUse, width int) string {
	boxWidth := min(max(width-4, 20), 80)

	lines := []string{ToolStyle.Bold(true).Render("tool: " + tu.Name)}
	keys := make([]string, 0, len(tu.Args))
	for k := range tu.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("  %s = %s", k, truncate(formatArgValue(tu.Args[k]), boxWidth-8-len(k))))
	}
	lines = append(lines, "", "state: "+toolStateLabel(tu.State))
	if tu.Pending() {
		lines = append(lines, FormatFooter("y", "Approve", "n", "Reject"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(highlightColor).
		Padding(0, 1).
		Width(boxWidth).
		Render(strings.Join(lines, "\n"))
}

// roleHeader names the author of a message.
func roleHeader(m model.Message) string {
	switch {
	case m.Role == model.RoleUser:
		return UserStyle.Render("You")
	case m.Role == model.RoleAssistant || m.Role == model.RoleFunctionCall:
		name := "Assistant"
		if m.Model != "" {
			if d, ok := model.FindModel(m.Model); ok {
				name = d.DisplayName
			} else {
				name = m.Model
			}
		}
		return AssistantStyle.Render(name)
	case m.Role.IsError():
		return ErrorStyle.Bold(true).Render("Error")
	default:
		return DimStyle.Render("System")
	}
}

// renderTranscript builds the viewport content from the current state.
// Finalized assistant messages use the markdown cache when it has an entry.
func (a *AppView) renderTranscript() string {
	s := a.state
	width := a.contentWidth()

	if len(s.Messages) == 0 && s.PendingOutgoing == nil && s.PendingIncoming == nil && !s.Loading {
		return DimStyle.Render("No messages yet. Start chatting!")
	}

	wrap := lipgloss.NewStyle().Width(width - 2)

	var b strings.Builder
	for _, m := range s.Messages {
		header := roleHeader(m)
		switch {
		case m.Role == model.RoleUser:
			b.WriteString(formatUserMessage(header, wrap.Render(m.Content)))
			continue
		case m.Role.IsError():
			fmt.Fprintf(&b, "%s\n%s\n\n", header, ErrorStyle.Render(wrap.Render(m.Content)))
			continue
		case m.Role == model.RoleSystem:
			fmt.Fprintf(&b, "%s\n%s\n\n", header, DimStyle.Render(wrap.Render(m.Content)))
			continue
		}

		b.WriteString(header)
		b.WriteString("\n")
		if m.Content != "" {
			if r, ok := a.rendered[m.ID]; ok {
				b.WriteString(r)
			} else {
				b.WriteString(wrap.Render(m.Content))
			}
			b.WriteString("\n")
		}
		if m.ToolUse != nil {
			b.WriteString(renderToolUse(m.ToolUse, width))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if p := s.PendingOutgoing; p != nil {
		b.WriteString(formatUserMessage(UserStyle.Render("You")+" "+DimStyle.Render("(sending)"), wrap.Render(p.Content)))
	}
	if p := s.PendingIncoming; p != nil {
		header := roleHeader(model.Message{Role: model.RoleAssistant, Model: p.Model})
		body := a.spinner.View()
		if p.Content != "" {
			body = wrap.Render(p.Content + "▋")
		}
		fmt.Fprintf(&b, "%s\n%s\n\n", header, body)
	} else if s.Loading {
		fmt.Fprintf(&b, "%s %s\n", a.spinner.View(), DimStyle.Render("Waiting for response..."))
	}

	return b.String()
}
