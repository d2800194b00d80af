package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"moochat/mcp"
)

type mcpModal struct {
	adding     bool
	showTools  bool
	cursor     int
	focus      int // 0 name, 1 url, 2 auth header
	name       textinput.Model
	url        textinput.Model
	auth       textinput.Model
	busy       bool
	confirmDel bool
	probe      *mcp.ProbeResult
	err        string
}

func newMCPModal() mcpModal {
	name := textinput.New()
	name.Prompt = "Name:          "
	name.CharLimit = 64

	url := textinput.New()
	url.Prompt = "URL:           "
	url.Placeholder = "https://example.com/mcp"
	url.CharLimit = 512

	auth := textinput.New()
	auth.Prompt = "Authorization: "
	auth.Placeholder = "optional, e.g. Bearer <token>"
	auth.EchoMode = textinput.EchoPassword
	auth.EchoCharacter = '•'
	auth.CharLimit = 1024

	return mcpModal{name: name, url: url, auth: auth}
}

func (m *mcpModal) inputs() []*textinput.Model {
	return []*textinput.Model{&m.name, &m.url, &m.auth}
}

func (m *mcpModal) setFocus(i int) tea.Cmd {
	inputs := m.inputs()
	m.focus = (i + len(inputs)) % len(inputs)
	for _, in := range inputs {
		in.Blur()
	}
	return inputs[m.focus].Focus()
}

func (m *mcpModal) headers() map[string]string {
	auth := strings.TrimSpace(m.auth.Value())
	if auth == "" {
		return nil
	}
	return map[string]string{"Authorization": auth}
}

func (a AppView) handleMCPModalUpdate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m := &a.mcpModal
	if m.busy {
		return a, nil
	}
	configs := a.registry.Configs()

	if m.confirmDel {
		m.confirmDel = false
		if msg.String() == "y" && m.cursor < len(configs) {
			m.busy = true
			return a, a.deleteMCPConfigCmd(configs[m.cursor].ID)
		}
		return a, nil
	}

	if m.adding {
		switch msg.String() {
		case "esc":
			m.adding = false
			m.err = ""
			return a, nil
		case "tab", "down":
			return a, m.setFocus(m.focus + 1)
		case "shift+tab", "up":
			return a, m.setFocus(m.focus - 1)
		case "enter":
			name := strings.TrimSpace(m.name.Value())
			url := strings.TrimSpace(m.url.Value())
			if name == "" || url == "" {
				m.err = "name and URL are required"
				return a, nil
			}
			m.busy = true
			m.err = ""
			return a, a.addMCPConfigCmd(name, url, m.headers())
		}
		in := m.inputs()[m.focus]
		var cmd tea.Cmd
		*in, cmd = in.Update(msg)
		return a, cmd
	}

	switch msg.String() {
	case "esc", "q":
		if m.showTools || m.probe != nil {
			m.showTools = false
			m.probe = nil
			return a, nil
		}
		m.err = ""
		a.settings.CloseMCPConfigModal()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.probe = nil
		}
	case "down", "j":
		if m.cursor < len(configs)-1 {
			m.cursor++
			m.probe = nil
		}
	case "a":
		m.adding = true
		m.err = ""
		for _, in := range m.inputs() {
			in.SetValue("")
		}
		return a, m.setFocus(0)
	case "d":
		if m.cursor < len(configs) {
			m.confirmDel = true
		}
	case "t", "enter":
		m.showTools = !m.showTools
	case "p":
		if m.cursor < len(configs) {
			cfg := configs[m.cursor]
			m.busy = true
			m.err = ""
			return a, a.probeCmd(cfg.URL, cfg.Headers())
		}
	case "r":
		m.busy = true
		return a, func() tea.Msg { return mcpSavedMsg{Err: a.registry.Refresh(a.ctx)} }
	}
	return a, nil
}

func (a AppView) handleMCPSaved(msg mcpSavedMsg) (tea.Model, tea.Cmd) {
	m := &a.mcpModal
	m.busy = false
	if msg.Err != nil {
		m.err = errorText(msg.Err)
		return a, nil
	}
	m.adding = false
	m.err = ""
	if n := len(a.registry.Configs()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	return a, a.setStatus("MCP servers updated", false)
}

func (a AppView) handleProbeDone(msg probeDoneMsg) (tea.Model, tea.Cmd) {
	m := &a.mcpModal
	m.busy = false
	if msg.Err != nil {
		m.err = errorText(msg.Err)
		m.probe = nil
		return a, nil
	}
	m.probe = msg.Result
	return a, nil
}

func (a AppView) renderMCPModal(width, height int) string {
	m := a.mcpModal
	modalWidth := modalWidthFor(72, width)


	var lines []string
	configs := a.registry.Configs()
	switch {
	case m.adding:
		for i, in := range m.inputs() {
			prefix := "  "
			if i == m.focus {
				prefix = SelectedStyle.Render("> ")
			}
			lines = append(lines, prefix+in.View())
		}
		lines = append(lines, "", DimStyle.Render("The server is probed before it is saved."))

	case len(configs) == 0:
		lines = append(lines, DimStyle.Render("No MCP servers configured."))

	default:
		for i, cfg := range configs {
			status := DimStyle.Render(fmt.Sprintf("%d tools", len(a.registry.Tools(cfg.ID))))
			if err := a.registry.ToolError(cfg.ID); err != nil {
				status = ErrorStyle.Render("unavailable")
			}
			line := fmt.Sprintf("%s %s %s", padRight(truncate(cfg.Name, 20), 20), DimStyle.Render(truncate(cfg.URL, modalWidth-36)), status)
			if i == m.cursor {
				line = SelectedStyle.Render("> ") + line
			} else {
				line = "  " + line
			}
			lines = append(lines, line)
		}

		if m.cursor < len(configs) {
			cfg := configs[m.cursor]
			if m.showTools {
				lines = append(lines, "", TitleStyle.Render("Tools of "+cfg.Name))
				if err := a.registry.ToolError(cfg.ID); err != nil {
					lines = append(lines, ErrorStyle.Render(errorText(err)))
				}
				for _, t := range a.registry.Tools(cfg.ID) {
					lines = append(lines, "  "+ToolStyle.Render(mcp.QualifiedName(cfg.Name, t.Name))+" "+DimStyle.Render(truncate(t.Description, modalWidth-30)))
				}
			}
			if p := m.probe; p != nil {
				lines = append(lines, "",
					TitleStyle.Render("Probe"),
					fmt.Sprintf("  %s %s via %s", p.ServerName, p.ServerVersion, p.Transport),
					fmt.Sprintf("  %d tools advertised", len(p.Tools)),
				)
			}
		}
	}

	if m.busy {
		lines = append(lines, "", a.spinner.View()+" working...")
	}
	if m.confirmDel {
		lines = append(lines, "", SelectedStyle.Render("Delete this server? (y/n)"))
	}
	if m.err != "" {
		lines = append(lines, "", ErrorStyle.Width(modalWidth).Render(m.err))
	}

	var footer string
	if m.adding {
		footer = FormatFooter("Tab", "Next field", "Enter", "Probe & save", "Esc", "Back")
	} else {
		footer = FormatFooter("a", "Add", "t", "Tools", "p", "Probe", "r", "Refresh", "d", "Delete", "Esc", "Close")
	}
	return renderModalFrame("MCP Servers", accentColor, strings.Join(lines, "\n"), footer, modalWidth, width, height)
}
