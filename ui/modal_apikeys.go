package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"moochat/model"
)

// keyProviders are the providers a key can be added for, in catalog order.
var keyProviders = []string{model.ProviderGoogle, model.ProviderOpenAI, model.ProviderAnthropic}

type apiKeyModal struct {
	adding      bool
	cursor      int
	providerIdx int
	focus       int // 0 provider, 1 name, 2 secret
	name        textinput.Model
	secret      textinput.Model
	busy        bool
	confirmDel  bool
	err         string
}

func newAPIKeyModal() apiKeyModal {
	name := textinput.New()
	name.Prompt = "Name:   "
	name.Placeholder = "optional"
	name.CharLimit = 64

	secret := textinput.New()
	secret.Prompt = "Secret: "
	secret.EchoMode = textinput.EchoPassword
	secret.EchoCharacter = '•'
	secret.CharLimit = 256

	return apiKeyModal{name: name, secret: secret}
}

func (m *apiKeyModal) startAdd() {
	m.adding = true
	m.err = ""
	m.focus = 0
	m.name.SetValue("")
	m.secret.SetValue("")
	m.name.Blur()
	m.secret.Blur()
}

func (m *apiKeyModal) setFocus(i int) tea.Cmd {
	m.focus = (i + 3) % 3
	m.name.Blur()
	m.secret.Blur()
	switch m.focus {
	case 1:
		return m.name.Focus()
	case 2:
		return m.secret.Focus()
	}
	return nil
}

func (a AppView) handleAPIKeyModalUpdate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m := &a.keyModal
	if m.busy {
		return a, nil
	}
	keys := a.state.APIKeys

	if m.confirmDel {
		m.confirmDel = false
		if msg.String() == "y" && m.cursor < len(keys) {
			m.busy = true
			return a, a.deleteAPIKeyCmd(keys[m.cursor].ID)
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
			secret := strings.TrimSpace(m.secret.Value())
			if secret == "" {
				m.err = "the secret is required"
				return a, m.setFocus(2)
			}
			m.busy = true
			m.err = ""
			return a, a.addAPIKeyCmd(keyProviders[m.providerIdx], strings.TrimSpace(m.name.Value()), secret)
		}
		var cmd tea.Cmd
		switch m.focus {
		case 0:
			switch msg.String() {
			case "left", "h":
				m.providerIdx = (m.providerIdx + len(keyProviders) - 1) % len(keyProviders)
			case "right", "l", " ":
				m.providerIdx = (m.providerIdx + 1) % len(keyProviders)
			}
		case 1:
			m.name, cmd = m.name.Update(msg)
		case 2:
			m.secret, cmd = m.secret.Update(msg)
		}
		return a, cmd
	}

	switch msg.String() {
	case "esc", "q":
		m.err = ""
		a.settings.CloseAPIKeyModal()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(keys)-1 {
			m.cursor++
		}
	case "a":
		m.startAdd()
	case "d":
		if m.cursor < len(keys) {
			m.confirmDel = true
		}
	}
	return a, nil
}

func (a AppView) handleKeySaved(msg keySavedMsg) (tea.Model, tea.Cmd) {
	m := &a.keyModal
	m.busy = false
	if msg.Err != nil {
		m.err = errorText(msg.Err)
		return a, nil
	}
	m.adding = false
	m.err = ""
	if m.cursor >= len(a.ctrl.Snapshot().APIKeys) {
		m.cursor = max(len(a.ctrl.Snapshot().APIKeys)-1, 0)
	}
	return a, a.setStatus("API keys updated", false)
}

func (a AppView) renderAPIKeyModal(width, height int) string {
	m := a.keyModal
	modalWidth := modalWidthFor(64, width)


	var lines []string
	if m.adding {
		var providers []string
		for i, p := range keyProviders {
			if i == m.providerIdx {
				providers = append(providers, SelectedStyle.Render("["+p+"]"))
			} else {
				providers = append(providers, DimStyle.Render(" "+p+" "))
			}
		}
		prefix := "  "
		if m.focus == 0 {
			prefix = SelectedStyle.Render("> ")
		}
		lines = append(lines,
			prefix+"Provider: "+strings.Join(providers, " "),
			"  "+m.name.View(),
			"  "+m.secret.View(),
		)
	} else {
		keys := a.state.APIKeys
		if len(keys) == 0 {
			lines = append(lines, DimStyle.Render("No API keys yet. A key is needed to chat with a model."))
		}
		for i, k := range keys {
			label := k.Name
			if label == "" {
				label = DimStyle.Render("(unnamed)")
			}
			line := fmt.Sprintf("%-10s %s", k.Provider, label)
			if i == m.cursor {
				line = SelectedStyle.Render("> ") + line
			} else {
				line = "  " + line
			}
			lines = append(lines, line)
		}
	}

	if m.busy {
		lines = append(lines, "", a.spinner.View()+" working...")
	}
	if m.confirmDel {
		lines = append(lines, "", SelectedStyle.Render("Delete this key? (y/n)"))
	}
	if m.err != "" {
		lines = append(lines, "", ErrorStyle.Width(modalWidth).Render(m.err))
	}

	var footer string
	if m.adding {
		footer = FormatFooter("Tab", "Next field", "←/→", "Provider", "Enter", "Validate & save", "Esc", "Back")
	} else {
		footer = FormatFooter("a", "Add", "d", "Delete", "Esc", "Close")
	}
	return renderModalFrame("API Keys", accentColor, strings.Join(lines, "\n"), footer, modalWidth, width, height)
}
