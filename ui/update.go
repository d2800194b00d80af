package ui

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"moochat/api"
	"moochat/config"
	"moochat/model"
	"moochat/session"
	"moochat/settings"
)

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.layout()
		var cmd tea.Cmd
		if a.renderWidth != a.width {
			// cached markdown is width dependent
			a.renderWidth = a.width
			a.rendered = make(map[string]string)
			a.renderQueue = make(map[string]bool)
			cmd = a.renderPending()
		}
		a.refreshViewport()
		return a, cmd

	case stateMsg:
		a.state = session.State(msg)
		cmds := []tea.Cmd{a.waitForState()}
		if a.ready {
			cmds = append(cmds, a.renderPending())
			a.refreshViewport()
		}
		return a, tea.Batch(cmds...)

	case settingsMsg:
		a.modals = settings.State(msg)
		if a.modals.Active() != settings.ModalNone {
			a.textarea.Blur()
		} else if a.overlay == overlayNone {
			a.textarea.Focus()
		}
		return a, a.waitForSettings()

	case markdownRenderedMsg:
		if msg.Width != a.renderWidth {
			return a, nil
		}
		a.rendered[msg.MessageID] = msg.Rendered
		delete(a.renderQueue, msg.MessageID)
		a.refreshViewport()
		return a, nil

	case bootstrapDoneMsg:
		if api.IsUnauthorized(msg.Err) {
			a.showAck("Not signed in", "The server rejected the stored login.\nQuit and run `moochat login`.", ackError)
			return a, nil
		}
		if msg.Err != nil {
			return a, a.setStatus(errorText(msg.Err), true)
		}
		// the observer snapshot may still be in flight
		if len(a.ctrl.Snapshot().APIKeys) == 0 {
			a.settings.OpenAPIKeyModal()
		}
		return a, a.resumeCmd()

	case conversationLoadedMsg:
		if msg.Err != nil {
			return a, a.setStatus(errorText(msg.Err), true)
		}
		if msg.ID != "" && a.store != nil {
			if err := a.store.SetCurrentConversation(msg.ID); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[UI] failed to remember conversation: %v", err)
			}
		}
		return a, nil

	case sendDoneMsg:
		a.textarea.Focus()
		switch {
		case msg.Err == nil:
			return a, nil
		case errors.Is(msg.Err, session.ErrCanceled):
			return a, a.setStatus("cancelled", false)
		case isQuietError(msg.Err):
			return a, nil
		default:
			return a, a.setStatus(errorText(msg.Err), true)
		}

	case searchResultsMsg:
		if msg.Err != nil {
			return a, a.setStatus(errorText(msg.Err), true)
		}
		items := make([]pickerItem, len(msg.Matches))
		for i, m := range msg.Matches {
			items[i] = pickerItem{ID: m.ConversationID, Title: m.Preview, Detail: m.Title}
		}
		a.picker = newPicker(fmt.Sprintf("Results for %q", msg.Query), items)
		a.searchActive = true
		return a, nil

	case mcpRefreshedMsg:
		if msg.Err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[UI] MCP refresh failed: %v", msg.Err)
		}
		return a, nil

	case keySavedMsg:
		return a.handleKeySaved(msg)

	case mcpSavedMsg:
		return a.handleMCPSaved(msg)

	case probeDoneMsg:
		return a.handleProbeDone(msg)

	case statusClearMsg:
		if msg.seq == a.statusSeq {
			a.status = ""
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		if a.state.Loading && a.ready {
			a.refreshViewport()
		}
		return a, cmd

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.shutdown()
		return a, tea.Quit
	}

	switch a.modals.Active() {
	case settings.ModalAPIKeys:
		return a.handleAPIKeyModalUpdate(msg)
	case settings.ModalMCPConfigs:
		return a.handleMCPModalUpdate(msg)
	}

	if a.overlay != overlayNone {
		return a.handleOverlayKey(msg)
	}

	_, blocked := a.state.PendingToolUse()

	switch msg.String() {
	case "alt+q":
		a.shutdown()
		return a, tea.Quit

	case "esc":
		a.ctrl.Cancel()
		return a, nil

	case "enter":
		if blocked {
			return a, a.setStatus("approve (y) or reject (n) the pending tool call first", true)
		}
		content := strings.TrimSpace(a.textarea.Value())
		if content == "" {
			return a, nil
		}
		if a.state.Loading {
			return a, a.setStatus("wait for the current reply or press Esc", true)
		}
		a.textarea.Reset()
		return a, a.sendCmd(content, nil)

	case "y", "n":
		if blocked && !a.state.Loading {
			approve := msg.String() == "y"
			return a, a.sendCmd("", &approve)
		}

	case "alt+n":
		a.ctrl.NewConversation()
		if a.store != nil {
			if err := a.store.SetCurrentConversation(""); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[UI] failed to clear current conversation: %v", err)
			}
		}
		return a, a.setStatus("new conversation", false)

	case "alt+m":
		a.openModelPicker()
		return a, nil

	case "alt+s":
		a.openConversationPicker()
		return a, nil

	case "alt+f":
		if a.store == nil {
			return a, a.setStatus("search needs the local cache", true)
		}
		a.overlay = overlaySearch
		a.searchActive = false
		a.searchInput.SetValue("")
		a.textarea.Blur()
		return a, a.searchInput.Focus()

	case "alt+k":
		a.settings.OpenAPIKeyModal()
		return a, nil

	case "alt+p":
		a.settings.OpenMCPConfigModal()
		return a, a.refreshMCPCmd()

	case "alt+r":
		a.ctrl.SetFlags(!a.state.Reasoning, a.state.ToolCalling)
		return a, nil

	case "alt+t":
		a.ctrl.SetFlags(a.state.Reasoning, !a.state.ToolCalling)
		return a, nil

	case "ctrl+y":
		return a, a.copyLastReply()

	case "alt+h":
		a.overlay = overlayHelp
		a.textarea.Blur()
		return a, nil

	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	if blocked {
		// input is locked until the tool call is decided
		return a, nil
	}
	var cmd tea.Cmd
	a.textarea, cmd = a.textarea.Update(msg)
	return a, cmd
}

func (a *AppView) copyLastReply() tea.Cmd {
	for i := len(a.state.Messages) - 1; i >= 0; i-- {
		m := a.state.Messages[i]
		if m.Role == model.RoleAssistant && m.Content != "" {
			if err := clipboard.WriteAll(m.Content); err != nil {
				return a.setStatus("clipboard unavailable: "+err.Error(), true)
			}
			return a.setStatus("copied last reply", false)
		}
	}
	return a.setStatus("nothing to copy", false)
}

func (a *AppView) openModelPicker() {
	providers := a.state.Providers()
	items := make([]pickerItem, len(model.Catalog))
	for i, m := range model.Catalog {
		detail := m.Provider
		if m.RequiresKey && !slices.Contains(providers, m.Provider) {
			detail += " (no key)"
		}
		items[i] = pickerItem{ID: m.ID, Title: m.DisplayName, Detail: detail, Marked: m.ID == a.state.Model.ID}
	}
	a.picker = newPicker("Select model", items)
	a.overlay = overlayModels
	a.textarea.Blur()
}

func (a *AppView) openConversationPicker() {
	items := make([]pickerItem, len(a.state.Conversations))
	for i, c := range a.state.Conversations {
		items[i] = pickerItem{ID: c.ID, Title: c.DisplayTitle(), Detail: c.ID, Marked: c.ID == a.state.ConversationID}
	}
	a.picker = newPicker("Conversations", items)
	a.picker.deletable = true
	a.overlay = overlayConversations
	a.textarea.Blur()
}

func (a *AppView) closeOverlay() {
	a.overlay = overlayNone
	a.searchActive = false
	a.searchInput.Blur()
	a.textarea.Focus()
}

func (a AppView) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.overlay {
	case overlayHelp:
		switch msg.String() {
		case "esc", "q", "alt+h", "enter":
			a.closeOverlay()
		}
		return a, nil

	case overlayAck:
		if msg.String() == "enter" || msg.String() == "esc" {
			a.closeOverlay()
		}
		return a, nil

	case overlaySearch:
		if !a.searchActive {
			switch msg.String() {
			case "esc":
				a.closeOverlay()
				return a, nil
			case "enter":
				query := strings.TrimSpace(a.searchInput.Value())
				if query == "" {
					return a, nil
				}
				return a, a.searchCmd(query)
			}
			var cmd tea.Cmd
			a.searchInput, cmd = a.searchInput.Update(msg)
			return a, cmd
		}
	}

	var (
		action pickerAction
		cmd    tea.Cmd
	)
	a.picker, action, cmd = a.picker.Update(msg)
	switch action {
	case pickerClose:
		if a.overlay == overlaySearch {
			// back to the query
			a.searchActive = false
			return a, cmd
		}
		a.closeOverlay()
	case pickerChoose:
		item, _ := a.picker.selected()
		switch a.overlay {
		case overlayModels:
			a.closeOverlay()
			if err := a.ctrl.ChangeModel(item.ID); err != nil {
				if errors.Is(err, session.ErrNoAPIKey) {
					return a, a.setStatus("add an API key for this provider first", true)
				}
				return a, a.setStatus(errorText(err), true)
			}
			return a, a.setStatus("model: "+item.Title, false)
		case overlayConversations, overlaySearch:
			a.closeOverlay()
			if a.state.Loading {
				return a, a.setStatus(errorText(session.ErrBusy), true)
			}
			return a, a.loadConversationCmd(item.ID)
		}
	case pickerDelete:
		if a.overlay == overlayConversations {
			item, _ := a.picker.selected()
			a.closeOverlay()
			return a, tea.Batch(a.deleteConversationCmd(item.ID), a.setStatus("deleted "+item.Title, false))
		}
	}
	return a, cmd
}
