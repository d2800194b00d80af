package ui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"moochat/api"
	"moochat/config"
	"moochat/mcp"
	"moochat/model"
	"moochat/provider"
	"moochat/session"
)

const statusTimeout = 5 * time.Second

func (a AppView) waitForState() tea.Cmd {
	return func() tea.Msg {
		return stateMsg(a.states.next())
	}
}

func (a AppView) waitForSettings() tea.Cmd {
	return func() tea.Msg {
		return settingsMsg(a.settingsFeed.next())
	}
}

func clearStatusAfter(seq int) tea.Cmd {
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return statusClearMsg{seq: seq}
	})
}

func (a AppView) bootstrapCmd() tea.Cmd {
	return func() tea.Msg {
		return bootstrapDoneMsg{Err: a.ctrl.Bootstrap(a.ctx)}
	}
}

// resumeCmd reopens the conversation that was current when the app last exited.
func (a AppView) resumeCmd() tea.Cmd {
	if a.store == nil {
		return nil
	}
	id, err := a.store.CurrentConversation()
	if err != nil || id == "" {
		return nil
	}
	return a.loadConversationCmd(id)
}

func (a AppView) loadConversationCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return conversationLoadedMsg{ID: id, Err: a.ctrl.LoadConversation(a.ctx, id)}
	}
}

func (a AppView) sendCmd(content string, decision *bool) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{Err: a.ctrl.SendMessage(a.ctx, content, decision)}
	}
}

func (a AppView) deleteConversationCmd(id string) tea.Cmd {
	return func() tea.Msg {
		err := a.client.DeleteConversation(a.ctx, id)
		if err != nil && !api.IsNotFound(err) {
			return conversationLoadedMsg{Err: err}
		}
		if a.store != nil {
			if err := a.store.DeleteConversation(id); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[UI] failed to drop cached conversation %s: %v", id, err)
			}
		}
		if a.ctrl.Snapshot().ConversationID == id {
			a.ctrl.NewConversation()
		}
		return conversationLoadedMsg{Err: a.ctrl.RefreshConversations(a.ctx)}
	}
}

func (a AppView) searchCmd(query string) tea.Cmd {
	return func() tea.Msg {
		matches, err := a.store.SearchMessages(query)
		return searchResultsMsg{Query: query, Matches: matches, Err: err}
	}
}

func (a AppView) refreshMCPCmd() tea.Cmd {
	return func() tea.Msg {
		return mcpRefreshedMsg{Err: a.registry.Refresh(a.ctx)}
	}
}

// addAPIKeyCmd checks the secret against the provider before storing it.
func (a AppView) addAPIKeyCmd(providerID, name, secret string) tea.Cmd {
	return func() tea.Msg {
		if err := provider.Validate(a.ctx, providerID, secret); err != nil {
			return keySavedMsg{Err: err}
		}
		if _, err := a.client.CreateAPIKey(a.ctx, api.APIKeyCreate{Provider: providerID, Name: name, Key: secret}); err != nil {
			return keySavedMsg{Err: err}
		}
		return keySavedMsg{Err: a.ctrl.RefreshAPIKeys(a.ctx)}
	}
}

func (a AppView) deleteAPIKeyCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.client.DeleteAPIKey(a.ctx, id); err != nil {
			return keySavedMsg{Err: err}
		}
		return keySavedMsg{Err: a.ctrl.RefreshAPIKeys(a.ctx)}
	}
}

func (a AppView) probeCmd(url string, headers map[string]string) tea.Cmd {
	return func() tea.Msg {
		res, err := mcp.Probe(a.ctx, url, headers)
		return probeDoneMsg{Result: res, Err: err}
	}
}

// addMCPConfigCmd probes the server first so unreachable servers are never saved.
func (a AppView) addMCPConfigCmd(name, url string, headers map[string]string) tea.Cmd {
	return func() tea.Msg {
		if _, err := mcp.Probe(a.ctx, url, headers); err != nil {
			return mcpSavedMsg{Err: err}
		}
		in := api.MCPConfigInput{Name: name, URL: url}
		if len(headers) > 0 {
			h := make(map[string]any, len(headers))
			for k, v := range headers {
				h[k] = v
			}
			in.Configuration = map[string]any{"headers": h}
		}
		if _, err := a.client.CreateMCPConfig(a.ctx, in); err != nil {
			return mcpSavedMsg{Err: err}
		}
		return mcpSavedMsg{Err: a.registry.Refresh(a.ctx)}
	}
}

func (a AppView) deleteMCPConfigCmd(id string) tea.Cmd {
	return func() tea.Msg {
		if err := a.client.DeleteMCPConfig(a.ctx, id); err != nil {
			return mcpSavedMsg{Err: err}
		}
		return mcpSavedMsg{Err: a.registry.Refresh(a.ctx)}
	}
}

// renderPending queues markdown renders for finalized messages not yet cached.
func (a *AppView) renderPending() tea.Cmd {
	var cmds []tea.Cmd
	for _, m := range a.state.Messages {
		if m.Role != model.RoleAssistant || m.Content == "" || m.ID == "" {
			continue
		}
		if _, ok := a.rendered[m.ID]; ok || a.renderQueue[m.ID] {
			continue
		}
		a.renderQueue[m.ID] = true
		cmds = append(cmds, renderMarkdownCmd(m.ID, m.Content, a.renderWidth))
	}
	return tea.Batch(cmds...)
}

// isQuietError reports errors the user caused on purpose or that already
// produced their own feedback.
func isQuietError(err error) bool {
	return errors.Is(err, session.ErrCanceled) || errors.Is(err, session.ErrNoAPIKey)
}
