package ui

import (
	"moochat/mcp"
	"moochat/session"
	"moochat/settings"
	"moochat/storage"
)

// stateMsg carries a controller snapshot into the update loop.
type stateMsg session.State

// settingsMsg carries a modal visibility change.
type settingsMsg settings.State

type sendDoneMsg struct {
	Err error
}

type bootstrapDoneMsg struct {
	Err error
}

type conversationLoadedMsg struct {
	ID  string
	Err error
}

type markdownRenderedMsg struct {
	MessageID string
	Width     int
	Rendered  string
}

type mcpRefreshedMsg struct {
	Err error
}

type probeDoneMsg struct {
	Result *mcp.ProbeResult
	Err    error
}

// mcpSavedMsg reports a config create or delete.
type mcpSavedMsg struct {
	Err error
}

// keySavedMsg reports an API key create or delete.
type keySavedMsg struct {
	Err error
}

type searchResultsMsg struct {
	Query   string
	Matches []storage.MessageMatch
	Err     error
}

type statusClearMsg struct {
	seq int
}
