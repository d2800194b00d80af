package session

import (
	"errors"
	"fmt"
	"slices"

	"moochat/model"
)

// Phase is the position of the controller in a send cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseFinalizing
	PhaseErroring
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseErroring:
		return "erroring"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is a snapshot of a conversation session. Values returned by the
// controller are copies and may be retained by the caller.
type State struct {
	ConversationID string
	Title          string
	Messages       []model.Message

	// at most one of each exists at a time
	PendingOutgoing *model.PendingMessage
	PendingIncoming *model.PendingMessage

	Loading  bool
	Creating bool
	Phase    Phase

	Model       model.ModelDescriptor
	APIKeys     []model.APIKeyRef
	Reasoning   bool
	ToolCalling bool

	Conversations []model.Conversation

	// error that ended the most recent cycle, nil after a clean finish
	LastError error
}

func (s State) clone() State {
	out := s
	out.Messages = slices.Clone(s.Messages)
	out.APIKeys = slices.Clone(s.APIKeys)
	out.Conversations = slices.Clone(s.Conversations)
	if s.PendingOutgoing != nil {
		p := *s.PendingOutgoing
		out.PendingOutgoing = &p
	}
	if s.PendingIncoming != nil {
		p := *s.PendingIncoming
		out.PendingIncoming = &p
	}
	return out
}

// PendingToolUse returns the message whose tool use awaits a decision, if any.
func (s State) PendingToolUse() (model.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].BlocksInput() {
			return s.Messages[i], true
		}
	}
	return model.Message{}, false
}

// CanSend reports whether free text may be submitted now.
func (s State) CanSend() bool {
	if s.Loading {
		return false
	}
	_, blocked := s.PendingToolUse()
	return !blocked
}

// Providers lists the providers that have a key configured.
func (s State) Providers() []string {
	return model.Providers(s.APIKeys)
}

func (s State) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.Messages, func(m model.Message) bool { return m.ID == id })
}

// Errors returned by controller operations.
var (
	ErrNoAPIKey         = errors.New("no API key configured for the selected provider")
	ErrNoModel          = errors.New("no model selected")
	ErrUnknownModel     = errors.New("unknown model")
	ErrBusy             = errors.New("a reply is already being generated")
	ErrPendingToolUse   = errors.New("a tool call is waiting for approval")
	ErrNoPendingToolUse = errors.New("no tool call is waiting for approval")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrEmptyStream      = errors.New("server returned an empty response")
	ErrStreamTruncated  = errors.New("response ended before completion")
	ErrCanceled         = errors.New("request cancelled")
)

// TransportError wraps a network or HTTP failure of the generate request.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport error: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }
