// Package stream decodes the chat backend's event stream.
//
// The backend frames its reply as Server-Sent-Events-like records: lines
// prefixed with "event:" and "data:", records separated by a blank line.
// Reader turns the raw body into Events; Dispatch routes each Event to a
// Handler. Lines may end in LF, CRLF or a lone CR.
package stream

import "fmt"

// Event names emitted by the backend.
const (
	EventConversationCreated = "conversation_created"
	EventMessage             = "message"
	EventMessageDone         = "message_done"
	EventFunctionCall        = "function_call"
	EventUserMessageID       = "user_message_id"
	EventDone                = "done"
	EventTitleUpdated        = "conversation_title_updated"
	EventAuthError           = "auth_error"
	EventAPIError            = "api_error"
)

// Event is one decoded record. Multi-line data is joined with "\n".
type Event struct {
	Name string
	Data string
}

// ProtocolError reports a malformed record.
type ProtocolError struct {
	Line   int    // 1-based line number in the stream, 0 if not line specific
	Event  string // event name, when known
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "stream protocol error"
	if e.Line > 0 {
		msg = fmt.Sprintf("%s at line %d", msg, e.Line)
	}
	if e.Event != "" {
		msg = fmt.Sprintf("%s (event %q)", msg, e.Event)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }
