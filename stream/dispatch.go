package stream

import (
	"context"
	"errors"
	"io"

	"moochat/config"
	"moochat/model"
)

// Handler receives typed events from Dispatch.
type Handler interface {
	ConversationCreated(id string)
	MessageFragment(fragment string)
	MessageDone(msg model.Message)
	FunctionCall(msg model.Message)
	UserMessageID(id string)
	Done()
	TitleUpdated(title string)
	AuthError()
	APIError(text string)
}

// Dispatch routes a single event to h. Unknown event names are ignored.
// A payload that cannot be decoded yields a *ProtocolError.
func Dispatch(ev Event, h Handler) error {
	switch ev.Name {
	case EventConversationCreated:
		h.ConversationCreated(ev.Data)
	case EventMessage:
		h.MessageFragment(ev.Data)
	case EventMessageDone, EventFunctionCall:
		msg, err := model.DecodeMessage(ev.Data)
		if err != nil {
			return &ProtocolError{Event: ev.Name, Reason: "invalid message payload", Err: err}
		}
		if ev.Name == EventMessageDone {
			h.MessageDone(msg)
		} else {
			h.FunctionCall(msg)
		}
	case EventUserMessageID:
		h.UserMessageID(ev.Data)
	case EventDone:
		h.Done()
	case EventTitleUpdated:
		h.TitleUpdated(ev.Data)
	case EventAuthError:
		h.AuthError()
	case EventAPIError:
		h.APIError(ev.Data)
	default:
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Stream] ignoring unknown event %q", ev.Name)
		}
	}
	return nil
}

// Pump reads events from r and dispatches them to h until the stream ends.
// It returns the number of events read. End of stream is not an error.
func Pump(ctx context.Context, r io.Reader, h Handler) (int, error) {
	sr := NewReader(r)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ev, err := sr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		if err := Dispatch(ev, h); err != nil {
			return n, err
		}
	}
}
