package session

import (
	"fmt"

	"moochat/model"
	"moochat/stream"
)

// ServerError is an error the backend reported inside the stream.
type ServerError struct {
	Role model.Role
	Text string
}

func (e *ServerError) Error() string {
	if e.Text == "" {
		return string(e.Role)
	}
	return fmt.Sprintf("%s: %s", e.Role, e.Text)
}

// AuthErrorText is shown when the backend rejects the provider credential.
const AuthErrorText = "The provider rejected the API key. Check the key in settings."

// cycle is the stream.Handler for one send. Events for a cycle that is no
// longer current are dropped.
type cycle struct {
	c   *Controller
	gen uint64

	learnedID string
	sawDone   bool
	serverErr error

	// index of a tool-use message decided by this cycle, -1 if none
	decided     int
	decidedPrev model.ToolUseState
}

var _ stream.Handler = (*cycle)(nil)

// update runs fn under the controller lock if cy is still current and
// notifies observers afterwards.
func (cy *cycle) update(fn func(s *State)) bool {
	c := cy.c
	c.mu.Lock()
	if c.cur != cy {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	c.mu.Unlock()
	c.notify()
	return true
}

func (cy *cycle) ConversationCreated(id string) {
	cy.update(func(*State) {
		cy.learnedID = id
	})
}

func (cy *cycle) MessageFragment(fragment string) {
	cy.update(func(s *State) {
		if s.PendingIncoming == nil {
			s.PendingIncoming = &model.PendingMessage{Role: model.RoleAssistant, Model: s.Model.ID}
		}
		s.PendingIncoming.Content += fragment
	})
}

func (cy *cycle) MessageDone(msg model.Message) {
	cy.update(func(s *State) {
		appendUnique(s, msg)
		s.PendingIncoming = nil
	})
}

func (cy *cycle) FunctionCall(msg model.Message) {
	cy.update(func(s *State) {
		if msg.Role == "" {
			msg.Role = model.RoleFunctionCall
		}
		appendUnique(s, msg)
	})
}

func (cy *cycle) UserMessageID(id string) {
	cy.update(func(s *State) {
		if s.PendingOutgoing == nil {
			return
		}
		appendUnique(s, model.Message{
			ID:             id,
			ConversationID: s.ConversationID,
			Role:           model.RoleUser,
			Content:        s.PendingOutgoing.Content,
			Provider:       s.Model.Provider,
			Model:          s.PendingOutgoing.Model,
		})
		s.PendingOutgoing = nil
	})
}

func (cy *cycle) Done() {
	var adopted string
	ok := cy.update(func(s *State) {
		cy.sawDone = true
		s.Phase = PhaseFinalizing
		s.Loading = false
		s.Creating = false
		s.PendingOutgoing = nil
		s.PendingIncoming = nil
		if s.ConversationID == "" && cy.learnedID != "" {
			s.ConversationID = cy.learnedID
			adopted = cy.learnedID
			for i := range s.Messages {
				if s.Messages[i].ConversationID == "" {
					s.Messages[i].ConversationID = adopted
				}
			}
		}
	})
	if !ok || adopted == "" {
		return
	}
	debugf("adopted conversation %s", adopted)
	if cy.c.onNavigate != nil {
		cy.c.onNavigate(adopted)
	}
	if cy.c.onConversationsChanged != nil {
		cy.c.onConversationsChanged()
	}
}

func (cy *cycle) TitleUpdated(title string) {
	cy.update(func(s *State) {
		s.Title = title
	})
}

func (cy *cycle) AuthError() {
	cy.update(func(s *State) {
		cy.serverErr = &ServerError{Role: model.RoleAuthError, Text: AuthErrorText}
		s.Messages = append(s.Messages, model.Message{
			ID:             localID(),
			ConversationID: s.ConversationID,
			Role:           model.RoleAuthError,
			Content:        AuthErrorText,
		})
	})
}

func (cy *cycle) APIError(text string) {
	cy.update(func(s *State) {
		cy.serverErr = &ServerError{Role: model.RoleAPIError, Text: text}
		s.Messages = append(s.Messages, model.Message{
			ID:             localID(),
			ConversationID: s.ConversationID,
			Role:           model.RoleAPIError,
			Content:        text,
		})
	})
}

// appendUnique appends msg unless a message with the same id is already
// present, in which case the existing entry is replaced in place.
func appendUnique(s *State, msg model.Message) {
	if i := s.indexOf(msg.ID); i >= 0 {
		s.Messages[i] = msg
		return
	}
	s.Messages = append(s.Messages, msg)
}
