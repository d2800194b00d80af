// Package settings holds UI settings state shared by independent surfaces.
//
// A Service is created once and passed to every component that needs to open
// or observe the API key and MCP configuration dialogs.
package settings

import "sync"

// Modal identifies a settings dialog.
type Modal int

const (
	ModalNone Modal = iota
	ModalAPIKeys
	ModalMCPConfigs
)

func (m Modal) String() string {
	switch m {
	case ModalAPIKeys:
		return "api-keys"
	case ModalMCPConfigs:
		return "mcp-configs"
	default:
		return "none"
	}
}

// State is the visibility of the settings dialogs.
type State struct {
	APIKeyModalOpen    bool
	MCPConfigModalOpen bool
}

// Active returns the dialog to show. The API key dialog wins if both are open.
func (s State) Active() Modal {
	switch {
	case s.APIKeyModalOpen:
		return ModalAPIKeys
	case s.MCPConfigModalOpen:
		return ModalMCPConfigs
	default:
		return ModalNone
	}
}

// Service is the shared settings state. The zero value is ready to use.
type Service struct {
	mu     sync.Mutex
	state  State
	nextID int
	subs   map[int]func(State)
}

// NewService returns an empty Service.
func NewService() *Service {
	return &Service{}
}

// State returns the current visibility.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) OpenAPIKeyModal()    { s.set(func(st *State) { st.APIKeyModalOpen = true }) }
func (s *Service) CloseAPIKeyModal()   { s.set(func(st *State) { st.APIKeyModalOpen = false }) }
func (s *Service) OpenMCPConfigModal() { s.set(func(st *State) { st.MCPConfigModalOpen = true }) }
func (s *Service) CloseMCPConfigModal() {
	s.set(func(st *State) { st.MCPConfigModalOpen = false })
}

// CloseAll hides every dialog.
func (s *Service) CloseAll() {
	s.set(func(st *State) { *st = State{} })
}

// Subscribe registers fn for changes. Subscribers are called synchronously
// after each change, outside the service lock. The returned func unsubscribes.
func (s *Service) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]func(State))
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Service) set(fn func(*State)) {
	s.mu.Lock()
	before := s.state
	fn(&s.state)
	after := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	if before == after {
		return
	}
	for _, sub := range subs {
		sub(after)
	}
}
