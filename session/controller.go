// Package session owns the state of one chat conversation and drives the
// streaming exchange with the backend.
//
// A Controller moves through Idle → Sending → Streaming → (Finalizing |
// Erroring) → Idle for every SendMessage call. Only one send may be in flight
// at a time; results of a send that was superseded (for example by switching
// to a new conversation) are discarded by generation number.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"moochat/api"
	"moochat/config"
	"moochat/model"
	"moochat/stream"
)

// Transport is the subset of the backend API the controller needs.
type Transport interface {
	Generate(ctx context.Context, req api.GenerateRequest) (io.ReadCloser, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	ListAPIKeys(ctx context.Context) ([]model.APIKeyRef, error)
	ListConversations(ctx context.Context) ([]model.Conversation, error)
}

// KeyPrompter asks the user to configure an API key.
type KeyPrompter interface {
	OpenAPIKeyModal()
}

// Recorder persists a conversation after a completed exchange.
type Recorder interface {
	SaveTranscript(conv model.Conversation, msgs []model.Message) error
}

// Controller mediates between user input and the streaming transport.
type Controller struct {
	transport Transport
	prompter  KeyPrompter
	recorder  Recorder

	onChange               func(State)
	onNavigate             func(conversationID string)
	onConversationsChanged func()

	mu     sync.Mutex
	state  State
	gen    uint64
	cur    *cycle
	cancel context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers fn to receive a snapshot after every state change.
// fn is called without the controller's lock held.
func WithObserver(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithNavigate registers fn to be called when a newly created conversation id is adopted.
func WithNavigate(fn func(conversationID string)) Option {
	return func(c *Controller) { c.onNavigate = fn }
}

// WithConversationsChanged registers fn to be called when the conversation list is stale.
func WithConversationsChanged(fn func()) Option {
	return func(c *Controller) { c.onConversationsChanged = fn }
}

// WithKeyPrompter sets where missing-key prompts go.
func WithKeyPrompter(p KeyPrompter) Option {
	return func(c *Controller) { c.prompter = p }
}

// WithRecorder sets where finished conversations are saved.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithModel preselects a model. Unknown ids are ignored.
func WithModel(id string) Option {
	return func(c *Controller) {
		if m, ok := model.FindModel(id); ok {
			c.state.Model = m
		}
	}
}

// WithFlags sets the reasoning and tool-calling request flags.
func WithFlags(reasoning, toolCalling bool) Option {
	return func(c *Controller) {
		c.state.Reasoning = reasoning
		c.state.ToolCalling = toolCalling
	}
}

// New creates an idle controller for a new conversation.
func New(t Transport, opts ...Option) *Controller {
	c := &Controller{transport: t}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// notify must be called without c.mu held.
func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.Snapshot())
}

// localID returns an id for a message that exists only on this client.
func localID() string {
	return "local-" + uuid.NewString()
}

func debugf(format string, args ...any) {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Session] "+format, args...)
	}
}

// Bootstrap loads API keys and the conversation list concurrently.
func (c *Controller) Bootstrap(ctx context.Context) error {
	var (
		keys  []model.APIKeyRef
		convs []model.Conversation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keys, err = c.transport.ListAPIKeys(gctx)
		if err != nil {
			return fmt.Errorf("failed to list API keys: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		convs, err = c.transport.ListConversations(gctx)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	c.state.Conversations = convs
	c.mu.Unlock()
	c.SetAPIKeys(keys)
	return nil
}

// RefreshConversations reloads the conversation list.
func (c *Controller) RefreshConversations(ctx context.Context) error {
	convs, err := c.transport.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	c.mu.Lock()
	c.state.Conversations = convs
	for _, conv := range convs {
		if conv.ID == c.state.ConversationID && conv.Title != nil {
			c.state.Title = *conv.Title
		}
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// RefreshAPIKeys reloads key references from the backend.
func (c *Controller) RefreshAPIKeys(ctx context.Context) error {
	keys, err := c.transport.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("failed to list API keys: %w", err)
	}
	c.SetAPIKeys(keys)
	return nil
}

// SetAPIKeys replaces the key references and prunes the model selection: if
// the selected model's provider no longer has a key, the first model of a
// configured provider is selected instead.
func (c *Controller) SetAPIKeys(keys []model.APIKeyRef) {
	c.mu.Lock()
	c.state.APIKeys = keys
	c.pruneModelLocked()
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) pruneModelLocked() {
	available := model.ModelsForProviders(c.state.Providers())
	for _, m := range available {
		if m.ID == c.state.Model.ID {
			return
		}
	}
	if len(available) > 0 {
		debugf("selected model %q has no key, switching to %q", c.state.Model.ID, available[0].ID)
		c.state.Model = available[0]
	}
}

// ChangeModel selects a model from the catalog. A model whose provider has no
// key is refused with ErrNoAPIKey and the selection is left unchanged.
func (c *Controller) ChangeModel(id string) error {
	m, ok := model.FindModel(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}

	c.mu.Lock()
	if m.RequiresKey {
		if _, ok := model.KeyFor(c.state.APIKeys, m.Provider); !ok {
			c.mu.Unlock()
			c.promptForKey()
			return ErrNoAPIKey
		}
	}
	c.state.Model = m
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetFlags toggles the reasoning and tool-calling request flags.
func (c *Controller) SetFlags(reasoning, toolCalling bool) {
	c.mu.Lock()
	c.state.Reasoning = reasoning
	c.state.ToolCalling = toolCalling
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) promptForKey() {
	if c.prompter != nil {
		c.prompter.OpenAPIKeyModal()
	}
}

// NewConversation resets the session to an empty, unsaved conversation.
// An in-flight send is canceled and its results are discarded.
func (c *Controller) NewConversation() {
	c.mu.Lock()
	c.abandonLocked()
	c.state.ConversationID = ""
	c.state.Title = ""
	c.state.Messages = nil
	c.state.LastError = nil
	c.mu.Unlock()
	c.notify()
}

// LoadConversation replaces the message list with the history of id.
func (c *Controller) LoadConversation(ctx context.Context, id string) error {
	c.mu.Lock()
	busy := c.cur != nil
	c.mu.Unlock()
	if busy {
		return ErrBusy
	}

	msgs, err := c.transport.ListMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	c.mu.Lock()
	if c.cur != nil {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state.ConversationID = id
	c.state.Messages = msgs
	c.state.Title = ""
	c.state.LastError = nil
	for _, conv := range c.state.Conversations {
		if conv.ID == id {
			c.state.Title = conv.DisplayTitle()
		}
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// abandonLocked cancels the current cycle and clears transient state.
func (c *Controller) abandonLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.cur = nil
	c.state.PendingOutgoing = nil
	c.state.PendingIncoming = nil
	c.state.Loading = false
	c.state.Creating = false
	c.state.Phase = PhaseIdle
}

// Cancel aborts the reply being generated, if any. The send ends through the
// error path with ErrCanceled. It reports whether a send was in flight.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// ResolvePendingToolUse approves or rejects the tool call awaiting a decision.
func (c *Controller) ResolvePendingToolUse(ctx context.Context, approve bool) error {
	return c.SendMessage(ctx, "", &approve)
}

// SendMessage submits content, or a tool decision when toolDecision is
// non-nil, and blocks until the exchange ends. Failures after the request
// has been started are also surfaced as a system message in the session.
func (c *Controller) SendMessage(ctx context.Context, content string, toolDecision *bool) error {
	cy, req, err := c.begin(content, toolDecision)
	if err != nil {
		if errors.Is(err, ErrNoAPIKey) {
			c.promptForKey()
		}
		return err
	}
	c.notify()

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	if c.cur == cy {
		c.cancel = cancel
	}
	c.mu.Unlock()

	body, err := c.transport.Generate(cctx, req)
	if err != nil {
		if cctx.Err() != nil {
			return c.fail(cy, ErrCanceled)
		}
		return c.fail(cy, &TransportError{Err: err})
	}
	defer body.Close()

	if !c.advance(cy, PhaseStreaming) {
		return context.Canceled
	}

	n, err := stream.Pump(cctx, body, cy)
	if err != nil {
		var perr *stream.ProtocolError
		switch {
		case errors.As(err, &perr):
		case cctx.Err() != nil:
			err = ErrCanceled
		default:
			err = &TransportError{Err: err}
		}
		return c.fail(cy, err)
	}
	if n == 0 {
		return c.fail(cy, ErrEmptyStream)
	}
	return c.finish(cy)
}

// begin validates preconditions and moves Idle → Sending.
func (c *Controller) begin(content string, toolDecision *bool) (*cycle, api.GenerateRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil {
		return nil, api.GenerateRequest{}, ErrBusy
	}
	m := c.state.Model
	if m.ID == "" {
		return nil, api.GenerateRequest{}, ErrNoModel
	}
	key, hasKey := model.KeyFor(c.state.APIKeys, m.Provider)
	if m.RequiresKey && !hasKey {
		return nil, api.GenerateRequest{}, ErrNoAPIKey
	}

	cy := &cycle{c: c, decided: -1}
	if toolDecision == nil {
		if strings.TrimSpace(content) == "" {
			return nil, api.GenerateRequest{}, ErrEmptyMessage
		}
		if _, blocked := c.state.PendingToolUse(); blocked {
			return nil, api.GenerateRequest{}, ErrPendingToolUse
		}
		c.state.PendingOutgoing = &model.PendingMessage{Role: model.RoleUser, Content: content, Model: m.ID}
	} else {
		idx := -1
		for i := len(c.state.Messages) - 1; i >= 0; i-- {
			if c.state.Messages[i].BlocksInput() {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, api.GenerateRequest{}, ErrNoPendingToolUse
		}
		// the backend records the decision before streaming; mirror it locally
		tu := *c.state.Messages[idx].ToolUse
		cy.decided, cy.decidedPrev = idx, tu.State
		if *toolDecision {
			tu.State = model.ToolUseApproved
		} else {
			tu.State = model.ToolUseRejected
		}
		c.state.Messages[idx].ToolUse = &tu
	}

	c.gen++
	cy.gen = c.gen
	c.cur = cy
	c.state.PendingIncoming = &model.PendingMessage{Role: model.RoleAssistant, Model: m.ID}
	c.state.Loading = true
	c.state.Creating = c.state.ConversationID == ""
	c.state.Phase = PhaseSending
	c.state.LastError = nil

	req := api.GenerateRequest{
		Model:        m.ID,
		Message:      content,
		APIKeyID:     key.ID,
		ToolDecision: toolDecision,
	}
	if c.state.ConversationID != "" {
		req.ConversationID = api.String(c.state.ConversationID)
	}
	if m.Reasoning && c.state.Reasoning {
		req.Reasoning = api.Bool(true)
	}
	if m.SupportsTools && c.state.ToolCalling {
		req.ToolCalling = api.Bool(true)
	}

	debugf("send gen=%d conversation=%q model=%s decision=%v", cy.gen, c.state.ConversationID, m.ID, toolDecision != nil)
	return cy, req, nil
}

// advance moves a live cycle to phase. It returns false if cy was superseded.
func (c *Controller) advance(cy *cycle, phase Phase) bool {
	c.mu.Lock()
	if c.cur != cy {
		c.mu.Unlock()
		return false
	}
	c.state.Phase = phase
	c.mu.Unlock()
	c.notify()
	return true
}

// fail moves a live cycle to Erroring, appends exactly one synthetic error
// message and returns to Idle. Superseded cycles are ignored.
func (c *Controller) fail(cy *cycle, cause error) error {
	c.mu.Lock()
	if c.cur != cy {
		c.mu.Unlock()
		return cause
	}
	debugf("send gen=%d failed: %v", cy.gen, cause)

	c.state.Phase = PhaseErroring
	if cy.decided >= 0 && cy.decided < len(c.state.Messages) && c.state.Messages[cy.decided].ToolUse != nil {
		tu := *c.state.Messages[cy.decided].ToolUse
		tu.State = cy.decidedPrev
		c.state.Messages[cy.decided].ToolUse = &tu
	}
	c.state.Messages = append(c.state.Messages, model.Message{
		ID:             localID(),
		ConversationID: c.state.ConversationID,
		Role:           model.RoleSystem,
		Content:        "Error: " + cause.Error(),
	})
	c.state.LastError = cause
	c.endLocked()
	c.mu.Unlock()
	c.notify()
	return cause
}

// finish ends a cycle whose stream closed without a read error.
func (c *Controller) finish(cy *cycle) error {
	c.mu.Lock()
	if c.cur != cy {
		c.mu.Unlock()
		return nil
	}
	if !cy.sawDone && cy.serverErr == nil {
		c.mu.Unlock()
		return c.fail(cy, ErrStreamTruncated)
	}
	var (
		conv model.Conversation
		msgs []model.Message
	)
	if cy.sawDone && c.state.ConversationID != "" {
		conv = model.Conversation{ID: c.state.ConversationID}
		if title := c.state.Title; title != "" {
			conv.Title = &title
		}
		msgs = slices.Clone(c.state.Messages)
	}
	c.state.LastError = cy.serverErr
	c.endLocked()
	c.mu.Unlock()
	c.notify()

	if c.recorder != nil && conv.ID != "" {
		if err := c.recorder.SaveTranscript(conv, msgs); err != nil {
			debugf("failed to save transcript %s: %v", conv.ID, err)
		}
	}
	if cy.serverErr != nil {
		return cy.serverErr
	}
	return nil
}

// endLocked returns to Idle with transient state cleared.
func (c *Controller) endLocked() {
	c.state.PendingOutgoing = nil
	c.state.PendingIncoming = nil
	c.state.Loading = false
	c.state.Creating = false
	c.state.Phase = PhaseIdle
	c.cur = nil
	c.cancel = nil
}
