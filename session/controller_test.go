package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moochat/api"
	"moochat/model"
	"moochat/stream"
)

type fakeTransport struct {
	mu       sync.Mutex
	requests []api.GenerateRequest
	generate func(req api.GenerateRequest) (io.ReadCloser, error)

	keys     []model.APIKeyRef
	convs    []model.Conversation
	messages map[string][]model.Message
}

func (f *fakeTransport) Generate(ctx context.Context, req api.GenerateRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.generate(req)
}

func (f *fakeTransport) ListMessages(ctx context.Context, id string) ([]model.Message, error) {
	msgs, ok := f.messages[id]
	if !ok {
		return nil, &api.APIError{StatusCode: 404, Detail: "Conversation not found"}
	}
	return msgs, nil
}

func (f *fakeTransport) ListAPIKeys(ctx context.Context) ([]model.APIKeyRef, error) {
	return f.keys, nil
}

func (f *fakeTransport) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	return f.convs, nil
}

func (f *fakeTransport) lastRequest(t *testing.T) api.GenerateRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func body(records ...string) func(api.GenerateRequest) (io.ReadCloser, error) {
	return func(api.GenerateRequest) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(strings.Join(records, ""))), nil
	}
}

func rec(name, data string) string {
	return "event: " + name + "\r\ndata: " + data + "\r\n\r\n"
}

const geminiKey = "k-google"

func newController(t *testing.T, ft *fakeTransport, opts ...Option) *Controller {
	t.Helper()
	c := New(ft, append([]Option{WithModel("gemini-2.0-flash")}, opts...)...)
	c.SetAPIKeys([]model.APIKeyRef{{ID: geminiKey, Provider: model.ProviderGoogle}})
	return c
}

func TestSendMessageHelloScenario(t *testing.T) {
	ft := &fakeTransport{generate: body(
		rec("user_message_id", "m1"),
		rec("message", "Hi"),
		rec("message", " there"),
		rec("message_done", `{"id":"m2","role":"assistant","content":"Hi there","model":"gemini-2.0-flash","mcp_tool_use":null}`),
		rec("done", ""),
	)}
	c := newController(t, ft)

	require.NoError(t, c.SendMessage(context.Background(), "hello", nil))

	s := c.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "m1", s.Messages[0].ID)
	assert.Equal(t, model.RoleUser, s.Messages[0].Role)
	assert.Equal(t, "hello", s.Messages[0].Content)
	assert.Equal(t, "m2", s.Messages[1].ID)
	assert.Equal(t, model.RoleAssistant, s.Messages[1].Role)
	assert.Equal(t, "Hi there", s.Messages[1].Content)
	assert.Nil(t, s.PendingOutgoing)
	assert.Nil(t, s.PendingIncoming)
	assert.False(t, s.Loading)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.NoError(t, s.LastError)

	req := ft.lastRequest(t)
	assert.Nil(t, req.ConversationID)
	assert.Equal(t, "gemini-2.0-flash", req.Model)
	assert.Equal(t, "hello", req.Message)
	assert.Equal(t, geminiKey, req.APIKeyID)
	assert.Nil(t, req.ToolDecision)
}

func TestSendMessageSingleLineFraming(t *testing.T) {
	// records separated by one CRLF instead of a blank line
	ft := &fakeTransport{generate: body(
		"event: user_message_id\r\ndata: m1\r\n",
		"event: message\r\ndata: Hi\r\n",
		`event: message_done`+"\r\n"+`data: {"id":"m2","role":"assistant","content":"Hi","model":"gemini-2.0-flash","mcp_tool_use":null}`+"\r\n",
		"event: done\r\ndata:\r\n",
	)}
	c := newController(t, ft)

	require.NoError(t, c.SendMessage(context.Background(), "hello", nil))

	s := c.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "m1", s.Messages[0].ID)
	assert.Equal(t, "Hi", s.Messages[1].Content)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.NoError(t, s.LastError)
}

func TestAccumulatorConcatenatesFragments(t *testing.T) {
	records := []string{
		rec("message", "The "),
		rec("message", "quick"),
		"event: message\r\ndata:  brown\r\ndata: fox\r\n\r\n",
		rec("message", ""),
	}
	records = append(records,
		rec("message_done", `{"id":"a1","role":"assistant","content":"The quick brown\nfox","mcp_tool_use":null}`),
		rec("done", ""))

	var (
		mu       sync.Mutex
		seen     []string
		clearedN int
		prev     *model.PendingMessage
	)
	ft := &fakeTransport{generate: body(records...)}
	c := newController(t, ft, WithObserver(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		if s.PendingIncoming != nil {
			seen = append(seen, s.PendingIncoming.Content)
		}
		if prev != nil && s.PendingIncoming == nil {
			clearedN++
		}
		prev = s.PendingIncoming
	}))

	require.NoError(t, c.SendMessage(context.Background(), "q", nil))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, "The quick brown\nfox", seen[len(seen)-1])
	assert.Equal(t, 1, clearedN)
	assert.Nil(t, c.Snapshot().PendingIncoming)
}

func TestConversationIDAdoptedAtDone(t *testing.T) {
	var (
		navigated []string
		refreshed int
		idBefore  []string
	)
	ft := &fakeTransport{generate: body(
		rec("user_message_id", "m1"),
		rec("conversation_created", "c-new"),
		rec("message", "ok"),
		rec("conversation_title_updated", "Greeting"),
		rec("done", ""),
	)}
	c := newController(t, ft,
		WithNavigate(func(id string) { navigated = append(navigated, id) }),
		WithConversationsChanged(func() { refreshed++ }),
		WithObserver(func(s State) {
			if s.Phase == PhaseStreaming {
				idBefore = append(idBefore, s.ConversationID)
			}
		}),
	)

	require.NoError(t, c.SendMessage(context.Background(), "hi", nil))

	s := c.Snapshot()
	assert.Equal(t, "c-new", s.ConversationID)
	assert.Equal(t, "Greeting", s.Title)
	assert.Equal(t, []string{"c-new"}, navigated)
	assert.Equal(t, 1, refreshed)
	for _, id := range idBefore {
		assert.Empty(t, id)
	}
	assert.Equal(t, "c-new", s.Messages[0].ConversationID)

	// subsequent sends target the adopted conversation
	ft.generate = body(rec("done", ""))
	require.NoError(t, c.SendMessage(context.Background(), "again", nil))
	req := ft.lastRequest(t)
	require.NotNil(t, req.ConversationID)
	assert.Equal(t, "c-new", *req.ConversationID)
	assert.Equal(t, []string{"c-new"}, navigated)
}

func TestConversationIDUnsetWithoutCreatedEvent(t *testing.T) {
	navigated := false
	ft := &fakeTransport{generate: body(rec("message", "x"), rec("done", ""))}
	c := newController(t, ft, WithNavigate(func(string) { navigated = true }))

	require.NoError(t, c.SendMessage(context.Background(), "hi", nil))
	assert.Empty(t, c.Snapshot().ConversationID)
	assert.False(t, navigated)
}

func TestMessageDoneReplayIsIdempotent(t *testing.T) {
	done := rec("message_done", `{"id":"m2","role":"assistant","content":"Hi","mcp_tool_use":null}`)
	ft := &fakeTransport{generate: body(rec("user_message_id", "m1"), done, done, rec("done", ""))}
	c := newController(t, ft)

	require.NoError(t, c.SendMessage(context.Background(), "hello", nil))

	s := c.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "m2", s.Messages[1].ID)
}

const pendingCall = `{"id":"f1","role":"function_call","content":"{\"name\":\"search\"}","model":"gemini-2.0-flash","mcp_tool_use":{"id":"t1","name":"search","args":{"q":"weather"},"state":"pending"}}`

func TestPendingToolUseBlocksFreeText(t *testing.T) {
	ft := &fakeTransport{generate: body(
		rec("user_message_id", "m1"),
		rec("function_call", pendingCall),
		rec("done", ""),
	)}
	c := newController(t, ft)

	require.NoError(t, c.SendMessage(context.Background(), "weather?", nil))
	s := c.Snapshot()
	tu, blocked := s.PendingToolUse()
	require.True(t, blocked)
	assert.Equal(t, "t1", tu.ToolUse.ID)
	assert.False(t, s.CanSend())

	err := c.SendMessage(context.Background(), "never mind", nil)
	assert.ErrorIs(t, err, ErrPendingToolUse)

	ft.generate = body(
		rec("message", "It is sunny."),
		rec("message_done", `{"id":"m3","role":"assistant","content":"It is sunny.","mcp_tool_use":null}`),
		rec("done", ""),
	)
	require.NoError(t, c.ResolvePendingToolUse(context.Background(), true))

	req := ft.lastRequest(t)
	require.NotNil(t, req.ToolDecision)
	assert.True(t, *req.ToolDecision)
	assert.Equal(t, "", req.Message)

	s = c.Snapshot()
	require.Len(t, s.Messages, 3)
	assert.Equal(t, model.ToolUseApproved, s.Messages[1].ToolUse.State)
	assert.True(t, s.CanSend())

	ft.generate = body(rec("done", ""))
	assert.NoError(t, c.SendMessage(context.Background(), "thanks", nil))
}

func TestResolvedToolUseFromServerUnblocks(t *testing.T) {
	completed := strings.Replace(pendingCall, `"pending"`, `"completed"`, 1)
	ft := &fakeTransport{generate: body(rec("function_call", pendingCall), rec("done", ""))}
	c := newController(t, ft)
	require.NoError(t, c.SendMessage(context.Background(), "go", nil))
	assert.False(t, c.Snapshot().CanSend())

	ft.generate = body(rec("function_call", completed), rec("done", ""))
	require.NoError(t, c.ResolvePendingToolUse(context.Background(), false))

	s := c.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.Equal(t, model.ToolUseCompleted, s.Messages[0].ToolUse.State)
	assert.True(t, s.CanSend())
}

func TestResolveWithoutPendingToolUse(t *testing.T) {
	ft := &fakeTransport{generate: body(rec("done", ""))}
	c := newController(t, ft)
	assert.ErrorIs(t, c.ResolvePendingToolUse(context.Background(), true), ErrNoPendingToolUse)
	assert.Empty(t, ft.requests)
}

func TestFailedDecisionRestoresPendingState(t *testing.T) {
	ft := &fakeTransport{generate: body(rec("function_call", pendingCall), rec("done", ""))}
	c := newController(t, ft)
	require.NoError(t, c.SendMessage(context.Background(), "go", nil))

	ft.generate = func(api.GenerateRequest) (io.ReadCloser, error) {
		return nil, errors.New("connection refused")
	}
	err := c.ResolvePendingToolUse(context.Background(), true)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)

	s := c.Snapshot()
	assert.Equal(t, model.ToolUsePending, s.Messages[0].ToolUse.State)
	_, blocked := s.PendingToolUse()
	assert.True(t, blocked)
}

func TestEmptyStreamErrors(t *testing.T) {
	ft := &fakeTransport{generate: body()}
	c := newController(t, ft)

	err := c.SendMessage(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrEmptyStream)

	s := c.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.Equal(t, model.RoleSystem, s.Messages[0].Role)
	assert.Contains(t, s.Messages[0].Content, ErrEmptyStream.Error())
	assert.False(t, s.Loading)
	assert.Nil(t, s.PendingOutgoing)
	assert.Nil(t, s.PendingIncoming)
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.ErrorIs(t, s.LastError, ErrEmptyStream)
}

func TestErroringPassesThroughPhase(t *testing.T) {
	var phases []Phase
	ft := &fakeTransport{generate: body()}
	c := newController(t, ft, WithObserver(func(s State) { phases = append(phases, s.Phase) }))
	_ = c.SendMessage(context.Background(), "hello", nil)
	assert.Contains(t, phases, PhaseSending)
	assert.Contains(t, phases, PhaseStreaming)
	assert.Equal(t, PhaseIdle, phases[len(phases)-1])
}

func TestTransportErrorSurfacesOneMessage(t *testing.T) {
	ft := &fakeTransport{generate: func(api.GenerateRequest) (io.ReadCloser, error) {
		return nil, &api.APIError{StatusCode: 500, Detail: "Error generating chat response: boom"}
	}}
	c := newController(t, ft)

	err := c.SendMessage(context.Background(), "hello", nil)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)

	s := c.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.Contains(t, s.Messages[0].Content, "boom")
	assert.False(t, s.Loading)
	assert.Len(t, ft.requests, 1)
}

func TestProtocolErrorIsDistinct(t *testing.T) {
	ft := &fakeTransport{generate: body(rec("message", "a"), "data: orphan\r\n\r\n")}
	c := newController(t, ft)

	err := c.SendMessage(context.Background(), "hello", nil)
	var perr *stream.ProtocolError
	require.ErrorAs(t, err, &perr)
	var terr *TransportError
	assert.False(t, errors.As(err, &terr))

	s := c.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.Equal(t, model.RoleSystem, s.Messages[0].Role)
	assert.Nil(t, s.PendingIncoming)
}

func TestTruncatedStream(t *testing.T) {
	ft := &fakeTransport{generate: body(rec("user_message_id", "m1"), rec("message", "par"))}
	c := newController(t, ft)

	err := c.SendMessage(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrStreamTruncated)
	s := c.Snapshot()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, model.RoleUser, s.Messages[0].Role)
	assert.Equal(t, model.RoleSystem, s.Messages[1].Role)
}

func TestServerReportedErrors(t *testing.T) {
	tests := []struct {
		name    string
		records []string
		role    model.Role
		content string
	}{
		{"auth error", []string{rec("auth_error", "")}, model.RoleAuthError, AuthErrorText},
		{"api error", []string{rec("api_error", "rate limited"), rec("done", "")}, model.RoleAPIError, "rate limited"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeTransport{generate: body(tt.records...)}
			c := newController(t, ft)

			err := c.SendMessage(context.Background(), "hello", nil)
			var serr *ServerError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.role, serr.Role)

			s := c.Snapshot()
			require.Len(t, s.Messages, 1)
			assert.Equal(t, tt.role, s.Messages[0].Role)
			assert.Equal(t, tt.content, s.Messages[0].Content)
			assert.False(t, s.Loading)
		})
	}
}

type prompter struct{ opened int }

func (p *prompter) OpenAPIKeyModal() { p.opened++ }

func TestSendWithoutKeyPrompts(t *testing.T) {
	p := &prompter{}
	ft := &fakeTransport{generate: body(rec("done", ""))}
	c := New(ft, WithModel("gpt-4o"), WithKeyPrompter(p))

	err := c.SendMessage(context.Background(), "hello", nil)
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.Equal(t, 1, p.opened)
	assert.Empty(t, ft.requests)
	s := c.Snapshot()
	assert.Empty(t, s.Messages)
	assert.False(t, s.Loading)
}

func TestSendRejectsEmptyText(t *testing.T) {
	ft := &fakeTransport{generate: body(rec("done", ""))}
	c := newController(t, ft)
	assert.ErrorIs(t, c.SendMessage(context.Background(), "  \n", nil), ErrEmptyMessage)
}

func TestConcurrentSendIsRejected(t *testing.T) {
	pr, pw := io.Pipe()
	ft := &fakeTransport{generate: func(api.GenerateRequest) (io.ReadCloser, error) { return pr, nil }}

	streaming := make(chan struct{})
	var once sync.Once
	c := newController(t, ft, WithObserver(func(s State) {
		if s.Phase == PhaseStreaming {
			once.Do(func() { close(streaming) })
		}
	}))

	errc := make(chan error, 1)
	go func() { errc <- c.SendMessage(context.Background(), "first", nil) }()

	select {
	case <-streaming:
	case <-time.After(5 * time.Second):
		t.Fatal("send never reached streaming")
	}

	assert.ErrorIs(t, c.SendMessage(context.Background(), "second", nil), ErrBusy)
	assert.ErrorIs(t, c.LoadConversation(context.Background(), "c1"), ErrBusy)

	_, _ = io.WriteString(pw, rec("user_message_id", "m1")+rec("done", ""))
	require.NoError(t, pw.Close())
	require.NoError(t, <-errc)

	s := c.Snapshot()
	require.Len(t, s.Messages, 1)
	assert.Equal(t, "first", s.Messages[0].Content)
	assert.Len(t, ft.requests, 1)
}

func TestNewConversationDiscardsStaleStream(t *testing.T) {
	pr, pw := io.Pipe()
	ft := &fakeTransport{generate: func(api.GenerateRequest) (io.ReadCloser, error) { return pr, nil }}

	streaming := make(chan struct{})
	var once sync.Once
	c := newController(t, ft, WithObserver(func(s State) {
		if s.Phase == PhaseStreaming {
			once.Do(func() { close(streaming) })
		}
	}))

	errc := make(chan error, 1)
	go func() { errc <- c.SendMessage(context.Background(), "first", nil) }()
	<-streaming

	c.NewConversation()
	_, _ = io.WriteString(pw, rec("user_message_id", "m1"))
	_ = pw.Close()
	<-errc

	s := c.Snapshot()
	assert.Empty(t, s.Messages)
	assert.False(t, s.Loading)
	assert.Equal(t, PhaseIdle, s.Phase)
}

func TestChangeModel(t *testing.T) {
	p := &prompter{}
	ft := &fakeTransport{}
	c := newController(t, ft, WithKeyPrompter(p))

	assert.ErrorIs(t, c.ChangeModel("nope"), ErrUnknownModel)
	assert.ErrorIs(t, c.ChangeModel("gpt-4o"), ErrNoAPIKey)
	assert.Equal(t, 1, p.opened)
	assert.Equal(t, "gemini-2.0-flash", c.Snapshot().Model.ID)

	require.NoError(t, c.ChangeModel("gemini-2.5-pro"))
	assert.Equal(t, "gemini-2.5-pro", c.Snapshot().Model.ID)
}

func TestSetAPIKeysPrunesSelection(t *testing.T) {
	ft := &fakeTransport{}
	c := newController(t, ft)
	require.NoError(t, c.ChangeModel("gemini-2.5-pro"))

	c.SetAPIKeys([]model.APIKeyRef{{ID: "k-oa", Provider: model.ProviderOpenAI}})
	assert.Equal(t, "gpt-4o", c.Snapshot().Model.ID)

	// selection survives when its provider is still configured
	c.SetAPIKeys([]model.APIKeyRef{{ID: "k-an", Provider: model.ProviderAnthropic}, {ID: "k-oa", Provider: model.ProviderOpenAI}})
	assert.Equal(t, "gpt-4o", c.Snapshot().Model.ID)

	// with no keys at all the selection is kept and sending prompts for a key
	c.SetAPIKeys(nil)
	assert.Equal(t, "gpt-4o", c.Snapshot().Model.ID)
}

func TestRequestFlags(t *testing.T) {
	ft := &fakeTransport{generate: body(rec("done", ""))}
	c := newController(t, ft, WithFlags(true, true))

	require.NoError(t, c.SendMessage(context.Background(), "a", nil))
	req := ft.lastRequest(t)
	assert.Nil(t, req.Reasoning, "gemini-2.0-flash is not a reasoning model")
	require.NotNil(t, req.ToolCalling)
	assert.True(t, *req.ToolCalling)

	require.NoError(t, c.ChangeModel("gemini-2.5-pro"))
	require.NoError(t, c.SendMessage(context.Background(), "b", nil))
	req = ft.lastRequest(t)
	require.NotNil(t, req.Reasoning)
	assert.True(t, *req.Reasoning)
}

func TestBootstrapAndLoadConversation(t *testing.T) {
	title := "Trip planning"
	ft := &fakeTransport{
		keys:  []model.APIKeyRef{{ID: "k1", Provider: model.ProviderAnthropic}},
		convs: []model.Conversation{{ID: "c1", Title: &title}},
		messages: map[string][]model.Message{
			"c1": {{ID: "m1", Role: model.RoleUser, Content: "hi"}, {ID: "m2", Role: model.RoleAssistant, Content: "hello"}},
		},
	}
	c := New(ft)

	require.NoError(t, c.Bootstrap(context.Background()))
	s := c.Snapshot()
	assert.Equal(t, "claude-3-7-sonnet-latest", s.Model.ID)
	assert.Len(t, s.Conversations, 1)

	require.NoError(t, c.LoadConversation(context.Background(), "c1"))
	s = c.Snapshot()
	assert.Equal(t, "c1", s.ConversationID)
	assert.Equal(t, "Trip planning", s.Title)
	assert.Len(t, s.Messages, 2)

	err := c.LoadConversation(context.Background(), "missing")
	assert.True(t, api.IsNotFound(errors.Unwrap(err)))

	c.NewConversation()
	s = c.Snapshot()
	assert.Empty(t, s.ConversationID)
	assert.Empty(t, s.Messages)
}

type memRecorder struct {
	conv model.Conversation
	msgs []model.Message
}

func (r *memRecorder) SaveTranscript(conv model.Conversation, msgs []model.Message) error {
	r.conv, r.msgs = conv, msgs
	return nil
}

func TestRecorderSavesFinishedConversation(t *testing.T) {
	r := &memRecorder{}
	ft := &fakeTransport{generate: body(
		rec("user_message_id", "m1"),
		rec("conversation_created", "c9"),
		rec("message_done", `{"id":"m2","role":"assistant","content":"yo","mcp_tool_use":null}`),
		rec("conversation_title_updated", "Yo"),
		rec("done", ""),
	)}
	c := newController(t, ft, WithRecorder(r))

	require.NoError(t, c.SendMessage(context.Background(), "hey", nil))
	assert.Equal(t, "c9", r.conv.ID)
	require.NotNil(t, r.conv.Title)
	assert.Equal(t, "Yo", *r.conv.Title)
	assert.Len(t, r.msgs, 2)
}

func TestSnapshotIsACopy(t *testing.T) {
	ft := &fakeTransport{generate: body(rec("user_message_id", "m1"), rec("done", ""))}
	c := newController(t, ft)
	require.NoError(t, c.SendMessage(context.Background(), "hello", nil))

	s := c.Snapshot()
	s.Messages[0].Content = "mutated"
	assert.Equal(t, "hello", c.Snapshot().Messages[0].Content)
}

func TestCancelEndsSendWithCanceled(t *testing.T) {
	pr, pw := io.Pipe()
	ft := &fakeTransport{generate: func(api.GenerateRequest) (io.ReadCloser, error) { return pr, nil }}

	streaming := make(chan struct{})
	var once sync.Once
	c := newController(t, ft, WithObserver(func(s State) {
		if s.Phase == PhaseStreaming {
			once.Do(func() { close(streaming) })
		}
	}))

	errc := make(chan error, 1)
	go func() { errc <- c.SendMessage(context.Background(), "hello", nil) }()
	<-streaming

	require.True(t, c.Cancel())
	// an HTTP body fails its pending read once the request context ends
	pw.CloseWithError(context.Canceled)

	err := <-errc
	assert.ErrorIs(t, err, ErrCanceled)

	s := c.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase)
	require.NotEmpty(t, s.Messages)
	assert.Equal(t, "Error: request cancelled", s.Messages[len(s.Messages)-1].Content)
	assert.False(t, c.Cancel())
}
