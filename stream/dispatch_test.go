package stream

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moochat/model"
)

type recorder struct {
	calls []string
	msgs  []model.Message
}

func (r *recorder) ConversationCreated(id string) { r.calls = append(r.calls, "created:"+id) }
func (r *recorder) MessageFragment(fragment string) { r.calls = append(r.calls, "message:"+fragment) }
func (r *recorder) MessageDone(msg model.Message) {
	r.calls = append(r.calls, "done_msg:"+msg.ID)
	r.msgs = append(r.msgs, msg)
}
func (r *recorder) FunctionCall(msg model.Message) {
	r.calls = append(r.calls, "function_call:"+msg.ID)
	r.msgs = append(r.msgs, msg)
}
func (r *recorder) UserMessageID(id string) { r.calls = append(r.calls, "user_id:"+id) }
func (r *recorder) Done() { r.calls = append(r.calls, "done") }
func (r *recorder) TitleUpdated(title string) { r.calls = append(r.calls, "title:"+title) }
func (r *recorder) AuthError() { r.calls = append(r.calls, "auth_error") }
func (r *recorder) APIError(text string) { r.calls = append(r.calls, "api_error:"+text) }

func TestDispatchRoutesEvents(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Name: EventConversationCreated, Data: "c1"}, "created:c1"},
		{Event{Name: EventMessage, Data: "Hi"}, "message:Hi"},
		{Event{Name: EventMessageDone, Data: `{"id":"m2","role":"assistant","content":"x","mcp_tool_use":null}`}, "done_msg:m2"},
		{Event{Name: EventFunctionCall, Data: `{"id":"m3","role":"function_call","content":"","mcp_tool_use":{"id":"t1","name":"search","args":{"q":"go"},"state":"pending"}}`}, "function_call:m3"},
		{Event{Name: EventUserMessageID, Data: "m1"}, "user_id:m1"},
		{Event{Name: EventDone}, "done"},
		{Event{Name: EventTitleUpdated, Data: "Greetings"}, "title:Greetings"},
		{Event{Name: EventAuthError}, "auth_error"},
		{Event{Name: EventAPIError, Data: "quota"}, "api_error:quota"},
	}

	for _, tt := range tests {
		t.Run(tt.ev.Name, func(t *testing.T) {
			rec := &recorder{}
			require.NoError(t, Dispatch(tt.ev, rec))
			assert.Equal(t, []string{tt.want}, rec.calls)
		})
	}
}

func TestDispatchIgnoresUnknownEvents(t *testing.T) {
	rec := &recorder{}
	require.NoError(t, Dispatch(Event{Name: "usage", Data: "{}"}, rec))
	assert.Empty(t, rec.calls)
}

func TestDispatchDecodesToolUse(t *testing.T) {
	rec := &recorder{}
	data := `{"id":"m3","role":"function_call","content":"","mcp_tool_use":{"id":"t1","name":"search","args":{"q":"go","n":3,"exact":true,"lang":null},"state":"pending"}}`
	require.NoError(t, Dispatch(Event{Name: EventFunctionCall, Data: data}, rec))
	require.Len(t, rec.msgs, 1)
	tu := rec.msgs[0].ToolUse
	require.NotNil(t, tu)
	assert.Equal(t, "search", tu.Name)
	assert.Equal(t, map[string]any{"q": "go", "n": float64(3), "exact": true, "lang": nil}, tu.Args)
	assert.True(t, rec.msgs[0].BlocksInput())
}

func TestDispatchInvalidPayload(t *testing.T) {
	rec := &recorder{}
	err := Dispatch(Event{Name: EventMessageDone, Data: "{not json"}, rec)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, EventMessageDone, perr.Event)
	assert.Empty(t, rec.calls)
}

func TestPump(t *testing.T) {
	body := "event: user_message_id\r\ndata: m1\r\n\r\n" +
		"event: message\r\ndata: Hi\r\n\r\n" +
		"event: message\r\ndata:  there\r\n\r\n" +
		"event: message_done\r\ndata: {\"id\":\"m2\",\"role\":\"assistant\",\"content\":\"Hi there\",\"model\":\"gemini-2.0-flash\",\"mcp_tool_use\":null}\r\n\r\n" +
		"event: done\r\ndata:\r\n\r\n"

	rec := &recorder{}
	n, err := Pump(context.Background(), strings.NewReader(body), rec)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"user_id:m1", "message:Hi", "message: there", "done_msg:m2", "done"}, rec.calls)
}

func TestPumpStopsOnProtocolError(t *testing.T) {
	rec := &recorder{}
	n, err := Pump(context.Background(), strings.NewReader("event: message\ndata: a\n\ndata: orphan\n\n"), rec)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"message:a"}, rec.calls)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestPumpTransportError(t *testing.T) {
	_, err := Pump(context.Background(), failingReader{}, &recorder{})
	require.Error(t, err)
	var perr *ProtocolError
	assert.False(t, errors.As(err, &perr))
}

func TestPumpCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Pump(ctx, strings.NewReader("event: done\n\n"), &recorder{})
	assert.ErrorIs(t, err, context.Canceled)
}
