package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string) ([]Event, error) {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var events []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestReaderLineEndings(t *testing.T) {
	want := []Event{
		{Name: "user_message_id", Data: "m1"},
		{Name: "message", Data: "Hi"},
		{Name: "done", Data: ""},
	}

	tests := []struct {
		name  string
		input string
	}{
		{"lf", "event: user_message_id\ndata: m1\n\nevent: message\ndata: Hi\n\nevent: done\ndata:\n\n"},
		{"crlf", "event: user_message_id\r\ndata: m1\r\n\r\nevent: message\r\ndata: Hi\r\n\r\nevent: done\r\ndata:\r\n\r\n"},
		{"cr", "event: user_message_id\rdata: m1\r\revent: message\rdata: Hi\r\revent: done\rdata:\r\r"},
		{"mixed", "event: user_message_id\r\ndata: m1\n\revent: message\ndata: Hi\r\n\nevent: done\rdata:\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readAll(t, tt.input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestReaderMultilineData(t *testing.T) {
	got, err := readAll(t, "event: message\ndata: line one\ndata: line two\ndata:\ndata: four\n\n")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "line one\nline two\n\nfour", got[0].Data)
}

func TestReaderPreservesDataSpacing(t *testing.T) {
	got, err := readAll(t, "event: message\ndata:  two spaces\n\nevent: message\ndata:nospace\n\n")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, " two spaces", got[0].Data)
	assert.Equal(t, "nospace", got[1].Data)
}

func TestReaderIgnoresCommentsAndExtraBlankLines(t *testing.T) {
	input := ": ping - 2025-01-01 00:00:00\r\n\r\n\r\nevent: message\r\nid: 4\r\nretry: 100\r\ndata: x\r\n\r\n"
	got, err := readAll(t, input)
	require.NoError(t, err)
	assert.Equal(t, []Event{{Name: "message", Data: "x"}}, got)
}

func TestReaderFlushesUnterminatedRecord(t *testing.T) {
	got, err := readAll(t, "event: message\ndata: a\n\nevent: done\ndata:")
	require.NoError(t, err)
	assert.Equal(t, []Event{{Name: "message", Data: "a"}, {Name: "done"}}, got)
}

func TestReaderEventLineClosesOpenRecord(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"crlf", "event: message\r\ndata: Hi\r\nevent: done\r\ndata:\r\n"},
		{"lf", "event: message\ndata: Hi\nevent: done\ndata:\n"},
		{"no data", "event: message\r\nevent: done\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readAll(t, tt.input)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "message", got[0].Name)
			assert.Equal(t, Event{Name: "done", Data: ""}, got[1])
		})
	}

	got, err := readAll(t, "event: message\r\ndata: Hi\r\nevent: done\r\ndata:\r\n")
	require.NoError(t, err)
	assert.Equal(t, []Event{{Name: "message", Data: "Hi"}, {Name: "done", Data: ""}}, got)
}

func TestReaderEmptyStream(t *testing.T) {
	got, err := readAll(t, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReaderSplitReads(t *testing.T) {
	// CRLF split across reads must not yield an extra blank line
	r := NewReader(io.MultiReader(
		strings.NewReader("event: message\r"),
		strings.NewReader("\ndata: Hi\r"),
		strings.NewReader("\n\r"),
		strings.NewReader("\n"),
	))
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Name: "message", Data: "Hi"}, ev)
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderProtocolErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		reason string
	}{
		{"data before event", "data: x\n\n", 1, "data before event name"},
		{"no separator", "event: message\ngarbage\n\n", 2, "line has no field separator"},
		{"unknown field", "event: a\nfoo: bar\n\n", 2, `unknown field "foo"`},
		{"empty name", "event:   \n\n", 1, "empty event name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readAll(t, tt.input)
			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.line, perr.Line)
			assert.Equal(t, tt.reason, perr.Reason)
		})
	}
}

func TestProtocolErrorMessage(t *testing.T) {
	err := &ProtocolError{Line: 3, Event: "message_done", Reason: "invalid message payload", Err: io.ErrUnexpectedEOF}
	assert.Equal(t, `stream protocol error at line 3 (event "message_done"): invalid message payload: unexpected EOF`, err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
