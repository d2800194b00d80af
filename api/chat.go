package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNoBody is returned when a generate response carries no readable stream.
var ErrNoBody = errors.New("response has no body")

// GenerateRequest is the body of POST /chat/generate.
// A nil ConversationID asks the backend to create a new conversation.
type GenerateRequest struct {
	ConversationID *string `json:"conversation_id,omitempty"`
	Model          string  `json:"model"`
	Message        string  `json:"message"`
	APIKeyID       string  `json:"api_key_id"`
	Reasoning      *bool   `json:"reasoning,omitempty"`
	ToolCalling    *bool   `json:"tool_calling,omitempty"`
	ToolDecision   *bool   `json:"tool_decision,omitempty"`
}

// Generate opens the event stream for a chat turn. The caller must close the
// returned body. Non-success statuses are returned as *APIError.
func (c *Client) Generate(ctx context.Context, gr GenerateRequest) (io.ReadCloser, error) {
	data, err := json.Marshal(gr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generate request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, Prefix+"/chat/generate", nil, bytes.NewReader(data), "application/json")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoBody
	}
	return resp.Body, nil
}

// Bool returns a pointer to b, for optional request fields.
func Bool(b bool) *bool {
	return &b
}

// String returns a pointer to s, for optional request fields.
func String(s string) *string {
	return &s
}
