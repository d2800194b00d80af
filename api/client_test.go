package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moochat/model"
)

func newTestServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithToken("tok"), WithRateLimit(0, 0))
}

func TestListAPIKeysSendsBearer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/api-keys", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"k1","provider":"google"},{"id":"k2","provider":"openai","name":"work"}]`)
	})
	c := newTestServer(t, mux)

	keys, err := c.ListAPIKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.APIKeyRef{
		{ID: "k1", Provider: "google"},
		{ID: "k2", Provider: "openai", Name: "work"},
	}, keys)
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"string detail", http.StatusNotFound, `{"detail":"Conversation not found"}`, "Conversation not found"},
		{"validation detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","model"],"msg":"field required"},{"msg":"bad key"}]}`, "field required; bad key"},
		{"plain text", http.StatusBadGateway, "upstream down\n", "upstream down"},
		{"empty", http.StatusInternalServerError, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/v1/conversations", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			c := newTestServer(t, mux)

			_, err := c.ListConversations(context.Background())
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.detail, apiErr.Detail)
		})
	}
}

func TestIsUnauthorized(t *testing.T) {
	assert.True(t, IsUnauthorized(&APIError{StatusCode: 401}))
	assert.True(t, IsUnauthorized(&APIError{StatusCode: 403}))
	assert.False(t, IsUnauthorized(&APIError{StatusCode: 404}))
	assert.False(t, IsUnauthorized(io.EOF))
	assert.True(t, IsNotFound(&APIError{StatusCode: 404}))
}

func TestGenerate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/generate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{
			"model":         "gemini-2.0-flash",
			"message":       "hello",
			"api_key_id":    "k1",
			"tool_decision": true,
		}, body)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: done\r\ndata:\r\n\r\n")
	})
	c := newTestServer(t, mux)

	body, err := c.Generate(context.Background(), GenerateRequest{
		Model:        "gemini-2.0-flash",
		Message:      "hello",
		APIKeyID:     "k1",
		ToolDecision: Bool(true),
	})
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "event: done\r\ndata:\r\n\r\n", string(data))
}

func TestGenerateErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/generate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"Unsupported LLM provider: foo"}`)
	})
	c := newTestServer(t, mux)

	_, err := c.Generate(context.Background(), GenerateRequest{Model: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "HTTP 400: Unsupported LLM provider: foo", apiErr.Error())
}

func TestLoginInstallsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "a@b.c", r.PostForm.Get("username"))
		assert.Equal(t, "pw", r.PostForm.Get("password"))
		_, _ = io.WriteString(w, `{"access_token":"new-token","token_type":"bearer"}`)
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer new-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	})
	c := newTestServer(t, mux)

	tok, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "new-token", tok.AccessToken)
	assert.Equal(t, "new-token", c.Token())

	status, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status)
}

func TestListMCPToolsFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/mcp-configs/tools", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cfg1", r.URL.Query().Get("config_id"))
		_, _ = io.WriteString(w, `[{"name":"search","description":"web search"}]`)
	})
	c := newTestServer(t, mux)

	tools, err := c.ListMCPTools(context.Background(), "cfg1")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].Name)
}

func TestDeleteNoContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v1/mcp-configs/cfg1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestServer(t, mux)

	require.NoError(t, c.DeleteMCPConfig(context.Background(), "cfg1"))
}

func TestRateLimitCanceledContext(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", WithRateLimit(1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListAPIKeys(ctx)
	require.Error(t, err)
}
