package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, wantKey string, ids ...string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer "+wantKey {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
			return
		}
		fmt.Fprint(w, `{"object":"list","data":[`)
		for i, id := range ids {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id":%q,"object":"model","created":0,"owned_by":"system"}`, id)
		}
		fmt.Fprint(w, `]}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func anthropicServer(t *testing.T, wantKey string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("X-Api-Key") != wantKey {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"claude-3-5-haiku-latest","type":"model","display_name":"Claude Haiku 3.5","created_at":"2024-10-22T00:00:00Z"}],"has_more":false,"first_id":"claude-3-5-haiku-latest","last_id":"claude-3-5-haiku-latest"}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestOpenAIValidator(t *testing.T) {
	ts := openAIServer(t, "sk-good", "gpt-4o", "models/gemini-2.0-flash")
	ctx := context.Background()

	good, err := NewValidator(Config{Provider: "openai", BaseURL: ts.URL, APIKey: "sk-good"})
	require.NoError(t, err)
	require.NoError(t, good.Validate(ctx))

	ids, err := good.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o", "gemini-2.0-flash"}, ids)

	bad, err := NewValidator(Config{Provider: "google", BaseURL: ts.URL, APIKey: "sk-bad"})
	require.NoError(t, err)
	err = bad.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Google rejected the key")
}

func TestAnthropicValidator(t *testing.T) {
	ts := anthropicServer(t, "sk-ant-good")
	ctx := context.Background()

	good, err := NewValidator(Config{Provider: "anthropic", BaseURL: ts.URL, APIKey: "sk-ant-good"})
	require.NoError(t, err)
	require.NoError(t, good.Validate(ctx))

	ids, err := good.ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-3-5-haiku-latest"}, ids)

	bad, err := NewValidator(Config{Provider: "anthropic", BaseURL: ts.URL, APIKey: "nope"})
	require.NoError(t, err)
	assert.Error(t, bad.Validate(ctx))
}
