package api

import (
	"context"
	"net/http"
	"net/url"

	"moochat/model"
)

// APIKeyCreate is the body of POST /api-keys. Key is the raw provider secret.
type APIKeyCreate struct {
	Provider string `json:"provider"`
	Name     string `json:"name,omitempty"`
	Key      string `json:"key"`
}

// APIKeyUpdate is the body of PUT /api-keys/{id}.
type APIKeyUpdate struct {
	Name *string `json:"name,omitempty"`
	Key  *string `json:"key,omitempty"`
}

// ListAPIKeys returns the caller's key references.
func (c *Client) ListAPIKeys(ctx context.Context) ([]model.APIKeyRef, error) {
	var keys []model.APIKeyRef
	err := c.doJSON(ctx, http.MethodGet, Prefix+"/api-keys", nil, nil, &keys)
	return keys, err
}

// CreateAPIKey uploads a provider key and returns its reference.
func (c *Client) CreateAPIKey(ctx context.Context, in APIKeyCreate) (model.APIKeyRef, error) {
	var key model.APIKeyRef
	err := c.doJSON(ctx, http.MethodPost, Prefix+"/api-keys", nil, in, &key)
	return key, err
}

func (c *Client) UpdateAPIKey(ctx context.Context, id string, in APIKeyUpdate) (model.APIKeyRef, error) {
	var key model.APIKeyRef
	err := c.doJSON(ctx, http.MethodPut, Prefix+"/api-keys/"+url.PathEscape(id), nil, in, &key)
	return key, err
}

func (c *Client) DeleteAPIKey(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, Prefix+"/api-keys/"+url.PathEscape(id), nil, nil, nil)
}

// ListConversations returns the caller's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := c.doJSON(ctx, http.MethodGet, Prefix+"/conversations", nil, nil, &convs)
	return convs, err
}

func (c *Client) CreateConversation(ctx context.Context, title string) (model.Conversation, error) {
	body := map[string]any{}
	if title != "" {
		body["title"] = title
	}
	var conv model.Conversation
	err := c.doJSON(ctx, http.MethodPost, Prefix+"/conversations", nil, body, &conv)
	return conv, err
}

func (c *Client) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	var conv model.Conversation
	err := c.doJSON(ctx, http.MethodGet, Prefix+"/conversations/"+url.PathEscape(id), nil, nil, &conv)
	return conv, err
}

func (c *Client) RenameConversation(ctx context.Context, id, title string) (model.Conversation, error) {
	var conv model.Conversation
	err := c.doJSON(ctx, http.MethodPut, Prefix+"/conversations/"+url.PathEscape(id), nil,
		map[string]string{"title": title}, &conv)
	return conv, err
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, Prefix+"/conversations/"+url.PathEscape(id), nil, nil, nil)
}

// ListMessages returns a conversation's finalized messages in chronological order.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	err := c.doJSON(ctx, http.MethodGet, Prefix+"/conversations/"+url.PathEscape(conversationID)+"/messages", nil, nil, &msgs)
	return msgs, err
}

// MCPConfigInput is the body for creating or updating an MCP config.
type MCPConfigInput struct {
	Name          string         `json:"name,omitempty"`
	URL           string         `json:"url,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

func (c *Client) ListMCPConfigs(ctx context.Context) ([]model.MCPConfig, error) {
	var cfgs []model.MCPConfig
	err := c.doJSON(ctx, http.MethodGet, Prefix+"/mcp-configs", nil, nil, &cfgs)
	return cfgs, err
}

func (c *Client) GetMCPConfig(ctx context.Context, id string) (model.MCPConfig, error) {
	var cfg model.MCPConfig
	err := c.doJSON(ctx, http.MethodGet, Prefix+"/mcp-configs/"+url.PathEscape(id), nil, nil, &cfg)
	return cfg, err
}

func (c *Client) CreateMCPConfig(ctx context.Context, in MCPConfigInput) (model.MCPConfig, error) {
	var cfg model.MCPConfig
	err := c.doJSON(ctx, http.MethodPost, Prefix+"/mcp-configs", nil, in, &cfg)
	return cfg, err
}

func (c *Client) UpdateMCPConfig(ctx context.Context, id string, in MCPConfigInput) (model.MCPConfig, error) {
	var cfg model.MCPConfig
	err := c.doJSON(ctx, http.MethodPut, Prefix+"/mcp-configs/"+url.PathEscape(id), nil, in, &cfg)
	return cfg, err
}

func (c *Client) DeleteMCPConfig(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, Prefix+"/mcp-configs/"+url.PathEscape(id), nil, nil, nil)
}

// ListMCPTools returns tools across all of the caller's MCP configs, or only
// those of configID when it is non-empty.
func (c *Client) ListMCPTools(ctx context.Context, configID string) ([]model.MCPTool, error) {
	var q url.Values
	if configID != "" {
		q = url.Values{"config_id": {configID}}
	}
	var tools []model.MCPTool
	err := c.doJSON(ctx, http.MethodGet, Prefix+"/mcp-configs/tools", q, nil, &tools)
	return tools, err
}

// ListConfigTools returns the tools of one MCP config.
func (c *Client) ListConfigTools(ctx context.Context, configID string) ([]model.MCPTool, error) {
	var tools []model.MCPTool
	err := c.doJSON(ctx, http.MethodGet, Prefix+"/mcp-configs/"+url.PathEscape(configID)+"/tools", nil, nil, &tools)
	return tools, err
}

func (c *Client) ListPreconfigured(ctx context.Context) ([]model.PreconfiguredMCPConfig, error) {
	var out []model.PreconfiguredMCPConfig
	err := c.doJSON(ctx, http.MethodGet, Prefix+"/mcp-configs/preconfigured", nil, nil, &out)
	return out, err
}

func (c *Client) TogglePreconfigured(ctx context.Context, code string, enabled bool) (model.PreconfiguredMCPConfig, error) {
	var out model.PreconfiguredMCPConfig
	err := c.doJSON(ctx, http.MethodPost, Prefix+"/mcp-configs/preconfigured/"+url.PathEscape(code)+"/toggle", nil,
		map[string]bool{"enabled": enabled}, &out)
	return out, err
}

// Health checks the server's liveness endpoint.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
