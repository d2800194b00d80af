package model

// Conversation is a chat thread owned by a user.
type Conversation struct {
	ID     string  `json:"id"`
	Title  *string `json:"title"`
	UserID string  `json:"user_id,omitempty"`
}

// DisplayTitle returns the title or a placeholder for untitled conversations.
func (c Conversation) DisplayTitle() string {
	if c.Title == nil || *c.Title == "" {
		return "New conversation"
	}
	return *c.Title
}

// APIKeyRef points at a provider credential stored by the backend.
// The raw secret never leaves the backend.
type APIKeyRef struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Name     string `json:"name,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// MCPConfig is a user-configured tool server.
type MCPConfig struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id,omitempty"`
	Name          string         `json:"name"`
	URL           string         `json:"url"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// Headers extracts string-valued "headers" from the configuration blob, if present.
func (c MCPConfig) Headers() map[string]string {
	out := map[string]string{}
	raw, ok := c.Configuration["headers"].(map[string]any)
	if !ok {
		return out
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// MCPTool is a tool exposed by an MCP server.
type MCPTool struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	ConfigID    string         `json:"mcp_config_id,omitempty"`
}

// PreconfiguredMCPConfig is a built-in tool server the user can toggle.
type PreconfiguredMCPConfig struct {
	Code    string    `json:"code"`
	Enabled bool      `json:"enabled"`
	Tools   []MCPTool `json:"tools"`
}
