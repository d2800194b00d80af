package mcp

import (
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"moochat/model"
)

// ConvertTools converts tools reported by an MCP server into the shape the
// backend uses, tagging each with configID.
func ConvertTools(tools []mcptypes.Tool, configID string) []model.MCPTool {
	out := make([]model.MCPTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, model.MCPTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaToMap(t.InputSchema),
			ConfigID:    configID,
		})
	}
	return out
}

// schemaToMap flattens an MCP input schema into a JSON Schema object.
func schemaToMap(s mcptypes.ToolInputSchema) map[string]any {
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	props := s.Properties
	if props == nil {
		props = map[string]any{}
	}

	out := map[string]any{
		"type":       typ,
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Defs != nil {
		out["$defs"] = s.Defs
	}
	return out
}

// RequiredArgs returns the required argument names of a tool schema.
func RequiredArgs(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}
