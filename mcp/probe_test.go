package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newTestMCPServer() *server.MCPServer {
	s := server.NewMCPServer("test-tools", "0.1.0", server.WithToolCapabilities(false))
	s.AddTool(
		mcptypes.NewTool("echo",
			mcptypes.WithDescription("Echo the input"),
			mcptypes.WithString("text", mcptypes.Required(), mcptypes.Description("Text to echo")),
		),
		func(ctx context.Context, req mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
			return mcptypes.NewToolResultText(req.GetString("text", "")), nil
		},
	)
	return s
}

func TestProbeStreamableHTTP(t *testing.T) {
	ts := httptest.NewServer(server.NewStreamableHTTPServer(newTestMCPServer()))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := Probe(ctx, ts.URL, map[string]string{"X-Test": "1"})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if res.Transport != TransportStreamableHTTP {
		t.Errorf("expected streamable HTTP, got %q", res.Transport)
	}
	if res.ServerName != "test-tools" {
		t.Errorf("expected server name test-tools, got %q", res.ServerName)
	}
	if len(res.Tools) != 1 || res.Tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", res.Tools)
	}

	converted := ConvertTools(res.Tools, "cfg")
	if got := RequiredArgs(converted[0].InputSchema); len(got) != 1 || got[0] != "text" {
		t.Errorf("expected required [text], got %v", got)
	}
}

func TestProbeUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := Probe(ctx, ts.URL, nil); err == nil {
		t.Fatal("expected error probing a server without MCP")
	}
}
