package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"moochat/config"
)

const (
	TransportStreamableHTTP = "streamable-http"
	TransportSSE            = "sse"
)

// ProbeResult describes a reachable MCP server.
type ProbeResult struct {
	Transport     string
	ServerName    string
	ServerVersion string
	Tools         []mcptypes.Tool
}

func debugf(format string, args ...any) {
	if config.Debug && config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] "+format, args...)
	}
}

// Probe connects to the MCP server at serverURL, initializes a session and
// lists its tools. Streamable HTTP is tried first, then SSE.
func Probe(ctx context.Context, serverURL string, headers map[string]string) (*ProbeResult, error) {
	res, err := probeWith(ctx, TransportStreamableHTTP, serverURL, headers)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	debugf("streamable HTTP probe of %s failed, trying SSE: %v", serverURL, err)

	res, sseErr := probeWith(ctx, TransportSSE, serverURL, headers)
	if sseErr != nil {
		return nil, fmt.Errorf("failed to reach MCP server %s: %w", serverURL, errors.Join(err, sseErr))
	}
	return res, nil
}

func probeWith(ctx context.Context, kind, serverURL string, headers map[string]string) (*ProbeResult, error) {
	c, err := newClient(kind, serverURL, headers)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.GetTransport().Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start %s transport: %w", kind, err)
	}

	initResult, err := c.Initialize(ctx, mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: mcptypes.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "moochat",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}

	tools, err := c.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	debugf("probed %s over %s: %s %s, %d tools", serverURL, kind,
		initResult.ServerInfo.Name, initResult.ServerInfo.Version, len(tools.Tools))

	return &ProbeResult{
		Transport:     kind,
		ServerName:    initResult.ServerInfo.Name,
		ServerVersion: initResult.ServerInfo.Version,
		Tools:         tools.Tools,
	}, nil
}

func newClient(kind, serverURL string, headers map[string]string) (*client.Client, error) {
	switch kind {
	case TransportStreamableHTTP:
		var opts []transport.StreamableHTTPCOption
		if len(headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(headers))
		}
		return client.NewStreamableHttpClient(serverURL, opts...)
	case TransportSSE:
		var opts []transport.ClientOption
		if len(headers) > 0 {
			opts = append(opts, transport.WithHeaders(headers))
		}
		return client.NewSSEMCPClient(serverURL, opts...)
	default:
		return nil, fmt.Errorf("unknown transport type: %s", kind)
	}
}
