// Package mcp exposes a running simulator to MCP clients. The bridge
// attaches as an observer and turns injection and inspection into tools.
package mcp

import (
	"context"
	"encoding/json"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Bridge is the observer side the MCP tools operate on.
type Bridge interface {
	SendNotification(ctx context.Context, method string, params json.RawMessage) (int, error)
	ClientCount() int
	Recent(limit int, direction string) []MessageInfo
	WaitForMessage(ctx context.Context, timeout int) (*WaitForMessageOutput, error)
}

// Server is the tellersim MCP server.
type Server struct {
	bridge  Bridge
	version string
	server  *gomcp.Server
}

// Option configures the MCP server.
type Option func(*Server)

// WithVersion sets the server version string.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates an MCP server backed by bridge.
func NewServer(bridge Bridge, opts ...Option) *Server {
	s := &Server{
		bridge:  bridge,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{
			Name:    "tellersim",
			Version: s.version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP on stdin/stdout until the client disconnects or ctx is
// canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// Connect serves MCP over an arbitrary transport.
func (s *Server) Connect(ctx context.Context, t gomcp.Transport) (*gomcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "send_notification",
		Description: "Broadcast a JSON-RPC notification to every connected terminal, as a device or teller would",
	}, s.handleSendNotification)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "client_count",
		Description: "Number of terminals currently connected to the simulator",
	}, s.handleClientCount)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "recent_messages",
		Description: "Recent terminal traffic mirrored by the simulator, oldest first",
	}, s.handleRecentMessages)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "wait_for_message",
		Description: "Block until the next terminal frame is mirrored or the timeout expires",
	}, s.handleWaitForMessage)
}
