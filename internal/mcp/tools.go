package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultRecentLimit = 50

func (s *Server) handleSendNotification(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input SendNotificationInput,
) (*gomcp.CallToolResult, SendNotificationOutput, error) {
	if input.Method == "" {
		return nil, SendNotificationOutput{}, fmt.Errorf("'method' is required")
	}

	var params json.RawMessage
	if input.Params != nil {
		raw, err := json.Marshal(input.Params)
		if err != nil {
			return nil, SendNotificationOutput{}, fmt.Errorf("encode params: %w", err)
		}
		params = raw
	}

	delivered, err := s.bridge.SendNotification(ctx, input.Method, params)
	if err != nil {
		return nil, SendNotificationOutput{}, fmt.Errorf("send notification: %w", err)
	}
	return nil, SendNotificationOutput{Method: input.Method, Delivered: delivered}, nil
}

func (s *Server) handleClientCount(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input ClientCountInput,
) (*gomcp.CallToolResult, ClientCountOutput, error) {
	return nil, ClientCountOutput{Count: s.bridge.ClientCount()}, nil
}

func (s *Server) handleRecentMessages(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input RecentMessagesInput,
) (*gomcp.CallToolResult, RecentMessagesOutput, error) {
	switch input.Direction {
	case "", "incoming", "outgoing":
	default:
		return nil, RecentMessagesOutput{}, fmt.Errorf("invalid direction %q: must be incoming or outgoing", input.Direction)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	msgs := s.bridge.Recent(limit, input.Direction)
	if msgs == nil {
		msgs = []MessageInfo{}
	}
	return nil, RecentMessagesOutput{Messages: msgs, Count: len(msgs)}, nil
}

func (s *Server) handleWaitForMessage(
	ctx context.Context,
	req *gomcp.CallToolRequest,
	input WaitForMessageInput,
) (*gomcp.CallToolResult, WaitForMessageOutput, error) {
	out, err := s.bridge.WaitForMessage(ctx, input.Timeout)
	if err != nil {
		return nil, WaitForMessageOutput{}, fmt.Errorf("wait for message: %w", err)
	}
	return nil, *out, nil
}
