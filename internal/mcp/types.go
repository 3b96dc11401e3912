package mcp

import "encoding/json"

// SendNotificationInput is the input for the send_notification MCP tool.
type SendNotificationInput struct {
	Method string         `json:"method" jsonschema:"Notification method, e.g. CardReaderController.card_read"`
	Params map[string]any `json:"params,omitempty" jsonschema:"Notification params object"`
}

// SendNotificationOutput is the output for the send_notification MCP tool.
type SendNotificationOutput struct {
	Method    string `json:"method"`
	Delivered int    `json:"delivered" jsonschema:"Number of terminals the notification reached"`
}

// ClientCountInput is the input for the client_count MCP tool.
type ClientCountInput struct{}

// ClientCountOutput is the output for the client_count MCP tool.
type ClientCountOutput struct {
	Count int `json:"count" jsonschema:"Connected terminals"`
}

// RecentMessagesInput is the input for the recent_messages MCP tool.
type RecentMessagesInput struct {
	Limit     int    `json:"limit,omitempty" jsonschema:"Max messages to return, newest last. Default 50"`
	Direction string `json:"direction,omitempty" jsonschema:"Filter: incoming, outgoing, or empty for both"`
}

// MessageInfo is one mirrored frame seen by the bridge.
type MessageInfo struct {
	Direction string          `json:"direction"`
	ConnID    string          `json:"conn_id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Message   json.RawMessage `json:"message"`
	Timestamp int64           `json:"timestamp"`
}

// RecentMessagesOutput is the output for the recent_messages MCP tool.
type RecentMessagesOutput struct {
	Messages []MessageInfo `json:"messages"`
	Count    int           `json:"count"`
}

// WaitForMessageInput is the input for the wait_for_message MCP tool.
type WaitForMessageInput struct {
	Timeout int `json:"timeout,omitempty" jsonschema:"Max seconds to wait. Default 30, max 600"`
}

// WaitForMessageOutput is the output for the wait_for_message MCP tool.
type WaitForMessageOutput struct {
	Status        string       `json:"status" jsonschema:"Result: message_received or timeout"`
	Message       *MessageInfo `json:"message,omitempty"`
	WaitedSeconds int          `json:"waited_seconds"`
}
