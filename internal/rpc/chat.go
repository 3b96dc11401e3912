package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/leonletto/tellersim/internal/dispatch"
)

// SendMessageRequest is a chat line typed by the customer.
type SendMessageRequest struct {
	Message json.RawMessage `json:"message,omitempty"`
}

// Text returns the message as typed. A value that is not a JSON string is
// returned as its JSON text.
func (r SendMessageRequest) Text() string {
	if len(r.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Message, &s); err == nil {
		return s
	}
	return string(r.Message)
}

// MessageReceived is the params of ChatController.message_received.
type MessageReceived struct {
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ChatHandler plays a teller that echoes every chat line.
type ChatHandler struct {
	delays Delays
	logger *slog.Logger
	now    func() time.Time
}

// HandleSendMessage handles ChatController.send_message.
func (h *ChatHandler) HandleSendMessage(ctx context.Context, call *dispatch.Call) (any, error) {
	var req SendMessageRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	text := req.Text()
	h.logger.Info("chat message", "action", "send_message", "message", text)

	call.After(h.delays.ChatEcho, NotifyMessageReceived, MessageReceived{
		From:      "teller",
		Message:   "Echo: " + text,
		Timestamp: h.now().Add(h.delays.ChatEcho).UnixMilli(),
	})
	return ack, nil
}
