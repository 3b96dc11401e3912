package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/leonletto/tellersim/internal/dispatch"
	"github.com/leonletto/tellersim/internal/ratelimit"
	"github.com/leonletto/tellersim/internal/transport"
)

// Observer event and command types.
const (
	EventClientCount      = "client_count"
	EventMessageLog       = "message_log"
	EventNotificationSent = "notification_sent"
	EventError            = "error"

	CommandSendNotification = "send_notification"
)

// ClientCountEvent reports the number of connected terminals.
type ClientCountEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// MessageLogEvent carries one mirrored frame.
type MessageLogEvent struct {
	Type      string          `json:"type"`
	Direction string          `json:"direction"`
	Message   json.RawMessage `json:"message"`
	ConnID    string          `json:"conn_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NotificationSentEvent acknowledges an injection.
type NotificationSentEvent struct {
	Type      string `json:"type"`
	Method    string `json:"method"`
	Delivered int    `json:"delivered"`
}

// ErrorEvent rejects an observer command.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ObserverCommand is a frame sent by an observer.
type ObserverCommand struct {
	Type   string          `json:"type"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

func newClientCountEvent(count int) ClientCountEvent {
	return ClientCountEvent{Type: EventClientCount, Count: count}
}

func newMessageLogEvent(e dispatch.Entry) MessageLogEvent {
	return MessageLogEvent{
		Type:      EventMessageLog,
		Direction: string(e.Direction),
		Message:   e.Message,
		ConnID:    e.ConnID,
		Timestamp: e.At.UnixMilli(),
	}
}

// Injector broadcasts a notification to every terminal.
type Injector interface {
	Inject(method string, params json.RawMessage) (int, error)
}

// observerHandler executes commands arriving on the observer channel.
type observerHandler struct {
	injector Injector
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

func (h *observerHandler) handle(ctx context.Context, c *Connection, data []byte) {
	var cmd ObserverCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		h.logger.Warn("invalid observer command", "conn", c.ID(), "error", err)
		h.reply(c, ErrorEvent{Type: EventError, Message: "invalid command: " + err.Error()})
		return
	}

	h.logger.Debug("observer command", "conn", c.ID(), "endpoint", transport.FromContext(ctx).String(), "type", cmd.Type)

	switch cmd.Type {
	case CommandSendNotification:
		h.sendNotification(c, cmd)
	default:
		h.logger.Warn("unknown observer command", "conn", c.ID(), "type", cmd.Type)
		h.reply(c, ErrorEvent{Type: EventError, Message: "unknown command type: " + cmd.Type})
	}
}

func (h *observerHandler) sendNotification(c *Connection, cmd ObserverCommand) {
	if cmd.Method == "" {
		h.reply(c, ErrorEvent{Type: EventError, Message: "send_notification requires a method"})
		return
	}
	if err := h.limiter.Allow(c.ID()); err != nil {
		h.logger.Warn("observer injection limited", "conn", c.ID(), "method", cmd.Method)
		h.reply(c, ErrorEvent{Type: EventError, Message: err.Error()})
		return
	}

	delivered, err := h.injector.Inject(cmd.Method, cmd.Params)
	if err != nil {
		h.logger.Error("inject notification", "conn", c.ID(), "method", cmd.Method, "error", err)
		h.reply(c, ErrorEvent{Type: EventError, Message: err.Error()})
		return
	}

	h.logger.Info("notification injected", "conn", c.ID(), "method", cmd.Method, "delivered", delivered)
	h.reply(c, NotificationSentEvent{Type: EventNotificationSent, Method: cmd.Method, Delivered: delivered})
}

func (h *observerHandler) reply(c *Connection, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := c.Send(data); err != nil {
		h.logger.Debug("observer reply failed", "conn", c.ID(), "error", err)
	}
}
