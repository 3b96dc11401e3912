package rpc

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/leonletto/tellersim/internal/dispatch"
)

// ActionInitRequest is the params object of action_init.
type ActionInitRequest struct {
	Action json.RawMessage `json:"action,omitempty"`
}

// ActionInitResponse lists the commands available for an action.
type ActionInitResponse struct {
	Action   json.RawMessage `json:"action,omitempty"`
	Status   string          `json:"status"`
	Commands []ActionCommand `json:"commands"`
	Data     struct{}        `json:"data"`
}

// ActionCommand is one button offered to the customer.
type ActionCommand struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

// CommandStartRequest is the params object of command_start.
type CommandStartRequest struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Command json.RawMessage `json:"command,omitempty"`
}

// CommandComplete is the params of ActionServices.command_complete.
type CommandComplete struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result string          `json:"result"`
	Detail struct{}        `json:"detail"`
}

// ActionHandler handles ActionServices.
type ActionHandler struct {
	delays Delays
	logger *slog.Logger
}

// HandleInit handles ActionServices.action_init.
func (h *ActionHandler) HandleInit(ctx context.Context, call *dispatch.Call) (any, error) {
	var req ActionInitRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("action init", "action", "action_init", "name", string(req.Action))

	return ActionInitResponse{
		Action: req.Action,
		Status: "ok",
		Commands: []ActionCommand{
			{ID: "confirm", Enabled: true, Label: "Confirm"},
			{ID: "cancel", Enabled: true, Label: "Cancel"},
		},
	}, nil
}

// HandleCommandStart handles ActionServices.command_start.
func (h *ActionHandler) HandleCommandStart(ctx context.Context, call *dispatch.Call) (any, error) {
	var req CommandStartRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("command started", "action", "command_start", "command", string(req.Command))

	call.After(h.delays.CommandComplete, NotifyCommandComplete, CommandComplete{ID: req.ID, Result: "success"})
	return ack, nil
}
