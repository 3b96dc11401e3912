package rpc

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/leonletto/tellersim/internal/dispatch"
)

// TerminalStatusRequest is the params object of update_terminal_status.
type TerminalStatusRequest struct {
	Status json.RawMessage `json:"status,omitempty"`
}

// EJLogRequest is an electronic journal line from the terminal.
type EJLogRequest struct {
	Message json.RawMessage `json:"message,omitempty"`
}

// TerminalHandler records status reports and journal lines sent by the
// terminal. Neither has a device behind it.
type TerminalHandler struct {
	logger *slog.Logger
}

// HandleUpdateStatus handles TerminalStatusController.update_terminal_status.
func (h *TerminalHandler) HandleUpdateStatus(ctx context.Context, call *dispatch.Call) (any, error) {
	var req TerminalStatusRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("terminal status", "action", "update_terminal_status", "conn", call.Conn.ID(), "status", string(req.Status))
	return ack, nil
}

// HandleEJLog handles EJController.ej_log.
func (h *TerminalHandler) HandleEJLog(ctx context.Context, call *dispatch.Call) (any, error) {
	var req EJLogRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("ej log", "action", "ej_log", "conn", call.Conn.ID(), "message", string(req.Message))
	return ack, nil
}
