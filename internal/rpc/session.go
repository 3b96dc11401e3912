package rpc

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/leonletto/tellersim/internal/dispatch"
	"github.com/leonletto/tellersim/internal/identity"
)

// CreateSessionRequest is the params object of create_session. The flag is
// only logged, so any JSON value is accepted.
type CreateSessionRequest struct {
	SelfService json.RawMessage `json:"selfservice,omitempty"`
}

// CreateSessionResponse carries the newly allocated session id.
type CreateSessionResponse struct {
	Success   bool  `json:"success"`
	SessionID int64 `json:"session_id"`
}

// RequestHelpRequest is the params object of request_help.
type RequestHelpRequest struct {
	Skills json.RawMessage `json:"skills,omitempty"`
}

// CallRequest carries a call id echoed back in notifications. The id is
// kept verbatim since terminals send both strings and numbers.
type CallRequest struct {
	CallID json.RawMessage `json:"call_id,omitempty"`
}

// CloseSessionRequest is the params object of close_session.
type CloseSessionRequest struct {
	SessionID json.RawMessage `json:"session_id,omitempty"`
}

// CallEstablished is the params of SessionController.call_established.
type CallEstablished struct {
	Call CallInfo `json:"call"`
}

// CallInfo identifies a teller call.
type CallInfo struct {
	ID     int64 `json:"id"`
	Teller int64 `json:"teller"`
}

// CallReestablished is the params of SessionController.call_reestablished.
type CallReestablished struct {
	Success bool            `json:"success"`
	CallID  json.RawMessage `json:"call_id,omitempty"`
}

// CallEnded is the params of SessionController.call_ended.
type CallEnded struct {
	SessionID json.RawMessage `json:"session_id,omitempty"`
}

// SessionHandler handles the SessionController methods.
type SessionHandler struct {
	mock     MockData
	counters *identity.Counters
	delays   Delays
	logger   *slog.Logger
}

// HandleCreate handles SessionController.create_session.
func (h *SessionHandler) HandleCreate(ctx context.Context, call *dispatch.Call) (any, error) {
	var req CreateSessionRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}

	id := h.counters.Session.Next()
	h.logger.Info("session created", "action", "create_session", "session_id", id, "selfservice", string(req.SelfService))

	return CreateSessionResponse{Success: true, SessionID: id}, nil
}

// HandleRequestHelp handles SessionController.request_help. The teller
// picks up after a delay; the call id is allocated now so every request
// gets a distinct one.
func (h *SessionHandler) HandleRequestHelp(ctx context.Context, call *dispatch.Call) (any, error) {
	var req RequestHelpRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}

	callID := h.counters.Call.Next()
	h.logger.Info("help requested", "action", "request_help", "skills", string(req.Skills), "call_id", callID)

	call.After(h.delays.CallEstablished, NotifyCallEstablished, CallEstablished{
		Call: CallInfo{ID: callID, Teller: h.mock.TellerID},
	})
	return ack, nil
}

// HandleCallInitialized handles SessionController.call_initialized.
func (h *SessionHandler) HandleCallInitialized(ctx context.Context, call *dispatch.Call) (any, error) {
	var req CallRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("call initialized", "action", "call_initialized", "call_id", string(req.CallID))
	return ack, nil
}

// HandleRejoinCall handles SessionController.rejoin_call.
func (h *SessionHandler) HandleRejoinCall(ctx context.Context, call *dispatch.Call) (any, error) {
	var req CallRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("rejoining call", "action", "rejoin_call", "call_id", string(req.CallID))

	call.After(h.delays.CallReestablish, NotifyCallReestablished, CallReestablished{Success: true, CallID: req.CallID})
	return ack, nil
}

// HandleClose handles SessionController.close_session.
func (h *SessionHandler) HandleClose(ctx context.Context, call *dispatch.Call) (any, error) {
	var req CloseSessionRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("closing session", "action", "close_session", "session_id", string(req.SessionID))

	call.After(h.delays.CallEnded, NotifyCallEnded, CallEnded{SessionID: req.SessionID})
	return ack, nil
}
