package rpc

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/leonletto/tellersim/internal/dispatch"
)

// ConfirmTransactionRequest is the params object of confirm_transaction.
type ConfirmTransactionRequest struct {
	Type json.RawMessage `json:"type,omitempty"`
}

// FulfillmentResponse is the reply to fulfillment.
type FulfillmentResponse struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// TransactionHandler handles TransactionEventsController.
type TransactionHandler struct {
	logger *slog.Logger
}

// HandleConfirm handles TransactionEventsController.confirm_transaction.
func (h *TransactionHandler) HandleConfirm(ctx context.Context, call *dispatch.Call) (any, error) {
	var req ConfirmTransactionRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("transaction confirmed", "action", "confirm_transaction", "type", string(req.Type))
	return ack, nil
}

// HandleFulfillment handles TransactionEventsController.fulfillment.
func (h *TransactionHandler) HandleFulfillment(ctx context.Context, call *dispatch.Call) (any, error) {
	h.logger.Info("transaction fulfilled", "action", "fulfillment")
	return FulfillmentResponse{
		Success: true,
		Status:  0,
		Message: "Transaction completed successfully",
	}, nil
}
