package rpc

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/leonletto/tellersim/internal/dispatch"
)

// Fixed device output.
const (
	mockTrack1 = "B1234567890123456^DOE/JOHN^25121011234567890123"
	mockTrack2 = "1234567890123456=25121011234567890"

	// SignaturePNG is a 1x1 transparent PNG as a data URL.
	SignaturePNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg=="
)

// CardRead is the params of CardReaderController.card_read.
type CardRead struct {
	Success  bool     `json:"success"`
	CardData CardData `json:"card_data"`
}

// CardData holds the magnetic stripe tracks.
type CardData struct {
	Track1 string `json:"track1"`
	Track2 string `json:"track2"`
	Track3 string `json:"track3"`
}

// CardReaderHandler simulates the card reader.
type CardReaderHandler struct {
	delays Delays
	logger *slog.Logger
}

// HandleRead handles CardReaderController.read_card.
func (h *CardReaderHandler) HandleRead(ctx context.Context, call *dispatch.Call) (any, error) {
	h.logger.Info("reading card", "action", "read_card", "conn", call.Conn.ID())

	call.After(h.delays.CardRead, NotifyCardRead, CardRead{
		Success:  true,
		CardData: CardData{Track1: mockTrack1, Track2: mockTrack2},
	})
	return ack, nil
}

// HandleEject handles CardReaderController.eject_card.
func (h *CardReaderHandler) HandleEject(ctx context.Context, call *dispatch.Call) (any, error) {
	h.logger.Info("ejecting card", "action", "eject_card", "conn", call.Conn.ID())
	return ack, nil
}

// DispenseRequest is the params object of dispense.
type DispenseRequest struct {
	Amount json.RawMessage `json:"amount,omitempty"`
	Notes  json.RawMessage `json:"notes,omitempty"`
}

// DispenseComplete is the params of CashDispenserController.dispense_complete.
type DispenseComplete struct {
	Success bool            `json:"success"`
	Amount  json.RawMessage `json:"amount,omitempty"`
	Notes   json.RawMessage `json:"notes"`
}

// CashDispenserHandler simulates the cash dispenser.
type CashDispenserHandler struct {
	delays Delays
	logger *slog.Logger
}

// HandleDispense handles CashDispenserController.dispense.
func (h *CashDispenserHandler) HandleDispense(ctx context.Context, call *dispatch.Call) (any, error) {
	var req DispenseRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("dispensing", "action", "dispense", "amount", string(req.Amount))

	notes := req.Notes
	if len(notes) == 0 || string(notes) == "null" {
		notes = json.RawMessage("[]")
	}
	call.After(h.delays.DispenseComplete, NotifyDispenseComplete, DispenseComplete{
		Success: true,
		Amount:  req.Amount,
		Notes:   notes,
	})
	return ack, nil
}

// HandlePresent handles CashDispenserController.present.
func (h *CashDispenserHandler) HandlePresent(ctx context.Context, call *dispatch.Call) (any, error) {
	h.logger.Info("presenting cash", "action", "present")
	return ack, nil
}

// HandleRetract handles CashDispenserController.retract.
func (h *CashDispenserHandler) HandleRetract(ctx context.Context, call *dispatch.Call) (any, error) {
	h.logger.Info("retracting cash", "action", "retract")
	return ack, nil
}

// SignatureRequest is the params object of request_signature.
type SignatureRequest struct {
	Source json.RawMessage `json:"source,omitempty"`
}

// SignatureCaptured is the params of SignatureController.signature_captured.
type SignatureCaptured struct {
	Success       bool   `json:"success"`
	ResponseCode  int    `json:"response_code"`
	SignatureData string `json:"signature_data"`
}

// SignatureHandler simulates the signature pad.
type SignatureHandler struct {
	delays Delays
	logger *slog.Logger
}

// HandleRequest handles SignatureController.request_signature.
func (h *SignatureHandler) HandleRequest(ctx context.Context, call *dispatch.Call) (any, error) {
	var req SignatureRequest
	if err := call.Bind(&req); err != nil {
		return nil, err
	}
	h.logger.Info("signature requested", "action", "request_signature", "source", string(req.Source))

	call.After(h.delays.SignatureCapture, NotifySignatureCaptured, SignatureCaptured{
		Success:       true,
		ResponseCode:  0,
		SignatureData: SignaturePNG,
	})
	return ack, nil
}

// HandleCancel handles SignatureController.cancel_request_signature.
func (h *SignatureHandler) HandleCancel(ctx context.Context, call *dispatch.Call) (any, error) {
	h.logger.Info("signature request cancelled", "action", "cancel_request_signature")
	return ack, nil
}
