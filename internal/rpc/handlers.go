package rpc

import (
	"log/slog"
	"time"

	"github.com/leonletto/tellersim/internal/identity"
)

// MockData is the reference data the simulated back office answers with.
type MockData struct {
	TellerID        int64
	TellerFirstName string
	TellerLastName  string
	TellerUsername  string
}

// DefaultMockData returns the stock teller.
func DefaultMockData() MockData {
	return MockData{
		TellerID:        100,
		TellerFirstName: "John",
		TellerLastName:  "Doe",
		TellerUsername:  "john.doe",
	}
}

// Delays is the simulated latency of each device before it reports back.
type Delays struct {
	CallEstablished  time.Duration
	CallReestablish  time.Duration
	CallEnded        time.Duration
	CommandComplete  time.Duration
	CardRead         time.Duration
	DispenseComplete time.Duration
	SignatureCapture time.Duration
	ChatEcho         time.Duration
}

// DefaultDelays returns latencies resembling real hardware.
func DefaultDelays() Delays {
	return Delays{
		CallEstablished:  1000 * time.Millisecond,
		CallReestablish:  500 * time.Millisecond,
		CallEnded:        500 * time.Millisecond,
		CommandComplete:  1000 * time.Millisecond,
		CardRead:         2000 * time.Millisecond,
		DispenseComplete: 3000 * time.Millisecond,
		SignatureCapture: 2000 * time.Millisecond,
		ChatEcho:         500 * time.Millisecond,
	}
}

// Deps are the collaborators shared by every handler.
type Deps struct {
	Mock     MockData
	Counters *identity.Counters
	Delays   Delays
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handlers groups the per-controller handlers.
type Handlers struct {
	Availability *AvailabilityHandler
	Session      *SessionHandler
	Terminal     *TerminalHandler
	Action       *ActionHandler
	CardReader   *CardReaderHandler
	Cash         *CashDispenserHandler
	Signature    *SignatureHandler
	Transaction  *TransactionHandler
	Chat         *ChatHandler
}

// NewHandlers builds every controller from deps.
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "handler")
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Counters == nil {
		deps.Counters = identity.NewCounters(1001, 2001, 1)
	}

	return &Handlers{
		Availability: &AvailabilityHandler{mock: deps.Mock, logger: logger},
		Session:      &SessionHandler{mock: deps.Mock, counters: deps.Counters, delays: deps.Delays, logger: logger},
		Terminal:     &TerminalHandler{logger: logger},
		Action:       &ActionHandler{delays: deps.Delays, logger: logger},
		CardReader:   &CardReaderHandler{delays: deps.Delays, logger: logger},
		Cash:         &CashDispenserHandler{delays: deps.Delays, logger: logger},
		Signature:    &SignatureHandler{delays: deps.Delays, logger: logger},
		Transaction:  &TransactionHandler{logger: logger},
		Chat:         &ChatHandler{delays: deps.Delays, logger: logger, now: deps.Now},
	}
}

// SuccessResponse is the plain acknowledgement most device calls reply with.
type SuccessResponse struct {
	Success bool `json:"success"`
}

var ack = SuccessResponse{Success: true}
