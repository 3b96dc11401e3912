// Package rpc holds the simulated device handlers and the closed registry
// mapping every terminal method name to one of them.
package rpc

// Method enumerates every method a terminal may call. Frames naming anything
// else take the method-not-found path.
type Method uint8

const (
	MethodPing Method = iota
	MethodAvailableTellers
	MethodCreateSession
	MethodRequestHelp
	MethodCallInitialized
	MethodRejoinCall
	MethodCloseSession
	MethodUpdateTerminalStatus
	MethodActionInit
	MethodCommandStart
	MethodReadCard
	MethodEjectCard
	MethodDispense
	MethodPresent
	MethodRetract
	MethodRequestSignature
	MethodCancelRequestSignature
	MethodConfirmTransaction
	MethodFulfillment
	MethodEJLog
	MethodSendMessage

	methodCount
)

var methodNames = [methodCount]string{
	MethodPing:                   "AvailabilityController.ping",
	MethodAvailableTellers:       "AvailabilityController.available_tellers",
	MethodCreateSession:          "SessionController.create_session",
	MethodRequestHelp:            "SessionController.request_help",
	MethodCallInitialized:        "SessionController.call_initialized",
	MethodRejoinCall:             "SessionController.rejoin_call",
	MethodCloseSession:           "SessionController.close_session",
	MethodUpdateTerminalStatus:   "TerminalStatusController.update_terminal_status",
	MethodActionInit:             "ActionServices.action_init",
	MethodCommandStart:           "ActionServices.command_start",
	MethodReadCard:               "CardReaderController.read_card",
	MethodEjectCard:              "CardReaderController.eject_card",
	MethodDispense:               "CashDispenserController.dispense",
	MethodPresent:                "CashDispenserController.present",
	MethodRetract:                "CashDispenserController.retract",
	MethodRequestSignature:       "SignatureController.request_signature",
	MethodCancelRequestSignature: "SignatureController.cancel_request_signature",
	MethodConfirmTransaction:     "TransactionEventsController.confirm_transaction",
	MethodFulfillment:            "TransactionEventsController.fulfillment",
	MethodEJLog:                  "EJController.ej_log",
	MethodSendMessage:            "ChatController.send_message",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, methodCount)
	for i, name := range methodNames {
		m[name] = Method(i)
	}
	return m
}()

// Notification methods emitted by the simulated devices.
const (
	NotifyConnectionEstablished = "connection_established"
	NotifyCallEstablished       = "SessionController.call_established"
	NotifyCallReestablished     = "SessionController.call_reestablished"
	NotifyCallEnded             = "SessionController.call_ended"
	NotifyCommandComplete       = "ActionServices.command_complete"
	NotifyCardRead              = "CardReaderController.card_read"
	NotifyDispenseComplete      = "CashDispenserController.dispense_complete"
	NotifySignatureCaptured     = "SignatureController.signature_captured"
	NotifyMessageReceived       = "ChatController.message_received"
)

// String returns the wire name of the method.
func (m Method) String() string {
	if m >= methodCount {
		return "unknown"
	}
	return methodNames[m]
}

// ParseMethod maps a wire name to its Method.
func ParseMethod(name string) (Method, bool) {
	m, ok := methodsByName[name]
	return m, ok
}

// Methods returns every method in declaration order.
func Methods() []Method {
	out := make([]Method, methodCount)
	for i := range out {
		out[i] = Method(i)
	}
	return out
}
