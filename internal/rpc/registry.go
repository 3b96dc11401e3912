package rpc

import (
	"fmt"

	"github.com/leonletto/tellersim/internal/dispatch"
)

// Registry is the immutable method table handed to the dispatcher.
type Registry struct {
	handlers [methodCount]dispatch.Handler
}

// NewRegistry binds every Method to its handler. It fails if any method is
// left without one.
func NewRegistry(h *Handlers) (*Registry, error) {
	r := &Registry{}
	for _, m := range Methods() {
		fn := h.handlerFor(m)
		if fn == nil {
			return nil, fmt.Errorf("no handler bound for %s", m)
		}
		r.handlers[m] = fn
	}
	return r, nil
}

// Lookup implements dispatch.HandlerRegistry.
func (r *Registry) Lookup(name string) (dispatch.Handler, bool) {
	m, ok := ParseMethod(name)
	if !ok {
		return nil, false
	}
	return r.handlers[m], true
}

// handlerFor is the single place a Method is tied to code. Adding a Method
// without a case here makes NewRegistry fail at startup.
func (h *Handlers) handlerFor(m Method) dispatch.Handler {
	switch m {
	case MethodPing:
		return h.Availability.HandlePing
	case MethodAvailableTellers:
		return h.Availability.HandleAvailableTellers
	case MethodCreateSession:
		return h.Session.HandleCreate
	case MethodRequestHelp:
		return h.Session.HandleRequestHelp
	case MethodCallInitialized:
		return h.Session.HandleCallInitialized
	case MethodRejoinCall:
		return h.Session.HandleRejoinCall
	case MethodCloseSession:
		return h.Session.HandleClose
	case MethodUpdateTerminalStatus:
		return h.Terminal.HandleUpdateStatus
	case MethodActionInit:
		return h.Action.HandleInit
	case MethodCommandStart:
		return h.Action.HandleCommandStart
	case MethodReadCard:
		return h.CardReader.HandleRead
	case MethodEjectCard:
		return h.CardReader.HandleEject
	case MethodDispense:
		return h.Cash.HandleDispense
	case MethodPresent:
		return h.Cash.HandlePresent
	case MethodRetract:
		return h.Cash.HandleRetract
	case MethodRequestSignature:
		return h.Signature.HandleRequest
	case MethodCancelRequestSignature:
		return h.Signature.HandleCancel
	case MethodConfirmTransaction:
		return h.Transaction.HandleConfirm
	case MethodFulfillment:
		return h.Transaction.HandleFulfillment
	case MethodEJLog:
		return h.Terminal.HandleEJLog
	case MethodSendMessage:
		return h.Chat.HandleSendMessage
	default:
		return nil
	}
}
