package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/leonletto/tellersim/internal/jsonrpc"
)

// Conn is the outbound side of a terminal connection as seen by the
// dispatcher. Send must be safe for concurrent use.
type Conn interface {
	ID() string
	RemoteAddr() string
	Send(data []byte) error
}

// Handler handles one Request or Notification. A nil result for a Request
// sends no reply. Returning a *jsonrpc.Error selects the error code; any
// other error becomes an internal error.
type Handler func(ctx context.Context, call *Call) (any, error)

// HandlerRegistry provides access to registered handlers.
type HandlerRegistry interface {
	// Lookup retrieves a handler by method name.
	// Returns the handler and true if found, nil and false otherwise.
	Lookup(method string) (Handler, bool)
}

// Call is a single handler invocation.
type Call struct {
	Method string
	// Params is never nil; an omitted params member arrives as {}.
	Params json.RawMessage
	// ID is nil when the call is a Notification.
	ID   *jsonrpc.ID
	Conn Conn

	deferred []deferredNotification
}

type deferredNotification struct {
	delay  time.Duration
	method string
	params any
}

// IsNotification reports whether the call expects no reply.
func (c *Call) IsNotification() bool {
	return c.ID == nil
}

// After asks for a notification to be sent to the calling connection once
// delay has elapsed. Nothing is scheduled unless the handler succeeds.
func (c *Call) After(delay time.Duration, method string, params any) {
	c.deferred = append(c.deferred, deferredNotification{delay: delay, method: method, params: params})
}

// Bind decodes the params object into v. Absent or null params leave v
// untouched. Anything other than an object is an invalid-params error.
func (c *Call) Bind(v any) error {
	raw := bytes.TrimSpace(c.Params)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '{' {
		return jsonrpc.InvalidParams("params must be an object")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return jsonrpc.InvalidParams(err.Error())
	}
	return nil
}
