// Package dispatch routes decoded terminal frames to handlers, emits their
// replies, and tees every inbound and outbound frame to the mirror tap.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leonletto/tellersim/internal/jsonrpc"
	"github.com/leonletto/tellersim/internal/scheduler"
	"github.com/leonletto/tellersim/internal/transport"
)

// Terminals is the view of the connection registry the dispatcher needs.
type Terminals interface {
	// HasTerminal reports whether the connection is still registered.
	HasTerminal(connID string) bool
	// BroadcastToTerminals sends data to every registered terminal and
	// returns how many accepted it.
	BroadcastToTerminals(data []byte) int
}

// Options configures a Dispatcher. Handlers, Scheduler and Terminals are
// required.
type Options struct {
	Handlers  HandlerRegistry
	Scheduler *scheduler.Scheduler
	Terminals Terminals
	Mirror    Mirror
	Logger    *slog.Logger
}

// Dispatcher is safe for concurrent use by many connections. Frames from a
// single connection must be passed to HandleFrame one at a time.
type Dispatcher struct {
	handlers  HandlerRegistry
	scheduler *scheduler.Scheduler
	terminals Terminals
	mirror    Mirror
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a dispatcher.
func New(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mirror := opts.Mirror
	if mirror == nil {
		mirror = Mirrors(nil)
	}
	return &Dispatcher{
		handlers:  opts.Handlers,
		scheduler: opts.Scheduler,
		terminals: opts.Terminals,
		mirror:    mirror,
		logger:    logger.With("component", "dispatch"),
		now:       time.Now,
	}
}

// HandleFrame processes one raw inbound frame from conn. It never returns
// an error: every failure becomes a protocol reply or a log record.
func (d *Dispatcher) HandleFrame(ctx context.Context, conn Conn, data []byte) {
	endpoint := transport.FromContext(ctx)
	if endpoint == transport.EndpointUnknown {
		endpoint = transport.EndpointTerminal
		ctx = transport.WithEndpoint(ctx, endpoint)
	}
	d.logger.Debug("frame", "dir", "in", "conn", conn.ID(), "endpoint", endpoint.String(), "frame", string(data))

	msg, err := jsonrpc.Decode(data)
	if err != nil {
		reason := err.Error()
		var decErr *jsonrpc.DecodeError
		if errors.As(err, &decErr) {
			reason = decErr.Reason
		}
		d.logger.Warn("undecodable frame", "conn", conn.ID(), "reason", reason)
		d.mirrorRaw(Incoming, conn.ID(), rawForMirror(data))
		_ = d.reply(conn, jsonrpc.NewError(jsonrpc.NullID(), jsonrpc.CodeParseError, "Parse error", reason))
		return
	}

	if encoded, err := jsonrpc.Encode(msg); err == nil {
		d.mirrorRaw(Incoming, conn.ID(), encoded)
	}

	switch m := msg.(type) {
	case *jsonrpc.Request:
		d.handleRequest(ctx, conn, m)
	case *jsonrpc.Notification:
		d.handleNotification(ctx, conn, m)
	default:
		d.logger.Warn("dropping frame that is neither request nor notification",
			"conn", conn.ID(), "kind", msg.Kind().String())
	}
}

func (d *Dispatcher) handleRequest(ctx context.Context, conn Conn, req *jsonrpc.Request) {
	handler, ok := d.handlers.Lookup(req.Method)
	if !ok {
		d.logger.Info("method not found", "conn", conn.ID(), "method", req.Method)
		_ = d.reply(conn, jsonrpc.NewError(req.ID, jsonrpc.CodeMethodNotFound, "Method not found", req.Method))
		return
	}

	id := req.ID
	call := &Call{Method: req.Method, Params: defaultParams(req.Params), ID: &id, Conn: conn}
	result, err := d.invoke(ctx, handler, call)
	if err != nil {
		d.logger.Error("handler failed", "conn", conn.ID(), "method", req.Method, "error", err)
		_ = d.reply(conn, errorReply(req.ID, err))
		return
	}

	if result != nil {
		resp, err := jsonrpc.NewResponse(req.ID, result)
		if err != nil {
			d.logger.Error("marshal result", "conn", conn.ID(), "method", req.Method, "error", err)
			_ = d.reply(conn, jsonrpc.NewError(req.ID, jsonrpc.CodeInternalError, "Internal error", err.Error()))
			return
		}
		_ = d.reply(conn, resp)
	}

	d.registerDeferred(conn, call)
}

func (d *Dispatcher) handleNotification(ctx context.Context, conn Conn, n *jsonrpc.Notification) {
	handler, ok := d.handlers.Lookup(n.Method)
	if !ok {
		d.logger.Info("dropping notification for unknown method", "conn", conn.ID(), "method", n.Method)
		return
	}

	call := &Call{Method: n.Method, Params: defaultParams(n.Params), Conn: conn}
	if _, err := d.invoke(ctx, handler, call); err != nil {
		d.logger.Error("notification handler failed", "conn", conn.ID(), "method", n.Method, "error", err)
		return
	}
	d.registerDeferred(conn, call)
}

// invoke runs the handler, converting a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, call *Call) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, call)
}

func (d *Dispatcher) registerDeferred(conn Conn, call *Call) {
	for _, n := range call.deferred {
		if _, err := d.Defer(conn, n.delay, n.method, n.params); err != nil {
			d.logger.Warn("schedule notification", "conn", conn.ID(), "method", n.method, "error", err)
		}
	}
}

// Notify sends a notification to conn immediately.
func (d *Dispatcher) Notify(conn Conn, method string, params any) error {
	data, err := encodeNotification(method, params)
	if err != nil {
		return err
	}
	return d.deliver(conn, data)
}

// Defer schedules a notification for conn. At fire time it is dropped
// silently if conn is no longer a registered terminal.
func (d *Dispatcher) Defer(conn Conn, delay time.Duration, method string, params any) (scheduler.Handle, error) {
	data, err := encodeNotification(method, params)
	if err != nil {
		return scheduler.Handle{}, err
	}
	connID := conn.ID()
	return d.scheduler.Schedule(connID, delay, func() {
		if !d.terminals.HasTerminal(connID) {
			d.logger.Debug("suppressed notification for closed connection", "conn", connID, "method", method)
			return
		}
		_ = d.deliver(conn, data)
	})
}

// Inject broadcasts a notification to every registered terminal and
// returns how many terminals accepted it. The frame is mirrored once.
func (d *Dispatcher) Inject(method string, params json.RawMessage) (int, error) {
	if method == "" {
		return 0, errors.New("inject: method is required")
	}
	if len(bytes.TrimSpace(params)) == 0 {
		params = nil
	}
	data, err := encodeNotification(method, params)
	if err != nil {
		return 0, err
	}
	delivered := d.terminals.BroadcastToTerminals(data)
	d.logger.Debug("frame", "dir", "out", "conn", "*", "frame", string(data), "delivered", delivered)
	d.mirrorRaw(Outgoing, "", data)
	return delivered, nil
}

func (d *Dispatcher) reply(conn Conn, m jsonrpc.Message) error {
	data, err := jsonrpc.Encode(m)
	if err != nil {
		d.logger.Error("encode reply", "conn", conn.ID(), "error", err)
		return err
	}
	return d.deliver(conn, data)
}

// deliver sends data and mirrors it only if the connection accepted it.
func (d *Dispatcher) deliver(conn Conn, data []byte) error {
	if err := conn.Send(data); err != nil {
		d.logger.Warn("delivery failed", "conn", conn.ID(), "remote", conn.RemoteAddr(), "error", err)
		return err
	}
	d.logger.Debug("frame", "dir", "out", "conn", conn.ID(), "frame", string(data))
	d.mirrorRaw(Outgoing, conn.ID(), data)
	return nil
}

func (d *Dispatcher) mirrorRaw(dir Direction, connID string, data []byte) {
	d.mirror.Mirror(Entry{Direction: dir, ConnID: connID, Message: json.RawMessage(data), At: d.now()})
}

func errorReply(id jsonrpc.ID, err error) *jsonrpc.ErrorResponse {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return &jsonrpc.ErrorResponse{ID: id, Error: rpcErr}
	}
	return jsonrpc.NewError(id, jsonrpc.CodeInternalError, "Internal error", err.Error())
}

func encodeNotification(method string, params any) ([]byte, error) {
	n, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return nil, fmt.Errorf("build %s notification: %w", method, err)
	}
	return jsonrpc.Encode(n)
}

func defaultParams(p json.RawMessage) json.RawMessage {
	if p == nil {
		return json.RawMessage("{}")
	}
	return p
}

func compactJSON(data []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
