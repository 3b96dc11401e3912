package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	tsws "github.com/leonletto/tellersim/internal/websocket"
)

const (
	maxRecent          = 1000
	defaultWaitTimeout = 30  // seconds
	maxWaitTimeout     = 600 // seconds
	replyTimeout       = 10 * time.Second
)

// ErrDisconnected is returned once the observer connection has dropped.
var ErrDisconnected = errors.New("observer connection closed")

type commandReply struct {
	delivered int
	err       error
}

// Observer is an observer-channel client. It keeps the latest terminal
// count and a bounded history of mirrored frames, and sends injection
// commands one at a time.
type Observer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  *slog.Logger

	injectMu sync.Mutex
	replies  chan commandReply

	mu       sync.Mutex
	count    int
	recent   []MessageInfo
	received int
	waiterCh chan struct{}
	active   bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Dial connects to the observer endpoint at wsURL.
func Dial(ctx context.Context, wsURL string, header http.Header, logger *slog.Logger) (*Observer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("connect to observer endpoint at %s: %w", wsURL, err)
	}

	oCtx, cancel := context.WithCancel(context.Background())
	o := &Observer{
		conn:    conn,
		logger:  logger.With("component", "mcp-observer"),
		replies: make(chan commandReply, 1),
		ctx:     oCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go o.readLoop()
	return o, nil
}

func (o *Observer) readLoop() {
	defer close(o.done)
	defer func() {
		o.mu.Lock()
		o.closed = true
		if o.waiterCh != nil {
			close(o.waiterCh)
			o.waiterCh = nil
		}
		o.mu.Unlock()
	}()

	for {
		_, data, err := o.conn.ReadMessage()
		if err != nil {
			if o.ctx.Err() == nil {
				o.logger.Warn("observer read failed", "error", err)
			}
			return
		}
		o.route(data)
	}
}

func (o *Observer) route(data []byte) {
	var event struct {
		Type      string          `json:"type"`
		Count     int             `json:"count"`
		Direction string          `json:"direction"`
		Message   json.RawMessage `json:"message"`
		ConnID    string          `json:"conn_id"`
		Timestamp int64           `json:"timestamp"`
		Delivered int             `json:"delivered"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		o.logger.Debug("skip unparseable observer event", "error", err)
		return
	}

	switch event.Type {
	case tsws.EventClientCount:
		o.mu.Lock()
		o.count = event.Count
		o.mu.Unlock()

	case tsws.EventMessageLog:
		info := MessageInfo{
			Direction: event.Direction,
			ConnID:    event.ConnID,
			Method:    methodOf(event.Message),
			Message:   event.Message,
			Timestamp: event.Timestamp,
		}
		o.mu.Lock()
		if len(o.recent) >= maxRecent {
			o.recent = o.recent[1:]
		}
		o.recent = append(o.recent, info)
		o.received++
		if o.waiterCh != nil {
			close(o.waiterCh)
			o.waiterCh = nil
		}
		o.mu.Unlock()

	case tsws.EventNotificationSent:
		o.reply(commandReply{delivered: event.Delivered})

	case tsws.EventError:
		var e tsws.ErrorEvent
		_ = json.Unmarshal(data, &e)
		o.reply(commandReply{err: errors.New(e.Message)})
	}
}

func (o *Observer) reply(r commandReply) {
	select {
	case o.replies <- r:
	default:
		o.logger.Debug("dropping unsolicited command reply")
	}
}

// ClientCount returns the last terminal count reported by the simulator.
func (o *Observer) ClientCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// Recent returns up to limit frames, oldest first. An empty direction
// matches both.
func (o *Observer) Recent(limit int, direction string) []MessageInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]MessageInfo, 0, len(o.recent))
	for _, m := range o.recent {
		if direction == "" || m.Direction == direction {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// SendNotification injects a notification and waits for the simulator's
// acknowledgement.
func (o *Observer) SendNotification(ctx context.Context, method string, params json.RawMessage) (int, error) {
	o.injectMu.Lock()
	defer o.injectMu.Unlock()

	// Drain a stale reply left by an earlier timed out command.
	select {
	case <-o.replies:
	default:
	}

	cmd := tsws.ObserverCommand{Type: tsws.CommandSendNotification, Method: method, Params: params}
	o.writeMu.Lock()
	err := o.conn.WriteJSON(cmd)
	o.writeMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("write command: %w", err)
	}

	timer := time.NewTimer(replyTimeout)
	defer timer.Stop()
	select {
	case r := <-o.replies:
		return r.delivered, r.err
	case <-o.done:
		return 0, ErrDisconnected
	case <-timer.C:
		return 0, fmt.Errorf("no reply to %s within %s", method, replyTimeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// WaitForMessage blocks until the next mirrored frame arrives or the
// timeout expires.
func (o *Observer) WaitForMessage(ctx context.Context, timeout int) (*WaitForMessageOutput, error) {
	if timeout <= 0 {
		timeout = defaultWaitTimeout
	}
	if timeout > maxWaitTimeout {
		timeout = maxWaitTimeout
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrDisconnected
	}
	if o.active {
		o.mu.Unlock()
		return nil, fmt.Errorf("another wait_for_message is already active")
	}
	o.active = true
	seen := o.received
	ch := make(chan struct{})
	o.waiterCh = ch
	o.mu.Unlock()

	start := time.Now()
	timer := time.NewTimer(time.Duration(timeout) * time.Second)
	defer timer.Stop()

	finish := func() {
		o.mu.Lock()
		o.active = false
		if o.waiterCh == ch {
			o.waiterCh = nil
		}
		o.mu.Unlock()
	}

	select {
	case <-ch:
		o.mu.Lock()
		o.active = false
		if o.received == seen {
			o.mu.Unlock()
			return nil, ErrDisconnected
		}
		msg := o.recent[len(o.recent)-1]
		o.mu.Unlock()
		return &WaitForMessageOutput{
			Status:        "message_received",
			Message:       &msg,
			WaitedSeconds: int(time.Since(start).Seconds()),
		}, nil

	case <-timer.C:
		finish()
		return &WaitForMessageOutput{Status: "timeout", WaitedSeconds: timeout}, nil

	case <-ctx.Done():
		finish()
		return nil, ctx.Err()
	}
}

// Close shuts the observer connection down.
func (o *Observer) Close() error {
	o.cancel()
	o.writeMu.Lock()
	_ = o.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	o.writeMu.Unlock()
	err := o.conn.Close()
	<-o.done
	return err
}

func methodOf(raw json.RawMessage) string {
	var head struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.Method
}
var _ Bridge = (*Observer)(nil)
