package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Timing of the keepalive and write paths.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Delivery failures reported by Send.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Kind says which endpoint a connection was accepted on.
type Kind int

const (
	KindTerminal Kind = iota
	KindObserver
)

// String returns the string representation of a connection kind.
func (k Kind) String() string {
	if k == KindObserver {
		return "observer"
	}
	return "terminal"
}

// Connection wraps one WebSocket. Outbound frames go through a buffered
// queue drained by WriteLoop, the only goroutine that writes to the socket.
type Connection struct {
	conn       *websocket.Conn
	kind       Kind
	id         string
	remoteAddr string
	createdAt  time.Time
	logger     *slog.Logger

	sendCh chan []byte
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewConnection creates a new WebSocket connection wrapper.
func NewConnection(conn *websocket.Conn, kind Kind, id string, sendBuffer int, logger *slog.Logger) *Connection {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connection{
		conn:       conn,
		kind:       kind,
		id:         id,
		remoteAddr: conn.RemoteAddr().String(),
		createdAt:  time.Now(),
		logger:     logger.With("conn", id, "kind", kind.String()),
		sendCh:     make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// ID returns the connection id.
func (c *Connection) ID() string { return c.id }

// Kind returns the endpoint kind.
func (c *Connection) Kind() Kind { return c.kind }

// RemoteAddr returns the peer address.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// CreatedAt returns when the connection was accepted.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// ReadLoop reads frames and hands each to handle, one at a time, in arrival
// order. It returns when the peer goes away, ctx ends or the connection is
// closed.
func (c *Connection) ReadLoop(ctx context.Context, maxMessageBytes int64, handle func(context.Context, []byte)) error {
	if maxMessageBytes > 0 {
		c.conn.SetReadLimit(maxMessageBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				return fmt.Errorf("read error: %w", err)
			}
			c.logger.Debug("peer closed", "error", err)
			return nil
		}

		handle(ctx, message)
	}
}

// WriteLoop writes queued frames and keepalive pings until the connection
// is closed or ctx ends.
func (c *Connection) WriteLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-c.done:
			return nil

		case message := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return fmt.Errorf("write error: %w", err)
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping error: %w", err)
			}
		}
	}
}

// Send queues a frame. It never blocks: a full queue is reported as
// ErrSendBufferFull. Safe for concurrent use.
func (c *Connection) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops both loops and closes the socket. Safe to call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
