// Package cli holds the client side of the tellersim commands: a terminal
// JSON-RPC client, the scripted terminal session and the observer tail.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leonletto/tellersim/internal/auth"
	"github.com/leonletto/tellersim/internal/jsonrpc"
)

const writeWait = 10 * time.Second

// ErrClientClosed is returned for calls made after the connection dropped.
var ErrClientClosed = errors.New("terminal connection closed")

// Frame is one message seen on the terminal connection.
type Frame struct {
	Outgoing bool
	Data     []byte
	At       time.Time
}

// Client is a JSON-RPC client speaking the terminal protocol over a
// WebSocket. Calls may be issued concurrently; replies are matched by id.
type Client struct {
	conn   *websocket.Conn
	nextID atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan jsonrpc.Message
	err     error

	notifications chan *jsonrpc.Notification
	trace         func(Frame)
	done          chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTrace calls fn for every frame sent or received.
func WithTrace(fn func(Frame)) ClientOption {
	return func(c *Client) { c.trace = fn }
}

// Dial connects to the terminal endpoint at url. A non-empty token is sent
// in the login header.
func Dial(ctx context.Context, url, token string, opts ...ClientOption) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set(auth.TokenHeader, token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect to %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}

	c := &Client{
		conn:          conn,
		pending:       make(map[string]chan jsonrpc.Message),
		notifications: make(chan *jsonrpc.Notification, 64),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c, nil
}

// Notifications delivers server notifications in arrival order. It is
// closed when the connection drops. Notifications are dropped when nobody
// reads them and the buffer is full.
func (c *Client) Notifications() <-chan *jsonrpc.Notification {
	return c.notifications
}

// Call sends a request and decodes the result into result (if non-nil).
// An error reply is returned as a *jsonrpc.Error.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	id := jsonrpc.NumberID(c.nextID.Add(1))
	req, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return err
	}
	data, err := jsonrpc.Encode(req)
	if err != nil {
		return err
	}

	ch := make(chan jsonrpc.Message, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.pending[id.String()] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id.String())
		c.mu.Unlock()
	}()

	if err := c.write(data); err != nil {
		return err
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return ErrClientClosed
		}
		switch m := msg.(type) {
		case *jsonrpc.Response:
			if result != nil {
				if err := json.Unmarshal(m.Result, result); err != nil {
					return fmt.Errorf("decode %s result: %w", method, err)
				}
			}
			return nil
		case *jsonrpc.ErrorResponse:
			return m.Error
		}
		return fmt.Errorf("unexpected reply kind %s", msg.Kind())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify sends a notification.
func (c *Client) Notify(method string, params any) error {
	n, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := jsonrpc.Encode(n)
	if err != nil {
		return err
	}
	return c.write(data)
}

// SendRaw writes data unchanged, for exercising protocol errors.
func (c *Client) SendRaw(data []byte) error {
	return c.write(data)
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.emit(Frame{Outgoing: true, Data: data, At: time.Now()})
	return nil
}

func (c *Client) emit(f Frame) {
	if c.trace != nil {
		c.trace(f)
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.notifications)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(ErrClientClosed)
			return
		}
		c.emit(Frame{Data: data, At: time.Now()})

		msg, err := jsonrpc.Decode(data)
		if err != nil {
			continue
		}
		switch m := msg.(type) {
		case *jsonrpc.Notification:
			select {
			case c.notifications <- m:
			default:
			}
		case *jsonrpc.Response:
			c.resolve(m.ID, m)
		case *jsonrpc.ErrorResponse:
			c.resolve(m.ID, m)
		}
	}
}

func (c *Client) resolve(id jsonrpc.ID, msg jsonrpc.Message) {
	c.mu.Lock()
	ch, ok := c.pending[id.String()]
	delete(c.pending, id.String())
	c.mu.Unlock()
	if ok {
		ch <- msg
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Close closes the connection and waits for the reader to exit.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}
