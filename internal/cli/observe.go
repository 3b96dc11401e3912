package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/websocket"

	tsws "github.com/leonletto/tellersim/internal/websocket"
)

// Injection is a notification an observer asks the simulator to broadcast.
type Injection struct {
	Method string
	Params json.RawMessage
}

// ObserveOptions controls Observe.
type ObserveOptions struct {
	// Inject is sent once right after connecting.
	Inject *Injection
	// Raw prints every event as received instead of formatting it.
	Raw bool
	// Exit returns after the injection is acknowledged.
	Exit bool
}

// Observe attaches to the observer endpoint at url and prints events to out
// until ctx is done or the connection drops.
func Observe(ctx context.Context, url string, opts ObserveOptions, out io.Writer) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("connect to %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	if opts.Inject != nil {
		cmd := tsws.ObserverCommand{
			Type:   tsws.CommandSendNotification,
			Method: opts.Inject.Method,
			Params: opts.Inject.Params,
		}
		if err := conn.WriteJSON(cmd); err != nil {
			return fmt.Errorf("send command: %w", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if opts.Raw {
			_, _ = fmt.Fprintf(out, "%s\n", data)
		} else {
			_, _ = fmt.Fprintln(out, FormatEvent(data))
		}

		if opts.Exit && opts.Inject != nil {
			var ev struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			}
			_ = json.Unmarshal(data, &ev)
			switch ev.Type {
			case tsws.EventNotificationSent:
				return nil
			case tsws.EventError:
				return fmt.Errorf("injection rejected: %s", ev.Message)
			}
		}
	}
}

// FormatEvent renders one observer event as a single line.
func FormatEvent(data []byte) string {
	var ev struct {
		Type      string          `json:"type"`
		Count     int             `json:"count"`
		Direction string          `json:"direction"`
		ConnID    string          `json:"conn_id"`
		Message   json.RawMessage `json:"message"`
		Timestamp int64           `json:"timestamp"`
		Method    string          `json:"method"`
		Delivered int             `json:"delivered"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return string(data)
	}

	switch ev.Type {
	case tsws.EventClientCount:
		return fmt.Sprintf("terminals connected: %d", ev.Count)
	case tsws.EventMessageLog:
		arrow := "<-"
		if ev.Direction == "incoming" {
			arrow = "->"
		}
		target := ev.ConnID
		if target == "" {
			target = "all"
		}
		at := time.UnixMilli(ev.Timestamp).Format("15:04:05.000")
		return fmt.Sprintf("%s %s %s %s", at, arrow, target, ev.Message)
	case tsws.EventNotificationSent:
		return fmt.Sprintf("injected %s to %d terminal(s)", ev.Method, ev.Delivered)
	case tsws.EventError:
		var e tsws.ErrorEvent
		_ = json.Unmarshal(data, &e)
		return "error: " + e.Message
	default:
		return string(data)
	}
}
