package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonletto/tellersim/internal/dispatch"
	"github.com/leonletto/tellersim/internal/scheduler"
)

type noHandlers struct{}

func (noHandlers) Lookup(string) (dispatch.Handler, bool) { return nil, false }

// acceptedConn returns the server side of a real WebSocket whose client
// stays open and silent.
func acceptedConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := upgrader.Upgrade(w, r, nil); err == nil {
			conns <- c
		}
	}))
	t.Cleanup(ts.Close)

	client, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("upgrade did not complete")
		return nil
	}
}

func TestConnectionRegisteredAfterCloseAllIsClosed(t *testing.T) {
	tests := []struct {
		name  string
		kind  Kind
		serve func(s *Server, c *Connection)
		count func(h *Hub) int
	}{
		{"terminal", KindTerminal, (*Server).serveTerminal, (*Hub).TerminalCount},
		{"observer", KindObserver, (*Server).serveObserver, (*Hub).ObserverCount},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sched := scheduler.New(nil)
			t.Cleanup(sched.Close)
			hub := NewHub(sched, nil)
			s := NewServer("127.0.0.1:0", Options{
				Hub: hub,
				Dispatcher: dispatch.New(dispatch.Options{
					Handlers:  noHandlers{},
					Scheduler: sched,
					Terminals: hub,
					Mirror:    hub,
				}),
			})

			// Admitted before Stop, registering only after Stop's CloseAll.
			s.wg.Add(1)
			s.mu.Lock()
			s.shutdown = true
			s.mu.Unlock()
			hub.CloseAll()

			c := NewConnection(acceptedConn(t), tc.kind, "late_1", 8, nil)
			done := make(chan struct{})
			go func() {
				tc.serve(s, c)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("connection registered during shutdown was left open")
			}
			assert.True(t, c.Closed())
			assert.Equal(t, 0, tc.count(hub))
		})
	}
}
