package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonletto/tellersim/internal/app"
	"github.com/leonletto/tellersim/internal/cli"
	"github.com/leonletto/tellersim/internal/config"
	"github.com/leonletto/tellersim/internal/jsonrpc"
	"github.com/leonletto/tellersim/internal/logger"
)

func startSimulator(t *testing.T) (*app.App, *config.Config) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Server.Addr = "127.0.0.1:0"
	d := 5 * time.Millisecond
	cfg.Delays = config.DelaysConfig{
		CallEstablished: d, CallReestablish: d, CallEnded: d, CommandComplete: d,
		CardRead: d, DispenseComplete: d, SignatureCapture: d, ChatEcho: d,
	}
	a, err := app.New(context.Background(), &cfg, "test", logger.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop() })
	return a, &cfg
}

func TestRunDefaultScript(t *testing.T) {
	a, cfg := startSimulator(t)

	var mu sync.Mutex
	var frames []cli.Frame
	c, err := cli.Dial(context.Background(), "ws://"+a.Addr()+cfg.Server.TerminalPath, "",
		cli.WithTrace(func(f cli.Frame) {
			mu.Lock()
			frames = append(frames, f)
			mu.Unlock()
		}))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	var out bytes.Buffer
	results, err := cli.RunScript(context.Background(), c, cli.DefaultScript(), 3*time.Second, &out)
	require.NoError(t, err)
	require.Len(t, results, 5)

	for _, r := range results {
		assert.Empty(t, r.Error, r.Method)
	}
	assert.JSONEq(t, `{"success":true,"session_id":1001}`, string(results[1].Result))
	assert.JSONEq(t, `{"call":{"id":2001,"teller":100}}`, results[2].Notification)
	assert.Contains(t, results[4].Notification, `"amount":100`)
	assert.Contains(t, out.String(), "AvailabilityController.ping")

	mu.Lock()
	defer mu.Unlock()
	var sent int
	for _, f := range frames {
		if f.Outgoing {
			sent++
		}
	}
	assert.Equal(t, 5, sent)
}

func TestCallReturnsRPCError(t *testing.T) {
	a, cfg := startSimulator(t)
	c, err := cli.Dial(context.Background(), "ws://"+a.Addr()+cfg.Server.TerminalPath, "")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	err = c.Call(context.Background(), "Nope.nothing", nil, nil)
	var rpcErr *jsonrpc.Error
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, jsonrpc.CodeMethodNotFound, rpcErr.Code)

	err = c.Call(context.Background(), "ChatController.send_message", []string{"hi"}, nil)
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, jsonrpc.CodeInvalidParams, rpcErr.Code)

	// Handlers that do not read params accept anything.
	require.NoError(t, c.Call(context.Background(), "CardReaderController.eject_card", []int{1}, nil))
}

func TestCallAfterServerStops(t *testing.T) {
	a, cfg := startSimulator(t)
	c, err := cli.Dial(context.Background(), "ws://"+a.Addr()+cfg.Server.TerminalPath, "")
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, a.Stop())
	require.Eventually(t, func() bool {
		return errors.Is(c.Call(context.Background(), "AvailabilityController.ping", nil, nil), cli.ErrClientClosed)
	}, 3*time.Second, 10*time.Millisecond)
}

func TestObserveInjectsAndExits(t *testing.T) {
	a, cfg := startSimulator(t)

	term, err := cli.Dial(context.Background(), "ws://"+a.Addr()+cfg.Server.TerminalPath, "")
	require.NoError(t, err)
	defer func() { _ = term.Close() }()
	require.Eventually(t, func() bool { return a.Hub().TerminalCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var out bytes.Buffer
	err = cli.Observe(ctx, "ws://"+a.Addr()+cfg.Server.ObserverPath, cli.ObserveOptions{
		Inject: &cli.Injection{Method: "CardReaderController.card_read", Params: json.RawMessage(`{"success":true}`)},
		Exit:   true,
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "injected CardReaderController.card_read to 1 terminal(s)")

	select {
	case n := <-term.Notifications():
		// greeting first
		assert.Equal(t, "connection_established", n.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("no greeting")
	}
	select {
	case n := <-term.Notifications():
		assert.Equal(t, "CardReaderController.card_read", n.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("injected notification not delivered")
	}
}

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"client count", `{"type":"client_count","count":2}`, "terminals connected: 2"},
		{"sent", `{"type":"notification_sent","method":"a.b","delivered":3}`, "injected a.b to 3 terminal(s)"},
		{"error", `{"type":"error","message":"rate limit exceeded"}`, "error: rate limit exceeded"},
		{"unknown", `{"type":"other"}`, `{"type":"other"}`},
		{"not json", `garbage`, `garbage`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, cli.FormatEvent([]byte(tc.in)))
		})
	}

	line := cli.FormatEvent([]byte(`{"type":"message_log","direction":"incoming","conn_id":"trm_1","message":{"id":"1"},"timestamp":0}`))
	assert.Contains(t, line, `-> trm_1 {"id":"1"}`)
	line = cli.FormatEvent([]byte(`{"type":"message_log","direction":"outgoing","message":{},"timestamp":0}`))
	assert.Contains(t, line, `<- all {}`)
}
