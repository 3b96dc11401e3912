package app

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonletto/tellersim/internal/config"
	"github.com/leonletto/tellersim/internal/journal"
	"github.com/leonletto/tellersim/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Delays = config.DelaysConfig{
		CallEstablished:  5 * time.Millisecond,
		CallReestablish:  5 * time.Millisecond,
		CallEnded:        5 * time.Millisecond,
		CommandComplete:  5 * time.Millisecond,
		CardRead:         5 * time.Millisecond,
		DispenseComplete: 5 * time.Millisecond,
		SignatureCapture: 5 * time.Millisecond,
		ChatEcho:         5 * time.Millisecond,
	}
	cfg.Journal.Path = filepath.Join(t.TempDir(), "traffic.db")
	return &cfg
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var m map[string]any
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestAppServesAndJournals(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, "test", logger.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+a.Addr()+cfg.Server.TerminalPath, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	greeting := readJSON(t, conn)
	assert.Equal(t, "connection_established", greeting["method"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"jsonrpc":"2.0","method":"CardReaderController.read_card","params":{},"id":"r1"}`)))
	resp := readJSON(t, conn)
	assert.Equal(t, "r1", resp["id"])
	assert.Equal(t, map[string]any{"success": true}, resp["result"])

	card := readJSON(t, conn)
	assert.Equal(t, "CardReaderController.card_read", card["method"])

	httpResp, err := http.Get("http://" + a.Addr() + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&health))
	_ = httpResp.Body.Close()
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(1), health["terminals"])
	assert.Equal(t, "test", health["version"])

	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop(), "stop is idempotent")

	j, err := journal.OpenReadOnly(context.Background(), cfg.Journal.Path)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	n, err := j.Count(context.Background())
	require.NoError(t, err)
	// greeting, request, response and card_read notification
	assert.Equal(t, 4, n)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Path = ""
	a, err := New(context.Background(), cfg, "test", logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Addr() != cfg.Server.Addr }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunStopsOnShutdown(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, "test", logger.Discard())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	require.Eventually(t, func() bool { return a.Addr() != cfg.Server.Addr }, 2*time.Second, 5*time.Millisecond)

	a.Shutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.ObserverPath = cfg.Server.TerminalPath
	_, err := New(context.Background(), cfg, "test", nil)
	assert.Error(t, err)
}

func TestRequireLoginGuardsTerminal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Journal.Path = ""
	cfg.Auth.RequireLogin = true
	a, err := New(context.Background(), cfg, "test", logger.Discard())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	defer func() { _ = a.Stop() }()

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+a.Addr()+cfg.Server.TerminalPath, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
