package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/leonletto/tellersim/internal/dispatch"
)

// Canceler drops every pending deferred notification for a connection.
type Canceler interface {
	CancelAll(connID string) int
}

// Hub tracks the live terminal and observer connections. Broadcasts work
// on a snapshot of the target set, so a connect or disconnect during a
// broadcast never affects it.
type Hub struct {
	mu        sync.RWMutex
	terminals map[string]*Connection
	observers map[string]*Connection
	canceler  Canceler
	logger    *slog.Logger
}

// NewHub creates an empty hub. canceler is called when a terminal leaves.
func NewHub(canceler Canceler, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		terminals: make(map[string]*Connection),
		observers: make(map[string]*Connection),
		canceler:  canceler,
		logger:    logger.With("component", "hub"),
	}
}

// RegisterTerminal adds a terminal and tells observers the new count.
func (h *Hub) RegisterTerminal(c *Connection) {
	h.mu.Lock()
	h.terminals[c.ID()] = c
	count := len(h.terminals)
	h.mu.Unlock()

	h.logger.Info("terminal connected", "conn", c.ID(), "remote", c.RemoteAddr(), "terminals", count)
	h.broadcastClientCount(count)
}

// UnregisterTerminal cancels the terminal's pending notifications and
// removes it. Only the first call for a connection has any effect.
func (h *Hub) UnregisterTerminal(c *Connection) bool {
	h.mu.Lock()
	if _, ok := h.terminals[c.ID()]; !ok {
		h.mu.Unlock()
		return false
	}
	cancelled := 0
	if h.canceler != nil {
		cancelled = h.canceler.CancelAll(c.ID())
	}
	delete(h.terminals, c.ID())
	count := len(h.terminals)
	h.mu.Unlock()

	h.logger.Info("terminal disconnected", "conn", c.ID(), "remote", c.RemoteAddr(),
		"terminals", count, "cancelled", cancelled, "connected_for", time.Since(c.CreatedAt()).Round(time.Millisecond))
	h.broadcastClientCount(count)
	return true
}

// RegisterObserver adds an observer and sends it the current terminal count.
func (h *Hub) RegisterObserver(c *Connection) {
	h.mu.Lock()
	h.observers[c.ID()] = c
	count := len(h.terminals)
	observers := len(h.observers)
	h.mu.Unlock()

	h.logger.Info("observer connected", "conn", c.ID(), "remote", c.RemoteAddr(), "observers", observers)
	if data, err := json.Marshal(newClientCountEvent(count)); err == nil {
		if err := c.Send(data); err != nil {
			h.logger.Warn("send client count", "conn", c.ID(), "error", err)
		}
	}
}

// UnregisterObserver removes an observer.
func (h *Hub) UnregisterObserver(c *Connection) bool {
	h.mu.Lock()
	_, ok := h.observers[c.ID()]
	delete(h.observers, c.ID())
	observers := len(h.observers)
	h.mu.Unlock()

	if ok {
		h.logger.Info("observer disconnected", "conn", c.ID(), "observers", observers,
			"connected_for", time.Since(c.CreatedAt()).Round(time.Millisecond))
	}
	return ok
}

// HasTerminal reports whether connID is a registered terminal.
func (h *Hub) HasTerminal(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.terminals[connID]
	return ok
}

// TerminalCount returns the number of registered terminals. Advisory only.
func (h *Hub) TerminalCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.terminals)
}

// ObserverCount returns the number of registered observers. Advisory only.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// BroadcastToTerminals queues data on every terminal and returns how many
// accepted it. A failing terminal does not affect the others.
func (h *Hub) BroadcastToTerminals(data []byte) int {
	delivered := 0
	for _, c := range h.snapshot(&h.terminals) {
		if err := c.Send(data); err != nil {
			h.logger.Warn("broadcast to terminal failed", "conn", c.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastToObservers queues data on every observer. Failures are logged
// and never reach the caller.
func (h *Hub) BroadcastToObservers(data []byte) {
	for _, c := range h.snapshot(&h.observers) {
		if err := c.Send(data); err != nil {
			h.logger.Debug("broadcast to observer failed", "conn", c.ID(), "error", err)
		}
	}
}

// Mirror implements dispatch.Mirror by wrapping the frame in a message_log
// event for observers.
func (h *Hub) Mirror(e dispatch.Entry) {
	data, err := json.Marshal(newMessageLogEvent(e))
	if err != nil {
		h.logger.Warn("encode message log", "error", err)
		return
	}
	h.BroadcastToObservers(data)
}

// CloseAll closes every connection. Their serve goroutines unregister them.
func (h *Hub) CloseAll() {
	conns := append(h.snapshot(&h.terminals), h.snapshot(&h.observers)...)
	for _, c := range conns {
		_ = c.Close()
	}
}

func (h *Hub) snapshot(set *map[string]*Connection) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Connection, 0, len(*set))
	for _, c := range *set {
		out = append(out, c)
	}
	return out
}

func (h *Hub) broadcastClientCount(count int) {
	data, err := json.Marshal(newClientCountEvent(count))
	if err != nil {
		return
	}
	h.BroadcastToObservers(data)
}
