// Package scheduler runs delayed, cancellable tasks grouped by connection.
// It models simulated device latency: a handler asks for something to happen
// after a delay, and closing the connection cancels everything still pending.
package scheduler

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Schedule after Close.
var ErrClosed = errors.New("scheduler closed")

// Handle identifies one scheduled task.
type Handle struct {
	ConnID string
	seq    uint64
}

// Scheduler owns one timer per pending task. A task fires at most once, and
// never after it was cancelled.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]map[uint64]*time.Timer
	nextSeq uint64
	closed  bool
	running sync.WaitGroup
	logger  *slog.Logger
}

// New creates an empty scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pending: make(map[string]map[uint64]*time.Timer),
		logger:  logger.With("component", "scheduler"),
	}
}

// Schedule runs fire after delay unless the task is cancelled first, either
// directly or through CancelAll for connID. Negative delays count as zero.
func (s *Scheduler) Schedule(connID string, delay time.Duration, fire func()) (Handle, error) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Handle{}, ErrClosed
	}

	s.nextSeq++
	h := Handle{ConnID: connID, seq: s.nextSeq}

	tasks, ok := s.pending[connID]
	if !ok {
		tasks = make(map[uint64]*time.Timer)
		s.pending[connID] = tasks
	}
	// The callback blocks on s.mu until this insert is done, so even a zero
	// delay finds its own entry.
	tasks[h.seq] = time.AfterFunc(delay, func() { s.fire(h, fire) })

	return h, nil
}

// fire claims the task and runs it outside the lock.
func (s *Scheduler) fire(h Handle, fn func()) {
	if !s.claim(h) {
		return
	}
	defer s.running.Done()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("deferred task panicked", "conn", h.ConnID, "panic", r)
		}
	}()
	fn()
}

func (s *Scheduler) claim(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, ok := s.pending[h.ConnID]
	if !ok {
		return false
	}
	if _, ok := tasks[h.seq]; !ok {
		return false
	}
	delete(tasks, h.seq)
	if len(tasks) == 0 {
		delete(s.pending, h.ConnID)
	}
	s.running.Add(1)
	return true
}

// Cancel stops a single task. It reports whether the task was still pending.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, ok := s.pending[h.ConnID]
	if !ok {
		return false
	}
	t, ok := tasks[h.seq]
	if !ok {
		return false
	}
	t.Stop()
	delete(tasks, h.seq)
	if len(tasks) == 0 {
		delete(s.pending, h.ConnID)
	}
	return true
}

// CancelAll stops every pending task for connID and returns how many were
// cancelled. Calling it again is a no-op.
func (s *Scheduler) CancelAll(connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, ok := s.pending[connID]
	if !ok {
		return 0
	}
	for _, t := range tasks {
		t.Stop()
	}
	delete(s.pending, connID)

	if n := len(tasks); n > 0 {
		s.logger.Debug("cancelled deferred tasks", "conn", connID, "count", n)
	}
	return len(tasks)
}

// Pending returns the number of tasks waiting to fire for connID.
func (s *Scheduler) Pending(connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[connID])
}

// Close cancels every pending task, rejects further scheduling and waits
// for tasks that already started firing. It must not be called from a task.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for connID, tasks := range s.pending {
		for _, t := range tasks {
			t.Stop()
		}
		delete(s.pending, connID)
	}
	s.mu.Unlock()

	s.running.Wait()
}
