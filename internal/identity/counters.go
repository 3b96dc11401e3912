package identity

import "sync/atomic"

// Sequence hands out monotonically increasing integers. Safe for concurrent
// use; two callers never receive the same value.
type Sequence struct {
	next atomic.Int64
}

// NewSequence returns a sequence whose first value is start.
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// Next returns the current value and advances the sequence.
func (s *Sequence) Next() int64 {
	return s.next.Add(1) - 1
}

// Peek returns the value the next call to Next will return.
func (s *Sequence) Peek() int64 {
	return s.next.Load()
}

// Counters groups the generated-identifier sequences shared by every
// connection. One instance is built at startup and injected where ids are
// allocated.
type Counters struct {
	Session *Sequence
	Call    *Sequence
	Image   *Sequence
}

// NewCounters creates the shared sequences with their starting values.
func NewCounters(sessionStart, callStart, imageStart int64) *Counters {
	return &Counters{
		Session: NewSequence(sessionStart),
		Call:    NewSequence(callStart),
		Image:   NewSequence(imageStart),
	}
}
