package dispatch

import (
	"encoding/json"
	"time"
)

// Direction is the direction of a mirrored frame relative to the server.
type Direction string

const (
	Incoming Direction = "incoming"
	Outgoing Direction = "outgoing"
)

// Entry is one frame copied to the mirror tap.
type Entry struct {
	Direction Direction
	// ConnID is empty for frames broadcast to every terminal.
	ConnID  string
	Message json.RawMessage
	At      time.Time
}

// Mirror receives a copy of every frame the dispatcher processes or emits.
// Implementations must not block.
type Mirror interface {
	Mirror(e Entry)
}

// MirrorFunc adapts a function to the Mirror interface.
type MirrorFunc func(e Entry)

// Mirror calls f(e).
func (f MirrorFunc) Mirror(e Entry) { f(e) }

// Mirrors fans an entry out to several taps in order.
type Mirrors []Mirror

// Mirror implements Mirror.
func (m Mirrors) Mirror(e Entry) {
	for _, t := range m {
		if t != nil {
			t.Mirror(e)
		}
	}
}

// rawForMirror returns data as a JSON value. Text that is not valid JSON is
// carried as a JSON string so observers still see exactly what arrived.
func rawForMirror(data []byte) json.RawMessage {
	if json.Valid(data) {
		if c, err := compactJSON(data); err == nil {
			return c
		}
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}
