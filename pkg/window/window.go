// Package window maintains a bounded FIFO buffer of the most recent debate
// turns. The buffer feeds the recent-turns zone of context payloads without
// touching the vector index.
package window

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is one buffered turn.
type Entry struct {
	// Role is the debate role that produced the turn.
	Role string

	// Text is the turn content.
	Text string

	// TurnIndex is the turn position within its session.
	TurnIndex int

	// Metadata carries the turn's metadata, if any.
	Metadata map[string]interface{}
}

// Window is a fixed-capacity FIFO buffer of recent turns. When full, pushing
// a new turn evicts the oldest. Safe for concurrent use.
type Window struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

// New creates a window with the given capacity. Capacities below 1 are
// clamped to 1.
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{capacity: capacity}
}

// Push appends a turn, evicting the oldest when the window is full.
func (w *Window) Push(entry Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, entry)
	if len(w.entries) > w.capacity {
		w.entries = w.entries[len(w.entries)-w.capacity:]
	}
}

// Entries returns the buffered turns oldest-first.
func (w *Window) Entries() []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Render formats the buffered turns oldest-first, one per line, as
// "[turn N] role: text".
func (w *Window) Render() string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var b strings.Builder
	for i, e := range w.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[turn %d] %s: %s", e.TurnIndex, e.Role, e.Text)
	}
	return b.String()
}

// Resize changes the capacity. Shrinking evicts the oldest turns
// immediately.
func (w *Window) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.capacity = capacity
	if len(w.entries) > capacity {
		w.entries = w.entries[len(w.entries)-capacity:]
	}
}

// Len returns the number of buffered turns.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// Capacity returns the current capacity.
func (w *Window) Capacity() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.capacity
}

// Clear drops all buffered turns.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
}
