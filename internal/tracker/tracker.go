// Package tracker keeps a bounded history of the requests the HTTP mocker
// intercepted.
package tracker

import (
	"sync"
	"time"
)

// DefaultCapacity is used when NewTracker is given a non-positive size
const DefaultCapacity = 1000

// RequestLog is one intercepted request
type RequestLog struct {
	ID        int64             `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Data      any               `json:"data,omitempty"`
	Source    string            `json:"source"`
	Mocked    bool              `json:"mocked"`
}

// Tracker is a ring of the most recent request logs
type Tracker struct {
	mu     sync.RWMutex
	ring   []RequestLog
	head   int // index of the oldest entry
	size   int
	lastID int64
}

// NewTracker creates a tracker holding at most capacity entries
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{ring: make([]RequestLog, capacity)}
}

// Log stores entry with the next id and the current time, overwriting the
// oldest entry when full.
func (t *Tracker) Log(entry RequestLog) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastID++
	entry.ID = t.lastID
	entry.Timestamp = time.Now()

	if t.size < len(t.ring) {
		t.ring[(t.head+t.size)%len(t.ring)] = entry
		t.size++
		return
	}
	t.ring[t.head] = entry
	t.head = (t.head + 1) % len(t.ring)
}

// GetLogs returns the entries oldest first
func (t *Tracker) GetLogs() []RequestLog {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RequestLog, t.size)
	for i := range out {
		out[i] = t.ring[(t.head+i)%len(t.ring)]
	}
	return out
}

// Last returns the newest entry
func (t *Tracker) Last() (RequestLog, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.size == 0 {
		return RequestLog{}, false
	}
	return t.ring[(t.head+t.size-1)%len(t.ring)], true
}

// Clear drops every entry. Ids keep increasing.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.ring)
	t.head, t.size = 0, 0
}

// Count returns the number of entries held
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}
