package cms

import (
	"sort"
	"sync"
)

// Hook names fired by the runtime and the mockers.
const (
	ActionFeedOptions = "wp_feed_options"
	ActionMockedPost  = "pmc_mocked_post"

	FilterPreHTTPRequest = "pre_http_request"
)

// HookFunc receives the filtered value followed by the hook arguments and
// returns the (possibly replaced) value. Actions ignore the return value.
type HookFunc func(value any, args ...any) any

// HookID identifies a registered callback so it can be removed later.
type HookID uint64

type hookEntry struct {
	id       HookID
	priority int
	fn       HookFunc
}

// Hooks is a minimal filter/action bus.
type Hooks struct {
	mu     sync.RWMutex
	hooks  map[string][]hookEntry
	nextID HookID
}

// NewHooks creates an empty hook bus
func NewHooks() *Hooks {
	return &Hooks{hooks: make(map[string][]hookEntry)}
}

// AddFilter registers fn on name. Lower priorities run first; equal
// priorities run in registration order.
func (h *Hooks) AddFilter(name string, fn HookFunc, priority int) HookID {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	entries := append(h.hooks[name], hookEntry{id: h.nextID, priority: priority, fn: fn})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	h.hooks[name] = entries
	return h.nextID
}

// AddAction is AddFilter for callbacks whose return value is ignored
func (h *Hooks) AddAction(name string, fn func(args ...any), priority int) HookID {
	return h.AddFilter(name, func(value any, args ...any) any {
		fn(append([]any{value}, args...)...)
		return value
	}, priority)
}

// Remove unregisters the callback with the given id. It reports whether a
// callback was removed.
func (h *Hooks) Remove(name string, id HookID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.hooks[name]
	for i, e := range entries {
		if e.id == id {
			h.hooks[name] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// Has reports whether any callback is registered on name
func (h *Hooks) Has(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hooks[name]) > 0
}

// ApplyFilters runs every callback on name, threading value through them.
func (h *Hooks) ApplyFilters(name string, value any, args ...any) any {
	h.mu.RLock()
	entries := make([]hookEntry, len(h.hooks[name]))
	copy(entries, h.hooks[name])
	h.mu.RUnlock()

	for _, e := range entries {
		value = e.fn(value, args...)
	}
	return value
}

// DoAction runs every callback on name with args.
func (h *Hooks) DoAction(name string, args ...any) {
	var first any
	if len(args) > 0 {
		first, args = args[0], args[1:]
	}
	h.ApplyFilters(name, first, args...)
}

// Suspend removes every callback and returns a function restoring them.
// Fixtures are generated with hooks suspended so filters cannot alter them.
func (h *Hooks) Suspend() (restore func()) {
	h.mu.Lock()
	saved := h.hooks
	h.hooks = make(map[string][]hookEntry)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		h.hooks = saved
		h.mu.Unlock()
	}
}
