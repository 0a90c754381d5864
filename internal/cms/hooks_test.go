package cms

import (
	"reflect"
	"testing"
)

func TestHooksPriorityOrder(t *testing.T) {
	h := NewHooks()
	h.AddFilter("name", func(v any, args ...any) any { return v.(string) + "b" }, 20)
	h.AddFilter("name", func(v any, args ...any) any { return v.(string) + "a" }, 10)
	h.AddFilter("name", func(v any, args ...any) any { return v.(string) + "c" }, 20)

	if got := h.ApplyFilters("name", ""); got != "abc" {
		t.Errorf("Expected abc, got %v", got)
	}
}

func TestHooksArgs(t *testing.T) {
	h := NewHooks()
	var seen []any
	h.AddAction("act", func(args ...any) { seen = args }, 10)

	h.DoAction("act", 1, "two")
	if !reflect.DeepEqual(seen, []any{1, "two"}) {
		t.Errorf("Expected [1 two], got %v", seen)
	}

	h.DoAction("act")
	if !reflect.DeepEqual(seen, []any{nil}) {
		t.Errorf("Expected [<nil>], got %v", seen)
	}
}

func TestHooksRemove(t *testing.T) {
	h := NewHooks()
	id := h.AddFilter("name", func(v any, args ...any) any { return "changed" }, 10)

	if !h.Has("name") {
		t.Fatal("Expected hook to be registered")
	}
	if !h.Remove("name", id) {
		t.Error("Expected Remove to succeed")
	}
	if h.Remove("name", id) {
		t.Error("Expected second Remove to fail")
	}
	if h.Has("name") {
		t.Error("Expected no hooks left")
	}
	if got := h.ApplyFilters("name", "value"); got != "value" {
		t.Errorf("Expected value to pass through, got %v", got)
	}
}

func TestHooksSuspend(t *testing.T) {
	h := NewHooks()
	h.AddFilter("name", func(v any, args ...any) any { return "changed" }, 10)

	restore := h.Suspend()
	if h.Has("name") {
		t.Error("Expected hooks to be suspended")
	}
	if got := h.ApplyFilters("name", "value"); got != "value" {
		t.Errorf("Expected value while suspended, got %v", got)
	}

	restore()
	if got := h.ApplyFilters("name", "value"); got != "changed" {
		t.Errorf("Expected filter after restore, got %v", got)
	}
}
