package engine

import (
	"errors"
	"testing"

	"github.com/17z7h0m4s/exquisite-corpse/internal/domain"
)

func TestRouterBindEnforcesSingleSession(t *testing.T) {
	r := NewRouter()

	if err := r.Bind("alice", "chan1"); err != nil {
		t.Fatalf("First bind failed: %v", err)
	}
	if err := r.Bind("alice", "chan1"); err != nil {
		t.Errorf("Rebind to same channel should be idempotent, got %v", err)
	}
	if err := r.Bind("alice", "chan2"); !errors.Is(err, domain.ErrAlreadyBound) {
		t.Errorf("Expected ErrAlreadyBound, got %v", err)
	}

	if bound, ok := r.SessionOf("alice"); !ok || bound != "chan1" {
		t.Errorf("Expected alice bound to chan1, got %q (%v)", bound, ok)
	}
}

func TestRouterUnbindClearsBothIndices(t *testing.T) {
	r := NewRouter()
	if err := r.Bind("alice", "chan"); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	r.MarkAwaiting("alice", "chan")

	r.Unbind("alice")

	if _, ok := r.SessionOf("alice"); ok {
		t.Error("Expected session binding removed")
	}
	if _, ok := r.AwaitingOf("alice"); ok {
		t.Error("Expected awaiting mark removed")
	}

	// Unbinding again is a no-op.
	r.Unbind("alice")
}

func TestRouterAwaitingLifecycle(t *testing.T) {
	r := NewRouter()

	if _, ok := r.AwaitingOf("alice"); ok {
		t.Error("Expected no awaiting mark initially")
	}

	r.MarkAwaiting("alice", "chan")
	if awaiting, ok := r.AwaitingOf("alice"); !ok || awaiting != "chan" {
		t.Errorf("Expected awaiting chan, got %q (%v)", awaiting, ok)
	}

	r.ClearAwaiting("alice")
	if _, ok := r.AwaitingOf("alice"); ok {
		t.Error("Expected awaiting mark cleared")
	}
	r.ClearAwaiting("alice")
}
