package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrNetwork, "push failed")
	if got := err.Error(); got != "[NETWORK_ERROR] push failed" {
		t.Errorf("Unexpected message: %s", got)
	}

	wrapped := Wrap(ErrLocalStorage, "insert failed", stderrors.New("disk full"))
	if got := wrapped.Error(); got != "[LOCAL_STORAGE_ERROR] insert failed: disk full" {
		t.Errorf("Unexpected wrapped message: %s", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrLocalStorage, "insert failed", cause)
	if !stderrors.Is(err, cause) {
		t.Error("Expected cause to be reachable via errors.Is")
	}
}

func TestIsSeesThroughWrapping(t *testing.T) {
	err := Wrap(ErrServerRejected, "push refused", stderrors.New("422"))

	if !Is(err, ErrServerRejected) {
		t.Error("Expected direct match")
	}
	if !Is(fmt.Errorf("cycle failed: %w", err), ErrServerRejected) {
		t.Error("Expected match through fmt wrapping")
	}
	if !Is(stderrors.Join(err, stderrors.New("other")), ErrServerRejected) {
		t.Error("Expected match through joined errors")
	}
	if Is(err, ErrNetwork) {
		t.Error("Expected code mismatch to fail")
	}
	if Is(stderrors.New("plain"), ErrNetwork) {
		t.Error("Expected plain error to fail")
	}
	if Is(nil, ErrNetwork) {
		t.Error("Expected nil to fail")
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(ErrSyncDisabled, "off")); got != ErrSyncDisabled {
		t.Errorf("Expected SYNC_DISABLED, got %s", got)
	}
	if got := CodeOf(fmt.Errorf("wrap: %w", New(ErrMigration, "schema step failed"))); got != ErrMigration {
		t.Errorf("Expected MIGRATION_FAILED through wrapping, got %s", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != ErrInternal {
		t.Errorf("Expected INTERNAL_ERROR fallback, got %s", got)
	}
}
