package domain

import (
	"errors"
	"testing"
)

func TestWrapOpKeepsTaxonomy(t *testing.T) {
	nf := &NotFoundError{Message: "quiz not found", Err: ErrQuizNotFound}
	if got := WrapOp("load", nf); got != nf {
		t.Fatalf("expected taxonomy error unchanged, got %v", got)
	}
	if WrapOp("load", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}

	raw := errors.New("connection refused")
	wrapped := WrapOp("load profile", raw)
	var oe *OperationError
	if !errors.As(wrapped, &oe) || oe.Op != "load profile" {
		t.Fatalf("expected operation error, got %v", wrapped)
	}
	if !errors.Is(wrapped, raw) {
		t.Fatalf("operation error should unwrap to the cause")
	}
	if wrapped.Error() != "load profile: connection refused" {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
}

func TestNotFoundUnwraps(t *testing.T) {
	err := error(&NotFoundError{Message: "attempt not found", Err: ErrAttemptNotFound})
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected sentinel through NotFoundError")
	}
}

func TestRequirementsNotMetMessage(t *testing.T) {
	err := &RequirementsNotMetError{Missing: []string{"reach level 2", "earn badge b1"}}
	if err.Error() != "certificate requirements not met: reach level 2, earn badge b1" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
