package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppError_Message(t *testing.T) {
	err := NewNotFoundError("conversation not found")
	if err.Error() != "[NOT_FOUND] conversation not found" {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	wrapped := NewInternalErrorWithCause("db write failed", stderrors.New("disk full"))
	if wrapped.Error() != "[INTERNAL_ERROR] db write failed: disk full" {
		t.Fatalf("unexpected message: %q", wrapped.Error())
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewInternalErrorWithCause("db write failed", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("cause should unwrap")
	}
}

func TestPredicates(t *testing.T) {
	if !IsNotFound(NewNotFoundError("x")) {
		t.Fatal("IsNotFound should match")
	}
	if !IsInvalidInput(NewInvalidInputError("x")) {
		t.Fatal("IsInvalidInput should match")
	}
	if !IsConflict(NewConflictError("x")) {
		t.Fatal("IsConflict should match")
	}
	if IsNotFound(NewConflictError("x")) {
		t.Fatal("predicates must discriminate by code")
	}
	if IsNotFound(stderrors.New("plain")) {
		t.Fatal("plain errors never match")
	}
	if IsNotFound(nil) {
		t.Fatal("nil never matches")
	}
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("decide: %w", NewConflictError("already decided"))
	if !IsConflict(err) {
		t.Fatal("predicates should see through fmt wrapping")
	}
}
