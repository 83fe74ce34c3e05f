package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Retryable(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{ErrTimeout("deadline exceeded"), true},
		{ErrRateLimit("429 from provider"), true},
		{ErrService("upstream 503"), true},
		{ErrAuth("bad key"), false},
		{ErrMalformedRequest("bad schema"), false},
		{ErrParse("unrecoverable"), false},
		{ErrSearchUnavailable("serper down"), false},
		{ErrCancelled("column cancelled"), false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.retryable {
			t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
	}
}

func TestDomainError_WrappingPreservesCategory(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrService("completion call failed").WithCause(cause)

	wrapped := fmt.Errorf("dispatching cell B:3: %w", err)

	if !IsRetryable(wrapped) {
		t.Fatalf("expected retryable through wrapping")
	}
	if GetCategory(wrapped) != ErrCatService {
		t.Fatalf("expected service category, got %s", GetCategory(wrapped))
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected cause to unwrap")
	}
}

func TestDomainError_Is(t *testing.T) {
	a := ErrState(CodeInvalidTransition, "one")
	b := ErrState(CodeInvalidTransition, "another message")
	if !errors.Is(a, b) {
		t.Fatalf("expected match on category+code")
	}
	c := ErrState(CodeColumnBusy, "busy")
	if errors.Is(a, c) {
		t.Fatalf("expected mismatch on different code")
	}
}

func TestGetCategory_Unknown(t *testing.T) {
	if GetCategory(errors.New("x")) != ErrCatInternal {
		t.Fatalf("expected internal category for plain errors")
	}
}
