package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation"        // Invalid input
	ErrCatTimeout    ErrorCategory = "timeout"           // Completion call timed out
	ErrCatRateLimit  ErrorCategory = "rate_limit"        // Provider rate limited
	ErrCatAuth       ErrorCategory = "auth"              // Authentication failure
	ErrCatService    ErrorCategory = "service"           // Upstream 5xx-class failure
	ErrCatMalformed  ErrorCategory = "malformed_request" // Provider rejected the request
	ErrCatParse      ErrorCategory = "parse"             // Response unusable even after fallback
	ErrCatSearch     ErrorCategory = "search"            // Search augmentation unavailable
	ErrCatState      ErrorCategory = "state"             // Illegal cell state transition
	ErrCatCancelled  ErrorCategory = "cancelled"         // Job cancelled before commit
	ErrCatNotFound   ErrorCategory = "not_found"         // Resource not found
	ErrCatInternal   ErrorCategory = "internal"          // Unexpected internal error
)

// DomainError represents a structured error from the engine.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrTimeout creates a timeout error. Timeouts are retried by the dispatcher.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrService creates an upstream service error (5xx-class).
func ErrService(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatService,
		Code:      "SERVICE_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// ErrAuth creates an authentication error. Never retried.
func ErrAuth(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatAuth,
		Code:      "AUTH_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// ErrMalformedRequest creates an error for requests the provider rejected.
func ErrMalformedRequest(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatMalformed,
		Code:      "MALFORMED_REQUEST",
		Message:   message,
		Retryable: false,
	}
}

// ErrParse creates a parse failure error. Only reached after fallback
// extraction also failed; the raw response is preserved on the cell.
func ErrParse(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatParse,
		Code:      "PARSE_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// ErrSearchUnavailable creates a search augmentation error. Non-fatal: the
// orchestrator absorbs it and proceeds without augmentation.
func ErrSearchUnavailable(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatSearch,
		Code:      "SEARCH_UNAVAILABLE",
		Message:   message,
		Retryable: false,
	}
}

// ErrState creates an illegal state transition error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrCancelled creates a cancellation error.
func ErrCancelled(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatCancelled,
		Code:      "CANCELLED",
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes.
const (
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeEmptySource        = "EMPTY_SOURCE"
	CodeEmptyInstruction   = "EMPTY_INSTRUCTION"
	CodeUnknownTemplate    = "UNKNOWN_TEMPLATE"
	CodeNoInstruction      = "NO_INSTRUCTION"
	CodeManualOverride     = "MANUAL_OVERRIDE"
	CodeColumnBusy         = "COLUMN_BUSY"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeInstructionTooLong = "INSTRUCTION_TOO_LONG"
	CodeBadCellRef         = "BAD_CELL_REF"
)

// MaxInstructionLength is the maximum allowed instruction body length.
const MaxInstructionLength = 50000
