package apperr

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error is the application-level error carried between the reward engine
// and the transport layers. Retryable marks failures that are safe to
// re-execute because every engine operation is idempotent on its natural
// key or guarded by a one-way state flag.
type Error struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

const genericUserMessage = "Sorry, something went wrong. Please try again later."

// NewValidationError reports malformed input. Never retried.
func NewValidationError(msg string) *Error {
	return &Error{
		Code:        "E100",
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid request: %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewNotFoundError reports a reference to a missing entity.
func NewNotFoundError(entity string) *Error {
	return &Error{
		Code:        "E110",
		Message:     fmt.Sprintf("%s not found", entity),
		UserMessage: genericUserMessage,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewInvalidStateError reports an operation attempted against an entity
// in the wrong state, e.g. resolving an already-resolved withdrawal.
func NewInvalidStateError(msg string) *Error {
	return &Error{
		Code:        "E120",
		Message:     msg,
		UserMessage: "This operation is not possible in the current state.",
		Severity:    SeverityMedium,
		Retryable:   false,
	}
}

// NewStoreError reports a failure in the underlying ledger store. Safe to
// retry the whole inbound event.
func NewStoreError(cause error) *Error {
	var underlying string
	if cause != nil {
		underlying = cause.Error()
	}

	return &Error{
		Code:        "E200",
		Message:     fmt.Sprintf("store error: %s", underlying),
		UserMessage: genericUserMessage,
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewNotifyError reports a failed outbound notification. Logged and
// swallowed at the call site, never propagated into ledger state.
func NewNotifyError(target string, cause error) *Error {
	return &Error{
		Code:        "E300",
		Message:     fmt.Sprintf("notification to %s failed", target),
		UserMessage: genericUserMessage,
		Severity:    SeverityLow,
		Retryable:   true,
		cause:       cause,
	}
}
