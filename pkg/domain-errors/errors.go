// Package domainerrors provides coded domain errors.
//
// Services translate store sentinels and validation failures into coded
// errors; transport layers map codes onto status lines without ever
// rendering internal causes. Construct with New at the point the rule is
// decided, or Wrap to attach a code to an underlying infrastructure error.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and logging.
type Code string

const (
	// CodeValidation marks input that fails a domain validation rule.
	CodeValidation Code = "validation"
	// CodeInvalidInput marks malformed values rejected at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks requests that are structurally unusable.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks missing or unusable credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks authenticated requests denied by policy.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks uniqueness or state conflicts.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation marks a broken domain invariant. These are
	// programming or data errors, not user mistakes.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeTimeout marks cancelled or deadline-exceeded operations.
	CodeTimeout Code = "timeout"
	// CodeInternal marks infrastructure failures. Details stay in logs;
	// clients only ever see the code.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. A nil cause
// returns nil so callers can wrap unconditionally.
func Wrap(cause error, code Code, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// GetCode returns the outermost code on err, or CodeInternal when err
// carries none. Useful for transport mapping where every error needs a
// status.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is reports whether err matches target, following wrapped causes.
// Thin alias over errors.Is kept so call sites stay within one import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
