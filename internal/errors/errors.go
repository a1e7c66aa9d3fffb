// Package errors provides the coded error type shared by repositories,
// services and transport handlers. Handlers translate codes into HTTP status
// codes and gRPC codes; nothing below the handler layer formats responses.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Re-exported so callers only need one errors import.
var (
	Is     = stderrors.Is
	As     = stderrors.As
	Unwrap = stderrors.Unwrap
	Join   = stderrors.Join
)

// Code classifies an error for callers.
type Code string

const (
	ErrCodeInternal      Code = "INTERNAL"
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeAlreadyExists Code = "ALREADY_EXISTS"
	ErrCodeConflict      Code = "CONFLICT"
	ErrCodeUnauthorized  Code = "UNAUTHORIZED"
	ErrCodeForbidden     Code = "FORBIDDEN"

	// Approval & allocation engine codes.
	ErrCodeInvalidTransition    Code = "INVALID_TRANSITION"
	ErrCodeWrongApprover        Code = "WRONG_APPROVER"
	ErrCodeVenueConflict        Code = "VENUE_CONFLICT"
	ErrCodeCapacityExceeded     Code = "CAPACITY_EXCEEDED"
	ErrCodeInsufficientQuantity Code = "INSUFFICIENT_QUANTITY"
)

// Error is a coded error with optional structured details.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so sentinel-style comparisons work:
// errors.Is(err, &errors.Error{Code: errors.ErrCodeNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail attaches a key/value pair and returns the same error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap wraps err with a code and message. An Internal wrapper stays
// transparent to CodeOf, so a coded cause keeps its code.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFound reports an unknown entity id.
func NotFound(entity, id string) *Error {
	return New(ErrCodeNotFound, fmt.Sprintf("%s %q not found", entity, id)).
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// InvalidInput reports a rejected request field.
func InvalidInput(field, message string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, message)).
		WithDetail("field", field)
}

// AlreadyExists reports a uniqueness violation.
func AlreadyExists(entity, key string) *Error {
	return New(ErrCodeAlreadyExists, fmt.Sprintf("%s %q already exists", entity, key)).
		WithDetail("entity", entity)
}

// Conflict reports a concurrent modification that lost the race.
func Conflict(message string) *Error {
	return New(ErrCodeConflict, message)
}

// CodeOf returns the code of the outermost *Error in the chain whose code is
// not Internal, falling back to Internal for uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	for cur := err; cur != nil; {
		if !As(cur, &e) {
			break
		}
		if e.Code != ErrCodeInternal {
			return e.Code
		}
		cur = e.Err
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// DetailsOf returns the details of the first coded error carrying code.
func DetailsOf(err error, code Code) map[string]any {
	var e *Error
	for cur := err; cur != nil; {
		if !As(cur, &e) {
			return nil
		}
		if e.Code == code {
			return e.Details
		}
		cur = e.Err
	}
	return nil
}
