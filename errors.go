package statekit

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates malformed input to a public operation.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// ErrCodeNoActionsForType indicates a dispatch against a slice that has
	// no registered actions.
	ErrCodeNoActionsForType ErrorCode = "NO_ACTIONS_FOR_TYPE"

	// ErrCodeNoActionFound indicates a dispatch naming an action that was
	// never registered for the slice.
	ErrCodeNoActionFound ErrorCode = "NO_ACTION_FOUND"

	// ErrCodeNoQueryForType indicates a fetch against a slice that has no
	// registered endpoints.
	ErrCodeNoQueryForType ErrorCode = "NO_QUERY_FOR_TYPE"

	// ErrCodeNoEndpointFound indicates a fetch naming an endpoint that was
	// never registered for the slice.
	ErrCodeNoEndpointFound ErrorCode = "NO_ENDPOINT_FOUND"

	// ErrCodeReducerFailed indicates a reducer returned an error; the slice
	// was left untouched.
	ErrCodeReducerFailed ErrorCode = "REDUCER_FAILED"

	// ErrCodeStorage indicates a persistence backend failure.
	ErrCodeStorage ErrorCode = "STORAGE"
)

// Error is a store error with a machine-readable code.
//
// Argument-validation and lookup errors are synchronous and fatal to the
// calling operation: state is never mutated and no event is emitted when
// one is returned.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Slice identifies the affected state slice, when known.
	Slice string

	// Action identifies the action name (for lookup errors).
	Action string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is (or wraps) a store Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}

// invalidArgf builds an ErrCodeInvalidArgument error.
func invalidArgf(format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// TransportError wraps a failed HTTP roundtrip or a non-success response.
//
// When the upstream returned a JSON body with a "message" field, Message
// carries it; otherwise Message is the HTTP status text. The original cause
// (network error, decode failure) is preserved in Err.
type TransportError struct {
	// URL is the full request URL.
	URL string

	// Status is the HTTP status code, or 0 when the request never
	// produced a response.
	Status int

	// Message is the upstream error message, when one was present.
	Message string

	// Err is the underlying transport or decode error, if any.
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	case e.Message != "":
		return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.Status, e.Message)
	default:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}
