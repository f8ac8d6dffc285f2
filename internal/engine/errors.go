package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/idemproxy/internal/keys"
)

// ErrReservedSwitchField is returned when a switch attribute would overwrite
// the singleton's id field.
var ErrReservedSwitchField = errors.New("switch attribute " + keys.FieldSwitchOID + " is reserved")

// StatusError is a lifecycle call failure with a switch-API status code.
type StatusError struct {
	// Code identifies the failure category.
	Code StatusCode

	// Op is the lifecycle call that failed.
	Op string

	// Key is the affected object, when known.
	Key string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// StatusCode categorizes lifecycle failures.
type StatusCode string

const (
	// StatusSuccess is reported for nil errors.
	StatusSuccess StatusCode = "SUCCESS"

	// StatusInsufficientResources indicates id allocation was exhausted.
	StatusInsufficientResources StatusCode = "INSUFFICIENT_RESOURCES"

	// StatusItemNotFound indicates fingerprint bookkeeping is inconsistent.
	StatusItemNotFound StatusCode = "ITEM_NOT_FOUND"

	// StatusInvalidParameter indicates malformed input.
	StatusInvalidParameter StatusCode = "INVALID_PARAMETER"

	// StatusFailure covers store and writer errors.
	StatusFailure StatusCode = "FAILURE"
)

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Op, e.Key, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
}

// Unwrap returns the underlying cause.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// Status returns the status code carried by err.
// nil maps to StatusSuccess, untyped errors to StatusFailure.
func Status(err error) StatusCode {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return StatusFailure
}

// IsItemNotFound returns true if err carries ITEM_NOT_FOUND.
// Uses errors.As to handle wrapped errors.
func IsItemNotFound(err error) bool {
	return Status(err) == StatusItemNotFound
}

// IsInsufficientResources returns true if err carries INSUFFICIENT_RESOURCES.
func IsInsufficientResources(err error) bool {
	return Status(err) == StatusInsufficientResources
}

// IsInvalidParameter returns true if err carries INVALID_PARAMETER.
func IsInvalidParameter(err error) bool {
	return Status(err) == StatusInvalidParameter
}

func itemNotFound(op, key, format string, args ...any) *StatusError {
	return &StatusError{Code: StatusItemNotFound, Op: op, Key: key, Message: fmt.Sprintf(format, args...)}
}

func invalidParameter(op, key string, err error) *StatusError {
	return &StatusError{Code: StatusInvalidParameter, Op: op, Key: key, Message: "invalid parameter", Err: err}
}

func insufficientResources(op string, err error) *StatusError {
	return &StatusError{Code: StatusInsufficientResources, Op: op, Message: "object id allocation failed", Err: err}
}
