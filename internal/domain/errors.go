// Package domain holds cross-cutting domain primitives: typed errors that
// carry enough information for the HTTP layer to pick a status code, and a
// generic pagination envelope.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for transport-level mapping.
type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindConflict
	KindInvalidState
)

// Error is a typed domain error.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// NewValidationError reports invalid caller input.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewNotFoundError reports a missing entity by type and identifier.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s with ID %s not found", entity, id)}
}

// NewConflictError reports a concurrent-modification conflict.
func NewConflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NewInvalidStateError reports an illegal lifecycle transition.
func NewInvalidStateError(from, to string) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf("invalid state transition from %s to %s", from, to)}
}

// KindOf extracts the ErrorKind from err, unwrapping as needed.
// The second return is false if err is not a domain error.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}
