package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input rejected before any write happened.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request collided with a concurrent or duplicate one.
	ErrConflict = errors.New("conflict")
)

// Invalid builds a validation error carrying a human readable message.
func Invalid(format string, args ...any) error {
	return &messageError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFound builds a not-found error naming the missing entity.
func NotFound(entity string, id any) error {
	return &messageError{kind: ErrNotFound, msg: fmt.Sprintf("%s %v not found", entity, id)}
}

type messageError struct {
	kind error
	msg  string
}

func (e *messageError) Error() string { return e.msg }

func (e *messageError) Unwrap() error { return e.kind }

// Message returns the caller-facing text of a validation, not-found or conflict error.
func Message(err error) string {
	var m *messageError
	if errors.As(err, &m) {
		return m.msg
	}
	return err.Error()
}
