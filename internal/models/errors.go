package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Match with errors.Is; the concrete *Error carries the reason shown to callers.
var (
	ErrInvalidState     = errors.New("invalid state transition")
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return newError(ErrInvalidState, format, args...)
}

func Invalid(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}
