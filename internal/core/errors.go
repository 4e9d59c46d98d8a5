package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	KindOwnerNotFound    ErrorKind = "owner_not_found"
	KindWriteFailed      ErrorKind = "write_failed"
	KindValidationFailed ErrorKind = "validation_failed"
	KindNotFound         ErrorKind = "not_found"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrOwnerNotFound    = &Error{Kind: KindOwnerNotFound}
	ErrWriteFailed      = &Error{Kind: KindWriteFailed}
	ErrValidationFailed = &Error{Kind: KindValidationFailed}
	ErrNotFound         = &Error{Kind: KindNotFound}
)

// Error is the tagged failure returned by every gateway operation.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// E builds a tagged error.
func E(kind ErrorKind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message is the user-facing text for a failed operation. Store details never leak.
func Message(op string, err error) string {
	switch KindOf(err) {
	case KindValidationFailed:
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			return "Invalid input: " + rootCause(e.Err).Error()
		}
		return "Invalid input"
	case KindOwnerNotFound:
		return "User not found"
	case KindNotFound:
		return "Not found"
	}
	if op == "" {
		return "Something went wrong"
	}
	return "Failed to " + op
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
