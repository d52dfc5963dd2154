// Package apperrors defines the closed set of error kinds used across the
// pipeline (spec §7): Transient, Permanent, Validation, Concurrency, Fatal.
// Components wrap underlying errors with these kinds so the orchestrator and
// scheduler can decide whether to isolate a failure or abort.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Transient  Kind = "transient"
	Permanent  Kind = "permanent"
	Validation Kind = "validation"
	Concurrency Kind = "concurrency"
	Fatal      Kind = "fatal"
)

// Error wraps an underlying cause with a Kind so callers can branch with
// errors.As without string-matching messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Transientf(op, format string, a ...interface{}) error {
	return New(Transient, op, fmt.Errorf(format, a...))
}

func Permanentf(op, format string, a ...interface{}) error {
	return New(Permanent, op, fmt.Errorf(format, a...))
}

func Fatalf(op, format string, a ...interface{}) error {
	return New(Fatal, op, fmt.Errorf(format, a...))
}

// KindOf returns the Kind carried by err, or "" if err (or any error in its
// chain) was never wrapped by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
