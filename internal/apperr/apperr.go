// Package apperr defines the closed set of error kinds surfaced by the engine.
// Callers branch on Kind rather than on concrete types.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	// KindPersistence covers I/O and lock-timeout failures. On-disk state is
	// either unchanged or fully updated when one is returned.
	KindPersistence Kind = iota + 1
	// KindConflict means a proposed range overlaps stored entries. Nothing was written.
	KindConflict
	// KindValidation covers bad input detected before any write.
	KindValidation
	// KindNotFound means a referenced segment or backup does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindPersistence:
		return "persistence"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Error is the single error type carried across package boundaries.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "storage.append_batch"
	Msg  string
	// Detail holds kind-specific context, such as the conflicting entries of
	// a KindConflict error.
	Detail any
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String() + " error"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Persistence wraps an I/O or lock failure.
func Persistence(op string, err error, format string, args ...any) error {
	return &Error{Kind: KindPersistence, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports bad caller input.
func Validation(op string, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Conflict reports an overlap; detail is attached for callers that explain it.
func Conflict(op string, detail any, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf(format, args...), Detail: detail}
}

// NotFound reports a missing segment, group or backup.
func NotFound(op string, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether any error in err's chain is an *Error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
