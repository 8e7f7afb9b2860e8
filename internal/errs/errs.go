// Package errs defines the failure kinds surfaced by branchmind operations
// and the best-effort policy used for persistence.
package errs

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Kind classifies a failure for callers at the session boundary.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindTransientGateway Kind = "gateway"
	KindPersistence      Kind = "persistence"
	KindInternal         Kind = "internal"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports bad caller input.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound reports an operation addressed at an id that does not exist.
func NotFound(op, what, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf("%s %q not found", what, id)}
}

// Gateway wraps an embedding or summarization failure. It is never retried here.
func Gateway(op string, err error) *Error {
	return &Error{Kind: KindTransientGateway, Op: op, Err: err}
}

// Persistence wraps a task-store or disk-cache failure.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// Internal wraps anything else, including recovered panics.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// OrEmpty runs fn and returns its value. On failure the error is logged as a
// persistence warning and the zero value is returned instead: degraded,
// cache-cold operation is preferred over failing the caller.
func OrEmpty[T any](log *zap.Logger, op string, fn func() (T, error)) T {
	v, err := fn()
	if err != nil {
		if log != nil {
			log.Warn("best-effort operation failed", zap.String("op", op), zap.Error(err))
		}
		var zero T
		return zero
	}
	return v
}

// Try is OrEmpty for operations with no result.
func Try(log *zap.Logger, op string, fn func() error) {
	OrEmpty(log, op, func() (struct{}, error) { return struct{}{}, fn() })
}
