package gateway

import (
	apperrors "github.com/anime-shed/image-forensics-go/internal/errors"
)

// Result is the outcome of one independently fallible extraction: either a
// value or a typed failure. Callers branch on OK, never on the value's shape.
type Result[T any] struct {
	value T
	err   *apperrors.AppError
}

// Success wraps a successfully extracted value
func Success[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Failure wraps a typed failure
func Failure[T any](err *apperrors.AppError) Result[T] {
	if err == nil {
		err = apperrors.NewInternalError("unspecified failure", nil)
	}
	return Result[T]{err: err}
}

// OK reports whether the extraction succeeded
func (r Result[T]) OK() bool {
	return r.err == nil
}

// Value returns the extracted value, or the zero value on failure
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure, or nil on success
func (r Result[T]) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Message returns the failure message, or "" on success
func (r Result[T]) Message() string {
	if r.err == nil {
		return ""
	}
	return r.err.Error()
}
