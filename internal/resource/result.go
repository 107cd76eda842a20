// Package resource groups the API client into one namespace per backend
// entity. Every operation returns a Result and never panics on request
// failures: callers inspect the error slot instead.
package resource

import "errors"

// ErrUnknown stands in when Err is given a nil error
var ErrUnknown = errors.New("unknown error")

// Result is either a value or an error, never both
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err wraps a failure
func Err[T any](err error) Result[T] {
	if err == nil {
		err = ErrUnknown
	}
	return Result[T]{err: err}
}

func (r Result[T]) IsOk() bool { return r.err == nil }

// Value returns the wrapped value; it is the zero value on failure
func (r Result[T]) Value() T { return r.value }

// Err returns the failure, or nil on success
func (r Result[T]) Err() error { return r.err }

// Unwrap returns both slots for idiomatic `v, err :=` handling
func (r Result[T]) Unwrap() (T, error) { return r.value, r.err }

// Empty is the value of operations that return nothing on success
type Empty struct{}
