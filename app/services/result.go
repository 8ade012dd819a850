package services

import "fmt"

// ErrorKind classifies failures of external calls
type ErrorKind string

const (
	// ErrorKindTransient covers network errors, timeouts and 5xx responses; the next cycle may retry
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindRejected is a definitive refusal by the remote API (validation, auth, unknown object)
	ErrorKindRejected ErrorKind = "rejected"
	// ErrorKindConfiguration means the call could not be attempted, e.g. no credential for a destination
	ErrorKindConfiguration ErrorKind = "configuration"
	// ErrorKindUnavailable marks an optional collaborator that is switched off or not configured
	ErrorKindUnavailable ErrorKind = "unavailable"
)

// Failure is the error half of a Result
type Failure struct {
	Kind    ErrorKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Result is either a value or a Failure
type Result[T any] struct {
	value   T
	failure *Failure
}

// Ok wraps a successful value
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Err builds a failed result
func Err[T any](kind ErrorKind, format string, args ...any) Result[T] {
	return Result[T]{failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// IsOk reports whether the result holds a value
func (r Result[T]) IsOk() bool {
	return r.failure == nil
}

// Value returns the value and true, or the zero value and false for a failure
func (r Result[T]) Value() (T, bool) {
	return r.value, r.failure == nil
}

// Failure returns the failure, nil for a success
func (r Result[T]) Failure() *Failure {
	return r.failure
}

// Err returns the failure as an error, nil for a success
func (r Result[T]) Err() error {
	if r.failure == nil {
		return nil
	}
	return r.failure
}

// Match calls exactly one of ok or fail
func Match[T any, R any](r Result[T], ok func(T) R, fail func(*Failure) R) R {
	if r.failure != nil {
		return fail(r.failure)
	}
	return ok(r.value)
}
