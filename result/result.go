package result

import "fmt"

// Status identifies the active variant of a Result.
type Status int

const (
	// StatusLoading marks an operation that has not completed.
	StatusLoading Status = iota
	// StatusSuccess marks a completed operation carrying data.
	StatusSuccess
	// StatusError marks a completed operation carrying an *Error.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "loading"
	}
}

// Result is the outcome of a remote operation. The zero value is Loading.
//
// Contract:
// - Exactly one variant is active; Success and Error are terminal.
// - Results are values; copying one never aliases another caller's state
//   beyond what T itself shares.
type Result[T any] struct {
	status Status
	data   T
	err    *Error
}

// Success wraps data in a successful result.
func Success[T any](data T) Result[T] {
	return Result[T]{status: StatusSuccess, data: data}
}

// Failure wraps a classified error. A nil err is classified as unknown.
func Failure[T any](err *Error) Result[T] {
	if err == nil {
		err = Unknown(nil)
	}
	return Result[T]{status: StatusError, err: err}
}

// FromError classifies err and wraps it.
func FromError[T any](err error) Result[T] {
	return Failure[T](Classify(err))
}

// Loading returns the transient loading marker.
func Loading[T any]() Result[T] {
	return Result[T]{}
}

// Status returns the active variant.
func (r Result[T]) Status() Status { return r.status }

// IsSuccess reports whether r is Success.
func (r Result[T]) IsSuccess() bool { return r.status == StatusSuccess }

// IsError reports whether r is Error.
func (r Result[T]) IsError() bool { return r.status == StatusError }

// IsLoading reports whether r is Loading.
func (r Result[T]) IsLoading() bool { return r.status == StatusLoading }

// Value returns the data and true for Success, the zero value and false
// otherwise.
func (r Result[T]) Value() (T, bool) {
	if r.status != StatusSuccess {
		var zero T
		return zero, false
	}
	return r.data, true
}

// Err returns the classified error, or nil unless r is Error.
func (r Result[T]) Err() *Error {
	if r.status != StatusError {
		return nil
	}
	return r.err
}

// Unwrap converts r back to Go's (T, error) form. Loading yields ErrLoading.
func (r Result[T]) Unwrap() (T, error) {
	switch r.status {
	case StatusSuccess:
		return r.data, nil
	case StatusError:
		var zero T
		return zero, r.err
	default:
		var zero T
		return zero, ErrLoading
	}
}

// MustGet returns the data of a Success and panics otherwise.
func (r Result[T]) MustGet() T {
	switch r.status {
	case StatusSuccess:
		return r.data
	case StatusError:
		panic(fmt.Sprintf("result: illegal state: result is error: %s", r.err.Error()))
	default:
		panic("result: illegal state: result is loading")
	}
}

// OrElse returns the data of a Success, or fallback.
func (r Result[T]) OrElse(fallback T) T {
	if r.status == StatusSuccess {
		return r.data
	}
	return fallback
}

// String implements fmt.Stringer.
func (r Result[T]) String() string {
	switch r.status {
	case StatusSuccess:
		return fmt.Sprintf("Success(%v)", r.data)
	case StatusError:
		return fmt.Sprintf("Error(%s)", r.err.Error())
	default:
		return "Loading"
	}
}

// Map transforms the data of a Success. Error and Loading pass through.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	switch r.status {
	case StatusSuccess:
		return Success(fn(r.data))
	case StatusError:
		return Failure[U](r.err)
	default:
		return Loading[U]()
	}
}
