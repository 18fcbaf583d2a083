package result

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for result operations.
var (
	// ErrLoading is returned by Unwrap when the result has not completed.
	ErrLoading = errors.New("result: result is loading")
)

// Kind classifies a failure. The set is closed.
type Kind int

const (
	// KindUnknown is the catch-all for unrecognized failures.
	KindUnknown Kind = iota
	// KindNetwork indicates a transport or connection failure.
	KindNetwork
	// KindHTTP indicates a non-2xx response.
	KindHTTP
	// KindParse indicates the payload could not be decoded.
	KindParse
	// KindRateLimit indicates throttling signaled by the upstream.
	KindRateLimit
	// KindTimeout indicates the call exceeded its deadline.
	KindTimeout
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a classified failure.
type Error struct {
	// Kind is the taxonomy member.
	Kind Kind

	// Message is a human readable description.
	Message string

	// Code is the HTTP status code. Only set for KindHTTP.
	Code int

	// RetryAfter is the upstream's retry hint. Only meaningful for
	// KindRateLimit; zero means no hint was given.
	RetryAfter time.Duration

	// Cause is the original failure, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Code, e.Message)
	case KindRateLimit:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("%s error (retry after %s): %s", e.Kind, e.RetryAfter, e.Message)
		}
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind (and code, for
// http errors with a non-zero target code).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == 0 || t.Code == e.Code
}

// Retryable reports whether a later attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindRateLimit:
		return true
	case KindHTTP:
		return e.Code == http.StatusRequestTimeout ||
			e.Code == http.StatusTooManyRequests ||
			e.Code >= http.StatusInternalServerError
	default:
		return false
	}
}

// Network creates a network error.
func Network(message string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Cause: cause}
}

// HTTP creates an http error for the given status code.
func HTTP(code int, message string) *Error {
	if message == "" {
		message = http.StatusText(code)
	}
	return &Error{Kind: KindHTTP, Code: code, Message: message}
}

// Parse creates a parse error.
func Parse(message string, cause error) *Error {
	return &Error{Kind: KindParse, Message: message, Cause: cause}
}

// RateLimited creates a rate limit error. retryAfter may be zero.
func RateLimited(message string, retryAfter time.Duration) *Error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Error{Kind: KindRateLimit, Message: message, RetryAfter: retryAfter}
}

// Timeout creates a timeout error.
func Timeout(message string, cause error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Cause: cause}
}

// Unknown creates an unknown error preserving the cause's message.
func Unknown(cause error) *Error {
	msg := "unknown failure"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindUnknown, Message: msg, Cause: cause}
}

// IsRetryable reports whether err, once classified, may succeed on a later
// attempt. A nil error is not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable()
}

// KindOf returns the kind err classifies to.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	return Classify(err).Kind
}
