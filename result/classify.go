package result

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"syscall"
)

// Classify maps err into the taxonomy. It is the single conversion point
// between raw failures and *Error:
//
//   - an *Error anywhere in the chain is returned unchanged
//   - context.DeadlineExceeded and net.Error timeouts become KindTimeout
//   - JSON syntax/type errors and io.ErrUnexpectedEOF become KindParse
//   - net.Error, connection refused/reset and broken pipe become KindNetwork
//   - everything else becomes KindUnknown preserving err's message
//
// Classify returns nil for a nil error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err.Error(), err)
	}
	if errors.Is(err, context.Canceled) {
		return Unknown(err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Parse(err.Error(), err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return Network(err.Error(), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout(err.Error(), err)
		}
		return Network(err.Error(), err)
	}

	return Unknown(err)
}
