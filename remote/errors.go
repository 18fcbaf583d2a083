package remote

import "errors"

var (
	// ErrMissingName indicates SourceConfig.Name is empty.
	ErrMissingName = errors.New("remote: source name is required")

	// ErrInvalidName indicates SourceConfig.Name contains a key separator.
	ErrInvalidName = errors.New("remote: source name is invalid")

	// ErrCacheType indicates WithCache was given a cache whose value type
	// differs from the source's.
	ErrCacheType = errors.New("remote: cache value type does not match source")

	// ErrCloneType indicates WithClone was given a function whose value
	// type differs from the source's.
	ErrCloneType = errors.New("remote: clone value type does not match source")

	// ErrNilCall indicates Fetch was given a nil call.
	ErrNilCall = errors.New("remote: call is nil")
)
