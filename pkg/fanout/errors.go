package fanout

import "errors"

var (
	ErrInvalidRequest = errors.New("fanout.invalid_request")

	// ErrResolve wraps a recipient resolver failure.
	ErrResolve = errors.New("fanout.resolve_failed")

	// ErrPersist wraps a message storage failure.
	ErrPersist = errors.New("fanout.persist_failed")

	// ErrClosed is returned by Notify after Shutdown has started.
	ErrClosed = errors.New("fanout.closed")

	ErrMissingDependency = errors.New("fanout.missing_dependency")
)
