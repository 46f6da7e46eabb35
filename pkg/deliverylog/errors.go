package deliverylog

import "errors"

var (
	ErrInvalidEntry = errors.New("deliverylog: invalid entry")

	// ErrStorageNotAvailable is returned by AsyncWriter after Close.
	ErrStorageNotAvailable = errors.New("deliverylog: storage is unavailable")
)
