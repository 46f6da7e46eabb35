package realtime

import "errors"

var (
	ErrRegistryClosed = errors.New("realtime: registry is closed")
	ErrMalformedFrame = errors.New("realtime: malformed frame")
	ErrUnknownEvent   = errors.New("realtime: unknown event")
	ErrRateLimited    = errors.New("realtime: rate limit exceeded")
)
