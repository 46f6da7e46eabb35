package async

import "errors"

// ErrPanic wraps a recovered task panic.
var ErrPanic = errors.New("async.panic")
