package email

import "errors"

var (
	ErrInvalidConfig     = errors.New("email.invalid_config")
	ErrInvalidMessage    = errors.New("email.invalid_message")
	ErrFailedToSendEmail = errors.New("email.send_failed")
)
