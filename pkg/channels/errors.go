package channels

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConfig marks a channel whose config lacks a required field.
	// Adapters return it before any network I/O.
	ErrMissingConfig = errors.New("channels.missing_config")

	// ErrInvalidConfig marks a config field that is present but unusable.
	ErrInvalidConfig = errors.New("channels.invalid_config")

	// ErrTransport covers network failures, timeouts and unparseable responses.
	ErrTransport = errors.New("channels.transport")

	// ErrProviderRejected means the provider answered with a failure code.
	ErrProviderRejected = errors.New("channels.provider_rejected")

	// ErrUnsupportedKind is returned when no adapter is registered for a kind.
	ErrUnsupportedKind = errors.New("channels.unsupported_kind")

	ErrChannelNotFound = errors.New("channels.not_found")
	ErrInvalidChannel  = errors.New("channels.invalid_channel")
)

// ProviderError carries a provider's own failure code and text. Error returns
// the text verbatim so the delivery log shows what the provider said.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider error %s", e.Code)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error { return ErrProviderRejected }

// IsConfigError reports whether err comes from channel configuration rather
// than from talking to the provider.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingConfig) || errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrUnsupportedKind)
}

func missing(kind Kind, field string) error {
	return fmt.Errorf("%w: %s requires %q", ErrMissingConfig, kind, field)
}

func rejected(code any, msg string) error {
	return &ProviderError{Code: fmt.Sprint(code), Message: msg}
}
