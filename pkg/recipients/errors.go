package recipients

import "errors"

var (
	// ErrUnknownTargeting is returned for a targeting kind the resolver does not know.
	ErrUnknownTargeting = errors.New("recipients.unknown_targeting")

	// ErrEmptyTargeting is returned when a users/roles/departments targeting has no ids.
	ErrEmptyTargeting = errors.New("recipients.empty_targeting")

	// ErrAccountStore wraps failures reported by an AccountStore.
	ErrAccountStore = errors.New("recipients.account_store")
)
