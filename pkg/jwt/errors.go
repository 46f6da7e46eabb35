package jwt

import "errors"

var (
	ErrMissingSigningKey       = errors.New("jwt.missing_signing_key")
	ErrInvalidToken            = errors.New("jwt.invalid_token")
	ErrExpiredToken            = errors.New("jwt.expired_token")
	ErrInvalidSignature        = errors.New("jwt.invalid_signature")
	ErrUnexpectedSigningMethod = errors.New("jwt.unexpected_signing_method")
	// ErrInvalidClaims covers claims without a user id.
	ErrInvalidClaims = errors.New("jwt.invalid_claims")
	ErrMissingClaims = errors.New("jwt.missing_claims")
)
