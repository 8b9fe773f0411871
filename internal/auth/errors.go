package auth

import "errors"

var (
	// ErrAccountNotFound signals that the account could not be located.
	ErrAccountNotFound = errors.New("account not found")
	// ErrUnauthorized represents missing or invalid authentication tokens.
	ErrUnauthorized = errors.New("unauthorized")
)
