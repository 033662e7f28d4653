package registry

import "errors"

// Repository-level errors
var (
	// Not Found
	ErrNotRegistered = errors.New("username is not registered")

	// Conflict
	ErrAlreadyOwned = errors.New("username already registered to this address")
)

// Service-level (business logic) errors
var (
	// Soulbound enforcement
	ErrSoulbound = errors.New("identity tokens are soulbound and cannot be transferred")
	ErrNotOwner  = errors.New("address does not own this token")

	// Access control
	ErrNotController = errors.New("caller is not the registered controller")

	// Registration lifecycle
	ErrRegistrationExpired       = errors.New("registration has expired")
	ErrZeroYears                 = errors.New("registration years must be at least 1")
	ErrExpiryEnforcementDisabled = errors.New("renewal requires expiry enforcement to be enabled")
)

// Validation errors
var (
	ErrInvalidAddress  = errors.New("invalid address format")
	ErrInvalidTokenID  = errors.New("invalid token id format")
	ErrInvalidUsername = errors.New("invalid username format")
	ErrInvalidDuration = errors.New("registration duration must be positive")
)
