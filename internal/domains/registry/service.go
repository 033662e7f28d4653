package registry

import (
	"context"
	"time"
)

// Service is the sole source of truth for username-address-token bindings.
// Every mutating operation takes the caller's capability value and rejects
// anything that is not the registered controller, so not even a buggy
// controller wiring can bypass the soulbound property.
type Service interface {
	// Mint binds username to user. An existing binding for the same
	// username under a different owner is burned first (reassignment),
	// as is any other username the destination address already holds.
	// Minting a username to the address that already owns it fails with
	// ErrAlreadyOwned.
	Mint(ctx context.Context, caller Caller, user Address, username string, years uint64) (*Identity, error)

	// Renew extends a binding from max(now, current expiration).
	// Fails when the binding does not exist, years is zero, or expiry
	// enforcement is disabled.
	Renew(ctx context.Context, caller Caller, tokenID TokenID, years uint64) (*Identity, error)

	// Burn destroys the binding held by user, removing both the
	// address-to-username and token-to-expiry records.
	Burn(ctx context.Context, caller Caller, user Address) error

	// Transfer is the soulbound interception point: any move of a bound
	// token to a non-zero destination fails with ErrSoulbound.
	Transfer(ctx context.Context, from, to Address, tokenID TokenID) error

	// Lookups fail with ErrNotRegistered when no binding exists and,
	// while expiry enforcement is on, with ErrRegistrationExpired for
	// stale bindings.
	GetByUsername(ctx context.Context, username string) (*Identity, error)
	GetByAddress(ctx context.Context, owner Address) (*Identity, error)
	GetByTokenID(ctx context.Context, tokenID TokenID) (*Identity, error)

	// IsValid reports whether a binding exists and is within its validity
	// window (always true for existing bindings while enforcement is off).
	IsValid(ctx context.Context, tokenID TokenID) (bool, error)

	// TokenURI returns the metadata location for a token.
	TokenURI(ctx context.Context, tokenID TokenID) (string, error)

	// Administrative operations (owner-gated at the transport layer).
	SetController(ctx context.Context, controller Caller) error
	SetRegistrationDuration(ctx context.Context, duration time.Duration) error
	SetExpiryEnforcement(ctx context.Context, enabled bool) error
	SetMetadataBase(ctx context.Context, base string) error
	Settings(ctx context.Context) (*Settings, error)
}

// EventPublisher fans domain events out to the worker. Implementations must
// be safe for concurrent use; failures are logged, never surfaced to the
// caller, since the state change has already committed.
type EventPublisher interface {
	Publish(ctx context.Context, taskType string, payload interface{}) error
}
