package registry

import (
	"context"
	"time"
)

// Repository defines the data access contract for identity bindings.
// Interface-driven so the Postgres implementation can be swapped for the
// in-memory one in tests without touching business logic.
type Repository interface {
	// Insert stores a new binding.
	// Returns ErrAlreadyOwned when the address or username is already bound.
	Insert(ctx context.Context, identity *Identity) error

	// Reassign deletes the given bindings and inserts the replacement as one
	// atomic operation. On any failure, ErrAlreadyOwned included, none of the
	// burns is applied.
	Reassign(ctx context.Context, burns []Identity, identity *Identity) error

	// FindByTokenID returns the binding for a derived token id.
	// Returns ErrNotRegistered when no binding exists. Expiry is NOT
	// consulted here; validity is a service concern.
	FindByTokenID(ctx context.Context, tokenID TokenID) (*Identity, error)

	// FindByAddress returns the binding held by an address.
	// Returns ErrNotRegistered when the address holds nothing.
	FindByAddress(ctx context.Context, owner Address) (*Identity, error)

	// UpdateExpiry moves a binding's expiration.
	// Returns ErrNotRegistered when the binding does not exist.
	UpdateExpiry(ctx context.Context, tokenID TokenID, expiresAt time.Time) error

	// Delete removes a binding entirely (forward and reverse mappings).
	// Returns ErrNotRegistered when the binding does not exist.
	Delete(ctx context.Context, tokenID TokenID) error

	// ListExpired returns bindings whose expiration is before asOf,
	// newest first, capped at limit. Used by the sweep job.
	ListExpired(ctx context.Context, asOf time.Time, limit int) ([]Identity, error)

	// GetSettings returns the administrative settings row.
	GetSettings(ctx context.Context) (*Settings, error)

	// SaveSettings persists the administrative settings row.
	SaveSettings(ctx context.Context, settings *Settings) error

	// EnsureSettings seeds the settings row when none exists yet.
	EnsureSettings(ctx context.Context, defaults Settings) error

	// AppendEvent records a domain event for external indexers.
	AppendEvent(ctx context.Context, event *Event) error

	// ListEvents returns the most recent events, newest first.
	ListEvents(ctx context.Context, limit int) ([]Event, error)
}
