package issuance

import (
	"context"

	"github.com/shopspring/decimal"

	"identity-registry/internal/domains/registry"
)

// Repository defines data access for the controller: per-address nonces and
// the single controller-state row.
type Repository interface {
	// ConsumeNonce atomically returns the next unused nonce for an address
	// and advances the counter. Each value is handed out exactly once;
	// counters start at zero and are never reset.
	ConsumeNonce(ctx context.Context, address registry.Address) (uint64, error)

	// PeekNonce returns the next nonce without consuming it. The off-chain
	// signer uses this to build signable payloads.
	PeekNonce(ctx context.Context, address registry.Address) (uint64, error)

	// GetState returns the controller state row.
	GetState(ctx context.Context) (*ControllerState, error)

	// SaveState persists signer and fee changes.
	SaveState(ctx context.Context, state *ControllerState) error

	// EnsureState seeds the state row when none exists yet.
	EnsureState(ctx context.Context, defaults ControllerState) error

	// Credit adds an accepted payment to the accumulated balance.
	Credit(ctx context.Context, amount decimal.Decimal) error

	// Withdraw drains the balance to zero and returns the drained amount.
	Withdraw(ctx context.Context) (decimal.Decimal, error)
}
