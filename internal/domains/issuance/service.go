package issuance

import (
	"context"

	"github.com/shopspring/decimal"

	"identity-registry/internal/domains/registry"
)

// Service is the issuance controller: the only component authorized to drive
// registry mutations, and only after a submission clears the full check
// pipeline - chain binding, nonce, authorization expiry, signature, fee.
//
// Nonce consumption happens as part of reconstructing the signed message, so
// a submission that fails a later check still burns its nonce. Signed
// payloads embed the nonce, so refunding a failed one would make the
// rejected payload replayable.
type Service interface {
	// MintWithAuthorization validates a signed mint submission and, when
	// every check passes, mints through the registry and retains the
	// attached payment (overpayment included).
	MintWithAuthorization(ctx context.Context, submission MintSubmission) (*registry.Identity, error)

	// RenewWithAuthorization validates a signed renewal submission and
	// extends the binding through the registry.
	RenewWithAuthorization(ctx context.Context, submission RenewSubmission) (*registry.Identity, error)

	// NextNonce reports the next unconsumed nonce for an address.
	NextNonce(ctx context.Context, address registry.Address) (uint64, error)

	// Administrative operations (owner-gated at the transport layer).
	SetSigner(ctx context.Context, signerHex string) error
	SetMintFee(ctx context.Context, fee decimal.Decimal) error
	SetRenewalFee(ctx context.Context, fee decimal.Decimal) error
	Withdraw(ctx context.Context) (decimal.Decimal, error)
	State(ctx context.Context) (*ControllerState, error)
}
