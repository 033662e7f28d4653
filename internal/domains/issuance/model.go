package issuance

import (
	"time"

	"github.com/shopspring/decimal"

	"identity-registry/internal/domains/registry"
)

// ControllerState is the controller's mutable state: the trusted signer, the
// fee schedule, and the accumulated balance. Single row, mutated only by the
// administrative surface and by accepted requests.
type ControllerState struct {
	Signer            string          `db:"signer" json:"signer"` // hex ed25519 public key
	MintFee           decimal.Decimal `db:"mint_fee" json:"mint_fee"`
	RenewalFeePerYear decimal.Decimal `db:"renewal_fee_per_year" json:"renewal_fee_per_year"`
	Balance           decimal.Decimal `db:"balance" json:"balance"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// MintSubmission is a signed mint request plus its attached payment.
type MintSubmission struct {
	Username  string
	Address   registry.Address
	Expiry    int64 // unix seconds; authorization deadline
	ChainID   uint64
	Free      bool
	Years     uint64
	Signature string // hex
	Payment   decimal.Decimal
}

// RenewSubmission is a signed renewal request plus its attached payment.
// Years is not part of the signed message (mint path only); it drives the
// fee and the extension length.
type RenewSubmission struct {
	Username  string
	Address   registry.Address
	Expiry    int64
	ChainID   uint64
	Free      bool
	Years     uint64
	Signature string
	Payment   decimal.Decimal
}
