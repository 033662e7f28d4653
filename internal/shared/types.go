package shared

import "time"

// Task types routed through asynq. Queue names follow "domain:action".
const (
	TypeIdentityMinted       = "identity:minted"
	TypeIdentityBurned       = "identity:burned"
	TypeIdentityRenewed      = "identity:renewed"
	TypeControllerSignerSet  = "controller:signer_changed"
	TypeControllerFeeSet     = "controller:fee_changed"
	TypeSweepExpiredBindings = "registry:sweep_expired"

	QueueEvents = "events"
	QueueSweep  = "sweep"
)

// IdentityMintedPayload is emitted after a successful mint.
type IdentityMintedPayload struct {
	EventID   string     `json:"eventId"`
	TokenID   string     `json:"tokenId"`
	Owner     string     `json:"owner"`
	Username  string     `json:"username"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	MintedAt  time.Time  `json:"mintedAt"`
}

// IdentityBurnedPayload is emitted after a binding is destroyed.
type IdentityBurnedPayload struct {
	EventID  string    `json:"eventId"`
	TokenID  string    `json:"tokenId"`
	Owner    string    `json:"owner"`
	Username string    `json:"username"`
	BurnedAt time.Time `json:"burnedAt"`
}

// IdentityRenewedPayload is emitted after a successful renewal.
type IdentityRenewedPayload struct {
	EventID   string    `json:"eventId"`
	TokenID   string    `json:"tokenId"`
	Owner     string    `json:"owner"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
	RenewedAt time.Time `json:"renewedAt"`
}

// SignerChangedPayload is emitted when the authorized signer rotates.
type SignerChangedPayload struct {
	EventID   string    `json:"eventId"`
	NewSigner string    `json:"newSigner"`
	ChangedAt time.Time `json:"changedAt"`
}

// FeeChangedPayload is emitted when the mint or renewal fee changes.
type FeeChangedPayload struct {
	EventID   string    `json:"eventId"`
	Kind      string    `json:"kind"` // "mint" or "renewal"
	NewFee    string    `json:"newFee"`
	ChangedAt time.Time `json:"changedAt"`
}

// SweepExpiredPayload triggers the scheduled expired-bindings sweep.
type SweepExpiredPayload struct {
	Date time.Time `json:"date,omitempty"`
}
