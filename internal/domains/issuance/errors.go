package issuance

import "errors"

// Authorization failures - terminal; the caller needs a fresh signed payload
// from the off-chain signer before retrying.
var (
	ErrChainMismatch        = errors.New("authorization was issued for a different chain")
	ErrAuthorizationExpired = errors.New("authorization has expired")
	ErrInvalidSignature     = errors.New("signature does not match the authorized signer")
)

// Funding failures
var (
	ErrInsufficientPayment = errors.New("attached payment is below the required fee")
)

// Validation / administrative errors
var (
	ErrInvalidSigner = errors.New("signer must be a hex-encoded ed25519 public key")
	ErrNegativeFee   = errors.New("fee must not be negative")
)
