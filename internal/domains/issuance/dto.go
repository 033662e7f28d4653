package issuance

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"identity-registry/internal/domains/registry"
	"identity-registry/internal/shared/utils"
)

var (
	addressPattern   = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	signaturePattern = regexp.MustCompile(`^[0-9a-fA-F]{128}$`)
	signerPattern    = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
	decimalPattern   = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ========================================
// SUBMISSION DTOs
// ========================================

// MintRequest carries a signed mint authorization. Every signed field travels
// verbatim; the server reconstructs the digest from these plus the consumed
// nonce, so any mismatch fails signature verification.
type MintRequest struct {
	Username  string `json:"username" binding:"required"`
	Address   string `json:"address" binding:"required"`
	Expiry    int64  `json:"expiry" binding:"required"`
	ChainID   uint64 `json:"chain_id" binding:"required"`
	Free      bool   `json:"free"`
	Years     uint64 `json:"years" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Payment   string `json:"payment"`
}

func (r MintRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username,
			validation.Required.Error("username is required"),
			validation.Match(registry.UsernamePattern).Error("username must be 3-32 lowercase alphanumerics, hyphens or underscores"),
		),
		validation.Field(&r.Address, validation.Required, validation.Match(addressPattern)),
		validation.Field(&r.Expiry, validation.Required, validation.Min(1)),
		validation.Field(&r.ChainID, validation.Required),
		validation.Field(&r.Years,
			validation.Required.Error("years is required"),
			validation.Min(uint64(1)).Error("years must be at least 1"),
			validation.Max(uint64(100)),
		),
		validation.Field(&r.Signature, validation.Required, validation.Match(signaturePattern)),
		validation.Field(&r.Payment, validation.Match(decimalPattern).Error("payment must be a non-negative decimal string")),
	)
}

// ToSubmission converts the wire request into a domain submission.
func (r MintRequest) ToSubmission() (MintSubmission, error) {
	address, err := registry.ParseAddress(r.Address)
	if err != nil {
		return MintSubmission{}, err
	}
	payment, err := utils.ParseDecimal(r.Payment)
	if err != nil {
		return MintSubmission{}, err
	}
	return MintSubmission{
		Username:  r.Username,
		Address:   address,
		Expiry:    r.Expiry,
		ChainID:   r.ChainID,
		Free:      r.Free,
		Years:     r.Years,
		Signature: r.Signature,
		Payment:   payment,
	}, nil
}

// RenewRequest carries a signed renewal authorization. Years is not part of
// the signed message; it drives the fee and the extension length.
type RenewRequest struct {
	Username  string `json:"username" binding:"required"`
	Address   string `json:"address" binding:"required"`
	Expiry    int64  `json:"expiry" binding:"required"`
	ChainID   uint64 `json:"chain_id" binding:"required"`
	Free      bool   `json:"free"`
	Years     uint64 `json:"years" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Payment   string `json:"payment"`
}

func (r RenewRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username,
			validation.Required.Error("username is required"),
			validation.Match(registry.UsernamePattern),
		),
		validation.Field(&r.Address, validation.Required, validation.Match(addressPattern)),
		validation.Field(&r.Expiry, validation.Required, validation.Min(1)),
		validation.Field(&r.ChainID, validation.Required),
		validation.Field(&r.Years,
			validation.Required.Error("years is required"),
			validation.Min(uint64(1)).Error("years must be at least 1"),
			validation.Max(uint64(100)),
		),
		validation.Field(&r.Signature, validation.Required, validation.Match(signaturePattern)),
		validation.Field(&r.Payment, validation.Match(decimalPattern).Error("payment must be a non-negative decimal string")),
	)
}

func (r RenewRequest) ToSubmission() (RenewSubmission, error) {
	address, err := registry.ParseAddress(r.Address)
	if err != nil {
		return RenewSubmission{}, err
	}
	payment, err := utils.ParseDecimal(r.Payment)
	if err != nil {
		return RenewSubmission{}, err
	}
	return RenewSubmission{
		Username:  r.Username,
		Address:   address,
		Expiry:    r.Expiry,
		ChainID:   r.ChainID,
		Free:      r.Free,
		Years:     r.Years,
		Signature: r.Signature,
		Payment:   payment,
	}, nil
}

// ========================================
// ADMIN DTOs
// ========================================

type SetSignerRequest struct {
	Signer string `json:"signer" binding:"required"`
}

func (r SetSignerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Signer,
			validation.Required.Error("signer is required"),
			validation.Match(signerPattern).Error("signer must be a 64-character hex public key"),
		),
	)
}

type SetFeeRequest struct {
	Fee string `json:"fee" binding:"required"`
}

func (r SetFeeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Fee,
			validation.Required.Error("fee is required"),
			validation.Match(decimalPattern).Error("fee must be a non-negative decimal string"),
		),
	)
}

func (r SetFeeRequest) ParseFee() (decimal.Decimal, error) {
	return utils.ParseDecimal(r.Fee)
}

// ========================================
// RESPONSE DTOs
// ========================================

type NonceDTO struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// StateDTO is the admin projection of the controller state.
type StateDTO struct {
	Signer            string    `json:"signer"`
	MintFee           string    `json:"mint_fee"`
	RenewalFeePerYear string    `json:"renewal_fee_per_year"`
	Balance           string    `json:"balance"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func ToStateDTO(s *ControllerState) *StateDTO {
	return &StateDTO{
		Signer:            s.Signer,
		MintFee:           s.MintFee.String(),
		RenewalFeePerYear: s.RenewalFeePerYear.String(),
		Balance:           s.Balance.String(),
		UpdatedAt:         s.UpdatedAt,
	}
}
