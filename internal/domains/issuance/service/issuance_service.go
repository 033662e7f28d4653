package service

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"identity-registry/internal/domains/issuance"
	"identity-registry/internal/domains/registry"
	"identity-registry/internal/shared"
	"identity-registry/pkg/logger"
	"identity-registry/pkg/signature"
)

// issuanceService implements issuance.Service.
//
// The chain id and the registry capability are captured at construction:
// the chain id pins signatures to this deployment, the capability is what
// the registry compares mutating callers against.
type issuanceService struct {
	repo     issuance.Repository
	registry registry.Service
	events   registry.EventPublisher
	caller   registry.Caller
	chainID  uint64
	now      func() time.Time
}

func NewIssuanceService(repo issuance.Repository, reg registry.Service, events registry.EventPublisher, caller registry.Caller, chainID uint64) issuance.Service {
	return NewIssuanceServiceWithClock(repo, reg, events, caller, chainID, time.Now)
}

// NewIssuanceServiceWithClock injects the clock; tests use a fixed one.
func NewIssuanceServiceWithClock(repo issuance.Repository, reg registry.Service, events registry.EventPublisher, caller registry.Caller, chainID uint64, now func() time.Time) issuance.Service {
	return &issuanceService{
		repo:     repo,
		registry: reg,
		events:   events,
		caller:   caller,
		chainID:  chainID,
		now:      now,
	}
}

// ========================================
// SIGNED SUBMISSIONS
// ========================================

func (s *issuanceService) MintWithAuthorization(ctx context.Context, sub issuance.MintSubmission) (*registry.Identity, error) {
	// Step 1: chain binding. Checked before the nonce is touched, so a
	// signature captured for another deployment costs the caller nothing.
	if sub.ChainID != s.chainID {
		return nil, issuance.ErrChainMismatch
	}

	// Step 2: nonce consumption. From this point on the nonce is spent
	// whether or not the remaining checks pass.
	nonce, err := s.repo.ConsumeNonce(ctx, sub.Address)
	if err != nil {
		return nil, err
	}

	// Step 3: reconstruct the signed message with the consumed nonce.
	digest := signature.HashMint(signature.MintAuthorization{
		Username: sub.Username,
		Address:  sub.Address.String(),
		Expiry:   sub.Expiry,
		ChainID:  sub.ChainID,
		Nonce:    nonce,
		Free:     sub.Free,
		Years:    sub.Years,
	})

	state, err := s.validateAuthorization(ctx, sub.Expiry, sub.Signature, digest)
	if err != nil {
		return nil, err
	}

	// Step 6: fee computation and check.
	required, err := s.requiredMintFee(ctx, state, sub.Free, sub.Years)
	if err != nil {
		return nil, err
	}
	if sub.Payment.LessThan(required) {
		return nil, issuance.ErrInsufficientPayment
	}

	// Step 7: delegate. A registry failure aborts the request; the nonce
	// stays consumed but no payment is retained.
	identity, err := s.registry.Mint(ctx, s.caller, sub.Address, sub.Username, sub.Years)
	if err != nil {
		return nil, err
	}

	s.credit(ctx, sub.Payment)
	return identity, nil
}

func (s *issuanceService) RenewWithAuthorization(ctx context.Context, sub issuance.RenewSubmission) (*registry.Identity, error) {
	if sub.ChainID != s.chainID {
		return nil, issuance.ErrChainMismatch
	}

	nonce, err := s.repo.ConsumeNonce(ctx, sub.Address)
	if err != nil {
		return nil, err
	}

	digest := signature.HashRenew(signature.RenewAuthorization{
		Username: sub.Username,
		Address:  sub.Address.String(),
		Expiry:   sub.Expiry,
		ChainID:  sub.ChainID,
		Nonce:    nonce,
		Free:     sub.Free,
	})

	state, err := s.validateAuthorization(ctx, sub.Expiry, sub.Signature, digest)
	if err != nil {
		return nil, err
	}

	required := s.requiredRenewalFee(state, sub.Free, sub.Years)
	if sub.Payment.LessThan(required) {
		return nil, issuance.ErrInsufficientPayment
	}

	identity, err := s.registry.Renew(ctx, s.caller, registry.DeriveTokenID(sub.Username), sub.Years)
	if err != nil {
		return nil, err
	}

	s.credit(ctx, sub.Payment)
	return identity, nil
}

func (s *issuanceService) NextNonce(ctx context.Context, address registry.Address) (uint64, error) {
	return s.repo.PeekNonce(ctx, address)
}

// validateAuthorization runs steps 4 and 5 of the pipeline: the request's
// own deadline, then signer recovery against the configured key.
func (s *issuanceService) validateAuthorization(ctx context.Context, expiry int64, signatureHex string, digest []byte) (*issuance.ControllerState, error) {
	if s.now().Unix() > expiry {
		return nil, issuance.ErrAuthorizationExpired
	}

	state, err := s.repo.GetState(ctx)
	if err != nil {
		return nil, err
	}

	ok, err := signature.Verify(state.Signer, signatureHex, digest)
	if err != nil || !ok {
		return nil, issuance.ErrInvalidSignature
	}
	return state, nil
}

// requiredMintFee implements the fee table: free submissions cost nothing;
// otherwise the base mint fee, plus the per-year renewal fee for each year
// beyond the first while expiry enforcement is active.
func (s *issuanceService) requiredMintFee(ctx context.Context, state *issuance.ControllerState, free bool, years uint64) (decimal.Decimal, error) {
	if free {
		return decimal.Zero, nil
	}

	settings, err := s.registry.Settings(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	required := state.MintFee
	if settings.ExpiryEnforcement && years > 1 {
		extra := state.RenewalFeePerYear.Mul(decimal.NewFromInt(int64(years - 1)))
		required = required.Add(extra)
	}
	return required, nil
}

// requiredRenewalFee charges the per-year fee for the requested years, with
// a minimum of one year.
func (s *issuanceService) requiredRenewalFee(state *issuance.ControllerState, free bool, years uint64) decimal.Decimal {
	if free {
		return decimal.Zero
	}
	if years < 1 {
		years = 1
	}
	return state.RenewalFeePerYear.Mul(decimal.NewFromInt(int64(years)))
}

// credit retains an accepted payment, overpayment included. The registry
// mutation has already committed, so a credit failure is logged rather than
// unwinding the mint.
func (s *issuanceService) credit(ctx context.Context, payment decimal.Decimal) {
	if payment.IsZero() {
		return
	}
	if err := s.repo.Credit(ctx, payment); err != nil {
		logger.Error("failed to credit accepted payment", err)
	}
}

// ========================================
// ADMINISTRATIVE OPERATIONS
// ========================================

func (s *issuanceService) SetSigner(ctx context.Context, signerHex string) error {
	raw, err := hex.DecodeString(signerHex)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return issuance.ErrInvalidSigner
	}

	if err := s.updateState(ctx, func(state *issuance.ControllerState) {
		state.Signer = signerHex
	}); err != nil {
		return err
	}

	s.publish(ctx, shared.TypeControllerSignerSet, shared.SignerChangedPayload{
		EventID:   uuid.New().String(),
		NewSigner: signerHex,
		ChangedAt: s.now(),
	})
	return nil
}

func (s *issuanceService) SetMintFee(ctx context.Context, fee decimal.Decimal) error {
	if fee.IsNegative() {
		return issuance.ErrNegativeFee
	}

	if err := s.updateState(ctx, func(state *issuance.ControllerState) {
		state.MintFee = fee
	}); err != nil {
		return err
	}

	s.publish(ctx, shared.TypeControllerFeeSet, shared.FeeChangedPayload{
		EventID:   uuid.New().String(),
		Kind:      "mint",
		NewFee:    fee.String(),
		ChangedAt: s.now(),
	})
	return nil
}

func (s *issuanceService) SetRenewalFee(ctx context.Context, fee decimal.Decimal) error {
	if fee.IsNegative() {
		return issuance.ErrNegativeFee
	}

	if err := s.updateState(ctx, func(state *issuance.ControllerState) {
		state.RenewalFeePerYear = fee
	}); err != nil {
		return err
	}

	s.publish(ctx, shared.TypeControllerFeeSet, shared.FeeChangedPayload{
		EventID:   uuid.New().String(),
		Kind:      "renewal",
		NewFee:    fee.String(),
		ChangedAt: s.now(),
	})
	return nil
}

func (s *issuanceService) Withdraw(ctx context.Context) (decimal.Decimal, error) {
	return s.repo.Withdraw(ctx)
}

func (s *issuanceService) State(ctx context.Context) (*issuance.ControllerState, error) {
	return s.repo.GetState(ctx)
}

func (s *issuanceService) updateState(ctx context.Context, mutate func(*issuance.ControllerState)) error {
	state, err := s.repo.GetState(ctx)
	if err != nil {
		return err
	}
	mutate(state)
	state.UpdatedAt = s.now()
	return s.repo.SaveState(ctx, state)
}

func (s *issuanceService) publish(ctx context.Context, taskType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, taskType, payload); err != nil {
		logger.Error("failed to publish "+taskType+" event", err)
	}
}
