package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-registry/internal/domains/issuance"
	issuanceRepo "identity-registry/internal/domains/issuance/repository"
	"identity-registry/internal/domains/registry"
	registryRepo "identity-registry/internal/domains/registry/repository"
	registryService "identity-registry/internal/domains/registry/service"
	"identity-registry/pkg/signature"
)

const (
	testCaller  = registry.Caller("issuance-controller")
	testChainID = uint64(7)
	addrCarol   = registry.Address("0x00000000000000000000000000000000000000c3")
	addrDave    = registry.Address("0x00000000000000000000000000000000000000d4")
)

var (
	testNow    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	testExpiry = testNow.Add(time.Hour).Unix()

	mintFee    = decimal.NewFromInt(10)
	renewalFee = decimal.NewFromInt(4)
)

type fixture struct {
	svc      issuance.Service
	repo     issuance.Repository
	registry registry.Service
	signer   string // private key hex
	now      time.Time
	expiry   int64
}

func newFixture(t *testing.T, enforcement bool) *fixture {
	t.Helper()
	ctx := context.Background()

	pub, priv, err := signature.GenerateKeyPair()
	require.NoError(t, err)

	// Both services share the fixture clock so tests can advance time.
	f := &fixture{signer: priv, now: testNow, expiry: testExpiry}
	clock := func() time.Time { return f.now }

	regRepo := registryRepo.NewMemoryRepository()
	require.NoError(t, regRepo.EnsureSettings(ctx, registry.Settings{
		Controller:           string(testCaller),
		RegistrationDuration: 365 * 24 * time.Hour,
		ExpiryEnforcement:    enforcement,
		MetadataBase:         "https://meta.example.com/identity/",
		UpdatedAt:            testNow,
	}))
	f.registry = registryService.NewRegistryServiceWithClock(regRepo, nil, clock)

	f.repo = issuanceRepo.NewMemoryRepository()
	require.NoError(t, f.repo.EnsureState(ctx, issuance.ControllerState{
		Signer:            pub,
		MintFee:           mintFee,
		RenewalFeePerYear: renewalFee,
		UpdatedAt:         testNow,
	}))

	f.svc = NewIssuanceServiceWithClock(f.repo, f.registry, nil, testCaller, testChainID, clock)

	return f
}

// advance moves the shared clock and keeps authorization expiries ahead of
// it, so freshly signed submissions stay valid at the new time.
func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
	f.expiry = f.now.Add(time.Hour).Unix()
}

func (f *fixture) signedMint(t *testing.T, address registry.Address, username string, nonce uint64, free bool, years uint64, payment decimal.Decimal) issuance.MintSubmission {
	t.Helper()

	digest := signature.HashMint(signature.MintAuthorization{
		Username: username,
		Address:  address.String(),
		Expiry:   f.expiry,
		ChainID:  testChainID,
		Nonce:    nonce,
		Free:     free,
		Years:    years,
	})
	sig, err := signature.Sign(f.signer, digest)
	require.NoError(t, err)

	return issuance.MintSubmission{
		Username:  username,
		Address:   address,
		Expiry:    f.expiry,
		ChainID:   testChainID,
		Free:      free,
		Years:     years,
		Signature: sig,
		Payment:   payment,
	}
}

func (f *fixture) signedRenew(t *testing.T, address registry.Address, username string, nonce uint64, free bool, years uint64, payment decimal.Decimal) issuance.RenewSubmission {
	t.Helper()

	digest := signature.HashRenew(signature.RenewAuthorization{
		Username: username,
		Address:  address.String(),
		Expiry:   f.expiry,
		ChainID:  testChainID,
		Nonce:    nonce,
		Free:     free,
	})
	sig, err := signature.Sign(f.signer, digest)
	require.NoError(t, err)

	return issuance.RenewSubmission{
		Username:  username,
		Address:   address,
		Expiry:    f.expiry,
		ChainID:   testChainID,
		Free:      free,
		Years:     years,
		Signature: sig,
		Payment:   payment,
	}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	state, err := f.repo.GetState(context.Background())
	require.NoError(t, err)
	return state.Balance
}

func TestMintWithAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts a valid submission and retains the payment", func(t *testing.T) {
		f := newFixture(t, false)

		sub := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
		identity, err := f.svc.MintWithAuthorization(ctx, sub)
		require.NoError(t, err)
		assert.Equal(t, "carol", identity.Username)
		assert.Equal(t, addrCarol, identity.Owner)

		assert.True(t, f.balance(t).Equal(mintFee))

		nonce, err := f.svc.NextNonce(ctx, addrCarol)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), nonce)
	})

	t.Run("chain mismatch costs nothing", func(t *testing.T) {
		f := newFixture(t, false)

		sub := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
		sub.ChainID = testChainID + 1
		_, err := f.svc.MintWithAuthorization(ctx, sub)
		assert.ErrorIs(t, err, issuance.ErrChainMismatch)

		// The nonce was never touched; the same signed payload still works.
		nonce, err := f.svc.NextNonce(ctx, addrCarol)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), nonce)

		sub.ChainID = testChainID
		_, err = f.svc.MintWithAuthorization(ctx, sub)
		require.NoError(t, err)
	})

	t.Run("a failed submission still burns its nonce", func(t *testing.T) {
		f := newFixture(t, false)

		good := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)

		bad := good
		bad.Signature = good.Signature[2:] + "00"
		_, err := f.svc.MintWithAuthorization(ctx, bad)
		assert.ErrorIs(t, err, issuance.ErrInvalidSignature)

		nonce, err := f.svc.NextNonce(ctx, addrCarol)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), nonce)

		// The payload signed over nonce 0 can no longer be replayed.
		_, err = f.svc.MintWithAuthorization(ctx, good)
		assert.ErrorIs(t, err, issuance.ErrInvalidSignature)

		// A fresh payload over the advanced nonce succeeds.
		retry := f.signedMint(t, addrCarol, "carol", 1, false, 1, mintFee)
		_, err = f.svc.MintWithAuthorization(ctx, retry)
		require.NoError(t, err)
	})

	t.Run("rejects an expired authorization", func(t *testing.T) {
		f := newFixture(t, false)

		sub := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
		sub.Expiry = testNow.Add(-time.Minute).Unix()
		_, err := f.svc.MintWithAuthorization(ctx, sub)
		assert.ErrorIs(t, err, issuance.ErrAuthorizationExpired)
	})

	t.Run("rejects a forged field", func(t *testing.T) {
		f := newFixture(t, false)

		// Signed for carol, submitted for a different username.
		sub := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
		sub.Username = "mallory"
		_, err := f.svc.MintWithAuthorization(ctx, sub)
		assert.ErrorIs(t, err, issuance.ErrInvalidSignature)
	})

	t.Run("rejects insufficient payment", func(t *testing.T) {
		f := newFixture(t, false)

		sub := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee.Sub(decimal.NewFromInt(1)))
		_, err := f.svc.MintWithAuthorization(ctx, sub)
		assert.ErrorIs(t, err, issuance.ErrInsufficientPayment)
		assert.True(t, f.balance(t).IsZero())
	})

	t.Run("overpayment is retained in full", func(t *testing.T) {
		f := newFixture(t, false)

		paid := mintFee.Add(decimal.NewFromInt(5))
		sub := f.signedMint(t, addrCarol, "carol", 0, false, 1, paid)
		_, err := f.svc.MintWithAuthorization(ctx, sub)
		require.NoError(t, err)
		assert.True(t, f.balance(t).Equal(paid))
	})

	t.Run("free submissions cost nothing", func(t *testing.T) {
		f := newFixture(t, true)

		sub := f.signedMint(t, addrCarol, "carol", 0, true, 3, decimal.Zero)
		_, err := f.svc.MintWithAuthorization(ctx, sub)
		require.NoError(t, err)
		assert.True(t, f.balance(t).IsZero())
	})

	t.Run("registry rejection surfaces after the nonce is spent", func(t *testing.T) {
		f := newFixture(t, false)

		first := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
		_, err := f.svc.MintWithAuthorization(ctx, first)
		require.NoError(t, err)

		// Same owner re-minting the same username is a registry conflict.
		again := f.signedMint(t, addrCarol, "carol", 1, false, 1, mintFee)
		_, err = f.svc.MintWithAuthorization(ctx, again)
		assert.ErrorIs(t, err, registry.ErrAlreadyOwned)

		nonce, err := f.svc.NextNonce(ctx, addrCarol)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), nonce)

		// No payment is retained for the rejected attempt.
		assert.True(t, f.balance(t).Equal(mintFee))
	})
}

func TestMintFeeSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("multi-year mint charges per extra year while enforcement is on", func(t *testing.T) {
		f := newFixture(t, true)

		// 3 years: base + 2x per-year fee.
		required := mintFee.Add(renewalFee.Mul(decimal.NewFromInt(2)))

		short := f.signedMint(t, addrCarol, "carol", 0, false, 3, required.Sub(decimal.NewFromInt(1)))
		_, err := f.svc.MintWithAuthorization(ctx, short)
		assert.ErrorIs(t, err, issuance.ErrInsufficientPayment)

		exact := f.signedMint(t, addrCarol, "carol", 1, false, 3, required)
		_, err = f.svc.MintWithAuthorization(ctx, exact)
		require.NoError(t, err)
		assert.True(t, f.balance(t).Equal(required))
	})

	t.Run("extra years are not billed while enforcement is off", func(t *testing.T) {
		f := newFixture(t, false)

		sub := f.signedMint(t, addrCarol, "carol", 0, false, 3, mintFee)
		_, err := f.svc.MintWithAuthorization(ctx, sub)
		require.NoError(t, err)
		assert.True(t, f.balance(t).Equal(mintFee))
	})
}

func TestRenewWithAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("renews through the registry and charges per year", func(t *testing.T) {
		f := newFixture(t, true)

		mint := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
		minted, err := f.svc.MintWithAuthorization(ctx, mint)
		require.NoError(t, err)
		originalExpiry := *minted.ExpiresAt

		required := renewalFee.Mul(decimal.NewFromInt(2))
		renew := f.signedRenew(t, addrCarol, "carol", 1, false, 2, required)
		renewed, err := f.svc.RenewWithAuthorization(ctx, renew)
		require.NoError(t, err)
		assert.Equal(t, originalExpiry.Add(2*365*24*time.Hour), *renewed.ExpiresAt)

		assert.True(t, f.balance(t).Equal(mintFee.Add(required)))
	})

	t.Run("fails while expiry enforcement is off", func(t *testing.T) {
		f := newFixture(t, false)

		mint := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
		_, err := f.svc.MintWithAuthorization(ctx, mint)
		require.NoError(t, err)

		renew := f.signedRenew(t, addrCarol, "carol", 1, false, 1, renewalFee)
		_, err = f.svc.RenewWithAuthorization(ctx, renew)
		assert.ErrorIs(t, err, registry.ErrExpiryEnforcementDisabled)
	})

	t.Run("renewing an unknown username fails after nonce burn", func(t *testing.T) {
		f := newFixture(t, true)

		renew := f.signedRenew(t, addrDave, "nosuchname", 0, false, 1, renewalFee)
		_, err := f.svc.RenewWithAuthorization(ctx, renew)
		assert.ErrorIs(t, err, registry.ErrNotRegistered)

		nonce, err := f.svc.NextNonce(ctx, addrDave)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), nonce)
	})
}

func TestRegistrationLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	// Mint a one-year registration.
	mint := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
	minted, err := f.svc.MintWithAuthorization(ctx, mint)
	require.NoError(t, err)
	mintedExpiry := *minted.ExpiresAt

	// Still resolvable just before the term ends.
	f.advance(365*24*time.Hour - time.Minute)
	identity, err := f.registry.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, addrCarol, identity.Owner)

	// Past expiry the lookup fails.
	f.advance(2 * time.Minute)
	_, err = f.registry.GetByUsername(ctx, "carol")
	assert.ErrorIs(t, err, registry.ErrRegistrationExpired)

	// A signed renewal restarts the term from now, not from the lapsed
	// expiry.
	renew := f.signedRenew(t, addrCarol, "carol", 1, false, 1, renewalFee)
	renewed, err := f.svc.RenewWithAuthorization(ctx, renew)
	require.NoError(t, err)
	assert.True(t, renewed.ExpiresAt.After(mintedExpiry))
	assert.Equal(t, f.now.Add(365*24*time.Hour), *renewed.ExpiresAt)

	// The binding resolves again and both payments were retained.
	identity, err = f.registry.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", identity.Username)
	assert.True(t, f.balance(t).Equal(mintFee.Add(renewalFee)))
}

func TestAdministrativeOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("withdraw drains the balance", func(t *testing.T) {
		f := newFixture(t, false)

		sub := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
		_, err := f.svc.MintWithAuthorization(ctx, sub)
		require.NoError(t, err)

		drained, err := f.svc.Withdraw(ctx)
		require.NoError(t, err)
		assert.True(t, drained.Equal(mintFee))
		assert.True(t, f.balance(t).IsZero())

		// A second withdraw finds nothing.
		drained, err = f.svc.Withdraw(ctx)
		require.NoError(t, err)
		assert.True(t, drained.IsZero())
	})

	t.Run("signer rotation invalidates old signatures", func(t *testing.T) {
		f := newFixture(t, false)

		stale := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)

		newPub, _, err := signature.GenerateKeyPair()
		require.NoError(t, err)
		require.NoError(t, f.svc.SetSigner(ctx, newPub))

		_, err = f.svc.MintWithAuthorization(ctx, stale)
		assert.ErrorIs(t, err, issuance.ErrInvalidSignature)
	})

	t.Run("rejects malformed signer keys and negative fees", func(t *testing.T) {
		f := newFixture(t, false)

		assert.ErrorIs(t, f.svc.SetSigner(ctx, "not-hex"), issuance.ErrInvalidSigner)
		assert.ErrorIs(t, f.svc.SetSigner(ctx, "abcd"), issuance.ErrInvalidSigner)

		neg := decimal.NewFromInt(-1)
		assert.ErrorIs(t, f.svc.SetMintFee(ctx, neg), issuance.ErrNegativeFee)
		assert.ErrorIs(t, f.svc.SetRenewalFee(ctx, neg), issuance.ErrNegativeFee)
	})

	t.Run("fee updates apply to subsequent submissions", func(t *testing.T) {
		f := newFixture(t, false)

		newFee := decimal.NewFromInt(25)
		require.NoError(t, f.svc.SetMintFee(ctx, newFee))

		underpaid := f.signedMint(t, addrCarol, "carol", 0, false, 1, mintFee)
		_, err := f.svc.MintWithAuthorization(ctx, underpaid)
		assert.ErrorIs(t, err, issuance.ErrInsufficientPayment)

		paid := f.signedMint(t, addrCarol, "carol", 1, false, 1, newFee)
		_, err = f.svc.MintWithAuthorization(ctx, paid)
		require.NoError(t, err)
	})
}
