package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-registry/internal/domains/registry"
	"identity-registry/internal/domains/registry/repository"
	"identity-registry/internal/shared"
)

const (
	testController = "issuance-controller"
	addrAlice      = registry.Address("0x00000000000000000000000000000000000000a1")
	addrBob        = registry.Address("0x00000000000000000000000000000000000000b2")
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, taskType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, taskType)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// contendedRepository rejects the next reassignments, standing in for a
// concurrent writer winning the unique-constraint race at commit time.
type contendedRepository struct {
	registry.Repository
	conflicts int
}

func (r *contendedRepository) Reassign(ctx context.Context, burns []registry.Identity, identity *registry.Identity) error {
	if r.conflicts > 0 {
		r.conflicts--
		return registry.ErrAlreadyOwned
	}
	return r.Repository.Reassign(ctx, burns, identity)
}

func newTestService(t *testing.T, enforcement bool) (registry.Service, registry.Repository, *recordingPublisher) {
	t.Helper()

	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.EnsureSettings(context.Background(), registry.Settings{
		Controller:           testController,
		RegistrationDuration: 365 * 24 * time.Hour,
		ExpiryEnforcement:    enforcement,
		MetadataBase:         "https://meta.example.com/identity/",
		UpdatedAt:            testNow,
	}))

	publisher := &recordingPublisher{}
	svc := NewRegistryServiceWithClock(repo, publisher, func() time.Time { return testNow })
	return svc, repo, publisher
}

func TestMint(t *testing.T) {
	ctx := context.Background()

	t.Run("creates binding with derived token id and expiry", func(t *testing.T) {
		svc, _, publisher := newTestService(t, false)

		identity, err := svc.Mint(ctx, testController, addrAlice, "alice", 2)
		require.NoError(t, err)

		assert.Equal(t, registry.DeriveTokenID("alice"), identity.TokenID)
		assert.Equal(t, addrAlice, identity.Owner)
		assert.Equal(t, "alice", identity.Username)
		require.NotNil(t, identity.ExpiresAt)
		assert.Equal(t, testNow.Add(2*365*24*time.Hour), *identity.ExpiresAt)
		assert.Equal(t, []string{shared.TypeIdentityMinted}, publisher.types())
	})

	t.Run("rejects unauthorized caller", func(t *testing.T) {
		svc, _, _ := newTestService(t, false)

		_, err := svc.Mint(ctx, "somebody-else", addrAlice, "alice", 1)
		assert.ErrorIs(t, err, registry.ErrNotController)

		_, err = svc.Mint(ctx, "", addrAlice, "alice", 1)
		assert.ErrorIs(t, err, registry.ErrNotController)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		svc, _, _ := newTestService(t, false)

		_, err := svc.Mint(ctx, testController, registry.ZeroAddress, "alice", 1)
		assert.ErrorIs(t, err, registry.ErrInvalidAddress)

		_, err = svc.Mint(ctx, testController, addrAlice, "Not Valid!", 1)
		assert.ErrorIs(t, err, registry.ErrInvalidUsername)

		_, err = svc.Mint(ctx, testController, addrAlice, "alice", 0)
		assert.ErrorIs(t, err, registry.ErrZeroYears)
	})

	t.Run("rejects re-mint by the current owner", func(t *testing.T) {
		svc, _, _ := newTestService(t, false)

		_, err := svc.Mint(ctx, testController, addrAlice, "alice", 1)
		require.NoError(t, err)

		_, err = svc.Mint(ctx, testController, addrAlice, "alice", 1)
		assert.ErrorIs(t, err, registry.ErrAlreadyOwned)
	})

	t.Run("reassigns a username held by somebody else", func(t *testing.T) {
		svc, _, publisher := newTestService(t, false)

		_, err := svc.Mint(ctx, testController, addrAlice, "alice", 1)
		require.NoError(t, err)

		identity, err := svc.Mint(ctx, testController, addrBob, "alice", 1)
		require.NoError(t, err)
		assert.Equal(t, addrBob, identity.Owner)

		// Previous holder lost the binding entirely.
		_, err = svc.GetByAddress(ctx, addrAlice)
		assert.ErrorIs(t, err, registry.ErrNotRegistered)

		assert.Equal(t, []string{
			shared.TypeIdentityMinted,
			shared.TypeIdentityBurned,
			shared.TypeIdentityMinted,
		}, publisher.types())
	})

	t.Run("a conflicting reassignment leaves prior bindings intact", func(t *testing.T) {
		repo := &contendedRepository{Repository: repository.NewMemoryRepository(), conflicts: 1}
		require.NoError(t, repo.EnsureSettings(ctx, registry.Settings{
			Controller:           testController,
			RegistrationDuration: 365 * 24 * time.Hour,
			UpdatedAt:            testNow,
		}))
		publisher := &recordingPublisher{}
		svc := NewRegistryServiceWithClock(repo, publisher, func() time.Time { return testNow })

		_, err := svc.Mint(ctx, testController, addrBob, "oldname", 1)
		require.NoError(t, err)

		// The reassignment loses the race and is rejected wholesale.
		_, err = svc.Mint(ctx, testController, addrBob, "newname", 1)
		assert.ErrorIs(t, err, registry.ErrAlreadyOwned)

		// Bob's original binding survived the failed mint.
		identity, err := svc.GetByAddress(ctx, addrBob)
		require.NoError(t, err)
		assert.Equal(t, "oldname", identity.Username)

		// No burn event was emitted for a binding that was never destroyed.
		assert.Equal(t, []string{shared.TypeIdentityMinted}, publisher.types())

		// Once the contention clears the same mint goes through.
		_, err = svc.Mint(ctx, testController, addrBob, "newname", 1)
		require.NoError(t, err)
	})

	t.Run("burns the recipient's prior username", func(t *testing.T) {
		svc, _, _ := newTestService(t, false)

		_, err := svc.Mint(ctx, testController, addrAlice, "oldname", 1)
		require.NoError(t, err)

		_, err = svc.Mint(ctx, testController, addrAlice, "newname", 1)
		require.NoError(t, err)

		_, err = svc.GetByUsername(ctx, "oldname")
		assert.ErrorIs(t, err, registry.ErrNotRegistered)

		identity, err := svc.GetByAddress(ctx, addrAlice)
		require.NoError(t, err)
		assert.Equal(t, "newname", identity.Username)
	})
}

func TestRenew(t *testing.T) {
	ctx := context.Background()

	t.Run("fails while expiry enforcement is off", func(t *testing.T) {
		svc, _, _ := newTestService(t, false)

		identity, err := svc.Mint(ctx, testController, addrAlice, "alice", 1)
		require.NoError(t, err)

		_, err = svc.Renew(ctx, testController, identity.TokenID, 1)
		assert.ErrorIs(t, err, registry.ErrExpiryEnforcementDisabled)
	})

	t.Run("extends a live binding from its current expiry", func(t *testing.T) {
		svc, _, publisher := newTestService(t, true)

		identity, err := svc.Mint(ctx, testController, addrAlice, "alice", 1)
		require.NoError(t, err)
		originalExpiry := *identity.ExpiresAt

		renewed, err := svc.Renew(ctx, testController, identity.TokenID, 2)
		require.NoError(t, err)
		assert.Equal(t, originalExpiry.Add(2*365*24*time.Hour), *renewed.ExpiresAt)
		assert.Contains(t, publisher.types(), shared.TypeIdentityRenewed)
	})

	t.Run("restarts the clock for an expired binding", func(t *testing.T) {
		svc, repo, _ := newTestService(t, true)

		identity, err := svc.Mint(ctx, testController, addrAlice, "alice", 1)
		require.NoError(t, err)

		// Push the binding into the past.
		expired := testNow.Add(-24 * time.Hour)
		require.NoError(t, repo.UpdateExpiry(ctx, identity.TokenID, expired))

		renewed, err := svc.Renew(ctx, testController, identity.TokenID, 1)
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(365*24*time.Hour), *renewed.ExpiresAt)
	})

	t.Run("rejects zero years and unknown tokens", func(t *testing.T) {
		svc, _, _ := newTestService(t, true)

		_, err := svc.Renew(ctx, testController, registry.DeriveTokenID("alice"), 0)
		assert.ErrorIs(t, err, registry.ErrZeroYears)

		_, err = svc.Renew(ctx, testController, registry.DeriveTokenID("missing"), 1)
		assert.ErrorIs(t, err, registry.ErrNotRegistered)
	})
}

func TestBurn(t *testing.T) {
	ctx := context.Background()

	svc, _, publisher := newTestService(t, false)

	_, err := svc.Mint(ctx, testController, addrAlice, "alice", 1)
	require.NoError(t, err)

	require.NoError(t, svc.Burn(ctx, testController, addrAlice))

	_, err = svc.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
	_, err = svc.GetByAddress(ctx, addrAlice)
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
	assert.Contains(t, publisher.types(), shared.TypeIdentityBurned)

	// Burning an address with no binding fails cleanly.
	err = svc.Burn(ctx, testController, addrBob)
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestTransferIsSoulbound(t *testing.T) {
	ctx := context.Background()

	svc, _, _ := newTestService(t, false)

	identity, err := svc.Mint(ctx, testController, addrAlice, "alice", 1)
	require.NoError(t, err)

	// Any move between two live addresses is rejected.
	err = svc.Transfer(ctx, addrAlice, addrBob, identity.TokenID)
	assert.ErrorIs(t, err, registry.ErrSoulbound)

	// From must match the actual owner.
	err = svc.Transfer(ctx, addrBob, addrAlice, identity.TokenID)
	assert.ErrorIs(t, err, registry.ErrNotOwner)

	err = svc.Transfer(ctx, addrAlice, addrBob, registry.DeriveTokenID("missing"))
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestLookupsHonorExpiryEnforcement(t *testing.T) {
	ctx := context.Background()

	expireBinding := func(t *testing.T, svc registry.Service, repo registry.Repository) registry.TokenID {
		t.Helper()
		identity, err := svc.Mint(ctx, testController, addrAlice, "alice", 1)
		require.NoError(t, err)
		require.NoError(t, repo.UpdateExpiry(ctx, identity.TokenID, testNow.Add(-time.Hour)))
		return identity.TokenID
	}

	t.Run("enforcement on surfaces expired bindings as gone", func(t *testing.T) {
		svc, repo, _ := newTestService(t, true)
		tokenID := expireBinding(t, svc, repo)

		_, err := svc.GetByTokenID(ctx, tokenID)
		assert.ErrorIs(t, err, registry.ErrRegistrationExpired)
		_, err = svc.GetByUsername(ctx, "alice")
		assert.ErrorIs(t, err, registry.ErrRegistrationExpired)
		_, err = svc.GetByAddress(ctx, addrAlice)
		assert.ErrorIs(t, err, registry.ErrRegistrationExpired)

		valid, err := svc.IsValid(ctx, tokenID)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("enforcement off keeps expired bindings visible", func(t *testing.T) {
		svc, repo, _ := newTestService(t, false)
		tokenID := expireBinding(t, svc, repo)

		identity, err := svc.GetByTokenID(ctx, tokenID)
		require.NoError(t, err)
		assert.Equal(t, "alice", identity.Username)

		valid, err := svc.IsValid(ctx, tokenID)
		require.NoError(t, err)
		assert.True(t, valid)
	})
}

func TestTokenURI(t *testing.T) {
	ctx := context.Background()

	svc, _, _ := newTestService(t, false)

	identity, err := svc.Mint(ctx, testController, addrAlice, "alice", 1)
	require.NoError(t, err)

	uri, err := svc.TokenURI(ctx, identity.TokenID)
	require.NoError(t, err)
	assert.Equal(t, "https://meta.example.com/identity/alice", uri)

	_, err = svc.TokenURI(ctx, registry.DeriveTokenID("missing"))
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestAdministrativeSetters(t *testing.T) {
	ctx := context.Background()

	svc, _, _ := newTestService(t, false)

	require.NoError(t, svc.SetController(ctx, "new-controller"))
	require.NoError(t, svc.SetRegistrationDuration(ctx, 30*24*time.Hour))
	require.NoError(t, svc.SetExpiryEnforcement(ctx, true))
	require.NoError(t, svc.SetMetadataBase(ctx, "https://other.example.com/"))

	settings, err := svc.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new-controller", settings.Controller)
	assert.Equal(t, 30*24*time.Hour, settings.RegistrationDuration)
	assert.True(t, settings.ExpiryEnforcement)
	assert.Equal(t, "https://other.example.com/", settings.MetadataBase)

	// The old capability no longer authorizes mutations.
	_, err = svc.Mint(ctx, testController, addrAlice, "alice", 1)
	assert.ErrorIs(t, err, registry.ErrNotController)
	_, err = svc.Mint(ctx, "new-controller", addrAlice, "alice", 1)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetRegistrationDuration(ctx, 0), registry.ErrInvalidDuration)
	assert.ErrorIs(t, svc.SetController(ctx, ""), registry.ErrNotController)
}
