package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"identity-registry/internal/domains/registry"
	"identity-registry/internal/shared"
	"identity-registry/pkg/logger"
)

// registryService implements registry.Service
type registryService struct {
	repo   registry.Repository
	events registry.EventPublisher
	now    func() time.Time
}

// NewRegistryService creates the registry service.
// Service depends on abstractions (Repository, EventPublisher) so tests can
// inject in-memory fakes.
func NewRegistryService(repo registry.Repository, events registry.EventPublisher) registry.Service {
	return NewRegistryServiceWithClock(repo, events, time.Now)
}

// NewRegistryServiceWithClock injects the clock; tests use a fixed one.
func NewRegistryServiceWithClock(repo registry.Repository, events registry.EventPublisher, now func() time.Time) registry.Service {
	return &registryService{
		repo:   repo,
		events: events,
		now:    now,
	}
}

// ========================================
// MUTATIONS (controller-gated)
// ========================================

func (s *registryService) Mint(ctx context.Context, caller registry.Caller, user registry.Address, username string, years uint64) (*registry.Identity, error) {
	settings, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}

	if user.IsZero() {
		return nil, registry.ErrInvalidAddress
	}
	if !registry.UsernamePattern.MatchString(username) {
		return nil, registry.ErrInvalidUsername
	}
	if years == 0 {
		return nil, registry.ErrZeroYears
	}

	tokenID := registry.DeriveTokenID(username)
	now := s.now()

	// Reassignment semantics: a username bound to somebody else is burned
	// first so identities can be reclaimed without a revocation flow.
	// Minting a username to its current owner is rejected, not absorbed.
	var burns []registry.Identity
	existing, err := s.repo.FindByTokenID(ctx, tokenID)
	switch {
	case err == nil:
		if existing.Owner == user {
			return nil, registry.ErrAlreadyOwned
		}
		if err := s.transfer(existing.Owner, registry.ZeroAddress); err != nil {
			return nil, err
		}
		burns = append(burns, *existing)
	case !errors.Is(err, registry.ErrNotRegistered):
		return nil, err
	}

	// One live identity per address: the destination's prior username, if
	// any, is burned in the same operation as the new binding.
	prior, err := s.repo.FindByAddress(ctx, user)
	switch {
	case err == nil:
		if err := s.transfer(prior.Owner, registry.ZeroAddress); err != nil {
			return nil, err
		}
		burns = append(burns, *prior)
	case !errors.Is(err, registry.ErrNotRegistered):
		return nil, err
	}

	// Route the ownership change through the transfer primitive so the
	// soulbound rule is enforced below every caller, mint included.
	if err := s.transfer(registry.ZeroAddress, user); err != nil {
		return nil, err
	}

	expiresAt := now.Add(time.Duration(years) * settings.RegistrationDuration)
	identity := &registry.Identity{
		TokenID:   tokenID,
		Owner:     user,
		Username:  username,
		ExpiresAt: &expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Burns and the insert commit atomically; a conflict with a concurrent
	// writer leaves every prior binding intact, and nothing is published for
	// a burn that never happened.
	if len(burns) == 0 {
		err = s.repo.Insert(ctx, identity)
	} else {
		err = s.repo.Reassign(ctx, burns, identity)
	}
	if err != nil {
		return nil, err
	}

	for i := range burns {
		s.publish(ctx, shared.TypeIdentityBurned, shared.IdentityBurnedPayload{
			EventID:  uuid.New().String(),
			TokenID:  string(burns[i].TokenID),
			Owner:    string(burns[i].Owner),
			Username: burns[i].Username,
			BurnedAt: now,
		})
	}

	s.publish(ctx, shared.TypeIdentityMinted, shared.IdentityMintedPayload{
		EventID:   uuid.New().String(),
		TokenID:   string(identity.TokenID),
		Owner:     string(identity.Owner),
		Username:  identity.Username,
		ExpiresAt: identity.ExpiresAt,
		MintedAt:  now,
	})

	return identity, nil
}

func (s *registryService) Renew(ctx context.Context, caller registry.Caller, tokenID registry.TokenID, years uint64) (*registry.Identity, error) {
	settings, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}

	if years == 0 {
		return nil, registry.ErrZeroYears
	}
	// Renewal is meaningless while bindings never expire.
	if !settings.ExpiryEnforcement {
		return nil, registry.ErrExpiryEnforcementDisabled
	}

	identity, err := s.repo.FindByTokenID(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	// Expired registrations restart the clock from now; live ones extend
	// contiguously from their current expiration.
	now := s.now()
	base := now
	if identity.ExpiresAt != nil && identity.ExpiresAt.After(now) {
		base = *identity.ExpiresAt
	}
	expiresAt := base.Add(time.Duration(years) * settings.RegistrationDuration)

	if err := s.repo.UpdateExpiry(ctx, tokenID, expiresAt); err != nil {
		return nil, err
	}
	identity.ExpiresAt = &expiresAt
	identity.UpdatedAt = now

	s.publish(ctx, shared.TypeIdentityRenewed, shared.IdentityRenewedPayload{
		EventID:   uuid.New().String(),
		TokenID:   string(identity.TokenID),
		Owner:     string(identity.Owner),
		Username:  identity.Username,
		ExpiresAt: expiresAt,
		RenewedAt: now,
	})

	return identity, nil
}

func (s *registryService) Burn(ctx context.Context, caller registry.Caller, user registry.Address) error {
	if _, err := s.authorize(ctx, caller); err != nil {
		return err
	}

	identity, err := s.repo.FindByAddress(ctx, user)
	if err != nil {
		return err
	}

	return s.burnIdentity(ctx, identity, s.now())
}

// Transfer is the public soulbound interception point. Any bound token is
// pinned to its owner: the only legal moves are mint (from the zero address)
// and burn (to the zero address), and those have their own entry points.
func (s *registryService) Transfer(ctx context.Context, from, to registry.Address, tokenID registry.TokenID) error {
	identity, err := s.repo.FindByTokenID(ctx, tokenID)
	if err != nil {
		return err
	}
	if identity.Owner != from {
		return registry.ErrNotOwner
	}
	return s.transfer(from, to)
}

// transfer enforces the soulbound rule at the lowest level. Every ownership
// change - mint, burn, or an attempted move - passes through here.
func (s *registryService) transfer(from, to registry.Address) error {
	if !from.IsZero() && !to.IsZero() {
		return registry.ErrSoulbound
	}
	return nil
}

// burnIdentity deletes both the forward and reverse records and emits the
// burn event. Mint's reassignment burns do not come through here; those
// commit together with the insert via Reassign.
func (s *registryService) burnIdentity(ctx context.Context, identity *registry.Identity, now time.Time) error {
	if err := s.transfer(identity.Owner, registry.ZeroAddress); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, identity.TokenID); err != nil {
		return err
	}

	s.publish(ctx, shared.TypeIdentityBurned, shared.IdentityBurnedPayload{
		EventID:  uuid.New().String(),
		TokenID:  string(identity.TokenID),
		Owner:    string(identity.Owner),
		Username: identity.Username,
		BurnedAt: now,
	})

	return nil
}

// ========================================
// LOOKUPS (pure/view)
// ========================================

func (s *registryService) GetByUsername(ctx context.Context, username string) (*registry.Identity, error) {
	if !registry.UsernamePattern.MatchString(username) {
		return nil, registry.ErrInvalidUsername
	}
	return s.GetByTokenID(ctx, registry.DeriveTokenID(username))
}

func (s *registryService) GetByTokenID(ctx context.Context, tokenID registry.TokenID) (*registry.Identity, error) {
	identity, err := s.repo.FindByTokenID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return s.checkValidity(ctx, identity)
}

func (s *registryService) GetByAddress(ctx context.Context, owner registry.Address) (*registry.Identity, error) {
	identity, err := s.repo.FindByAddress(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.checkValidity(ctx, identity)
}

func (s *registryService) IsValid(ctx context.Context, tokenID registry.TokenID) (bool, error) {
	identity, err := s.repo.FindByTokenID(ctx, tokenID)
	if err != nil {
		return false, err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return false, err
	}
	if !settings.ExpiryEnforcement {
		// Explicit escape hatch: with enforcement off every binding is
		// perpetually valid.
		return true, nil
	}
	return !identity.ExpiredAt(s.now()), nil
}

func (s *registryService) TokenURI(ctx context.Context, tokenID registry.TokenID) (string, error) {
	identity, err := s.GetByTokenID(ctx, tokenID)
	if err != nil {
		return "", err
	}

	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.MetadataBase + identity.Username, nil
}

// checkValidity applies the expired fail path to a found binding when
// enforcement is on; with enforcement off there is no expiry fail path.
func (s *registryService) checkValidity(ctx context.Context, identity *registry.Identity) (*registry.Identity, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.ExpiryEnforcement && identity.ExpiredAt(s.now()) {
		return nil, registry.ErrRegistrationExpired
	}
	return identity, nil
}

// ========================================
// ADMINISTRATIVE OPERATIONS
// ========================================

func (s *registryService) SetController(ctx context.Context, controller registry.Caller) error {
	if controller == "" {
		return registry.ErrNotController
	}
	return s.updateSettings(ctx, func(settings *registry.Settings) {
		settings.Controller = string(controller)
	})
}

func (s *registryService) SetRegistrationDuration(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return registry.ErrInvalidDuration
	}
	return s.updateSettings(ctx, func(settings *registry.Settings) {
		settings.RegistrationDuration = duration
	})
}

func (s *registryService) SetExpiryEnforcement(ctx context.Context, enabled bool) error {
	return s.updateSettings(ctx, func(settings *registry.Settings) {
		settings.ExpiryEnforcement = enabled
	})
}

func (s *registryService) SetMetadataBase(ctx context.Context, base string) error {
	return s.updateSettings(ctx, func(settings *registry.Settings) {
		settings.MetadataBase = base
	})
}

func (s *registryService) Settings(ctx context.Context) (*registry.Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *registryService) updateSettings(ctx context.Context, mutate func(*registry.Settings)) error {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return err
	}
	mutate(settings)
	settings.UpdatedAt = s.now()
	return s.repo.SaveSettings(ctx, settings)
}

// authorize loads settings and verifies the caller capability. Every
// mutating operation starts here.
func (s *registryService) authorize(ctx context.Context, caller registry.Caller) (*registry.Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if caller == "" || string(caller) != settings.Controller {
		return nil, registry.ErrNotController
	}
	return settings, nil
}

// publish fans out a domain event. The state change has already committed,
// so a publish failure is logged and swallowed rather than surfaced.
func (s *registryService) publish(ctx context.Context, taskType string, payload interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, taskType, payload); err != nil {
		logger.Error("failed to publish "+taskType+" event", err)
	}
}
