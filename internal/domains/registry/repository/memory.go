package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"identity-registry/internal/domains/registry"
)

// memoryRepository is the in-memory registry.Repository used by tests and
// single-node development. Semantics mirror the Postgres implementation,
// including the two uniqueness constraints.
type memoryRepository struct {
	mu       sync.RWMutex
	byToken  map[registry.TokenID]registry.Identity
	byOwner  map[registry.Address]registry.TokenID
	settings *registry.Settings
	events   []registry.Event
}

func NewMemoryRepository() registry.Repository {
	return &memoryRepository{
		byToken: make(map[registry.TokenID]registry.Identity),
		byOwner: make(map[registry.Address]registry.TokenID),
	}
}

func (m *memoryRepository) Insert(ctx context.Context, identity *registry.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byToken[identity.TokenID]; exists {
		return registry.ErrAlreadyOwned
	}
	if _, exists := m.byOwner[identity.Owner]; exists {
		return registry.ErrAlreadyOwned
	}

	m.byToken[identity.TokenID] = *identity
	m.byOwner[identity.Owner] = identity.TokenID
	return nil
}

func (m *memoryRepository) Reassign(ctx context.Context, burns []registry.Identity, identity *registry.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate everything before touching the maps so a failure leaves the
	// store exactly as it was.
	burned := make(map[registry.TokenID]struct{}, len(burns))
	for _, victim := range burns {
		if _, ok := m.byToken[victim.TokenID]; !ok {
			return registry.ErrNotRegistered
		}
		burned[victim.TokenID] = struct{}{}
	}

	if _, ok := m.byToken[identity.TokenID]; ok {
		if _, gone := burned[identity.TokenID]; !gone {
			return registry.ErrAlreadyOwned
		}
	}
	if tokenID, ok := m.byOwner[identity.Owner]; ok {
		if _, gone := burned[tokenID]; !gone {
			return registry.ErrAlreadyOwned
		}
	}

	for _, victim := range burns {
		owner := m.byToken[victim.TokenID].Owner
		delete(m.byToken, victim.TokenID)
		delete(m.byOwner, owner)
	}
	m.byToken[identity.TokenID] = *identity
	m.byOwner[identity.Owner] = identity.TokenID
	return nil
}

func (m *memoryRepository) FindByTokenID(ctx context.Context, tokenID registry.TokenID) (*registry.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	identity, ok := m.byToken[tokenID]
	if !ok {
		return nil, registry.ErrNotRegistered
	}
	clone := identity
	return &clone, nil
}

func (m *memoryRepository) FindByAddress(ctx context.Context, owner registry.Address) (*registry.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokenID, ok := m.byOwner[owner]
	if !ok {
		return nil, registry.ErrNotRegistered
	}
	identity := m.byToken[tokenID]
	clone := identity
	return &clone, nil
}

func (m *memoryRepository) UpdateExpiry(ctx context.Context, tokenID registry.TokenID, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.byToken[tokenID]
	if !ok {
		return registry.ErrNotRegistered
	}
	identity.ExpiresAt = &expiresAt
	identity.UpdatedAt = time.Now()
	m.byToken[tokenID] = identity
	return nil
}

func (m *memoryRepository) Delete(ctx context.Context, tokenID registry.TokenID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity, ok := m.byToken[tokenID]
	if !ok {
		return registry.ErrNotRegistered
	}
	delete(m.byToken, tokenID)
	delete(m.byOwner, identity.Owner)
	return nil
}

func (m *memoryRepository) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]registry.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var expired []registry.Identity
	for _, identity := range m.byToken {
		if identity.ExpiresAt != nil && identity.ExpiresAt.Before(asOf) {
			expired = append(expired, identity)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ExpiresAt.After(*expired[j].ExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (m *memoryRepository) GetSettings(ctx context.Context) (*registry.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings == nil {
		return nil, registry.ErrNotRegistered
	}
	clone := *m.settings
	return &clone, nil
}

func (m *memoryRepository) SaveSettings(ctx context.Context, settings *registry.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *settings
	m.settings = &clone
	return nil
}

func (m *memoryRepository) EnsureSettings(ctx context.Context, defaults registry.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settings == nil {
		clone := defaults
		m.settings = &clone
	}
	return nil
}

func (m *memoryRepository) AppendEvent(ctx context.Context, event *registry.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, *event)
	return nil
}

func (m *memoryRepository) ListEvents(ctx context.Context, limit int) ([]registry.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]registry.Event, len(m.events))
	copy(events, m.events)
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
