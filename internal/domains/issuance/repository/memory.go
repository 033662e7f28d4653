package repository

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"identity-registry/internal/domains/issuance"
	"identity-registry/internal/domains/registry"
)

// memoryRepository is the in-memory issuance.Repository used by tests and
// single-node development. Nonce counters behave like the Postgres
// implementation: start at zero, hand out each value once, never reset.
type memoryRepository struct {
	mu     sync.Mutex
	nonces map[registry.Address]uint64
	state  *issuance.ControllerState
}

func NewMemoryRepository() issuance.Repository {
	return &memoryRepository{
		nonces: make(map[registry.Address]uint64),
	}
}

func (m *memoryRepository) ConsumeNonce(ctx context.Context, address registry.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nonce := m.nonces[address]
	m.nonces[address] = nonce + 1
	return nonce, nil
}

func (m *memoryRepository) PeekNonce(ctx context.Context, address registry.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.nonces[address], nil
}

func (m *memoryRepository) GetState(ctx context.Context) (*issuance.ControllerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return nil, registry.ErrNotRegistered
	}
	clone := *m.state
	return &clone, nil
}

func (m *memoryRepository) SaveState(ctx context.Context, state *issuance.ControllerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Balance is owned by Credit/Withdraw, not by the admin surface.
	clone := *state
	if m.state != nil {
		clone.Balance = m.state.Balance
	}
	m.state = &clone
	return nil
}

func (m *memoryRepository) EnsureState(ctx context.Context, defaults issuance.ControllerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		clone := defaults
		m.state = &clone
	}
	return nil
}

func (m *memoryRepository) Credit(ctx context.Context, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return registry.ErrNotRegistered
	}
	m.state.Balance = m.state.Balance.Add(amount)
	m.state.UpdatedAt = time.Now()
	return nil
}

func (m *memoryRepository) Withdraw(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return decimal.Zero, registry.ErrNotRegistered
	}
	drained := m.state.Balance
	m.state.Balance = decimal.Zero
	m.state.UpdatedAt = time.Now()
	return drained, nil
}
