package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"identity-registry/internal/domains/issuance"
	"identity-registry/internal/domains/registry"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS nonces (
		address TEXT PRIMARY KEY,
		value   BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS controller_state (
		id                   INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		signer               TEXT NOT NULL,
		mint_fee             NUMERIC(32, 12) NOT NULL,
		renewal_fee_per_year NUMERIC(32, 12) NOT NULL,
		balance              NUMERIC(32, 12) NOT NULL DEFAULT 0,
		updated_at           TIMESTAMPTZ NOT NULL
	);
`

// postgresRepository is the concrete issuance.Repository backed by pgx.
// Nonce and balance mutations run as single atomic statements; no row can be
// consumed or drained twice by concurrent requests.
type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) issuance.Repository {
	return &postgresRepository{pool: pool}
}

// EnsureSchema creates the controller tables. The container type-asserts the
// repository to call this at boot.
func (r *postgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure controller schema: %w", err)
	}
	return nil
}

func (r *postgresRepository) ConsumeNonce(ctx context.Context, address registry.Address) (uint64, error) {
	// Upsert-and-increment in one statement; RETURNING hands back the value
	// that was just consumed.
	query := `
		INSERT INTO nonces (address, value)
		VALUES ($1, 1)
		ON CONFLICT (address) DO UPDATE SET value = nonces.value + 1
		RETURNING value - 1
	`

	var nonce int64
	if err := r.pool.QueryRow(ctx, query, address).Scan(&nonce); err != nil {
		return 0, fmt.Errorf("consume nonce: %w", err)
	}
	return uint64(nonce), nil
}

func (r *postgresRepository) PeekNonce(ctx context.Context, address registry.Address) (uint64, error) {
	var nonce int64
	err := r.pool.QueryRow(ctx, `SELECT value FROM nonces WHERE address = $1`, address).Scan(&nonce)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("peek nonce: %w", err)
	}
	return uint64(nonce), nil
}

func (r *postgresRepository) GetState(ctx context.Context) (*issuance.ControllerState, error) {
	query := `
		SELECT signer, mint_fee, renewal_fee_per_year, balance, updated_at
		FROM controller_state
		WHERE id = 1
	`

	var state issuance.ControllerState
	err := r.pool.QueryRow(ctx, query).Scan(
		&state.Signer,
		&state.MintFee,
		&state.RenewalFeePerYear,
		&state.Balance,
		&state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registry.ErrNotRegistered
		}
		return nil, fmt.Errorf("get controller state: %w", err)
	}
	return &state, nil
}

func (r *postgresRepository) SaveState(ctx context.Context, state *issuance.ControllerState) error {
	// Balance is deliberately left out: only Credit and Withdraw touch it.
	query := `
		UPDATE controller_state
		SET signer = $1, mint_fee = $2, renewal_fee_per_year = $3, updated_at = $4
		WHERE id = 1
	`

	_, err := r.pool.Exec(ctx, query,
		state.Signer,
		state.MintFee,
		state.RenewalFeePerYear,
		state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save controller state: %w", err)
	}
	return nil
}

func (r *postgresRepository) EnsureState(ctx context.Context, defaults issuance.ControllerState) error {
	query := `
		INSERT INTO controller_state (id, signer, mint_fee, renewal_fee_per_year, balance, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		defaults.Signer,
		defaults.MintFee,
		defaults.RenewalFeePerYear,
		defaults.Balance,
		defaults.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("seed controller state: %w", err)
	}
	return nil
}

func (r *postgresRepository) Credit(ctx context.Context, amount decimal.Decimal) error {
	query := `
		UPDATE controller_state
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = 1
	`

	tag, err := r.pool.Exec(ctx, query, amount)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return registry.ErrNotRegistered
	}
	return nil
}

func (r *postgresRepository) Withdraw(ctx context.Context) (decimal.Decimal, error) {
	query := `
		UPDATE controller_state
		SET balance = 0, updated_at = NOW()
		WHERE id = 1
		RETURNING (SELECT balance FROM controller_state WHERE id = 1)
	`

	var drained decimal.Decimal
	if err := r.pool.QueryRow(ctx, query).Scan(&drained); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, registry.ErrNotRegistered
		}
		return decimal.Zero, fmt.Errorf("withdraw balance: %w", err)
	}
	return drained, nil
}
