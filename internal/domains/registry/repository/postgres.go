package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity-registry/internal/domains/registry"
	"identity-registry/pkg/cache"
	"identity-registry/pkg/database"
)

// Identity lookups are hot (every controller request hits at least one), so
// the Postgres repository layers a cache-aside pattern over the two lookup
// keys plus the settings row.
const (
	cacheTTL         = 5 * time.Minute
	settingsCacheKey = "registry:settings"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS identities (
		token_id      TEXT PRIMARY KEY,
		owner_address TEXT NOT NULL UNIQUE,
		username      TEXT NOT NULL UNIQUE,
		expires_at    TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS registry_settings (
		id                            INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		controller                    TEXT NOT NULL,
		registration_duration_seconds BIGINT NOT NULL,
		expiry_enforcement            BOOLEAN NOT NULL,
		metadata_base                 TEXT NOT NULL,
		updated_at                    TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS registry_events (
		id            UUID PRIMARY KEY,
		event_type    TEXT NOT NULL,
		token_id      TEXT,
		owner_address TEXT,
		username      TEXT,
		payload       JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_identities_expires_at ON identities (expires_at);
	CREATE INDEX IF NOT EXISTS idx_registry_events_created_at ON registry_events (created_at DESC);
`

// postgresRepository is the concrete registry.Repository backed by pgx.
type postgresRepository struct {
	pool  *pgxpool.Pool
	cache cache.Cache
}

func NewPostgresRepository(pool *pgxpool.Pool, cache cache.Cache) registry.Repository {
	return &postgresRepository{
		pool:  pool,
		cache: cache,
	}
}

// EnsureSchema creates the registry tables. The container type-asserts the
// repository to call this at boot.
func (r *postgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

const insertIdentitySQL = `
	INSERT INTO identities (token_id, owner_address, username, expires_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *postgresRepository) Insert(ctx context.Context, identity *registry.Identity) error {
	if err := r.insertIdentity(ctx, r.pool, identity); err != nil {
		return err
	}

	r.invalidate(ctx, identity)
	return nil
}

// Reassign runs the burns and the insert in a single transaction: a conflict
// at the insert rolls every burn back, so a losing race with a concurrent
// writer never leaves a binding destroyed without its replacement.
func (r *postgresRepository) Reassign(ctx context.Context, burns []registry.Identity, identity *registry.Identity) error {
	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		for _, victim := range burns {
			tag, err := tx.Exec(ctx, `DELETE FROM identities WHERE token_id = $1`, victim.TokenID)
			if err != nil {
				return fmt.Errorf("burn identity: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return registry.ErrNotRegistered
			}
		}
		return r.insertIdentity(ctx, tx, identity)
	})
	if err != nil {
		return err
	}

	for i := range burns {
		r.invalidate(ctx, &burns[i])
	}
	r.invalidate(ctx, identity)
	return nil
}

func (r *postgresRepository) insertIdentity(ctx context.Context, db execer, identity *registry.Identity) error {
	_, err := db.Exec(ctx, insertIdentitySQL,
		identity.TokenID,
		identity.Owner,
		identity.Username,
		identity.ExpiresAt,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		// 23505 = unique_violation: either the username or the address is
		// already bound. The service burns conflicting bindings before
		// inserting, so hitting this means a concurrent writer won.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return registry.ErrAlreadyOwned
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (r *postgresRepository) FindByTokenID(ctx context.Context, tokenID registry.TokenID) (*registry.Identity, error) {
	cacheKey := fmt.Sprintf("identity:token:%s", tokenID)

	var cached registry.Identity
	if found, _ := r.cache.Get(ctx, cacheKey, &cached); found {
		return &cached, nil
	}

	query := `
		SELECT token_id, owner_address, username, expires_at, created_at, updated_at
		FROM identities
		WHERE token_id = $1
	`

	identity, err := r.scanIdentity(r.pool.QueryRow(ctx, query, tokenID))
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, cacheKey, identity, cacheTTL)
	return identity, nil
}

func (r *postgresRepository) FindByAddress(ctx context.Context, owner registry.Address) (*registry.Identity, error) {
	cacheKey := fmt.Sprintf("identity:addr:%s", owner)

	var cached registry.Identity
	if found, _ := r.cache.Get(ctx, cacheKey, &cached); found {
		return &cached, nil
	}

	query := `
		SELECT token_id, owner_address, username, expires_at, created_at, updated_at
		FROM identities
		WHERE owner_address = $1
	`

	identity, err := r.scanIdentity(r.pool.QueryRow(ctx, query, owner))
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, cacheKey, identity, cacheTTL)
	return identity, nil
}

func (r *postgresRepository) UpdateExpiry(ctx context.Context, tokenID registry.TokenID, expiresAt time.Time) error {
	// Read first so the cache invalidation can cover the owner key too.
	identity, err := r.FindByTokenID(ctx, tokenID)
	if err != nil {
		return err
	}

	query := `
		UPDATE identities
		SET expires_at = $2, updated_at = NOW()
		WHERE token_id = $1
	`

	tag, err := r.pool.Exec(ctx, query, tokenID, expiresAt)
	if err != nil {
		return fmt.Errorf("update identity expiry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return registry.ErrNotRegistered
	}

	r.invalidate(ctx, identity)
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, tokenID registry.TokenID) error {
	identity, err := r.FindByTokenID(ctx, tokenID)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE token_id = $1`, tokenID)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return registry.ErrNotRegistered
	}

	r.invalidate(ctx, identity)
	return nil
}

func (r *postgresRepository) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]registry.Identity, error) {
	query := `
		SELECT token_id, owner_address, username, expires_at, created_at, updated_at
		FROM identities
		WHERE expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired identities: %w", err)
	}
	defer rows.Close()

	var identities []registry.Identity
	for rows.Next() {
		var identity registry.Identity
		if err := rows.Scan(
			&identity.TokenID,
			&identity.Owner,
			&identity.Username,
			&identity.ExpiresAt,
			&identity.CreatedAt,
			&identity.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan expired identity: %w", err)
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}

// ========================================
// SETTINGS
// ========================================

func (r *postgresRepository) GetSettings(ctx context.Context) (*registry.Settings, error) {
	var cached registry.Settings
	if found, _ := r.cache.Get(ctx, settingsCacheKey, &cached); found {
		return &cached, nil
	}

	query := `
		SELECT controller, registration_duration_seconds, expiry_enforcement, metadata_base, updated_at
		FROM registry_settings
		WHERE id = 1
	`

	var settings registry.Settings
	var durationSeconds int64
	err := r.pool.QueryRow(ctx, query).Scan(
		&settings.Controller,
		&durationSeconds,
		&settings.ExpiryEnforcement,
		&settings.MetadataBase,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registry.ErrNotRegistered
		}
		return nil, fmt.Errorf("get registry settings: %w", err)
	}
	settings.RegistrationDuration = time.Duration(durationSeconds) * time.Second

	_ = r.cache.Set(ctx, settingsCacheKey, &settings, cacheTTL)
	return &settings, nil
}

func (r *postgresRepository) SaveSettings(ctx context.Context, settings *registry.Settings) error {
	query := `
		UPDATE registry_settings
		SET controller = $1, registration_duration_seconds = $2,
		    expiry_enforcement = $3, metadata_base = $4, updated_at = $5
		WHERE id = 1
	`

	_, err := r.pool.Exec(ctx, query,
		settings.Controller,
		int64(settings.RegistrationDuration/time.Second),
		settings.ExpiryEnforcement,
		settings.MetadataBase,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save registry settings: %w", err)
	}

	_ = r.cache.Delete(ctx, settingsCacheKey)
	return nil
}

func (r *postgresRepository) EnsureSettings(ctx context.Context, defaults registry.Settings) error {
	query := `
		INSERT INTO registry_settings (id, controller, registration_duration_seconds, expiry_enforcement, metadata_base, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		defaults.Controller,
		int64(defaults.RegistrationDuration/time.Second),
		defaults.ExpiryEnforcement,
		defaults.MetadataBase,
		defaults.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("seed registry settings: %w", err)
	}
	return nil
}

// ========================================
// EVENTS
// ========================================

func (r *postgresRepository) AppendEvent(ctx context.Context, event *registry.Event) error {
	query := `
		INSERT INTO registry_events (id, event_type, token_id, owner_address, username, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.Type,
		event.TokenID,
		event.Owner,
		event.Username,
		event.Payload,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append registry event: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListEvents(ctx context.Context, limit int) ([]registry.Event, error) {
	query := `
		SELECT id, event_type, token_id, owner_address, username, payload, created_at
		FROM registry_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list registry events: %w", err)
	}
	defer rows.Close()

	var events []registry.Event
	for rows.Next() {
		var event registry.Event
		if err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.TokenID,
			&event.Owner,
			&event.Username,
			&event.Payload,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan registry event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *postgresRepository) scanIdentity(row pgx.Row) (*registry.Identity, error) {
	var identity registry.Identity
	err := row.Scan(
		&identity.TokenID,
		&identity.Owner,
		&identity.Username,
		&identity.ExpiresAt,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registry.ErrNotRegistered
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	return &identity, nil
}

func (r *postgresRepository) invalidate(ctx context.Context, identity *registry.Identity) {
	_ = r.cache.Delete(ctx,
		fmt.Sprintf("identity:token:%s", identity.TokenID),
		fmt.Sprintf("identity:addr:%s", identity.Owner),
	)
}
