package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"identity-registry/internal/domains/registry"
	"identity-registry/internal/shared"
	"identity-registry/pkg/logger"
)

const sweepBatchSize = 100

// SweepExpiredHandler runs the scheduled expired-bindings sweep. Expiry is
// enforced lazily at lookup time; the sweep only reports stale bindings so
// operators can see renewal drop-off. It never mutates state.
type SweepExpiredHandler struct {
	repo registry.Repository
}

func NewSweepExpiredHandler(repo registry.Repository) *SweepExpiredHandler {
	return &SweepExpiredHandler{repo: repo}
}

func (h *SweepExpiredHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.SweepExpiredPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Error("unmarshal sweep payload", err)
		return err
	}

	asOf := time.Now()
	if !payload.Date.IsZero() {
		asOf = payload.Date
	}

	settings, err := h.repo.GetSettings(ctx)
	if err != nil {
		logger.Error("load settings for sweep", err)
		return err
	}
	if !settings.ExpiryEnforcement {
		log.Info().Msg("Expiry enforcement disabled, skipping sweep")
		return nil
	}

	expired, err := h.repo.ListExpired(ctx, asOf, sweepBatchSize)
	if err != nil {
		logger.Error("list expired bindings", err)
		return err
	}

	for _, identity := range expired {
		log.Info().
			Str("token_id", string(identity.TokenID)).
			Str("owner", string(identity.Owner)).
			Str("username", identity.Username).
			Time("expired_at", *identity.ExpiresAt).
			Msg("Binding past expiration")
	}

	log.Info().
		Int("expired_count", len(expired)).
		Time("as_of", asOf).
		Msg("Expired bindings sweep completed")

	return nil
}
