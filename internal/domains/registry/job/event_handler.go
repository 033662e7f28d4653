package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"identity-registry/internal/domains/registry"
	"identity-registry/internal/shared"
	"identity-registry/pkg/logger"
)

// EventRecorderHandler consumes the domain events emitted by the registry
// and controller services and appends them to the registry_events table so
// external indexers have a durable feed.
type EventRecorderHandler struct {
	repo registry.Repository
}

func NewEventRecorderHandler(repo registry.Repository) *EventRecorderHandler {
	return &EventRecorderHandler{repo: repo}
}

func (h *EventRecorderHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	event := &registry.Event{
		Type:      task.Type(),
		Payload:   task.Payload(),
		CreatedAt: time.Now(),
	}

	// Pull the indexable columns out of the payload; the raw payload is
	// kept verbatim alongside them.
	switch task.Type() {
	case shared.TypeIdentityMinted:
		var p shared.IdentityMintedPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("unmarshal minted payload", err)
			return err
		}
		event.ID = parseEventID(p.EventID)
		event.TokenID = registry.TokenID(p.TokenID)
		event.Owner = registry.Address(p.Owner)
		event.Username = p.Username

	case shared.TypeIdentityBurned:
		var p shared.IdentityBurnedPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("unmarshal burned payload", err)
			return err
		}
		event.ID = parseEventID(p.EventID)
		event.TokenID = registry.TokenID(p.TokenID)
		event.Owner = registry.Address(p.Owner)
		event.Username = p.Username

	case shared.TypeIdentityRenewed:
		var p shared.IdentityRenewedPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("unmarshal renewed payload", err)
			return err
		}
		event.ID = parseEventID(p.EventID)
		event.TokenID = registry.TokenID(p.TokenID)
		event.Owner = registry.Address(p.Owner)
		event.Username = p.Username

	case shared.TypeControllerSignerSet:
		var p shared.SignerChangedPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("unmarshal signer payload", err)
			return err
		}
		event.ID = parseEventID(p.EventID)

	case shared.TypeControllerFeeSet:
		var p shared.FeeChangedPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("unmarshal fee payload", err)
			return err
		}
		event.ID = parseEventID(p.EventID)

	default:
		event.ID = uuid.New()
	}

	if err := h.repo.AppendEvent(ctx, event); err != nil {
		logger.Error("append event failed", err)
		return err
	}

	log.Info().
		Str("event_id", event.ID.String()).
		Str("type", event.Type).
		Str("token_id", string(event.TokenID)).
		Str("username", event.Username).
		Msg("Domain event recorded")

	return nil
}

func parseEventID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.New()
	}
	return id
}
