package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
)

type ResolveDisputeRequest struct {
	Action  string `json:"action" binding:"required"`
	Notes   string `json:"notes" binding:"required"`
	Percent *int   `json:"percent"`
}

type SettlementResponse struct {
	Job         JobResponse         `json:"job"`
	Transaction TransactionResponse `json:"transaction"`
}

type EscrowQueueItem struct {
	JobResponse
	ReleaseEligible bool `json:"release_eligible"`
}

type AuditEntryResponse struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    *uuid.UUID      `json:"actor_id"`
	ActorRole  string          `json:"actor_role"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func ToAuditEntryResponses(entries []*entity.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:         e.ID,
			ActorID:    e.ActorID,
			ActorRole:  e.ActorRole,
			Action:     string(e.Action),
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Details:    e.Details,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
