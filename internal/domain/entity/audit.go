package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditJobCreated              AuditAction = "job_created"
	AuditJobStatusChanged        AuditAction = "job_status_changed"
	AuditSatisfactionSubmitted   AuditAction = "satisfaction_submitted"
	AuditPaymentInitialize       AuditAction = "payment_initialize"
	AuditPaymentSucceeded        AuditAction = "payment_succeeded"
	AuditPaymentFailed           AuditAction = "payment_failed"
	AuditPaymentWebhookUnmatched AuditAction = "payment_webhook_unmatched"
	AuditDisputeResolved         AuditAction = "dispute_resolved"
	AuditEscrowReleased          AuditAction = "escrow_released"
)

// AuditEntry: неизменяемая запись журнала. ActorID пуст для событий провайдера.
type AuditEntry struct {
	ID         uuid.UUID
	ActorID    *uuid.UUID
	ActorRole  string
	Action     AuditAction
	EntityType string
	EntityID   string
	JobID      *uuid.UUID
	Details    json.RawMessage
	CreatedAt  time.Time
}

const (
	AuditEntityJob         = "job"
	AuditEntityTransaction = "payment_transaction"
	AuditActorSystem       = "system"
)

// NewAuditEntry собирает запись; details сериализуются в JSON.
func NewAuditEntry(actor *Actor, action AuditAction, entityType, entityID string, jobID *uuid.UUID, details any) *AuditEntry {
	entry := &AuditEntry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		JobID:      jobID,
		ActorRole:  AuditActorSystem,
		CreatedAt:  time.Now().UTC(),
	}
	if actor != nil {
		id := actor.ID
		entry.ActorID = &id
		entry.ActorRole = string(actor.Role)
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = raw
		}
	}
	return entry
}
