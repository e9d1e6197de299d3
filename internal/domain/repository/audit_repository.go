package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
)

// AuditRepository ведёт журнал только на добавление.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.AuditEntry, error)
}
