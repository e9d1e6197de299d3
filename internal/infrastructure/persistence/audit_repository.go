package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
)

type auditRow struct {
	ID         uuid.UUID  `db:"id"`
	ActorID    *uuid.UUID `db:"actor_id"`
	ActorRole  string     `db:"actor_role"`
	Action     string     `db:"action"`
	EntityType string     `db:"entity_type"`
	EntityID   string     `db:"entity_id"`
	JobID      *uuid.UUID `db:"job_id"`
	Details    []byte     `db:"details"`
	CreatedAt  time.Time  `db:"created_at"`
}

// AuditRepository пишет в audit_logs. Записи только добавляются.
type AuditRepository struct {
	q sqlx.ExtContext
}

func NewAuditRepository(q sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{q: q}
}

func (r *AuditRepository) Append(ctx context.Context, e *entity.AuditEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, actor_role, action, entity_type, entity_id, job_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`,
		e.ID, e.ActorID, e.ActorRole, string(e.Action), e.EntityType, e.EntityID, e.JobID, jsonParam(e.Details), e.CreatedAt,
	)
	if err != nil {
		return dbError(err, "не удалось записать журнал аудита")
	}
	return nil
}

func (r *AuditRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*entity.AuditEntry, error) {
	var rows []auditRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, `
		SELECT id, actor_id, actor_role, action, entity_type, entity_id, job_id, details, created_at
		FROM audit_logs WHERE job_id = $1 ORDER BY created_at`, jobID); err != nil {
		return nil, dbError(err, "не удалось прочитать журнал аудита")
	}
	out := make([]*entity.AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, &entity.AuditEntry{
			ID:         row.ID,
			ActorID:    row.ActorID,
			ActorRole:  row.ActorRole,
			Action:     entity.AuditAction(row.Action),
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			JobID:      row.JobID,
			Details:    json.RawMessage(row.Details),
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}
