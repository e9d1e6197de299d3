package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
)

type JobFilter struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   *valueobject.JobStatus
	// OldestUpdatedFirst сортирует по updated_at по возрастанию (очередь админа).
	OldestUpdatedFirst bool
	Limit              int
	Offset             int
}

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*entity.Job, int, error)
	// UpdateStatus выполняет compare-and-swap: статус меняется, только если текущий равен from.
	// Иначе возвращается apperror.ErrConcurrentUpdate.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.JobStatus) (*entity.Job, error)
	AppendSatisfactionReport(ctx context.Context, id uuid.UUID, report entity.SatisfactionReport) (*entity.Job, error)
}
