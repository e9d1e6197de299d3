package job

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
)

// JobView содержит заказ вместе с его платёжными транзакциями.
type JobView struct {
	Job          *entity.Job
	Transactions []*entity.PaymentTransaction
}

type GetJobUseCase struct {
	store repository.Store
}

func NewGetJobUseCase(store repository.Store) *GetJobUseCase {
	return &GetJobUseCase{store: store}
}

func (uc *GetJobUseCase) Execute(ctx context.Context, actor entity.Actor, jobID uuid.UUID) (*JobView, error) {
	job, err := uc.store.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.CanView(actor) {
		return nil, apperror.ErrForbidden
	}

	txs, err := uc.store.Transactions().ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobView{Job: job, Transactions: txs}, nil
}

type ListJobsInput struct {
	Status *valueobject.JobStatus
	Limit  int
	Offset int
}

type ListJobsUseCase struct {
	jobs repository.JobRepository
}

func NewListJobsUseCase(jobs repository.JobRepository) *ListJobsUseCase {
	return &ListJobsUseCase{jobs: jobs}
}

// Execute возвращает заказы в области видимости пользователя: покупатель и
// продавец видят свои заказы, администратор видит все.
func (uc *ListJobsUseCase) Execute(ctx context.Context, actor entity.Actor, input ListJobsInput) ([]*entity.Job, int, error) {
	limit, offset := common.Pagination(input.Limit, input.Offset)
	filter := repository.JobFilter{Status: input.Status, Limit: limit, Offset: offset}

	switch actor.Role {
	case valueobject.RoleBuyer:
		filter.BuyerID = &actor.ID
	case valueobject.RoleSeller:
		filter.SellerID = &actor.ID
	case valueobject.RoleAdmin:
	default:
		return nil, 0, apperror.ErrForbidden
	}

	return uc.jobs.List(ctx, filter)
}

// ListAuditUseCase отдаёт администратору журнал аудита заказа.
type ListAuditUseCase struct {
	store repository.Store
}

func NewListAuditUseCase(store repository.Store) *ListAuditUseCase {
	return &ListAuditUseCase{store: store}
}

func (uc *ListAuditUseCase) Execute(ctx context.Context, actor entity.Actor, jobID uuid.UUID) ([]*entity.AuditEntry, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	if _, err := uc.store.Jobs().FindByID(ctx, jobID); err != nil {
		return nil, err
	}
	return uc.store.Audit().ListByJob(ctx, jobID)
}
