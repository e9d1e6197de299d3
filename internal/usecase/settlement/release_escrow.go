package settlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/event"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/gateway"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/metrics"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/syncutil"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
)

const kindEscrowRelease = "escrow_release"

// EscrowRelease выплачивает продавцу по частично выполненному заказу без спора.
type EscrowRelease struct {
	settler
}

func NewEscrowRelease(store repository.Store, gw gateway.PaymentGateway, locks *syncutil.KeyedMutex, publisher event.Publisher) *EscrowRelease {
	return &EscrowRelease{settler{store: store, gateway: gw, locks: locks, publisher: publisher}}
}

func (uc *EscrowRelease) Execute(ctx context.Context, actor entity.Actor, jobID uuid.UUID) (result *SettlementResult, err error) {
	defer func() {
		metrics.Settlements.WithLabelValues(kindEscrowRelease, metrics.Result(err)).Inc()
	}()

	if !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "выпуск эскроу доступен только администратору")
	}

	unlock, err := common.LockJob(ctx, uc.locks, jobID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := uc.store.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != valueobject.JobStatusPartialCompleted {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "выпуск эскроу возможен только для частично выполненного заказа")
	}

	report := job.LastReport()
	if report == nil {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "покупатель ещё не оставил отчёт об удовлетворённости")
	}
	if report.Percentage < entity.ReleaseSatisfactionThreshold {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "удовлетворённость покупателя ниже 50%")
	}

	result, err = uc.release(ctx, actor, job, entity.AuditEscrowReleased, map[string]any{
		"satisfaction": report.Percentage,
		"reportId":     report.ID,
	})
	if err != nil {
		return nil, err
	}

	logger.Job(job.ID).WithField("admin_id", actor.ID).Info("эскроу выпущен продавцу")
	return result, nil
}

// QueueUseCase: административная очередь заказов в одном статусе,
// сначала давно не обновлявшиеся.
type QueueUseCase struct {
	jobs   repository.JobRepository
	status valueobject.JobStatus
}

// NewDisputeQueue возвращает заказы, ожидающие решения по спору.
func NewDisputeQueue(jobs repository.JobRepository) *QueueUseCase {
	return &QueueUseCase{jobs: jobs, status: valueobject.JobStatusDisputed}
}

// NewEscrowQueue возвращает частично выполненные заказы, кандидатов на выпуск эскроу.
func NewEscrowQueue(jobs repository.JobRepository) *QueueUseCase {
	return &QueueUseCase{jobs: jobs, status: valueobject.JobStatusPartialCompleted}
}

func (uc *QueueUseCase) Execute(ctx context.Context, actor entity.Actor, limit, offset int) ([]*entity.Job, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, apperror.ErrForbidden
	}
	limit, offset = common.Pagination(limit, offset)
	status := uc.status
	return uc.jobs.List(ctx, repository.JobFilter{
		Status:             &status,
		OldestUpdatedFirst: true,
		Limit:              limit,
		Offset:             offset,
	})
}

// ReleaseEligible сообщает, пройдёт ли заказ проверку удовлетворённости.
func ReleaseEligible(job *entity.Job) bool {
	r := job.LastReport()
	return r != nil && r.Percentage >= entity.ReleaseSatisfactionThreshold
}
