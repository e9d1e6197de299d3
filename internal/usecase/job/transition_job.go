package job

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/event"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/syncutil"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
)

// TransitionJobUseCase меняет статус по таблице разрешений.
// Принудительные переходы администратора сюда не входят.
type TransitionJobUseCase struct {
	store     repository.Store
	locks     *syncutil.KeyedMutex
	publisher event.Publisher
}

func NewTransitionJobUseCase(store repository.Store, locks *syncutil.KeyedMutex, publisher event.Publisher) *TransitionJobUseCase {
	return &TransitionJobUseCase{store: store, locks: locks, publisher: publisher}
}

func (uc *TransitionJobUseCase) Execute(ctx context.Context, actor entity.Actor, jobID uuid.UUID, target valueobject.JobStatus) (*entity.Job, error) {
	if !target.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
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

	party := job.PartyOf(actor)
	if party == valueobject.PartyNone {
		return nil, apperror.ErrForbidden
	}

	from := job.Status
	if err := valueobject.CheckTransition(from, target, party); err != nil {
		return nil, err
	}
	if from == target {
		return job, nil
	}

	var updated *entity.Job
	err = uc.store.Atomic(ctx, func(s repository.Store) error {
		var err error
		updated, err = s.Jobs().UpdateStatus(ctx, job.ID, from, target)
		if err != nil {
			return err
		}
		return s.Audit().Append(ctx, entity.NewAuditEntry(&actor, entity.AuditJobStatusChanged, entity.AuditEntityJob, job.ID.String(), common.JobRef(job.ID),
			common.StatusDetails(from, target, map[string]any{"party": party})))
	})
	if err != nil {
		return nil, err
	}

	common.StatusChanged(ctx, uc.publisher, updated, from)
	return updated, nil
}
