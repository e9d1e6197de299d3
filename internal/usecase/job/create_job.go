package job

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
)

type CreateJobInput struct {
	SellerID     uuid.UUID
	Title        string
	Description  string
	AgreedAmount decimal.Decimal
}

type CreateJobUseCase struct {
	store repository.Store
}

func NewCreateJobUseCase(store repository.Store) *CreateJobUseCase {
	return &CreateJobUseCase{store: store}
}

func (uc *CreateJobUseCase) Execute(ctx context.Context, actor entity.Actor, input CreateJobInput) (*entity.Job, error) {
	if actor.Role != valueobject.RoleBuyer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать заказы могут только покупатели")
	}

	seller, err := uc.store.Participants().FindByID(ctx, input.SellerID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "продавец не найден")
		}
		return nil, err
	}
	if seller.Role != valueobject.RoleSeller {
		return nil, apperror.New(apperror.ErrCodeValidation, "пользователь не является продавцом")
	}

	job, err := entity.NewJob(actor.ID, seller.ID, input.Title, input.Description, input.AgreedAmount)
	if err != nil {
		return nil, err
	}

	err = uc.store.Atomic(ctx, func(s repository.Store) error {
		if err := s.Jobs().Create(ctx, job); err != nil {
			return err
		}
		return s.Audit().Append(ctx, entity.NewAuditEntry(&actor, entity.AuditJobCreated, entity.AuditEntityJob, job.ID.String(), common.JobRef(job.ID), map[string]any{
			"agreedAmount":       job.AgreedAmount.StringFixed(2),
			"depositAmount":      job.DepositAmount.StringFixed(2),
			"platformCommission": job.PlatformCommission.StringFixed(2),
			"sellerId":           job.SellerID,
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Job(job.ID).WithField("buyer_id", actor.ID).Info("заказ создан")
	return job, nil
}
