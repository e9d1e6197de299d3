package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

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
	"github.com/ignatzorin/servicehub-backend/internal/validation"
)

type DisputeAction string

const (
	ActionFullRefund      DisputeAction = "full_refund"
	ActionPartialRefund   DisputeAction = "partial_refund"
	ActionReleaseToSeller DisputeAction = "release_to_seller"

	MaxNotesLength = validation.MaxResolutionNoteLength
)

func (a DisputeAction) IsValid() bool {
	switch a {
	case ActionFullRefund, ActionPartialRefund, ActionReleaseToSeller:
		return true
	}
	return false
}

type ResolveDisputeInput struct {
	JobID   uuid.UUID
	Action  DisputeAction
	Notes   string
	Percent *int
}

// validate проверяет ввод и возвращает процент возврата для refund-действий.
func (in *ResolveDisputeInput) validate() (int, error) {
	if !in.Action.IsValid() {
		return 0, apperror.New(apperror.ErrCodeValidation, "действие должно быть full_refund, partial_refund или release_to_seller")
	}
	in.Notes = validation.SanitizeText(in.Notes)
	if err := validation.ValidateNonEmpty("комментарий к решению", in.Notes); err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("комментарий к решению", in.Notes, 0, MaxNotesLength); err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	switch in.Action {
	case ActionFullRefund:
		return 100, nil
	case ActionPartialRefund:
		if in.Percent == nil {
			return 0, apperror.New(apperror.ErrCodeValidation, "укажите процент возврата")
		}
		if err := validation.ValidatePercent("процент возврата", *in.Percent, 1, 100); err != nil {
			return 0, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		return *in.Percent, nil
	}
	return 0, nil
}

// DisputeResolver исполняет решение администратора по спорному заказу.
type DisputeResolver struct {
	settler
}

func NewDisputeResolver(store repository.Store, gw gateway.PaymentGateway, locks *syncutil.KeyedMutex, publisher event.Publisher) *DisputeResolver {
	return &DisputeResolver{settler{store: store, gateway: gw, locks: locks, publisher: publisher}}
}

func (uc *DisputeResolver) Execute(ctx context.Context, actor entity.Actor, input ResolveDisputeInput) (result *SettlementResult, err error) {
	defer func() {
		kind := string(input.Action)
		if !input.Action.IsValid() {
			kind = "invalid"
		}
		metrics.Settlements.WithLabelValues(kind, metrics.Result(err)).Inc()
	}()

	if !actor.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "споры разрешает только администратор")
	}
	percent, err := input.validate()
	if err != nil {
		return nil, err
	}

	unlock, err := common.LockJob(ctx, uc.locks, input.JobID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := uc.store.Jobs().FindByID(ctx, input.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != valueobject.JobStatusDisputed {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "заказ не находится в споре")
	}

	details := map[string]any{
		"action": input.Action,
		"notes":  input.Notes,
	}
	if input.Action == ActionReleaseToSeller {
		result, err = uc.release(ctx, actor, job, entity.AuditDisputeResolved, details)
	} else {
		result, err = uc.refund(ctx, actor, job, percent, details)
	}
	if err != nil {
		return nil, err
	}

	logger.Job(job.ID).WithFields(logrus.Fields{
		"admin_id": actor.ID,
		"action":   input.Action,
		"amount":   result.Transaction.Amount.StringFixed(2),
	}).Info("спор урегулирован")
	return result, nil
}
