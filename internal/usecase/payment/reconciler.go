package payment

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/event"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/metrics"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/syncutil"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
)

const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
	chargeEventPrefix  = "charge."
)

// WebhookEvent: событие провайдера с уже проверенной подписью.
type WebhookEvent struct {
	Event     string
	Reference string
	Payload   json.RawMessage
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeIgnored   Outcome = "ignored"
)

// Reconciler применяет события провайдера к транзакциям. Доставка
// at-least-once: повтор и перестановка событий одной ссылки безопасны,
// потому что текущий статус перечитывается под блокировкой заказа и
// меняется через compare-and-swap.
type Reconciler struct {
	store     repository.Store
	locks     *syncutil.KeyedMutex
	publisher event.Publisher
}

func NewReconciler(store repository.Store, locks *syncutil.KeyedMutex, publisher event.Publisher) *Reconciler {
	return &Reconciler{store: store, locks: locks, publisher: publisher}
}

func (r *Reconciler) Handle(ctx context.Context, evt WebhookEvent) (Outcome, error) {
	outcome, err := r.handle(ctx, evt)
	label := string(outcome)
	if err != nil {
		label = "failed"
	}
	metrics.WebhookEvents.WithLabelValues(evt.Event, label).Inc()
	return outcome, err
}

func (r *Reconciler) handle(ctx context.Context, evt WebhookEvent) (Outcome, error) {
	if strings.TrimSpace(evt.Reference) == "" {
		return "", apperror.New(apperror.ErrCodeValidation, "в событии отсутствует reference")
	}
	log := logger.Payment(evt.Event, evt.Reference)

	tx, err := r.store.Transactions().FindByReference(ctx, evt.Reference)
	if err != nil {
		if !apperror.IsNotFound(err) {
			return "", err
		}
		entry := entity.NewAuditEntry(nil, entity.AuditPaymentWebhookUnmatched, entity.AuditEntityTransaction, evt.Reference, nil, map[string]any{
			"event": evt.Event,
		})
		if err := r.store.Audit().Append(ctx, entry); err != nil {
			return "", err
		}
		log.Warn("событие провайдера не сопоставлено с транзакцией")
		return OutcomeUnmatched, nil
	}

	unlock, err := common.LockJob(ctx, r.locks, tx.JobID)
	if err != nil {
		return "", err
	}
	defer unlock()

	switch {
	case evt.Event == EventChargeSuccess:
		return r.applySuccess(ctx, evt, log)
	case strings.HasPrefix(evt.Event, chargeEventPrefix):
		return r.applyFailure(ctx, evt, log)
	}

	if tx.Status == valueobject.TransactionStatusSucceeded {
		return OutcomeDuplicate, nil
	}
	log.Info("событие провайдера пропущено")
	return OutcomeIgnored, nil
}

// applySuccess атомарно отмечает транзакцию успешной, переводит заказ
// proposed -> funded и пишет аудит.
func (r *Reconciler) applySuccess(ctx context.Context, evt WebhookEvent, log *logrus.Entry) (Outcome, error) {
	var (
		outcome = OutcomeApplied
		funded  *entity.Job
	)

	err := r.store.Atomic(ctx, func(s repository.Store) error {
		tx, err := s.Transactions().FindByReference(ctx, evt.Reference)
		if err != nil {
			return err
		}
		if tx.Status == valueobject.TransactionStatusSucceeded {
			outcome = OutcomeDuplicate
			return nil
		}
		if tx.Type != valueobject.TransactionTypeDeposit {
			outcome = OutcomeIgnored
			return nil
		}

		updated, err := s.Transactions().UpdateStatus(ctx, tx.ID, tx.Status, valueobject.TransactionStatusSucceeded, evt.Payload)
		if err != nil {
			if lost, rerr := appliedConcurrently(ctx, s, evt.Reference, err, valueobject.TransactionStatusSucceeded); lost {
				outcome = OutcomeDuplicate
				return rerr
			}
			return err
		}

		job, err := s.Jobs().FindByID(ctx, tx.JobID)
		if err != nil {
			return err
		}

		details := map[string]any{
			"event":     evt.Event,
			"reference": evt.Reference,
			"amount":    updated.Amount.StringFixed(2),
			"previous":  tx.Status,
		}
		if job.Status == valueobject.JobStatusProposed {
			funded, err = s.Jobs().UpdateStatus(ctx, job.ID, valueobject.JobStatusProposed, valueobject.JobStatusFunded)
			if err != nil {
				return err
			}
			if err := s.Audit().Append(ctx, entity.NewAuditEntry(nil, entity.AuditJobStatusChanged, entity.AuditEntityJob, job.ID.String(), common.JobRef(job.ID),
				common.StatusDetails(valueobject.JobStatusProposed, valueobject.JobStatusFunded, map[string]any{"party": valueobject.PartySystem}))); err != nil {
				return err
			}
		} else {
			details["jobUnchanged"] = job.Status
		}

		return s.Audit().Append(ctx, entity.NewAuditEntry(nil, entity.AuditPaymentSucceeded, entity.AuditEntityTransaction, updated.ID.String(), common.JobRef(job.ID), details))
	})
	if err != nil {
		return "", err
	}

	switch {
	case funded != nil:
		common.StatusChanged(ctx, r.publisher, funded, valueobject.JobStatusProposed)
	case outcome == OutcomeApplied:
		log.Warn("оплата подтверждена, но заказ уже не в статусе proposed: требуется ручная сверка")
	case outcome == OutcomeIgnored:
		log.Warn("charge.success для транзакции, не являющейся депозитом")
	}
	return outcome, nil
}

// applyFailure отмечает pending-транзакцию неуспешной. Статус заказа не
// меняется: покупатель может повторить оплату.
func (r *Reconciler) applyFailure(ctx context.Context, evt WebhookEvent, log *logrus.Entry) (Outcome, error) {
	outcome := OutcomeApplied

	err := r.store.Atomic(ctx, func(s repository.Store) error {
		tx, err := s.Transactions().FindByReference(ctx, evt.Reference)
		if err != nil {
			return err
		}
		switch tx.Status {
		case valueobject.TransactionStatusSucceeded, valueobject.TransactionStatusFailed:
			outcome = OutcomeDuplicate
			return nil
		case valueobject.TransactionStatusPending:
		default:
			outcome = OutcomeIgnored
			return nil
		}

		updated, err := s.Transactions().UpdateStatus(ctx, tx.ID, tx.Status, valueobject.TransactionStatusFailed, evt.Payload)
		if err != nil {
			if lost, rerr := appliedConcurrently(ctx, s, evt.Reference, err,
				valueobject.TransactionStatusSucceeded, valueobject.TransactionStatusFailed); lost {
				outcome = OutcomeDuplicate
				return rerr
			}
			return err
		}
		return s.Audit().Append(ctx, entity.NewAuditEntry(nil, entity.AuditPaymentFailed, entity.AuditEntityTransaction, updated.ID.String(), common.JobRef(updated.JobID), map[string]any{
			"event":     evt.Event,
			"reference": evt.Reference,
		}))
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomeApplied {
		log.Info("оплата отклонена провайдером")
	}
	return outcome, nil
}

// appliedConcurrently перечитывает транзакцию после проигранного CAS.
// Блокировка заказа действует внутри одного процесса, поэтому то же событие
// мог применить другой экземпляр сервиса. Если транзакция уже в одном из
// done-статусов, событие считается дублем.
func appliedConcurrently(ctx context.Context, s repository.Store, reference string, casErr error, done ...valueobject.TransactionStatus) (bool, error) {
	if !apperror.IsConflict(casErr) {
		return false, casErr
	}
	current, err := s.Transactions().FindByReference(ctx, reference)
	if err != nil {
		return false, err
	}
	for _, status := range done {
		if current.Status == status {
			return true, nil
		}
	}
	return false, casErr
}
