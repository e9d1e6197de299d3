// Package settlement проводит завершающие денежные операции по заказу:
// урегулирование спора и выпуск эскроу продавцу. Оба сценария делят
// расчёт выплаты и фиксацию результата.
package settlement

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/event"
	"github.com/ignatzorin/servicehub-backend/internal/domain/ledger"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/gateway"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/syncutil"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
)

// SettlementResult: обновлённый заказ и созданная денежная транзакция.
type SettlementResult struct {
	Job         *entity.Job
	Transaction *entity.PaymentTransaction
}

func payoutReference(job *entity.Job) string { return "payout_" + job.ID.String() }
func refundReference(job *entity.Job) string { return "refund_" + job.ID.String() }

// settler выполняет вызов провайдера и локальную фиксацию. Вызывающий
// держит блокировку заказа на всё время операции.
type settler struct {
	store     repository.Store
	gateway   gateway.PaymentGateway
	locks     *syncutil.KeyedMutex
	publisher event.Publisher
}

// ensureNotSettled отклоняет повторное урегулирование до обращения к провайдеру.
func (s *settler) ensureNotSettled(ctx context.Context, job *entity.Job) error {
	settled, err := s.store.Transactions().HasSettlement(ctx, job.ID)
	if err != nil {
		return err
	}
	if settled {
		return apperror.ErrAlreadySettled
	}
	return nil
}

// release переводит продавцу выплату за вычетом комиссии и закрывает заказ.
func (s *settler) release(ctx context.Context, actor entity.Actor, job *entity.Job, action entity.AuditAction, details map[string]any) (*SettlementResult, error) {
	if err := valueobject.CheckForcedTransition(job.Status, valueobject.JobStatusCompleted); err != nil {
		return nil, err
	}
	if err := s.ensureNotSettled(ctx, job); err != nil {
		return nil, err
	}

	seller, err := s.store.Participants().FindByID(ctx, job.SellerID)
	if err != nil {
		return nil, err
	}
	if !seller.HasPayoutAccount() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "у продавца не указаны банковские реквизиты для выплаты")
	}

	amount := job.PayoutAmount()
	reference := payoutReference(job)

	recipient, err := s.gateway.CreatePayoutRecipient(ctx, gateway.RecipientRequest{
		Name:          seller.PayoutName(),
		AccountNumber: seller.Payout.AccountNumber,
		BankCode:      seller.Payout.BankCode,
		Currency:      job.Currency,
	})
	if err != nil {
		return nil, err
	}
	transfer, err := s.gateway.InitiateTransfer(ctx, gateway.TransferRequest{
		RecipientCode: recipient.Code,
		AmountMinor:   ledger.MinorUnits(amount),
		Reason:        "Service Hub payout for job " + job.ID.String(),
		Reference:     reference,
	})
	if err != nil {
		return nil, err
	}

	tx := entity.NewPaymentTransaction(job.ID, valueobject.TransactionTypePayout, amount, job.Currency,
		reference, valueobject.TransactionStatusSucceeded, transfer.Raw)

	details["amount"] = amount.StringFixed(2)
	details["recipientCode"] = recipient.Code
	details["transferCode"] = transfer.TransferCode
	return s.commit(ctx, actor, job, valueobject.JobStatusCompleted, tx, action, details)
}

// refund возвращает покупателю долю успешного депозита и отменяет заказ.
func (s *settler) refund(ctx context.Context, actor entity.Actor, job *entity.Job, percent int, details map[string]any) (*SettlementResult, error) {
	if err := valueobject.CheckForcedTransition(job.Status, valueobject.JobStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.ensureNotSettled(ctx, job); err != nil {
		return nil, err
	}

	deposit, err := s.store.Transactions().LatestSucceededDeposit(ctx, job.ID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "по заказу нет успешного депозита")
		}
		return nil, err
	}

	amount, err := ledger.RefundShare(deposit.Amount, percent)
	if err != nil {
		return nil, err
	}

	refund, err := s.gateway.Refund(ctx, gateway.RefundRequest{
		SourceReference: deposit.ProviderReference,
		AmountMinor:     ledger.MinorUnits(amount),
	})
	if err != nil {
		return nil, err
	}

	tx := entity.NewPaymentTransaction(job.ID, valueobject.TransactionTypeRefund, amount, job.Currency,
		refundReference(job), valueobject.TransactionStatusRefunded, refund.Raw)

	details["amount"] = amount.StringFixed(2)
	details["percent"] = percent
	details["depositReference"] = deposit.ProviderReference
	details["providerRefund"] = refund.Reference
	return s.commit(ctx, actor, job, valueobject.JobStatusCancelled, tx, entity.AuditDisputeResolved, details)
}

// commit записывает транзакцию, переход заказа и аудит одним блоком.
func (s *settler) commit(
	ctx context.Context,
	actor entity.Actor,
	job *entity.Job,
	to valueobject.JobStatus,
	tx *entity.PaymentTransaction,
	action entity.AuditAction,
	details map[string]any,
) (*SettlementResult, error) {
	from := job.Status
	var result SettlementResult

	// Провайдер уже провёл деньги: фиксацию не прерываем отменой запроса.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	err := s.store.Atomic(commitCtx, func(st repository.Store) error {
		settled, err := st.Transactions().HasSettlement(commitCtx, job.ID)
		if err != nil {
			return err
		}
		if settled {
			return apperror.ErrAlreadySettled
		}

		stored, created, err := st.Transactions().CreateIfAbsent(commitCtx, tx)
		if err != nil {
			return err
		}
		if !created {
			return apperror.ErrAlreadySettled
		}

		updated, err := st.Jobs().UpdateStatus(commitCtx, job.ID, from, to)
		if err != nil {
			return err
		}

		if err := st.Audit().Append(commitCtx, entity.NewAuditEntry(&actor, entity.AuditJobStatusChanged, entity.AuditEntityJob, job.ID.String(), common.JobRef(job.ID),
			common.StatusDetails(from, to, map[string]any{"party": valueobject.PartyAdmin}))); err != nil {
			return err
		}
		details["transactionId"] = stored.ID
		details["reference"] = stored.ProviderReference
		if err := st.Audit().Append(commitCtx, entity.NewAuditEntry(&actor, action, entity.AuditEntityJob, job.ID.String(), common.JobRef(job.ID), details)); err != nil {
			return err
		}

		result = SettlementResult{Job: updated, Transaction: stored}
		return nil
	})
	if err != nil {
		logger.Job(job.ID).WithError(err).WithFields(logrus.Fields{
			"reference": tx.ProviderReference,
			"type":      tx.Type,
			"amount":    tx.Amount.StringFixed(2),
		}).Error("провайдер провёл операцию, но локальная фиксация не удалась: требуется ручная сверка")
		return nil, err
	}

	common.StatusChanged(ctx, s.publisher, result.Job, from)
	return &result, nil
}
