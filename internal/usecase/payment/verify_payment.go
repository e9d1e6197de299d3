package payment

import (
	"context"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/gateway"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

type VerifyResult struct {
	Status      gateway.ChargeStatus
	Transaction *entity.PaymentTransaction
	Job         *entity.Job
}

// VerifyPaymentUseCase запрашивает статус платежа у провайдера и
// проводит результат через Reconciler, как если бы пришёл вебхук.
type VerifyPaymentUseCase struct {
	store      repository.Store
	gateway    gateway.PaymentGateway
	reconciler *Reconciler
}

func NewVerifyPaymentUseCase(store repository.Store, gw gateway.PaymentGateway, reconciler *Reconciler) *VerifyPaymentUseCase {
	return &VerifyPaymentUseCase{store: store, gateway: gw, reconciler: reconciler}
}

func (uc *VerifyPaymentUseCase) Execute(ctx context.Context, actor entity.Actor, reference string) (*VerifyResult, error) {
	tx, err := uc.store.Transactions().FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	job, err := uc.store.Jobs().FindByID(ctx, tx.JobID)
	if err != nil {
		return nil, err
	}
	if !job.CanView(actor) {
		return nil, apperror.ErrForbidden
	}
	if tx.Type != valueobject.TransactionTypeDeposit {
		return nil, apperror.New(apperror.ErrCodeValidation, "проверить можно только оплату депозита")
	}

	if tx.Status == valueobject.TransactionStatusSucceeded {
		return &VerifyResult{Status: gateway.ChargeSuccess, Transaction: tx, Job: job}, nil
	}

	verification, err := uc.gateway.VerifyCharge(ctx, reference)
	if err != nil {
		return nil, err
	}

	var name string
	switch verification.Status {
	case gateway.ChargeSuccess:
		name = EventChargeSuccess
	case gateway.ChargeFailed:
		name = EventChargeFailed
	}
	if name != "" {
		if _, err := uc.reconciler.Handle(ctx, WebhookEvent{Event: name, Reference: reference, Payload: verification.Raw}); err != nil {
			return nil, err
		}
	}

	if tx, err = uc.store.Transactions().FindByReference(ctx, reference); err != nil {
		return nil, err
	}
	if job, err = uc.store.Jobs().FindByID(ctx, tx.JobID); err != nil {
		return nil, err
	}
	return &VerifyResult{Status: verification.Status, Transaction: tx, Job: job}, nil
}
