package payment

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/ledger"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/gateway"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/syncutil"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
)

type InitializeResult struct {
	AuthorizationURL string
	Reference        string
	Transaction      *entity.PaymentTransaction
}

// InitializePaymentUseCase открывает оплату депозита у провайдера и
// записывает pending-транзакцию. Заказ переходит в funded только после
// подтверждения провайдером.
type InitializePaymentUseCase struct {
	store       repository.Store
	gateway     gateway.PaymentGateway
	locks       *syncutil.KeyedMutex
	callbackURL string
}

// NewInitializePaymentUseCase создаёт сценарий. frontendURL задаёт базу для адреса возврата после оплаты.
func NewInitializePaymentUseCase(store repository.Store, gw gateway.PaymentGateway, locks *syncutil.KeyedMutex, frontendURL string) *InitializePaymentUseCase {
	return &InitializePaymentUseCase{
		store:       store,
		gateway:     gw,
		locks:       locks,
		callbackURL: strings.TrimRight(frontendURL, "/") + "/payment/",
	}
}

func (uc *InitializePaymentUseCase) Execute(ctx context.Context, actor entity.Actor, jobID uuid.UUID) (*InitializeResult, error) {
	unlock, err := common.LockJob(ctx, uc.locks, jobID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	job, err := uc.store.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PartyOf(actor) != valueobject.PartyBuyer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "оплатить заказ может только покупатель")
	}
	if job.Status != valueobject.JobStatusProposed {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "оплата доступна только для заказа в статусе proposed")
	}

	if pending, url, err := uc.pendingCheckout(ctx, job.ID); err != nil {
		return nil, err
	} else if pending != nil {
		logger.Job(job.ID).WithField("reference", pending.ProviderReference).Info("оплата уже начата, возвращаем ту же ссылку")
		return &InitializeResult{
			AuthorizationURL: url,
			Reference:        pending.ProviderReference,
			Transaction:      pending,
		}, nil
	}

	buyer, err := uc.store.Participants().FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(buyer.Email) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "у покупателя не указан email")
	}

	reference := uuid.NewString()
	charge, err := uc.gateway.InitializeCharge(ctx, gateway.ChargeRequest{
		Email:       buyer.Email,
		AmountMinor: ledger.MinorUnits(job.DepositAmount),
		Currency:    job.Currency,
		CallbackURL: uc.callbackURL + job.ID.String(),
		Reference:   reference,
		Metadata: map[string]any{
			"jobId":    job.ID.String(),
			"buyerId":  job.BuyerID.String(),
			"sellerId": job.SellerID.String(),
			"type":     string(valueobject.TransactionTypeDeposit),
		},
	})
	if err != nil {
		return nil, err
	}
	if charge.Reference != "" {
		reference = charge.Reference
	}

	tx := entity.NewPaymentTransaction(job.ID, valueobject.TransactionTypeDeposit, job.DepositAmount, job.Currency,
		reference, valueobject.TransactionStatusPending, charge.Raw)

	var stored *entity.PaymentTransaction
	err = uc.store.Atomic(ctx, func(s repository.Store) error {
		var err error
		stored, _, err = s.Transactions().CreateIfAbsent(ctx, tx)
		if err != nil {
			return err
		}
		return s.Audit().Append(ctx, entity.NewAuditEntry(&actor, entity.AuditPaymentInitialize, entity.AuditEntityTransaction, stored.ID.String(), common.JobRef(job.ID), map[string]any{
			"reference": reference,
			"amount":    job.DepositAmount.StringFixed(2),
		}))
	})
	if err != nil {
		return nil, err
	}

	logger.Job(job.ID).WithFields(logrus.Fields{
		"reference": reference,
		"amount":    job.DepositAmount.StringFixed(2),
	}).Info("оплата депозита инициализирована")

	return &InitializeResult{
		AuthorizationURL: charge.AuthorizationURL,
		Reference:        reference,
		Transaction:      stored,
	}, nil
}

// pendingCheckout ищет незавершённую оплату депозита. Повторная
// инициализация возвращает ту же ссылку, иначе покупатель мог бы оплатить
// заказ дважды.
func (uc *InitializePaymentUseCase) pendingCheckout(ctx context.Context, jobID uuid.UUID) (*entity.PaymentTransaction, string, error) {
	txs, err := uc.store.Transactions().ListByJob(ctx, jobID)
	if err != nil {
		return nil, "", err
	}

	var pending *entity.PaymentTransaction
	for _, tx := range txs {
		if tx.Type != valueobject.TransactionTypeDeposit || tx.Status != valueobject.TransactionStatusPending {
			continue
		}
		if pending == nil || tx.CreatedAt.After(pending.CreatedAt) {
			pending = tx
		}
	}
	if pending == nil {
		return nil, "", nil
	}

	var checkout struct {
		AuthorizationURL string `json:"authorization_url"`
	}
	if err := json.Unmarshal(pending.ProviderPayload, &checkout); err != nil || checkout.AuthorizationURL == "" {
		return nil, "", apperror.New(apperror.ErrCodeConflict, "оплата по заказу уже начата, дождитесь подтверждения провайдера").
			WithDetails(map[string]any{"reference": pending.ProviderReference})
	}
	return pending, checkout.AuthorizationURL, nil
}
