package payment_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/event"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/gateway"
	"github.com/ignatzorin/servicehub-backend/internal/gateway/gatewaytest"
	"github.com/ignatzorin/servicehub-backend/internal/infrastructure/memory"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/syncutil"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/payment"
)

type fixture struct {
	store    *memory.Store
	gw       *gatewaytest.Stub
	locks    *syncutil.KeyedMutex
	recorder *event.Recorder
	buyer    entity.Actor
	job      *entity.Job
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewStore(),
		gw:       gatewaytest.New(),
		locks:    syncutil.NewKeyedMutex(0),
		recorder: &event.Recorder{},
		buyer:    entity.Actor{ID: uuid.New(), Role: valueobject.RoleBuyer},
	}
	f.store.PutParticipant(&entity.Participant{ID: f.buyer.ID, Name: "Ada", Email: "ada@example.com", Role: valueobject.RoleBuyer})

	job, err := entity.NewJob(f.buyer.ID, uuid.New(), "Уборка квартиры", "Генеральная уборка трёхкомнатной квартиры", decimal.NewFromInt(10000))
	require.NoError(t, err)
	require.NoError(t, f.store.Jobs().Create(context.Background(), job))
	f.job = job
	return f
}

func (f *fixture) reconciler() *payment.Reconciler {
	return payment.NewReconciler(f.store, f.locks, f.recorder)
}

func (f *fixture) pendingDeposit(t *testing.T, reference string) *entity.PaymentTransaction {
	t.Helper()
	tx := entity.NewPaymentTransaction(f.job.ID, valueobject.TransactionTypeDeposit, f.job.DepositAmount, "NGN", reference, valueobject.TransactionStatusPending, nil)
	stored, created, err := f.store.Transactions().CreateIfAbsent(context.Background(), tx)
	require.NoError(t, err)
	require.True(t, created)
	return stored
}

func (f *fixture) jobStatus(t *testing.T) valueobject.JobStatus {
	t.Helper()
	job, err := f.store.Jobs().FindByID(context.Background(), f.job.ID)
	require.NoError(t, err)
	return job.Status
}

func countAudit(entries []*entity.AuditEntry, action entity.AuditAction) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func TestInitializePayment_CreatesPendingDeposit(t *testing.T) {
	f := newFixture(t)
	uc := payment.NewInitializePaymentUseCase(f.store, f.gw, f.locks, "https://app.example/")

	res, err := uc.Execute(context.Background(), f.buyer, f.job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AuthorizationURL)
	assert.Equal(t, valueobject.TransactionStatusPending, res.Transaction.Status)
	assert.True(t, res.Transaction.Amount.Equal(decimal.NewFromInt(7000)))

	require.Len(t, f.gw.Charges, 1)
	charge := f.gw.Charges[0]
	assert.Equal(t, int64(700000), charge.AmountMinor)
	assert.Equal(t, "ada@example.com", charge.Email)
	assert.Equal(t, "https://app.example/payment/"+f.job.ID.String(), charge.CallbackURL)
	assert.Equal(t, f.job.ID.String(), charge.Metadata["jobId"])
	assert.Equal(t, valueobject.JobStatusProposed, f.jobStatus(t))
}

func TestInitializePayment_Preconditions(t *testing.T) {
	f := newFixture(t)
	uc := payment.NewInitializePaymentUseCase(f.store, f.gw, f.locks, "https://app.example")

	seller := entity.Actor{ID: f.job.SellerID, Role: valueobject.RoleSeller}
	_, err := uc.Execute(context.Background(), seller, f.job.ID)
	assert.True(t, apperror.IsForbidden(err))

	f.gw.InitializeErr = apperror.Gateway("provider down", map[string]any{"status": false}, nil)
	_, err = uc.Execute(context.Background(), f.buyer, f.job.ID)
	assert.True(t, apperror.IsGateway(err))
	assert.Empty(t, f.store.AllTransactions())

	_, err = f.store.Jobs().UpdateStatus(context.Background(), f.job.ID, valueobject.JobStatusProposed, valueobject.JobStatusCancelled)
	require.NoError(t, err)
	f.gw.InitializeErr = nil
	_, err = uc.Execute(context.Background(), f.buyer, f.job.ID)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestReconciler_DuplicateChargeSuccessIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.pendingDeposit(t, "dep_1")
	r := f.reconciler()
	evt := payment.WebhookEvent{Event: payment.EventChargeSuccess, Reference: "dep_1", Payload: json.RawMessage(`{"event":"charge.success"}`)}

	outcome, err := r.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeApplied, outcome)

	outcome, err = r.Handle(context.Background(), evt)
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeDuplicate, outcome)

	txs := f.store.AllTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, valueobject.TransactionStatusSucceeded, txs[0].Status)
	assert.JSONEq(t, `{"event":"charge.success"}`, string(txs[0].ProviderPayload))
	assert.Equal(t, valueobject.JobStatusFunded, f.jobStatus(t))

	require.Len(t, f.recorder.Events, 1)
	assert.Equal(t, valueobject.JobStatusFunded, f.recorder.Events[0].To)
	entries := f.store.AuditEntries()
	assert.Equal(t, 1, countAudit(entries, entity.AuditPaymentSucceeded))
	assert.Equal(t, 1, countAudit(entries, entity.AuditJobStatusChanged))
}

func TestReconciler_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	f.pendingDeposit(t, "dep_concurrent")
	r := f.reconciler()

	var wg sync.WaitGroup
	outcomes := make([]payment.Outcome, 8)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Handle(context.Background(), payment.WebhookEvent{Event: payment.EventChargeSuccess, Reference: "dep_concurrent"})
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, o := range outcomes {
		if o == payment.OutcomeApplied {
			applied++
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, countAudit(f.store.AuditEntries(), entity.AuditJobStatusChanged))
}

func TestReconciler_FailureLeavesJobUnchanged(t *testing.T) {
	f := newFixture(t)
	f.pendingDeposit(t, "dep_fail")
	r := f.reconciler()

	outcome, err := r.Handle(context.Background(), payment.WebhookEvent{Event: "charge.failed", Reference: "dep_fail"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeApplied, outcome)

	tx, err := f.store.Transactions().FindByReference(context.Background(), "dep_fail")
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusFailed, tx.Status)
	assert.Equal(t, valueobject.JobStatusProposed, f.jobStatus(t))

	outcome, err = r.Handle(context.Background(), payment.WebhookEvent{Event: "charge.failed", Reference: "dep_fail"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeDuplicate, outcome)
}

func TestReconciler_SuccessAfterFailureFundsJob(t *testing.T) {
	f := newFixture(t)
	f.pendingDeposit(t, "dep_late")
	r := f.reconciler()

	_, err := r.Handle(context.Background(), payment.WebhookEvent{Event: "charge.failed", Reference: "dep_late"})
	require.NoError(t, err)
	outcome, err := r.Handle(context.Background(), payment.WebhookEvent{Event: payment.EventChargeSuccess, Reference: "dep_late"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeApplied, outcome)
	assert.Equal(t, valueobject.JobStatusFunded, f.jobStatus(t))

	outcome, err = r.Handle(context.Background(), payment.WebhookEvent{Event: "charge.failed", Reference: "dep_late"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeDuplicate, outcome)
}

func TestReconciler_UnmatchedReferenceIsAudited(t *testing.T) {
	f := newFixture(t)
	r := f.reconciler()

	outcome, err := r.Handle(context.Background(), payment.WebhookEvent{Event: payment.EventChargeSuccess, Reference: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeUnmatched, outcome)
	assert.Equal(t, 1, countAudit(f.store.AuditEntries(), entity.AuditPaymentWebhookUnmatched))
	assert.Empty(t, f.store.AllTransactions())

	_, err = r.Handle(context.Background(), payment.WebhookEvent{Event: payment.EventChargeSuccess})
	assert.True(t, apperror.IsValidation(err))
}

func TestReconciler_NonChargeEventIgnored(t *testing.T) {
	f := newFixture(t)
	f.pendingDeposit(t, "dep_other")

	outcome, err := f.reconciler().Handle(context.Background(), payment.WebhookEvent{Event: "transfer.success", Reference: "dep_other"})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeIgnored, outcome)
	assert.Equal(t, valueobject.JobStatusProposed, f.jobStatus(t))
}

func TestVerifyPayment(t *testing.T) {
	f := newFixture(t)
	f.pendingDeposit(t, "dep_verify")
	uc := payment.NewVerifyPaymentUseCase(f.store, f.gw, f.reconciler())

	f.gw.VerifyStatus = gateway.ChargePending
	res, err := uc.Execute(context.Background(), f.buyer, "dep_verify")
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusPending, res.Transaction.Status)

	f.gw.VerifyStatus = gateway.ChargeSuccess
	res, err = uc.Execute(context.Background(), f.buyer, "dep_verify")
	require.NoError(t, err)
	assert.Equal(t, valueobject.TransactionStatusSucceeded, res.Transaction.Status)
	assert.Equal(t, valueobject.JobStatusFunded, res.Job.Status)

	_, err = uc.Execute(context.Background(), f.buyer, "dep_verify")
	require.NoError(t, err)
	assert.Len(t, f.gw.Verifies, 2, "успешная транзакция не проверяется повторно")

	stranger := entity.Actor{ID: uuid.New(), Role: valueobject.RoleBuyer}
	_, err = uc.Execute(context.Background(), stranger, "dep_verify")
	assert.True(t, apperror.IsForbidden(err))
}

// concurrentInstanceStore перед первым CAS транзакции применяет то же
// событие от имени другого экземпляра сервиса, как это увидел бы Postgres
// при READ COMMITTED.
type concurrentInstanceStore struct {
	repository.Store
	target valueobject.TransactionStatus
	fired  bool
}

func (s *concurrentInstanceStore) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	return s.Store.Atomic(ctx, func(inner repository.Store) error {
		return fn(&concurrentInstanceTx{Store: inner, owner: s})
	})
}

type concurrentInstanceTx struct {
	repository.Store
	owner *concurrentInstanceStore
}

func (s *concurrentInstanceTx) Transactions() repository.TransactionRepository {
	return concurrentInstanceTxRepo{TransactionRepository: s.Store.Transactions(), tx: s}
}

type concurrentInstanceTxRepo struct {
	repository.TransactionRepository
	tx *concurrentInstanceTx
}

func (r concurrentInstanceTxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to valueobject.TransactionStatus, payload json.RawMessage) (*entity.PaymentTransaction, error) {
	owner := r.tx.owner
	if !owner.fired {
		owner.fired = true
		current, err := r.TransactionRepository.UpdateStatus(ctx, id, from, owner.target, nil)
		if err != nil {
			return nil, err
		}
		if owner.target == valueobject.TransactionStatusSucceeded {
			if _, err := r.tx.Store.Jobs().UpdateStatus(ctx, current.JobID, valueobject.JobStatusProposed, valueobject.JobStatusFunded); err != nil {
				return nil, err
			}
		}
	}
	return r.TransactionRepository.UpdateStatus(ctx, id, from, to, payload)
}

func TestReconciler_ConcurrentInstanceAppliedFirst(t *testing.T) {
	tests := []struct {
		name   string
		event  string
		target valueobject.TransactionStatus
		job    valueobject.JobStatus
	}{
		{"charge.success", payment.EventChargeSuccess, valueobject.TransactionStatusSucceeded, valueobject.JobStatusFunded},
		{"charge.failed", payment.EventChargeFailed, valueobject.TransactionStatusFailed, valueobject.JobStatusProposed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.pendingDeposit(t, "dep_race")
			store := &concurrentInstanceStore{Store: f.store, target: tt.target}
			r := payment.NewReconciler(store, f.locks, f.recorder)

			outcome, err := r.Handle(context.Background(), payment.WebhookEvent{
				Event:     tt.event,
				Reference: "dep_race",
				Payload:   json.RawMessage(`{}`),
			})
			require.NoError(t, err)
			assert.True(t, store.fired)
			assert.Equal(t, payment.OutcomeDuplicate, outcome)

			tx, err := f.store.Transactions().FindByReference(context.Background(), "dep_race")
			require.NoError(t, err)
			assert.Equal(t, tt.target, tx.Status)
			assert.Equal(t, tt.job, f.jobStatus(t))
			assert.Zero(t, countAudit(f.store.AuditEntries(), entity.AuditPaymentSucceeded))
			assert.Zero(t, countAudit(f.store.AuditEntries(), entity.AuditPaymentFailed))
		})
	}
}

func TestInitializePayment_ReusesPendingCheckout(t *testing.T) {
	f := newFixture(t)
	uc := payment.NewInitializePaymentUseCase(f.store, f.gw, f.locks, "https://app.example")

	first, err := uc.Execute(context.Background(), f.buyer, f.job.ID)
	require.NoError(t, err)

	second, err := uc.Execute(context.Background(), f.buyer, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Reference, second.Reference)
	assert.Equal(t, first.AuthorizationURL, second.AuthorizationURL)
	assert.Len(t, f.gw.Charges, 1)
	assert.Len(t, f.store.AllTransactions(), 1)

	// После отказа провайдера покупатель начинает новую оплату.
	_, err = f.reconciler().Handle(context.Background(), payment.WebhookEvent{
		Event:     payment.EventChargeFailed,
		Reference: first.Reference,
		Payload:   json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	third, err := uc.Execute(context.Background(), f.buyer, f.job.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.Reference, third.Reference)
	assert.Len(t, f.gw.Charges, 2)
}

func TestInitializePayment_PendingWithoutCheckoutLink(t *testing.T) {
	f := newFixture(t)
	f.pendingDeposit(t, "dep_unknown")
	uc := payment.NewInitializePaymentUseCase(f.store, f.gw, f.locks, "https://app.example")

	_, err := uc.Execute(context.Background(), f.buyer, f.job.ID)
	assert.True(t, apperror.IsConflict(err))
	assert.Empty(t, f.gw.Charges)
}
