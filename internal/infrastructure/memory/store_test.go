package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/infrastructure/memory"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

func newJob(t *testing.T) *entity.Job {
	t.Helper()
	job, err := entity.NewJob(uuid.New(), uuid.New(), "Ремонт крана", "Заменить смеситель на кухне и проверить трубы", decimal.NewFromInt(500))
	require.NoError(t, err)
	return job
}

func TestStore_AtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	job := newJob(t)
	require.NoError(t, store.Jobs().Create(ctx, job))

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(s repository.Store) error {
		if _, err := s.Jobs().UpdateStatus(ctx, job.ID, valueobject.JobStatusProposed, valueobject.JobStatusFunded); err != nil {
			return err
		}
		tx := entity.NewPaymentTransaction(job.ID, valueobject.TransactionTypeDeposit, job.DepositAmount, "NGN", "ref-1", valueobject.TransactionStatusSucceeded, nil)
		if _, _, err := s.Transactions().CreateIfAbsent(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := store.Jobs().FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusProposed, stored.Status)

	_, err = store.Transactions().FindByReference(ctx, "ref-1")
	assert.True(t, apperror.IsNotFound(err))
}

func TestStore_CreateIfAbsentReturnsExisting(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	jobID := uuid.New()

	first := entity.NewPaymentTransaction(jobID, valueobject.TransactionTypeDeposit, decimal.NewFromInt(70), "NGN", "ref", valueobject.TransactionStatusPending, nil)
	stored, created, err := store.Transactions().CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, stored.ID)

	second := entity.NewPaymentTransaction(jobID, valueobject.TransactionTypeDeposit, decimal.NewFromInt(99), "NGN", "ref", valueobject.TransactionStatusSucceeded, nil)
	stored, created, err = store.Transactions().CreateIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, valueobject.TransactionStatusPending, stored.Status)
	assert.Len(t, store.AllTransactions(), 1)
}

func TestStore_UpdateStatusIsCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	job := newJob(t)
	require.NoError(t, store.Jobs().Create(ctx, job))

	_, err := store.Jobs().UpdateStatus(ctx, job.ID, valueobject.JobStatusFunded, valueobject.JobStatusInProgress)
	assert.True(t, apperror.IsConflict(err))

	updated, err := store.Jobs().UpdateStatus(ctx, job.ID, valueobject.JobStatusProposed, valueobject.JobStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, valueobject.JobStatusCancelled, updated.Status)
}
