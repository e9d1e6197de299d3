package job_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/event"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/infrastructure/memory"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/syncutil"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/job"
)

type fixture struct {
	store  *memory.Store
	buyer  entity.Actor
	seller entity.Actor
	admin  entity.Actor
}

func newFixture() *fixture {
	f := &fixture{
		store:  memory.NewStore(),
		buyer:  entity.Actor{ID: uuid.New(), Role: valueobject.RoleBuyer},
		seller: entity.Actor{ID: uuid.New(), Role: valueobject.RoleSeller},
		admin:  entity.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin},
	}
	f.store.PutParticipant(&entity.Participant{ID: f.buyer.ID, Name: "Ada", Email: "ada@example.com", Role: valueobject.RoleBuyer})
	f.store.PutParticipant(&entity.Participant{ID: f.seller.ID, Name: "Tunde", Email: "tunde@example.com", Role: valueobject.RoleSeller})
	return f
}

func (f *fixture) createJob(t *testing.T) *entity.Job {
	t.Helper()
	created, err := job.NewCreateJobUseCase(f.store).Execute(context.Background(), f.buyer, job.CreateJobInput{
		SellerID:     f.seller.ID,
		Title:        "Покраска забора",
		Description:  "Покрасить забор длиной двадцать метров в два слоя",
		AgreedAmount: decimal.NewFromInt(10000),
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) setStatus(t *testing.T, j *entity.Job, to valueobject.JobStatus) {
	t.Helper()
	_, err := f.store.Jobs().UpdateStatus(context.Background(), j.ID, j.Status, to)
	require.NoError(t, err)
	j.Status = to
}

func TestCreateJob_ComputesLedgerAndAudits(t *testing.T) {
	f := newFixture()
	created := f.createJob(t)

	assert.Equal(t, valueobject.JobStatusProposed, created.Status)
	assert.True(t, created.DepositAmount.Equal(decimal.NewFromInt(7000)))
	assert.True(t, created.PlatformCommission.Equal(decimal.NewFromInt(1000)))

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, entity.AuditJobCreated, entries[0].Action)
}

func TestCreateJob_RejectsNonBuyerAndUnknownSeller(t *testing.T) {
	f := newFixture()
	uc := job.NewCreateJobUseCase(f.store)
	input := job.CreateJobInput{
		SellerID:     f.seller.ID,
		Title:        "Покраска забора",
		Description:  "Покрасить забор длиной двадцать метров в два слоя",
		AgreedAmount: decimal.NewFromInt(100),
	}

	_, err := uc.Execute(context.Background(), f.seller, input)
	assert.True(t, apperror.IsForbidden(err))

	input.SellerID = uuid.New()
	_, err = uc.Execute(context.Background(), f.buyer, input)
	assert.True(t, apperror.IsNotFound(err))

	input.SellerID = f.buyer.ID
	_, err = uc.Execute(context.Background(), f.buyer, input)
	assert.True(t, apperror.IsValidation(err))
}

func TestTransitionJob_Permissions(t *testing.T) {
	f := newFixture()
	created := f.createJob(t)
	recorder := &event.Recorder{}
	uc := job.NewTransitionJobUseCase(f.store, syncutil.NewKeyedMutex(0), recorder)
	ctx := context.Background()

	t.Run("funded only by payment confirmation", func(t *testing.T) {
		_, err := uc.Execute(ctx, f.buyer, created.ID, valueobject.JobStatusFunded)
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("undefined pair is invalid state", func(t *testing.T) {
		_, err := uc.Execute(ctx, f.buyer, created.ID, valueobject.JobStatusCompleted)
		require.True(t, apperror.IsInvalidState(err))
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, valueobject.TransitionDetails{From: valueobject.JobStatusProposed, To: valueobject.JobStatusCompleted}, appErr.Details)
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		outsider := entity.Actor{ID: uuid.New(), Role: valueobject.RoleSeller}
		_, err := uc.Execute(ctx, outsider, created.ID, valueobject.JobStatusCancelled)
		assert.True(t, apperror.IsForbidden(err))
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := uc.Execute(ctx, f.buyer, uuid.New(), valueobject.JobStatusCancelled)
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("seller starts funded job", func(t *testing.T) {
		f.setStatus(t, created, valueobject.JobStatusFunded)
		updated, err := uc.Execute(ctx, f.seller, created.ID, valueobject.JobStatusInProgress)
		require.NoError(t, err)
		assert.Equal(t, valueobject.JobStatusInProgress, updated.Status)
		require.Len(t, recorder.Events, 1)
		assert.Equal(t, valueobject.JobStatusFunded, recorder.Events[0].From)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		updated, err := uc.Execute(ctx, f.seller, created.ID, valueobject.JobStatusInProgress)
		require.NoError(t, err)
		assert.Equal(t, valueobject.JobStatusInProgress, updated.Status)
		assert.Len(t, recorder.Events, 1)
	})

	t.Run("disputed cannot be resolved here", func(t *testing.T) {
		_, err := uc.Execute(ctx, f.buyer, created.ID, valueobject.JobStatusDisputed)
		require.NoError(t, err)
		_, err = uc.Execute(ctx, f.admin, created.ID, valueobject.JobStatusCompleted)
		assert.True(t, apperror.IsInvalidState(err))
	})
}

func TestGetJob_Visibility(t *testing.T) {
	f := newFixture()
	created := f.createJob(t)
	uc := job.NewGetJobUseCase(f.store)

	view, err := uc.Execute(context.Background(), f.admin, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, view.Job.ID)
	assert.Empty(t, view.Transactions)

	_, err = uc.Execute(context.Background(), entity.Actor{ID: uuid.New(), Role: valueobject.RoleBuyer}, created.ID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestListJobs_ScopedByRole(t *testing.T) {
	f := newFixture()
	f.createJob(t)
	f.createJob(t)
	uc := job.NewListJobsUseCase(f.store.Jobs())
	ctx := context.Background()

	jobs, total, err := uc.Execute(ctx, f.seller, job.ListJobsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, jobs, 2)

	stranger := entity.Actor{ID: uuid.New(), Role: valueobject.RoleBuyer}
	jobs, total, err = uc.Execute(ctx, stranger, job.ListJobsInput{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, jobs)

	_, total, err = uc.Execute(ctx, f.admin, job.ListJobsInput{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

type fakePhotos struct {
	saved   []string
	deleted []string
	failAt  int
}

func (p *fakePhotos) Save(_ context.Context, jobID uuid.UUID, r io.Reader) (string, error) {
	if p.failAt > 0 && len(p.saved)+1 == p.failAt {
		return "", apperror.New(apperror.ErrCodeValidation, "допустимы только JPEG и PNG")
	}
	url := "/media/" + jobID.String() + "/" + uuid.NewString() + ".png"
	p.saved = append(p.saved, url)
	return url, nil
}

func (p *fakePhotos) Delete(_ context.Context, url string) error {
	p.deleted = append(p.deleted, url)
	return nil
}

func TestSubmitSatisfaction(t *testing.T) {
	f := newFixture()
	created := f.createJob(t)
	photos := &fakePhotos{}
	uc := job.NewSubmitSatisfactionUseCase(f.store, photos)
	ctx := context.Background()
	input := job.SubmitSatisfactionInput{
		Percentage: 60,
		Comments:   "  Хорошо, но не доделан угол  ",
		Photos:     []io.Reader{bytes.NewReader([]byte("a")), bytes.NewReader([]byte("b"))},
	}

	_, err := uc.Execute(ctx, f.buyer, created.ID, input)
	assert.True(t, apperror.IsInvalidState(err), "отчёт до оплаты недоступен")

	f.setStatus(t, created, valueobject.JobStatusFunded)

	_, err = uc.Execute(ctx, f.seller, created.ID, input)
	assert.True(t, apperror.IsForbidden(err))

	updated, err := uc.Execute(ctx, f.buyer, created.ID, input)
	require.NoError(t, err)
	report := updated.LastReport()
	require.NotNil(t, report)
	assert.Equal(t, 60, report.Percentage)
	assert.Equal(t, "Хорошо, но не доделан угол", report.Comments)
	assert.Len(t, report.Photos, 2)
}

func TestSubmitSatisfaction_CleansUpOnUploadFailure(t *testing.T) {
	f := newFixture()
	created := f.createJob(t)
	f.setStatus(t, created, valueobject.JobStatusInProgress)
	photos := &fakePhotos{failAt: 2}
	uc := job.NewSubmitSatisfactionUseCase(f.store, photos)

	_, err := uc.Execute(context.Background(), f.buyer, created.ID, job.SubmitSatisfactionInput{
		Percentage: 80,
		Photos:     []io.Reader{bytes.NewReader(nil), bytes.NewReader(nil)},
	})
	require.True(t, apperror.IsValidation(err))
	assert.Equal(t, photos.saved, photos.deleted)

	stored, err := f.store.Jobs().FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SatisfactionReports)
}

func TestSubmitSatisfaction_Validation(t *testing.T) {
	f := newFixture()
	created := f.createJob(t)
	f.setStatus(t, created, valueobject.JobStatusFunded)
	uc := job.NewSubmitSatisfactionUseCase(f.store, &fakePhotos{})

	_, err := uc.Execute(context.Background(), f.buyer, created.ID, job.SubmitSatisfactionInput{Percentage: 101})
	assert.True(t, apperror.IsValidation(err))

	tooMany := make([]io.Reader, job.MaxReportPhotos+1)
	_, err = uc.Execute(context.Background(), f.buyer, created.ID, job.SubmitSatisfactionInput{Percentage: 50, Photos: tooMany})
	assert.True(t, apperror.IsValidation(err))
}

func TestListAudit_AdminOnly(t *testing.T) {
	f := newFixture()
	created := f.createJob(t)
	uc := job.NewListAuditUseCase(f.store)

	_, err := uc.Execute(context.Background(), f.buyer, created.ID)
	assert.True(t, apperror.IsForbidden(err))

	entries, err := uc.Execute(context.Background(), f.admin, created.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.AuditJobCreated, entries[0].Action)
}
