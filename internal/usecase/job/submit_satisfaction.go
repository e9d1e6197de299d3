package job

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/repository"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/common"
)

// MaxReportPhotos: максимум фотографий в одном отчёте.
const MaxReportPhotos = 5

// PhotoStore сохраняет фотографии отчётов.
type PhotoStore interface {
	Save(ctx context.Context, jobID uuid.UUID, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}

type SubmitSatisfactionInput struct {
	Percentage int
	Comments   string
	Photos     []io.Reader
}

// reportableStatuses: статусы, в которых покупатель оценивает работу.
var reportableStatuses = map[valueobject.JobStatus]bool{
	valueobject.JobStatusFunded:           true,
	valueobject.JobStatusInProgress:       true,
	valueobject.JobStatusPartialCompleted: true,
	valueobject.JobStatusDisputed:         true,
}

type SubmitSatisfactionUseCase struct {
	store  repository.Store
	photos PhotoStore
}

func NewSubmitSatisfactionUseCase(store repository.Store, photos PhotoStore) *SubmitSatisfactionUseCase {
	return &SubmitSatisfactionUseCase{store: store, photos: photos}
}

func (uc *SubmitSatisfactionUseCase) Execute(ctx context.Context, actor entity.Actor, jobID uuid.UUID, input SubmitSatisfactionInput) (*entity.Job, error) {
	job, err := uc.store.Jobs().FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PartyOf(actor) != valueobject.PartyBuyer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "отчёт может оставить только покупатель заказа")
	}
	if !reportableStatuses[job.Status] {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "в текущем статусе заказа отчёт недоступен")
	}
	if len(input.Photos) > MaxReportPhotos {
		return nil, apperror.New(apperror.ErrCodeValidation, "не более 5 фотографий в отчёте")
	}

	// Проверяем поля до загрузки файлов.
	report, err := entity.NewSatisfactionReport(input.Percentage, input.Comments, nil)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(input.Photos))
	cleanup := func() {
		for _, u := range urls {
			if err := uc.photos.Delete(context.WithoutCancel(ctx), u); err != nil {
				logger.Job(jobID).WithError(err).Warn("не удалось удалить фото отчёта")
			}
		}
	}
	for _, photo := range input.Photos {
		url, err := uc.photos.Save(ctx, jobID, photo)
		if err != nil {
			cleanup()
			return nil, err
		}
		urls = append(urls, url)
	}
	report.Photos = urls

	var updated *entity.Job
	err = uc.store.Atomic(ctx, func(s repository.Store) error {
		var err error
		updated, err = s.Jobs().AppendSatisfactionReport(ctx, jobID, report)
		if err != nil {
			return err
		}
		return s.Audit().Append(ctx, entity.NewAuditEntry(&actor, entity.AuditSatisfactionSubmitted, entity.AuditEntityJob, jobID.String(), common.JobRef(jobID), map[string]any{
			"reportId":   report.ID,
			"percentage": report.Percentage,
			"photos":     len(urls),
		}))
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	return updated, nil
}
