// Package common содержит вспомогательные функции, общие для сценариев
// работы с заказами.
package common

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/event"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/metrics"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/syncutil"
)

// LockJob сериализует операции над заказом внутри процесса.
func LockJob(ctx context.Context, locks *syncutil.KeyedMutex, jobID uuid.UUID) (func(), error) {
	unlock, err := locks.Lock(ctx, jobID.String())
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeConflict, "заказ обрабатывается другим запросом, повторите позже")
	}
	return unlock, nil
}

// StatusChanged фиксирует метрику и публикует событие после коммита.
func StatusChanged(ctx context.Context, publisher event.Publisher, job *entity.Job, from valueobject.JobStatus) {
	if from == job.Status {
		return
	}
	metrics.JobTransitions.WithLabelValues(string(from), string(job.Status)).Inc()
	logger.Job(job.ID).WithFields(logrus.Fields{
		"from": from,
		"to":   job.Status,
	}).Info("статус заказа изменён")
	if publisher != nil {
		publisher.PublishJobStatusChanged(ctx, event.NewJobStatusChanged(job, from))
	}
}

// StatusDetails собирает детали аудита для смены статуса.
func StatusDetails(from, to valueobject.JobStatus, extra map[string]any) map[string]any {
	details := map[string]any{"from": from, "to": to}
	for k, v := range extra {
		details[k] = v
	}
	return details
}

// JobRef возвращает указатель на id заказа для записи аудита.
func JobRef(id uuid.UUID) *uuid.UUID {
	return &id
}

// Pagination нормализует limit/offset.
func Pagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
