// Package event описывает доменные события, которые публикуются после
// фиксации изменений. Доставка best effort: ошибка публикации не
// откатывает уже зафиксированное состояние.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
)

const TypeJobStatusChanged = "job.status_changed"

type JobStatusChanged struct {
	JobID     uuid.UUID             `json:"jobId"`
	BuyerID   uuid.UUID             `json:"buyerId"`
	SellerID  uuid.UUID             `json:"sellerId"`
	From      valueobject.JobStatus `json:"from"`
	To        valueobject.JobStatus `json:"to"`
	ChangedAt time.Time             `json:"changedAt"`
}

// NewJobStatusChanged строит событие по уже обновлённому заказу.
func NewJobStatusChanged(job *entity.Job, from valueobject.JobStatus) JobStatusChanged {
	return JobStatusChanged{
		JobID:     job.ID,
		BuyerID:   job.BuyerID,
		SellerID:  job.SellerID,
		From:      from,
		To:        job.Status,
		ChangedAt: job.UpdatedAt,
	}
}

type Publisher interface {
	PublishJobStatusChanged(ctx context.Context, e JobStatusChanged)
}

// NopPublisher отбрасывает события.
type NopPublisher struct{}

func (NopPublisher) PublishJobStatusChanged(context.Context, JobStatusChanged) {}

// Recorder накапливает события, используется в тестах.
type Recorder struct {
	Events []JobStatusChanged
}

func (r *Recorder) PublishJobStatusChanged(_ context.Context, e JobStatusChanged) {
	r.Events = append(r.Events, e)
}
