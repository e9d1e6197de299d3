package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
)

// ParticipantRepository читает проекцию профилей пользователей.
type ParticipantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Participant, error)
}
