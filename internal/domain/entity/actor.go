package entity

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
)

// Actor: аутентифицированный пользователь, от имени которого выполняется операция.
type Actor struct {
	ID   uuid.UUID
	Role valueobject.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == valueobject.RoleAdmin
}
