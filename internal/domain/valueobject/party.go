package valueobject

import "github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"

// Role: роль пользователя, выданная внешним провайдером идентификации.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

func NewRole(role string) (Role, error) {
	r := Role(role)
	if !r.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректная роль пользователя")
	}
	return r, nil
}

// Party: сторона, от имени которой выполняется переход по конкретному заказу.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
	PartyAdmin  Party = "admin"
	// PartySystem: подтверждение от платёжного провайдера.
	PartySystem Party = "system"
	// PartyNone: пользователь не участвует в заказе и не администратор.
	PartyNone Party = ""
)
