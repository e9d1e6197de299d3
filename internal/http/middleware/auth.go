package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/response"
	"github.com/ignatzorin/servicehub-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextRoleKey   = "role"
)

// AuthMiddleware проверяет JWT access токен внешнего провайдера идентификации.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			return
		}

		actor, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			return
		}

		c.Set(ContextUserIDKey, actor.ID)
		c.Set(ContextRoleKey, actor.Role)
		c.Next()
	}
}

// CurrentActor возвращает пользователя, установленного AuthMiddleware.
func CurrentActor(c *gin.Context) (entity.Actor, bool) {
	id, ok := c.Get(ContextUserIDKey)
	if !ok {
		return entity.Actor{}, false
	}
	role, ok := c.Get(ContextRoleKey)
	if !ok {
		return entity.Actor{}, false
	}
	actor := entity.Actor{}
	if actor.ID, ok = id.(uuid.UUID); !ok {
		return entity.Actor{}, false
	}
	if actor.Role, ok = role.(valueobject.Role); !ok {
		return entity.Actor{}, false
	}
	return actor, true
}

// RequireRole пропускает только пользователей с одной из ролей.
func RequireRole(roles ...valueobject.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			response.Unauthorized(c, "требуется авторизация")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "недостаточно прав")
	}
}
