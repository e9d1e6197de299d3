package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/interface/http/response"
)

const contextParamPrefix = "param:"

// UUIDValidator отклоняет запрос, если path-параметр не UUID, и кладёт
// разобранное значение в контекст.
// Использование: router.GET("/jobs/:id", UUIDValidator("id"), handler.GetJob)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(paramName)
		if raw == "" {
			response.BadRequest(c, "параметр "+paramName+" обязателен")
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "параметр "+paramName+" должен быть валидным UUID")
			return
		}

		c.Set(contextParamPrefix+paramName, id)
		c.Next()
	}
}

// ParamUUID возвращает значение, проверенное UUIDValidator.
func ParamUUID(c *gin.Context, paramName string) (uuid.UUID, bool) {
	v, ok := c.Get(contextParamPrefix + paramName)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
