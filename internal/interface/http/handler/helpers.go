package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/http/middleware"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/response"
)

// currentActor достаёт пользователя из контекста или отвечает 401.
func currentActor(c *gin.Context) (entity.Actor, bool) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		response.Unauthorized(c, "требуется авторизация")
		return entity.Actor{}, false
	}
	return actor, true
}

// jobIDParam берёт :id, уже проверенный UUIDValidator, или разбирает его сам.
func jobIDParam(c *gin.Context) (uuid.UUID, bool) {
	if id, ok := middleware.ParamUUID(c, "id"); ok {
		return id, true
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "некорректный ID заказа")
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
