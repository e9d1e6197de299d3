package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/servicehub-backend/internal/http/middleware"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/dto"
	"github.com/ignatzorin/servicehub-backend/internal/interface/http/response"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/servicehub-backend/internal/usecase/payment"
)

// WebhookHandler принимает события провайдера. Подпись проверяет
// middleware.PaystackSignature до вызова обработчика.
type WebhookHandler struct {
	reconciler *payment.Reconciler
}

func NewWebhookHandler(reconciler *payment.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Paystack POST /api/webhooks/paystack
func (h *WebhookHandler) Paystack(c *gin.Context) {
	body, ok := c.Get(middleware.ContextRawBodyKey)
	raw, _ := body.([]byte)
	if !ok {
		var err error
		if raw, err = io.ReadAll(c.Request.Body); err != nil {
			response.BadRequest(c, "не удалось прочитать тело запроса")
			return
		}
	}

	var evt dto.PaystackEvent
	if err := json.Unmarshal(raw, &evt); err != nil || evt.Event == "" {
		response.BadRequest(c, "некорректное тело вебхука")
		return
	}

	outcome, err := h.reconciler.Handle(c.Request.Context(), payment.WebhookEvent{
		Event:     evt.Event,
		Reference: evt.Data.Reference,
		Payload:   json.RawMessage(raw),
	})
	if err != nil {
		// Провайдер повторит доставку при ответе не 2xx.
		if !apperror.IsValidation(err) {
			logger.Log.WithError(err).WithField("reference", evt.Data.Reference).Error("не удалось обработать вебхук")
		}
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": outcome})
}
