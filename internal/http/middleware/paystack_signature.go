package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/servicehub-backend/internal/interface/http/response"
	"github.com/ignatzorin/servicehub-backend/internal/logger"
	"github.com/ignatzorin/servicehub-backend/internal/pkg/apperror"
)

const (
	PaystackSignatureHeader = "x-paystack-signature"
	// ContextRawBodyKey: тело запроса, по которому проверена подпись.
	ContextRawBodyKey = "rawBody"

	maxWebhookBody = 1 << 20
)

// PaystackSignature проверяет HMAC-SHA512 подпись сырого тела вебхука.
// Запрос без подписи или с неверной подписью отклоняется до обработчика.
func PaystackSignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.Error(c, apperror.New(apperror.ErrCodeConfig, "секрет вебхука платёжного провайдера не настроен"))
			return
		}

		signature := strings.TrimSpace(c.GetHeader(PaystackSignatureHeader))
		if signature == "" {
			response.Unauthorized(c, "отсутствует подпись вебхука")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			response.BadRequest(c, "не удалось прочитать тело запроса")
			return
		}

		if !ValidPaystackSignature(secret, body, signature) {
			logger.Log.WithField("ip", c.ClientIP()).Warn("вебхук с неверной подписью отклонён")
			response.Unauthorized(c, "неверная подпись вебхука")
			return
		}

		c.Set(ContextRawBodyKey, body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// ValidPaystackSignature сравнивает подпись за постоянное время.
func ValidPaystackSignature(secret string, body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// SignPaystackBody вычисляет подпись тела.
func SignPaystackBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
