package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

const testWebhookSecret = "sk_test_secret"

func newSignedRouter(secret string, called *bool, seen *[]byte) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", PaystackSignature(secret), func(c *gin.Context) {
		*called = true
		raw, _ := c.Get(ContextRawBodyKey)
		*seen, _ = raw.([]byte)
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	})
	return r
}

func TestPaystackSignature_Valid(t *testing.T) {
	var called bool
	var seen []byte
	r := newSignedRouter(testWebhookSecret, &called, &seen)

	body := []byte(`{"event":"charge.success","data":{"reference":"ref"}}`)
	req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set(PaystackSignatureHeader, SignPaystackBody(testWebhookSecret, body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
	assert.Equal(t, body, seen)
	assert.Equal(t, string(body), w.Body.String())
}

func TestPaystackSignature_Rejected(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)

	tests := []struct {
		name      string
		secret    string
		signature string
		want      int
	}{
		{"нет подписи", testWebhookSecret, "", http.StatusUnauthorized},
		{"чужой секрет", testWebhookSecret, SignPaystackBody("other", body), http.StatusUnauthorized},
		{"не hex", testWebhookSecret, "zzzz", http.StatusUnauthorized},
		{"секрет не настроен", "", SignPaystackBody(testWebhookSecret, body), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			var seen []byte
			r := newSignedRouter(tt.secret, &called, &seen)

			req, _ := http.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
			if tt.signature != "" {
				req.Header.Set(PaystackSignatureHeader, tt.signature)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			assert.False(t, called)
		})
	}
}

func TestValidPaystackSignature_TamperedBody(t *testing.T) {
	body := []byte(`{"amount":700000}`)
	sig := SignPaystackBody(testWebhookSecret, body)

	assert.True(t, ValidPaystackSignature(testWebhookSecret, body, sig))
	assert.False(t, ValidPaystackSignature(testWebhookSecret, []byte(`{"amount":700001}`), sig))
}
