package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/servicehub-backend/internal/domain/entity"
	"github.com/ignatzorin/servicehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/servicehub-backend/internal/service"
)

func newAuthRouter(tokens *service.TokenManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(tokens), func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, actor.ID.String())
	})
	r.GET("/admin", AuthMiddleware(tokens), RequireRole(valueobject.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doGet(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tokens := service.NewTokenManager("test-secret")
	r := newAuthRouter(tokens)

	buyer := entity.Actor{ID: uuid.New(), Role: valueobject.RoleBuyer}
	token, err := tokens.IssueAccess(buyer, time.Hour)
	require.NoError(t, err)

	w := doGet(r, "/me", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, buyer.ID.String(), w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "/me", "garbage").Code)
}

func TestRequireRole(t *testing.T) {
	tokens := service.NewTokenManager("test-secret")
	r := newAuthRouter(tokens)

	buyerToken, err := tokens.IssueAccess(entity.Actor{ID: uuid.New(), Role: valueobject.RoleBuyer}, time.Hour)
	require.NoError(t, err)
	adminToken, err := tokens.IssueAccess(entity.Actor{ID: uuid.New(), Role: valueobject.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, doGet(r, "/admin", buyerToken).Code)
	assert.Equal(t, http.StatusNoContent, doGet(r, "/admin", adminToken).Code)
}
