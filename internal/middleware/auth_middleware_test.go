package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cafeteria_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type revokedSet map[string]bool

func (r revokedSet) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	return r[jti], nil
}

func setupRouter(t *testing.T, revoked revokedSet, roles ...string) (*gin.Engine, *utils.TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tm, err := utils.NewTokenManager("middleware-secret", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	handlers := []gin.HandlerFunc{AuthMiddleware(tm, revoked)}
	if len(roles) > 0 {
		handlers = append(handlers, RoleAuthMiddleware(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64(ContextUserID), "role": c.GetString(ContextUserRole)})
	})
	r.GET("/protected", handlers...)
	return r, tm
}

func doRequest(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAuthMiddleware(t *testing.T) {
	r, tm := setupRouter(t, revokedSet{})
	token, _, err := tm.GenerateAccessToken(7, "staff@example.com", "staff")
	require.NoError(t, err)

	w := doRequest(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7,"role":"staff"}`, w.Body.String())

	for _, header := range []string{"", "Token " + token, "Bearer", "Bearer not-a-jwt"} {
		w := doRequest(r, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, utils.ErrCodeUnauthorized, errorCode(t, w))
	}
}

func TestAuthMiddleware_RejectsRevokedToken(t *testing.T) {
	revoked := revokedSet{}
	r, tm := setupRouter(t, revoked)
	token, claims, err := tm.GenerateAccessToken(7, "staff@example.com", "staff")
	require.NoError(t, err)
	revoked[claims.ID] = true

	w := doRequest(r, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleAuthMiddleware(t *testing.T) {
	r, tm := setupRouter(t, revokedSet{}, "admin", "manager")

	staff, _, err := tm.GenerateAccessToken(3, "staff@example.com", "staff")
	require.NoError(t, err)
	w := doRequest(r, "Bearer "+staff)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, utils.ErrCodeForbidden, errorCode(t, w))

	manager, _, err := tm.GenerateAccessToken(2, "manager@example.com", "manager")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer "+manager).Code)
}
