package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"indieforge/backend/internal/apperr"
	"indieforge/backend/internal/models"
)

type stubTokens map[string]string

func (s stubTokens) ParseToken(token string) (string, error) {
	if sub, ok := s[token]; ok {
		return sub, nil
	}
	return "", errors.New("bad token")
}

type stubUsers map[string]*models.User

func (s stubUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := s[username]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("User not found")
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		if u := CurrentUser(c); u != nil {
			c.JSON(http.StatusOK, gin.H{"user": u.Username})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": nil})
	})
	r.GET("/", handlers...)
	return r
}

func request(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func fixtures() (stubTokens, stubUsers) {
	tokens := stubTokens{"alice-token": "alice", "ghost-token": "ghost", "bob-token": "bob", "root-token": "root"}
	users := stubUsers{
		"alice": {Username: "alice", IsActive: true},
		"bob":   {Username: "bob", IsActive: false},
		"root":  {Username: "root", IsActive: true, IsAdmin: true},
	}
	return tokens, users
}

func TestAuthMiddleware(t *testing.T) {
	tokens, users := fixtures()
	r := newRouter(AuthMiddleware(tokens, users))

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "valid token", token: "alice-token", status: http.StatusOK},
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "invalid token", token: "forged", status: http.StatusUnauthorized},
		{name: "unknown subject", token: "ghost-token", status: http.StatusUnauthorized},
		{name: "inactive user", token: "bob-token", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(r, tt.token)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestAuthMiddlewareRejectsOtherSchemes(t *testing.T) {
	tokens, users := fixtures()
	r := newRouter(AuthMiddleware(tokens, users))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic alice-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	tokens, users := fixtures()
	r := newRouter(OptionalAuthMiddleware(tokens, users))

	rec := request(r, "alice-token")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":"alice"}`, rec.Body.String())

	for _, token := range []string{"", "forged", "bob-token"} {
		rec := request(r, token)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"user":null}`, rec.Body.String())
	}
}

func TestAdminMiddleware(t *testing.T) {
	tokens, users := fixtures()
	r := newRouter(AuthMiddleware(tokens, users), AdminMiddleware())

	assert.Equal(t, http.StatusOK, request(r, "root-token").Code)
	rec := request(r, "alice-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Admin access required"}`, rec.Body.String())
}
