package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"indieforge/backend/internal/apperr"
	"indieforge/backend/internal/models"
)

const currentUserKey = "currentUser"

// TokenParser extracts the subject (username) from a bearer token.
type TokenParser interface {
	ParseToken(token string) (string, error)
}

// UserResolver loads the user named by a token subject.
type UserResolver interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the resolved user in the context.
func AuthMiddleware(tokens TokenParser, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolve(c, tokens, users)
		if err != nil {
			abort(c, err)
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Inactive user"})
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for guests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func resolve(c *gin.Context, tokens TokenParser, users UserResolver) (*models.User, error) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		return nil, apperr.Unauthenticated("Not authenticated")
	}
	username, err := tokens.ParseToken(token)
	if err != nil {
		return nil, apperr.Unauthenticated("Could not validate credentials")
	}
	user, err := users.GetByUsername(c.Request.Context(), username)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthenticated("Could not validate credentials")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func abort(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.Message(err)})
}
