package auth

import (
	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware inspects for a token and sets the current user if present and valid,
// but does not fail if the token is missing or invalid. Public game routes use it so owners
// and admins can see drafts.
func OptionalAuthMiddleware(tokens TokenParser, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if user, err := resolve(c, tokens, users); err == nil && user.IsActive {
				c.Set(currentUserKey, user)
			}
		}
		c.Next()
	}
}
