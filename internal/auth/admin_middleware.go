package auth

import (
	"github.com/gin-gonic/gin"

	"indieforge/backend/internal/policy"
)

// RequireAction creates a gin middleware that checks the current user against the policy.
// It must be used AFTER the standard AuthMiddleware.
func RequireAction(action policy.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := policy.Authorize(CurrentUser(c), action, nil); err != nil {
			abort(c, err)
			return
		}
		c.Next()
	}
}

// AdminMiddleware guards the /admin route group.
func AdminMiddleware() gin.HandlerFunc {
	return RequireAction(policy.ActionAdminConsole)
}
