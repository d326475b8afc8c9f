package middleware

import (
	"net/http"
	"strings"

	"taskdash/internal/auth"
	"taskdash/internal/models"

	"github.com/gin-gonic/gin"
)

const ContextUserKey = "user"

// SessionSource reports the identity currently signed in to the gate.
type SessionSource interface {
	Current() (*models.User, bool)
}

// RequireSession accepts a bearer token only while the gate still holds the
// session it was issued for, so logging out revokes every token.
func RequireSession(tokens *auth.TokenManager, sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authorization header is required",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token_format",
				"message": "Authorization header must use Bearer token",
			})
			return
		}

		claims, err := tokens.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token validation failed",
			})
			return
		}

		user, ok := sessions.Current()
		if !ok || user == nil || user.Email != claims.Email {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "session_ended",
				"message": "No active session for this token",
			})
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
