package middleware

import (
	"net/http"
	"strings"

	"telecare/internal/infrastructure/auth"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware verifies the bearer session token and stores the session id
// in the request context.
func AuthMiddleware(tokens *auth.TokenProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		sessionID, err := tokens.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Set("session_id", string(sessionID))
		c.Next()
	}
}
