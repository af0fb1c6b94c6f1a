package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vistapay/merchant-radar/internal/logging"
)

const (
	// ContextKeySession is the key for storing the session in gin context
	ContextKeySession = "authSession"
	// ContextKeyUsername is the key for storing the authenticated username
	ContextKeyUsername = "authUsername"
)

// RequireAuth rejects requests without a valid bearer token.
// Sets the session and username in context when the token is valid, and
// tags the request logger with the acting user.
func RequireAuth(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "bearer token required. Include 'Authorization: Bearer tk_...' header.",
			})
			return
		}

		session, err := m.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeySession, session)
		c.Set(ContextKeyUsername, session.Username)
		c.Request = c.Request.WithContext(logging.WithUser(c.Request.Context(), session.Username))
		c.Next()
	}
}

// GetSession returns the session from context (if authenticated).
func GetSession(c *gin.Context) (*Session, bool) {
	v, exists := c.Get(ContextKeySession)
	if !exists {
		return nil, false
	}
	return v.(*Session), true
}

// GetUsername returns the authenticated username, or "" when anonymous.
func GetUsername(c *gin.Context) string {
	v, exists := c.Get(ContextKeyUsername)
	if !exists {
		return ""
	}
	return v.(string)
}
