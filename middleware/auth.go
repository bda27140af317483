package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	applog "food-share-server/logger"
	"food-share-server/types"
)

const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

// TokenVerifier validates a session token and returns its claims
type TokenVerifier interface {
	Verify(token string) (*types.Claims, error)
}

// bearerToken reads the Authorization header. Browser EventSource and
// WebSocket clients cannot set headers, so a token query parameter is
// accepted as well.
func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return ""
		}
		return strings.TrimSpace(tokenString)
	}
	return c.Query("token")
}

// AuthMiddleware validates JWT tokens and sets user context
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Authorization required: provide a Bearer token",
			})
			return
		}

		claims, err := verifier.Verify(tokenString)
		if err != nil {
			applog.Log.WithError(err).Debugf("🔍 Rejected token for %s %s", c.Request.Method, c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Token is invalid or expired",
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

// OptionalAuthMiddleware is like AuthMiddleware but doesn't require authentication
func OptionalAuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := verifier.Verify(tokenString)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, if any
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// CurrentUserRole returns the role carried by the token
func CurrentUserRole(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}
