package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/straywatch/straywatch-api/internal/logging"
)

// userCtxKey is the Gin context key used to store the verified caller.
const userCtxKey = "auth_user"

// DefaultMissingMessage is the 401 body when no token is sent.
const DefaultMissingMessage = "Sign in required"

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// BearerMiddleware verifies the bearer token and stores the caller on the
// context. missingMsg is returned when no token was sent at all.
func BearerMiddleware(v Verifier, missingMsg string) gin.HandlerFunc {
	if missingMsg == "" {
		missingMsg = DefaultMissingMessage
	}
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": missingMsg})
			return
		}

		user, err := v.Verify(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, ErrProviderUnavailable):
			logging.Error().Err(err).Str("request_id", logging.RequestID(c)).Msg("identity provider validation failed")
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Identity provider unavailable"})
			return
		default:
			logging.Warn().Err(err).Str("request_id", logging.RequestID(c)).Msg("identity provider validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.Set(userCtxKey, user)
		c.Next()
	}
}

// CurrentUser returns the caller verified by BearerMiddleware.
func CurrentUser(c *gin.Context) (User, bool) {
	v, ok := c.Get(userCtxKey)
	if !ok {
		return User{}, false
	}
	u, ok := v.(User)
	return u, ok
}
