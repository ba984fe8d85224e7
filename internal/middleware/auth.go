package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/services"
)

const (
	callerKey = "caller"
	roleKey   = "role"
)

// Auth accepts either "Bearer <jwt>" or "Bearer <api key>". JWTs contain
// dots, API keys never do.
func Auth(authService services.AuthServiceInterface, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			AbortWithError(c, http.StatusUnauthorized, "MISSING_AUTHORIZATION", "Authorization header is required", nil)
			return
		}

		scheme, credential, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || credential == "" {
			AbortWithError(c, http.StatusUnauthorized, "INVALID_AUTHORIZATION_FORMAT", "Authorization header must be in format 'Bearer <token>'", nil)
			return
		}

		if !strings.Contains(credential, ".") {
			keyName, err := authService.ValidateAPIKey(credential)
			if err != nil {
				logger.WithField("client_ip", c.ClientIP()).Warn("Invalid API key")
				AbortWithError(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key", nil)
				return
			}
			c.Set(callerKey, keyName)
			c.Set(roleKey, services.RoleAdmin)
			c.Next()
			return
		}

		claims, err := authService.ValidateToken(c.Request.Context(), credential)
		if err != nil {
			logger.WithError(err).Warn("Invalid JWT token")
			AbortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token", nil)
			return
		}

		c.Set(callerKey, claims.KeyName)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// GetCaller returns the authenticated caller and role, or empty strings.
func GetCaller(c *gin.Context) (caller, role string) {
	return c.GetString(callerKey), c.GetString(roleKey)
}
