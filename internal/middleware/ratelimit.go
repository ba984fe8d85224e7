package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/services"
)

// RateLimit limits authenticated callers; it must run after Auth. Anonymous
// requests are keyed by client IP.
func RateLimit(limiter services.RateLimiterInterface, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, _ := GetCaller(c)
		if caller == "" {
			caller = "ip:" + c.ClientIP()
		}

		allowed, info := limiter.IsAllowed(c.Request.Context(), caller)
		if info != nil && info.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime, 10))
		}

		if !allowed {
			logger.WithFields(logrus.Fields{
				"caller": caller,
				"limit":  info.Limit,
			}).Warn("Rate limit exceeded")

			AbortWithError(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded. Please try again later.", info)
			return
		}

		c.Next()
	}
}
