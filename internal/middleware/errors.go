package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/temcen/cellar/pkg/models"
)

// AbortWithError writes the JSON error envelope and stops the chain.
func AbortWithError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: GetRequestID(c),
		},
	})
}
