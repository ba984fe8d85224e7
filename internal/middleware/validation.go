package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/temcen/cellar/internal/validation"
)

// maxBodyBytes bounds the request bodies read for validation.
const maxBodyBytes = 4 << 20

type ValidationMiddleware struct {
	validator *validation.SchemaValidator
}

func NewValidationMiddleware(validator *validation.SchemaValidator) *ValidationMiddleware {
	return &ValidationMiddleware{
		validator: validator,
	}
}

func (vm *ValidationMiddleware) ValidateRating() gin.HandlerFunc {
	return vm.ValidateBody(validation.SchemaRating)
}

func (vm *ValidationMiddleware) ValidateCatalogBatch() gin.HandlerFunc {
	return vm.ValidateBody(validation.SchemaCatalogBatch)
}

func (vm *ValidationMiddleware) ValidateAuthToken() gin.HandlerFunc {
	return vm.ValidateBody(validation.SchemaAuthToken)
}

// ValidateBody rejects request bodies that are not JSON documents matching
// schemaName. The body is restored for the handler.
func (vm *ValidationMiddleware) ValidateBody(schemaName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodDelete {
			c.Next()
			return
		}

		bodyBytes, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
		if err != nil {
			AbortWithError(c, http.StatusBadRequest, "BODY_READ_ERROR", "Failed to read request body", nil)
			return
		}
		if len(bodyBytes) > maxBodyBytes {
			AbortWithError(c, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "Request body is too large", nil)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		if len(bytes.TrimSpace(bodyBytes)) == 0 {
			AbortWithError(c, http.StatusBadRequest, "EMPTY_BODY", "Request body is required", nil)
			return
		}
		if !json.Valid(bodyBytes) {
			AbortWithError(c, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", nil)
			return
		}

		result := vm.validator.Validate(schemaName, bodyBytes)
		if !result.Valid {
			AbortWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", gin.H{
				"fieldErrors": result.FieldErrors(),
			})
			return
		}

		c.Next()
	}
}
