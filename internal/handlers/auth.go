package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/middleware"
	"github.com/temcen/cellar/internal/services"
	"github.com/temcen/cellar/pkg/models"
)

type AuthHandler struct {
	auth   services.AuthServiceInterface
	logger *logrus.Logger
}

func NewAuthHandler(auth services.AuthServiceInterface, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

// IssueToken exchanges an API key for a signed admin token.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req models.AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.APIKey == "" {
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_JSON", "api_key is required", nil)
		return
	}

	resp, err := h.auth.IssueToken(c.Request.Context(), req.APIKey)
	if errors.Is(err, services.ErrInvalidAPIKey) {
		h.logger.WithField("client_ip", c.ClientIP()).Warn("Token requested with invalid API key")
		middleware.AbortWithError(c, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key", nil)
		return
	}
	if err != nil {
		respondError(c, h.logger, err, "issue token")
		return
	}

	c.JSON(http.StatusOK, resp)
}
