package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/services"
)

type HealthHandler struct {
	logger        *logrus.Logger
	healthService services.HealthCheckerInterface
}

func NewHealthHandler(logger *logrus.Logger, healthService services.HealthCheckerInterface) *HealthHandler {
	return &HealthHandler{
		logger:        logger,
		healthService: healthService,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := h.healthService.CheckHealth(c.Request.Context())

	var httpStatus int
	switch status.Status {
	case services.HealthStatusHealthy, services.HealthStatusDegraded:
		httpStatus = http.StatusOK // still serving
	case services.HealthStatusUnhealthy:
		httpStatus = http.StatusServiceUnavailable
	default:
		httpStatus = http.StatusInternalServerError
	}

	c.JSON(httpStatus, status)
}
