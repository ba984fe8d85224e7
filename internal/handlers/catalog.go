package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/middleware"
	"github.com/temcen/cellar/internal/services"
	"github.com/temcen/cellar/pkg/models"
)

// CatalogHandler serves the admin catalog maintenance endpoints.
type CatalogHandler struct {
	catalog   services.CatalogServiceInterface
	imports   services.CatalogImportInterface
	jobs      services.JobTrackerInterface
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewCatalogHandler(
	catalog services.CatalogServiceInterface,
	imports services.CatalogImportInterface,
	jobs services.JobTrackerInterface,
	logger *logrus.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		catalog:   catalog,
		imports:   imports,
		jobs:      jobs,
		validator: validator.New(),
		logger:    logger,
	}
}

func (h *CatalogHandler) NormalizeSweetness(c *gin.Context) {
	updated, err := h.catalog.NormalizeSweetness(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "update sweetness")
		return
	}

	c.JSON(http.StatusOK, models.SweetnessUpdateResponse{
		Message: "Sweetness values updated successfully",
		Updated: updated,
	})
}

// SubmitBatch accepts raw catalog rows. Queued batches answer 202; batches
// imported synchronously answer 200 with their final status.
func (h *CatalogHandler) SubmitBatch(c *gin.Context) {
	var req models.CatalogBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid JSON in catalog batch request")
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", nil)
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		h.logger.WithError(err).Warn("Catalog batch validation failed")
		middleware.AbortWithError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Catalog batch validation failed", gin.H{
			"validation": err.Error(),
		})
		return
	}

	resp, err := h.imports.SubmitBatch(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err, "queue catalog batch")
		return
	}

	caller, _ := middleware.GetCaller(c)
	h.logger.WithFields(logrus.Fields{
		"job_id":  resp.JobID,
		"records": resp.TotalItems,
		"replace": req.Replace,
		"caller":  caller,
	}).Info("Catalog batch submitted")

	status := http.StatusOK
	if resp.Status == services.JobStatusQueued {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

func (h *CatalogHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_JOB_ID", "Job ID must be a valid UUID", gin.H{
			"value": c.Param("jobId"),
		})
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err, "get job")
		return
	}
	c.JSON(http.StatusOK, job)
}
