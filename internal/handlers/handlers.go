package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/middleware"
	"github.com/temcen/cellar/internal/services"
	"github.com/temcen/cellar/internal/storage"
	"github.com/temcen/cellar/pkg/models"
)

type Handlers struct {
	Health         *HealthHandler
	Wine           *WineHandler
	Rating         *RatingHandler
	Recommendation *RecommendationHandler
	Catalog        *CatalogHandler
	Auth           *AuthHandler
}

func New(logger *logrus.Logger, svc *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(logger, svc.Health),
		Wine:           NewWineHandler(svc.Catalog, logger),
		Rating:         NewRatingHandler(svc.Ratings, logger),
		Recommendation: NewRecommendationHandler(svc.Recommendations, logger),
		Catalog:        NewCatalogHandler(svc.Catalog, svc.CatalogImport, svc.JobManager, logger),
		Auth:           NewAuthHandler(svc.Auth, logger),
	}
}

// respondError maps service and store errors onto the JSON error envelope.
func respondError(c *gin.Context, logger *logrus.Logger, err error, action string) {
	status, code, message := http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action

	switch {
	case errors.Is(err, models.ErrWineNotFound):
		status, code, message = http.StatusNotFound, "WINE_NOT_FOUND", "Wine not found"
	case errors.Is(err, models.ErrRatingNotFound):
		status, code, message = http.StatusNotFound, "RATING_NOT_FOUND", "Rating not found"
	case errors.Is(err, models.ErrInvalidRating):
		status, code, message = http.StatusBadRequest, "INVALID_RATING", err.Error()
	case errors.Is(err, models.ErrJobNotFound):
		status, code, message = http.StatusNotFound, "JOB_NOT_FOUND", "Job not found"
	case errors.Is(err, services.ErrGraphUnavailable):
		status, code, message = http.StatusServiceUnavailable, "GRAPH_UNAVAILABLE", "Variety graph is unavailable"
	case errors.Is(err, storage.ErrUnavailable):
		status, code, message = http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Database is unavailable"
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":       c.Request.URL.Path,
		"request_id": middleware.GetRequestID(c),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Failed to " + action)
	} else {
		entry.Debug("Request rejected")
	}

	middleware.AbortWithError(c, status, code, message, nil)
}

// parseWineID reads a positive wine id from the named path parameter.
func parseWineID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_WINE_ID", "Wine ID must be a positive integer", gin.H{
			"value": c.Param(param),
		})
		return 0, false
	}
	return id, true
}
