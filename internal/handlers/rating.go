package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/middleware"
	"github.com/temcen/cellar/internal/services"
	"github.com/temcen/cellar/pkg/models"
)

type RatingHandler struct {
	ratings   services.RatingServiceInterface
	validator *validator.Validate
	logger    *logrus.Logger
}

func NewRatingHandler(ratings services.RatingServiceInterface, logger *logrus.Logger) *RatingHandler {
	return &RatingHandler{
		ratings:   ratings,
		validator: validator.New(),
		logger:    logger,
	}
}

// AddPreference stores a rating and answers with the refreshed preferences.
func (h *RatingHandler) AddPreference(c *gin.Context) {
	if !h.rate(c) {
		return
	}

	prefs, err := h.ratings.GetPreferences(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "get preferences")
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// RateWine stores a rating and answers with a confirmation.
func (h *RatingHandler) RateWine(c *gin.Context) {
	if !h.rate(c) {
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Rating saved"})
}

func (h *RatingHandler) rate(c *gin.Context) bool {
	var req models.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Debug("Invalid JSON in rating request")
		middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format", nil)
		return false
	}

	if err := h.validator.Struct(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, "VALIDATION_FAILED", "wine_id and a rating between 1 and 5 are required", gin.H{
			"validation": err.Error(),
		})
		return false
	}

	if err := h.ratings.Rate(c.Request.Context(), req.WineID, req.Rating); err != nil {
		respondError(c, h.logger, err, "save rating")
		return false
	}

	h.logger.WithFields(logrus.Fields{
		"wine_id": req.WineID,
		"rating":  req.Rating,
	}).Info("Rating saved")
	return true
}

func (h *RatingHandler) DeleteRating(c *gin.Context) {
	id, ok := parseWineID(c, "id")
	if !ok {
		return
	}

	if err := h.ratings.DeleteRating(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "delete rating")
		return
	}

	h.logger.WithField("wine_id", id).Info("Rating deleted")
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Rating deleted"})
}

func (h *RatingHandler) GetPreferences(c *gin.Context) {
	prefs, err := h.ratings.GetPreferences(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "get preferences")
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *RatingHandler) GetRatedWines(c *gin.Context) {
	rated, err := h.ratings.GetRatedWines(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "get rated wines")
		return
	}
	c.JSON(http.StatusOK, rated)
}
