package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/services"
)

type RecommendationHandler struct {
	recommendations services.RecommendationServiceInterface
	logger          *logrus.Logger
}

func NewRecommendationHandler(recommendations services.RecommendationServiceInterface, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recommendations: recommendations,
		logger:          logger,
	}
}

// Get serves GET /get_recommendations. X-Cache tells whether the answer was
// served from the recommendation cache.
func (h *RecommendationHandler) Get(c *gin.Context) {
	resp, cached, err := h.recommendations.GetRecommendations(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "get recommendations")
		return
	}

	if cached {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.JSON(http.StatusOK, resp)
}
