package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/middleware"
	"github.com/temcen/cellar/internal/services"
)

const (
	defaultRelatedLimit = 10
	maxRelatedLimit     = 50
)

type WineHandler struct {
	catalog services.CatalogServiceInterface
	logger  *logrus.Logger
}

func NewWineHandler(catalog services.CatalogServiceInterface, logger *logrus.Logger) *WineHandler {
	return &WineHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// GetSummary serves GET /wine/:id.
func (h *WineHandler) GetSummary(c *gin.Context) {
	id, ok := parseWineID(c, "id")
	if !ok {
		return
	}

	summary, err := h.catalog.GetWineSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "get wine")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetDetail serves GET /get_wine/:id.
func (h *WineHandler) GetDetail(c *gin.Context) {
	id, ok := parseWineID(c, "id")
	if !ok {
		return
	}

	wine, err := h.catalog.GetWine(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "get wine")
		return
	}
	c.JSON(http.StatusOK, wine)
}

// Search serves GET /search_wines_by_name?q=. It always answers 200.
func (h *WineHandler) Search(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.SearchWines(c.Request.Context(), c.Query("q")))
}

// Related serves GET /api/v1/wines/:id/related?limit=.
func (h *WineHandler) Related(c *gin.Context) {
	id, ok := parseWineID(c, "id")
	if !ok {
		return
	}

	limit := defaultRelatedLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRelatedLimit {
			middleware.AbortWithError(c, http.StatusBadRequest, "INVALID_QUERY_PARAM", "Limit must be an integer between 1 and 50", gin.H{
				"value": raw,
			})
			return
		}
		limit = n
	}

	related, err := h.catalog.RelatedWines(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, h.logger, err, "find related wines")
		return
	}
	c.JSON(http.StatusOK, related)
}
