package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tripkit/image-search/internal/db/models"
	"github.com/tripkit/image-search/internal/logger"
	"github.com/tripkit/image-search/internal/search"
)

type SearchHandler struct {
	service search.Searcher
}

func NewSearchHandler(service search.Searcher) *SearchHandler {
	return &SearchHandler{
		service: service,
	}
}

// Search handles image search requests. Beyond input validation this
// endpoint always answers 200 with a well-formed image list; the service
// degrades to placeholders rather than erroring.
func (h *SearchHandler) Search(c *gin.Context) {
	reqLogger := logger.FromContext(c.Request.Context())

	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		reqLogger.Warn().Err(err).Msg("Invalid search request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		reqLogger.Warn().Msg("Search request missing query")
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	reqLogger.Info().
		Str("query", req.Query).
		Str("category", req.Category).
		Int("limit", req.Limit).
		Bool("download", req.Download()).
		Msg("Processing image search request")

	response := h.service.Search(c.Request.Context(), req)

	c.JSON(http.StatusOK, response)
}
