package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

type handlers struct {
	db       *sqlx.DB
	items    *database.ItemRepository
	searches *database.SavedSearchRepository
	log      logger.Interface
}

func (h *handlers) health(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// listItems serves GET /api/v1/items with the stored-search filter
// shape as query parameters.
func (h *handlers) listItems(c *gin.Context) {
	filters := models.SearchFilters{
		Keyword: c.Query("keyword"),
		From:    c.Query("from"),
		To:      c.Query("to"),
		Org:     c.Query("org"),
		Source:  c.Query("source"),
	}

	limit := intQuery(c, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := intQuery(c, "offset", 0)
	orderBy := c.DefaultQuery("order_by", "newest")

	items, total, err := h.items.Search(c.Request.Context(), filters, orderBy, limit, offset)
	if err != nil {
		h.log.Error("item search failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

func (h *handlers) getItem(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	item, err := h.items.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		h.log.Error("item lookup failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *handlers) listSavedSearches(c *gin.Context) {
	enabledOnly := c.Query("enabled") == "true"

	searches, err := h.searches.List(c.Request.Context(), enabledOnly)
	if err != nil {
		h.log.Error("saved search list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved_searches": searches})
}

func (h *handlers) listRuns(c *gin.Context) {
	name := c.Param("name")

	search, err := h.searches.GetByName(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "saved search not found"})
			return
		}
		h.log.Error("saved search lookup failed", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	limit := intQuery(c, "limit", 20)
	runs, err := h.searches.ListRuns(c.Request.Context(), search.ID, limit)
	if err != nil {
		h.log.Error("run list failed", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"saved_search": search.Name, "runs": runs})
}

func (h *handlers) stats(c *gin.Context) {
	stats, err := database.Stats(c.Request.Context(), h.db)
	if err != nil {
		h.log.Error("stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
