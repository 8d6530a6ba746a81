// Package shops exposes the merchant-facing shop overview and dashboard.
package shops

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/allvalue/taplink/pkg/taplink/auth"
	"github.com/allvalue/taplink/pkg/taplink/metrics"
)

// Handler handles shop listing and dashboard requests
type Handler struct {
	db  *gorm.DB
	agg *metrics.Aggregator
}

// NewHandler creates a new shops handler
func NewHandler(db *gorm.DB, agg *metrics.Aggregator) *Handler {
	return &Handler{db: db, agg: agg}
}

// List returns shop summaries: GET /shops
// Admins see every shop; merchants see exactly their own.
func (h *Handler) List(c *gin.Context) {
	scope := metrics.ScopeAll()
	if !auth.IsAdmin(c) {
		shopID, ok := auth.GetShopID(c)
		if !ok || shopID == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "No shop assigned"})
			return
		}
		scope = metrics.ScopeShop(shopID)
	}

	summaries, err := h.agg.ShopSummaries(c.Request.Context(), scope)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list shops"})
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// Dashboard returns one shop's metrics: GET /merchant/:shop_id
// The response degrades to zeros and defaults instead of failing; a
// partially populated dashboard beats an error page.
func (h *Handler) Dashboard(c *gin.Context) {
	shopID := c.Param("shop_id")
	if !auth.CanAccessShop(c, shopID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	c.JSON(http.StatusOK, h.agg.ShopMetrics(c.Request.Context(), shopID))
}

// RegisterRoutes registers shop routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/shops", h.List)
	rg.GET("/merchant/:shop_id", h.Dashboard)
}
