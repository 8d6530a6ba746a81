// Package content accepts public NFC user submissions.
package content

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/allvalue/taplink/pkg/taplink/models"
	"github.com/allvalue/taplink/pkg/taplink/store"
)

// Handler handles content submission requests
type Handler struct {
	db   *gorm.DB
	tags store.TagStore
}

// NewHandler creates a new content handler
func NewHandler(db *gorm.DB, tags store.TagStore) *Handler {
	return &Handler{db: db, tags: tags}
}

// CreateRequest represents a public submission. Either a tapped tag's token
// or an explicit shop_id identifies the target shop.
type CreateRequest struct {
	Token     string `json:"token"`
	ShopID    string `json:"shop_id"`
	Title     string `json:"title"`
	Body      string `json:"body" binding:"required"`
	CreatedBy string `json:"created_by"`
}

// CreateResponse represents the created content item
type CreateResponse struct {
	ID     string `json:"id"`
	ShopID string `json:"shop_id"`
	Title  string `json:"title"`
}

// Create handles POST /content
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shopID := req.ShopID
	if req.Token != "" {
		tag, err := h.tags.FindByToken(c.Request.Context(), req.Token)
		if errors.Is(err, store.ErrTagNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve token"})
			return
		}
		if tag.ShopID != nil {
			shopID = *tag.ShopID
		}
	}

	if shopID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shop_id or token required"})
		return
	}

	title := req.Title
	if title == "" {
		title = deriveTitle(req.Body)
	}

	item := models.ContentItem{
		ShopID:    shopID,
		Title:     title,
		Body:      req.Body,
		CreatedBy: req.CreatedBy,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create content"})
		return
	}

	c.JSON(http.StatusCreated, CreateResponse{ID: item.ID, ShopID: item.ShopID, Title: item.Title})
}

// deriveTitle takes the first line of the body, capped at 80 characters
func deriveTitle(body string) string {
	line := body
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		line = body[:idx]
	}
	runes := []rune(line)
	if len(runes) > 80 {
		return string(runes[:80])
	}
	return line
}

// RegisterRoutes registers the public content route on the root router
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/content", h.Create)
}
