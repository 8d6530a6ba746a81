// Package tags exposes the tag lifecycle API: batch issuance, inventory
// listing and the encoder's status workflow.
package tags

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allvalue/taplink/pkg/taplink/auth"
	"github.com/allvalue/taplink/pkg/taplink/issuer"
	"github.com/allvalue/taplink/pkg/taplink/models"
	"github.com/allvalue/taplink/pkg/taplink/store"
)

// Handler handles tag lifecycle requests
type Handler struct {
	issuer *issuer.Issuer
	store  store.TagStore
}

// NewHandler creates a new tags handler
func NewHandler(iss *issuer.Issuer, s store.TagStore) *Handler {
	return &Handler{issuer: iss, store: s}
}

// BatchEncodeRequest represents the request to issue a batch of tokens
type BatchEncodeRequest struct {
	Count  int    `json:"count" binding:"required"`
	Prefix string `json:"prefix"`
}

// BatchEncodeResponse represents the issued token batch
type BatchEncodeResponse struct {
	Tokens []string `json:"tokens"`
	Count  int      `json:"count"`
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID        string `json:"id"`
	ShopID    string `json:"shop_id,omitempty"`
	Token     string `json:"token"`
	URI       string `json:"uri"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	EncodedAt string `json:"encoded_at,omitempty"`
}

func tagToResponse(tag models.Tag) TagResponse {
	resp := TagResponse{
		ID:        tag.ID,
		Token:     tag.Token,
		URI:       tag.Payload.URI,
		Status:    string(tag.Status),
		CreatedAt: tag.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if tag.ShopID != nil {
		resp.ShopID = *tag.ShopID
	}
	if tag.EncodedAt != nil {
		resp.EncodedAt = tag.EncodedAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	return resp
}

// BatchEncode issues count tokens for a shop: POST /shops/:id/tags/batch_encode
func (h *Handler) BatchEncode(c *gin.Context) {
	shopID := c.Param("id")
	if !auth.CanAccessShop(c, shopID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	var req BatchEncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := h.issuer.IssueBatch(c.Request.Context(), shopID, req.Count, req.Prefix)
	if err != nil {
		if errors.Is(err, issuer.ErrInvalidCount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid count (1..10000)"})
			return
		}
		var issErr *issuer.IssuanceError
		if errors.As(err, &issErr) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Batch issuance failed",
				"committed": issErr.Committed,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Batch issuance failed"})
		return
	}

	c.JSON(http.StatusOK, BatchEncodeResponse{Tokens: tokens, Count: len(tokens)})
}

// ListByShop returns a shop's tags, newest first: GET /shops/:id/tags
func (h *Handler) ListByShop(c *gin.Context) {
	shopID := c.Param("id")
	if !auth.CanAccessShop(c, shopID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	tags, err := h.store.ListByShop(c.Request.Context(), shopID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tags"})
		return
	}

	responses := make([]TagResponse, len(tags))
	for i, tag := range tags {
		responses[i] = tagToResponse(tag)
	}
	c.JSON(http.StatusOK, responses)
}

// AdvanceStatusRequest represents a conditional status transition
type AdvanceStatusRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// AdvanceStatus moves a tag forward in its lifecycle: POST /tags/:id/status
// The transition is conditional on the caller's view of the current status;
// a lost race yields 409 rather than silently overwriting.
func (h *Handler) AdvanceStatus(c *gin.Context) {
	var req AdvanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from := models.TagStatus(req.From)
	to := models.TagStatus(req.To)
	if !from.Valid() || !to.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}

	tag, err := h.store.AdvanceStatus(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTransition):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status transition"})
		case errors.Is(err, store.ErrTagNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Tag not found"})
		case errors.Is(err, store.ErrStaleStatus):
			c.JSON(http.StatusConflict, gin.H{"error": "Tag status changed concurrently"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tag"})
		}
		return
	}

	c.JSON(http.StatusOK, tagToResponse(*tag))
}

// RegisterRoutes registers tag routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/shops/:id/tags/batch_encode", h.BatchEncode)
	rg.GET("/shops/:id/tags", h.ListByShop)
	rg.POST("/tags/:id/status", h.AdvanceStatus)
}
