// Package social stubs the social publishing flow. Real platform OAuth and
// publish calls are not wired yet; the endpoints keep the front-end flow
// intact and every publish attempt lands in telemetry instead of a log
// file nobody reads.
package social

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles social publishing requests
type Handler struct {
	baseURL string
	log     *zap.Logger
}

// NewHandler creates a new social handler
func NewHandler(baseURL string, log *zap.Logger) *Handler {
	return &Handler{baseURL: baseURL, log: log}
}

// Auth returns the OAuth consent URL for a platform: GET /social/:platform/auth
func (h *Handler) Auth(c *gin.Context) {
	platform := c.Param("platform")
	c.JSON(http.StatusOK, gin.H{
		"auth_url": "https://mock.auth/" + platform +
			"?client_id=mock&redirect_uri=" + h.baseURL + "/social/callback",
	})
}

// PublishRequest represents content headed for a social platform
type PublishRequest struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// Publish accepts a publish request: POST /social/:platform/publish
func (h *Handler) Publish(c *gin.Context) {
	platform := c.Param("platform")

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	publishID := uuid.NewString()
	h.log.Info("social publish requested",
		zap.String("platform", platform),
		zap.String("publish_id", publishID),
		zap.String("content_id", req.ContentID),
		zap.Int("body_bytes", len(req.Body)))

	c.JSON(http.StatusOK, gin.H{
		"status":     "mocked",
		"platform":   platform,
		"result":     "success",
		"publish_id": publishID,
	})
}

// RegisterRoutes registers social routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:platform/auth", h.Auth)
	rg.POST("/:platform/publish", h.Publish)
}
