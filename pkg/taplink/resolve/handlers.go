package resolve

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allvalue/taplink/pkg/taplink/visits"
)

// Handler handles public token resolution requests
type Handler struct {
	svc *Service
}

// NewHandler creates a new resolution handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ResolveToken handles a tap: GET /t/:token
// Public by design; the token itself is the capability.
func (h *Handler) ResolveToken(c *gin.Context) {
	tok := c.Param("token")

	res, err := h.svc.Resolve(c.Request.Context(), tok, visits.ClientMeta{
		UserAgent: c.GetHeader("User-Agent"),
		Referer:   c.GetHeader("Referer"),
	})
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve token"})
		return
	}

	c.JSON(http.StatusOK, res)
}

// RegisterRoutes registers resolution routes on the root router
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/t/:token", h.ResolveToken)
}
