// Package ai proxies merchant copywriting requests to an LLM provider.
package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultModel = "deepseek-chat"

// Handler proxies generation requests. With no provider key configured it
// answers with a mock response so the rest of the product stays usable.
type Handler struct {
	apiKey   string
	endpoint string
	client   *http.Client
	limiter  *ClientLimiter
	log      *zap.Logger
}

// NewHandler creates an AI proxy handler
func NewHandler(apiKey, endpoint string, limiter *ClientLimiter, log *zap.Logger) *Handler {
	return &Handler{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  limiter,
		log:      log,
	}
}

// Message is one chat message in the provider's wire format
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest represents a generation request
type GenerateRequest struct {
	Model       string                 `json:"model"`
	Messages    []Message              `json:"messages"`
	Temperature float64                `json:"temperature"`
	TemplateID  string                 `json:"template_id"`
	Context     map[string]interface{} `json:"context"`
}

// GenerateResponse wraps the provider's raw answer
type GenerateResponse struct {
	Raw map[string]interface{} `json:"raw"`
}

// Generate handles POST /ai/generate
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.limiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	if req.Model == "" {
		req.Model = defaultModel
	}
	if len(req.Messages) == 0 {
		req.Messages = []Message{{Role: "user", Content: buildPrompt(req.TemplateID, req.Context)}}
	}

	if h.apiKey == "" {
		c.JSON(http.StatusOK, GenerateResponse{Raw: map[string]interface{}{
			"mock": true,
			"text": "Generated copy is unavailable until an AI provider key is configured.",
		}})
		return
	}

	raw, err := h.callProvider(c, req)
	if err != nil {
		h.log.Error("ai provider call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI provider unavailable"})
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{Raw: raw})
}

func buildPrompt(templateID string, context map[string]interface{}) string {
	prompt := "Write promotional copy for the shop."
	if templateID != "" {
		prompt += " Template: " + templateID + "."
	}
	if len(context) > 0 {
		if data, err := json.Marshal(context); err == nil {
			prompt += " Context: " + string(data)
		}
	}
	return prompt
}

func (h *Handler) callProvider(c *gin.Context, req GenerateRequest) (map[string]interface{}, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(c.Request.Context(), "POST", h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, body)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// RegisterRoutes registers AI routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/generate", h.Generate)
}
