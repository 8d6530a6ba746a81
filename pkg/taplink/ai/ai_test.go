package ai

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func setupTestRouter(apiKey, endpoint string, limiter *ClientLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(apiKey, endpoint, limiter, zap.NewNop())
	r := gin.New()
	handler.RegisterRoutes(r.Group("/api/ai"))
	return r
}

func postGenerate(router *gin.Engine, body GenerateRequest) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/api/ai/generate", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestGenerateMockWithoutKey(t *testing.T) {
	router := setupTestRouter("", "", NewClientLimiter(100, 100))

	resp := postGenerate(router, GenerateRequest{TemplateID: "welcome"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body GenerateResponse
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Raw["mock"] != true {
		t.Errorf("Expected mock response, got %+v", body.Raw)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	// One request allowed, no refill worth mentioning within the test
	router := setupTestRouter("", "", NewClientLimiter(0.001, 1))

	first := postGenerate(router, GenerateRequest{})
	if first.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", first.Code)
	}

	second := postGenerate(router, GenerateRequest{})
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", second.Code)
	}
}

func TestGenerateForwardsToProvider(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": req["model"],
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer provider.Close()

	router := setupTestRouter("test-key", provider.URL, NewClientLimiter(100, 100))

	resp := postGenerate(router, GenerateRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var body GenerateResponse
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Raw["model"] != defaultModel {
		t.Errorf("Expected default model to be forwarded, got %v", body.Raw["model"])
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("spring-sale", map[string]interface{}{"shop": "Cafe"})
	if prompt == "" {
		t.Fatal("Expected non-empty prompt")
	}
	for _, want := range []string{"spring-sale", "Cafe"} {
		if !bytes.Contains([]byte(prompt), []byte(want)) {
			t.Errorf("Expected prompt to mention %q: %s", want, prompt)
		}
	}
}
