package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/allvalue/taplink/pkg/taplink/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	handler.RegisterRoutes(r.Group("/auth"))
	return r
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRegister(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	resp := postJSON(router, "/auth/register", RegisterRequest{
		Email:    "merchant@example.com",
		Password: "password123",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var body AuthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Token == "" {
		t.Error("Expected a token in the response")
	}
	if body.User.Role != string(models.RoleMerchant) {
		t.Errorf("Expected merchant role, got %s", body.User.Role)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req := RegisterRequest{Email: "dup@example.com", Password: "password123"}
	if resp := postJSON(router, "/auth/register", req); resp.Code != http.StatusCreated {
		t.Fatalf("First register failed: %d", resp.Code)
	}
	if resp := postJSON(router, "/auth/register", req); resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	postJSON(router, "/auth/register", RegisterRequest{Email: "login@example.com", Password: "password123"})

	resp := postJSON(router, "/auth/token", LoginRequest{Email: "login@example.com", Password: "password123"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = postJSON(router, "/auth/token", LoginRequest{Email: "login@example.com", Password: "wrong-password"})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for bad password, got %d", resp.Code)
	}
}

func TestLoginCarriesShopClaim(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	shop := models.Shop{Name: "Claim Shop"}
	if err := db.Create(&shop).Error; err != nil {
		t.Fatalf("Failed to create shop: %v", err)
	}
	hash, _ := HashPassword("password123")
	user := models.User{Email: "claims@example.com", PasswordHash: hash, Role: models.RoleMerchant, ShopID: &shop.ID}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	resp := postJSON(router, "/auth/token", LoginRequest{Email: "claims@example.com", Password: "password123"})
	if resp.Code != http.StatusOK {
		t.Fatalf("Login failed: %d", resp.Code)
	}

	var body AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &body)

	claims, err := ValidateToken(body.Token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.ShopID != shop.ID {
		t.Errorf("Expected shop claim %s, got %s", shop.ID, claims.ShopID)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-1", "rt@example.com", "admin", "")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "rt@example.com" || claims.Role != "admin" {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := ValidateToken("not-a-jwt"); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(), func(c *gin.Context) {
		userID, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})

	// No header
	req, _ := http.NewRequest("GET", "/protected", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without header, got %d", resp.Code)
	}

	// Valid token
	token, _ := GenerateToken("user-42", "mw@example.com", "merchant", "shop-1")
	req, _ = http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid token, got %d", resp.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(), RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	merchantToken, _ := GenerateToken("u1", "m@example.com", "merchant", "shop-1")
	req, _ := http.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+merchantToken)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for merchant, got %d", resp.Code)
	}

	adminToken, _ := GenerateToken("u2", "a@example.com", "admin", "")
	req, _ = http.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Errorf("Expected 200 for admin, got %d", resp.Code)
	}
}

func TestCanAccessShop(t *testing.T) {
	gin.SetMode(gin.TestMode)

	check := func(role, shopID, target string) bool {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextKeyRole, role)
		c.Set(ContextKeyShopID, shopID)
		return CanAccessShop(c, target)
	}

	if !check("admin", "", "any-shop") {
		t.Error("Admin should access any shop")
	}
	if !check("merchant", "shop-1", "shop-1") {
		t.Error("Merchant should access own shop")
	}
	if check("merchant", "shop-1", "shop-2") {
		t.Error("Merchant must not access another shop")
	}
	if check("merchant", "", "shop-2") {
		t.Error("Merchant without a shop must not access any shop")
	}
}
