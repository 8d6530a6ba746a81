// Package admin hosts platform-operator endpoints: merchant onboarding,
// payload migrations and system stats.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"

	"github.com/allvalue/taplink/pkg/taplink/auth"
	"github.com/allvalue/taplink/pkg/taplink/models"
	"github.com/allvalue/taplink/pkg/taplink/token"
)

const (
	usernameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Handler handles admin requests
type Handler struct {
	db    *gorm.DB
	codec *token.Codec
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, codec *token.Codec) *Handler {
	return &Handler{db: db, codec: codec}
}

// MerchantCredential is the one-time credential handed to a new merchant
type MerchantCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	ShopID   string `json:"shop_id"`
}

// CreateMerchant onboards a merchant: POST /admin/merchants
// Creates a fresh shop plus a merchant user with generated credentials.
// The plaintext password appears only in this response.
func (h *Handler) CreateMerchant(c *gin.Context) {
	username, err := gonanoid.Generate(usernameAlphabet, 8)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate credentials"})
		return
	}
	password, err := gonanoid.Generate(passwordAlphabet, 12)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate credentials"})
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	email := username + "@merchant.local"
	shop := models.Shop{Name: "Shop " + username}
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&shop).Error; err != nil {
			return err
		}
		user := models.User{
			Email:        email,
			PasswordHash: hash,
			Role:         models.RoleMerchant,
			ShopID:       &shop.ID,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create merchant"})
		return
	}

	c.JSON(http.StatusCreated, MerchantCredential{
		Username: username,
		Password: password,
		Email:    email,
		ShopID:   shop.ID,
	})
}

// MigrateTagURIs rewrites every stored NDEF payload URI against the current
// base URL: POST /admin/migrate_tag_uris
// Needed when the public domain moves after tags were issued.
func (h *Handler) MigrateTagURIs(c *gin.Context) {
	var tags []models.Tag
	if err := h.db.WithContext(c.Request.Context()).Find(&tags).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tags"})
		return
	}

	migrated := 0
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for _, tag := range tags {
			uri := h.codec.URI(tag.Token)
			if tag.Payload.URI == uri {
				continue
			}
			if err := tx.Model(&models.Tag{}).Where("id = ?", tag.ID).
				Update("payload", models.NDEFPayload{URI: uri}).Error; err != nil {
				return err
			}
			migrated++
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to migrate tag URIs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"migrated": migrated})
}

// StatsResponse represents platform totals
type StatsResponse struct {
	TotalShops    int64 `json:"total_shops"`
	TotalUsers    int64 `json:"total_users"`
	TotalTags     int64 `json:"total_tags"`
	UnusedTags    int64 `json:"unused_tags"`
	EncodedTags   int64 `json:"encoded_tags"`
	ActiveTags    int64 `json:"active_tags"`
	TotalVisits   int64 `json:"total_visits"`
	TotalContents int64 `json:"total_contents"`
}

// Stats returns platform totals: GET /admin/stats
func (h *Handler) Stats(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())

	var stats StatsResponse
	db.Model(&models.Shop{}).Count(&stats.TotalShops)
	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.Tag{}).Count(&stats.TotalTags)
	db.Model(&models.Tag{}).Where("status = ?", models.TagStatusUnused).Count(&stats.UnusedTags)
	db.Model(&models.Tag{}).Where("status = ?", models.TagStatusEncoded).Count(&stats.EncodedTags)
	db.Model(&models.Tag{}).Where("status = ?", models.TagStatusActive).Count(&stats.ActiveTags)
	db.Model(&models.Visit{}).Count(&stats.TotalVisits)
	db.Model(&models.ContentItem{}).Count(&stats.TotalContents)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/merchants", h.CreateMerchant)
	rg.POST("/migrate_tag_uris", h.MigrateTagURIs)
	rg.GET("/stats", h.Stats)
}
