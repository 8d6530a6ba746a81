package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContentItem represents a piece of content shown when a shop's tag is tapped
type ContentItem struct {
	ID        string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ShopID    string    `gorm:"type:varchar(36);not null;index" json:"shop_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedBy string    `json:"created_by,omitempty"`

	// Relationships
	Shop *Shop `gorm:"foreignKey:ShopID" json:"shop,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set
func (c *ContentItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
