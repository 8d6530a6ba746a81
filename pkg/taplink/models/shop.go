package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shop represents a merchant storefront that owns tags and content
type Shop struct {
	ID          string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`

	// Relationships
	Tags     []Tag         `gorm:"foreignKey:ShopID" json:"tags,omitempty"`
	Contents []ContentItem `gorm:"foreignKey:ShopID" json:"contents,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set
func (s *Shop) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
