package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Visit is the audit record of one tag resolution. Write-once, never updated.
type Visit struct {
	ID        string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	TagID     string    `gorm:"type:varchar(36);not null;index" json:"tag_id"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referer   string    `json:"referer,omitempty"`

	// Relationships
	Tag *Tag `gorm:"foreignKey:TagID" json:"tag,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set
func (v *Visit) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
