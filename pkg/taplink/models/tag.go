package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TagStatus is the lifecycle state of a physical NFC tag.
// Transitions only move forward: unused, then encoded, then active.
type TagStatus string

const (
	TagStatusUnused  TagStatus = "unused"
	TagStatusEncoded TagStatus = "encoded"
	TagStatusActive  TagStatus = "active"
)

// Valid reports whether s is one of the known statuses
func (s TagStatus) Valid() bool {
	switch s {
	case TagStatusUnused, TagStatusEncoded, TagStatusActive:
		return true
	}
	return false
}

// CanAdvanceTo reports whether the transition from s to next is allowed.
// Active is terminal; nothing skips a step or moves backwards.
func (s TagStatus) CanAdvanceTo(next TagStatus) bool {
	switch s {
	case TagStatusUnused:
		return next == TagStatusEncoded
	case TagStatusEncoded:
		return next == TagStatusActive
	case TagStatusActive:
		return false
	}
	return false
}

// NDEFPayload is the record written onto the physical chip.
// Stored as a JSON column; the URI embeds the resolution token.
type NDEFPayload struct {
	URI string `json:"uri"`
}

// Value implements driver.Valuer for JSON storage
func (p NDEFPayload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSON storage
func (p *NDEFPayload) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*p = NDEFPayload{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	}
	return fmt.Errorf("unsupported NDEF payload column type %T", value)
}

// Tag represents one physical NFC chip's assigned token and status.
// Token is globally unique and immutable once assigned. ShopID is nullable
// only before issuance completes; issued tags always carry their shop.
type Tag struct {
	ID        string      `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	ShopID    *string     `gorm:"type:varchar(36);index" json:"shop_id"`
	Token     string      `gorm:"uniqueIndex;not null" json:"token"`
	Payload   NDEFPayload `gorm:"type:json" json:"payload"`
	Status    TagStatus   `gorm:"type:varchar(10);default:'unused'" json:"status"`
	EncodedAt *time.Time  `json:"encoded_at,omitempty"`

	// Relationships
	Shop   *Shop   `gorm:"foreignKey:ShopID" json:"shop,omitempty"`
	Visits []Visit `gorm:"foreignKey:TagID" json:"visits,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set
func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
