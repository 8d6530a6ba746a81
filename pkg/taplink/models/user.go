package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role represents a user's system-wide role
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleMerchant Role = "merchant"
)

// User represents a platform admin or merchant account.
// Merchants are bound to exactly one shop via ShopID.
type User struct {
	ID           string    `gorm:"primarykey;type:varchar(36)" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `gorm:"type:varchar(20);default:'merchant'" json:"role"`
	ShopID       *string   `gorm:"type:varchar(36);index" json:"shop_id,omitempty"`

	// Relationships
	Shop *Shop `gorm:"foreignKey:ShopID" json:"shop,omitempty"`
}

// BeforeCreate assigns a UUID primary key when none is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
