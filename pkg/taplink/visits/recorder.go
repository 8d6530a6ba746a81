// Package visits appends the audit trail of tag resolutions.
package visits

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/allvalue/taplink/pkg/taplink/models"
)

// ClientMeta carries the request metadata captured alongside a visit
type ClientMeta struct {
	UserAgent string
	Referer   string
}

// Recorder appends visit records. It reports failures honestly; deciding
// to ignore them belongs to the caller.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates a visit recorder on the given connection
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one visit for the tag. Visits are write-once; nothing
// ever updates them.
func (r *Recorder) Record(ctx context.Context, tagID string, meta ClientMeta) (*models.Visit, error) {
	visit := models.Visit{
		TagID:     tagID,
		UserAgent: meta.UserAgent,
		Referer:   meta.Referer,
	}
	if err := r.db.WithContext(ctx).Create(&visit).Error; err != nil {
		return nil, fmt.Errorf("record visit: %w", err)
	}
	return &visit, nil
}
