package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/allvalue/taplink/pkg/taplink/models"
)

// GormTagStore implements TagStore on a GORM connection. The connection
// must be opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
type GormTagStore struct {
	db *gorm.DB
}

// NewGormTagStore creates a tag store on the given connection
func NewGormTagStore(db *gorm.DB) *GormTagStore {
	return &GormTagStore{db: db}
}

func (s *GormTagStore) CreateTag(ctx context.Context, shopID *string, token string, payload models.NDEFPayload) (*models.Tag, error) {
	tag := models.Tag{
		ShopID:  shopID,
		Token:   token,
		Payload: payload,
		Status:  models.TagStatusUnused,
	}
	if err := s.db.WithContext(ctx).Create(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateToken, token)
		}
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return &tag, nil
}

func (s *GormTagStore) FindByToken(ctx context.Context, token string) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.WithContext(ctx).First(&tag, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tag by token: %w", err)
	}
	return &tag, nil
}

func (s *GormTagStore) AdvanceStatus(ctx context.Context, tagID string, from, to models.TagStatus) (*models.Tag, error) {
	if !from.CanAdvanceTo(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
	}

	updates := map[string]interface{}{"status": to}
	if to == models.TagStatusEncoded {
		updates["encoded_at"] = time.Now().UTC()
	}

	// Single conditional UPDATE guarded by the expected current status.
	// Concurrent encoders race here; exactly one wins.
	res := s.db.WithContext(ctx).Model(&models.Tag{}).
		Where("id = ? AND status = ?", tagID, from).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("advance tag status: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		var current models.Tag
		err := s.db.WithContext(ctx).First(&current, "id = ?", tagID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("advance tag status: %w", err)
		}
		return nil, fmt.Errorf("%w: tag %s is %s, expected %s", ErrStaleStatus, tagID, current.Status, from)
	}

	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, "id = ?", tagID).Error; err != nil {
		return nil, fmt.Errorf("advance tag status: %w", err)
	}
	return &tag, nil
}

func (s *GormTagStore) ListByShop(ctx context.Context, shopID string) ([]models.Tag, error) {
	var tags []models.Tag
	err := s.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("created_at DESC, id DESC").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("list tags for shop: %w", err)
	}
	return tags, nil
}

func (s *GormTagStore) Transact(ctx context.Context, fn func(TagStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormTagStore{db: tx})
	})
}
