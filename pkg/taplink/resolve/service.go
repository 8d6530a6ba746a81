// Package resolve turns a tapped tag's token into a content response.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/allvalue/taplink/pkg/taplink/models"
	"github.com/allvalue/taplink/pkg/taplink/store"
	"github.com/allvalue/taplink/pkg/taplink/visits"
)

// ErrTokenNotFound means no tag owns the presented token. It is a negative
// result, not a fault.
var ErrTokenNotFound = errors.New("token not found")

const (
	KindContent = "content"
	KindShop    = "shop"

	// how long a detached visit write may take before it is abandoned
	defaultVisitTimeout = 5 * time.Second
)

// ShopRef identifies the shop a resolution belongs to
type ShopRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resolution is the answer to one tap: either a content item or, when the
// shop has none, the shop identity alone. The shop fallback is a stable
// product behavior, not an error.
type Resolution struct {
	Kind      string  `json:"type"`
	ContentID string  `json:"content_id,omitempty"`
	Title     string  `json:"title,omitempty"`
	Body      string  `json:"body,omitempty"`
	Shop      ShopRef `json:"shop"`
}

// VisitRecorder appends the audit record of a resolution
type VisitRecorder interface {
	Record(ctx context.Context, tagID string, meta visits.ClientMeta) (*models.Visit, error)
}

// Service maps tokens to content. Visit logging is decoupled from the
// response: its availability never gates content availability.
type Service struct {
	db           *gorm.DB
	tags         store.TagStore
	recorder     VisitRecorder
	log          *zap.Logger
	visitTimeout time.Duration
}

// NewService creates a resolution service
func NewService(db *gorm.DB, tags store.TagStore, recorder VisitRecorder, log *zap.Logger) *Service {
	return &Service{
		db:           db,
		tags:         tags,
		recorder:     recorder,
		log:          log,
		visitTimeout: defaultVisitTimeout,
	}
}

// Resolve looks up the tag for a token, records the visit best-effort and
// returns the most recently created content item for the tag's shop, or
// the shop identity when the shop has no content yet.
func (s *Service) Resolve(ctx context.Context, tok string, meta visits.ClientMeta) (*Resolution, error) {
	tag, err := s.tags.FindByToken(ctx, tok)
	if errors.Is(err, store.ErrTagNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}

	s.recordVisit(tag.ID, meta)

	shop := s.shopRef(ctx, tag.ShopID)
	content := s.latestContent(ctx, tag.ShopID)
	if content == nil {
		return &Resolution{Kind: KindShop, Shop: shop}, nil
	}
	return &Resolution{
		Kind:      KindContent,
		ContentID: content.ID,
		Title:     content.Title,
		Body:      content.Body,
		Shop:      shop,
	}, nil
}

// recordVisit appends the visit on a detached context so a slow or failing
// audit write never blocks the response. The outcome still lands in the
// log rather than vanishing.
func (s *Service) recordVisit(tagID string, meta visits.ClientMeta) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.visitTimeout)
		defer cancel()
		if _, err := s.recorder.Record(ctx, tagID, meta); err != nil {
			s.log.Warn("visit record failed", zap.String("tag_id", tagID), zap.Error(err))
		}
	}()
}

// shopRef resolves the owning shop, degrading to a placeholder identity
// for tags whose shop reference is missing or dangling.
func (s *Service) shopRef(ctx context.Context, shopID *string) ShopRef {
	if shopID == nil || *shopID == "" {
		return ShopRef{Name: "Unknown Shop"}
	}

	var shop models.Shop
	err := s.db.WithContext(ctx).First(&shop, "id = ?", *shopID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("shop lookup failed", zap.String("shop_id", *shopID), zap.Error(err))
		}
		return ShopRef{ID: *shopID, Name: "Unknown Shop"}
	}
	return ShopRef{ID: shop.ID, Name: shop.Name}
}

// latestContent picks the most recently created content item for the shop.
// A read failure degrades to the shop fallback instead of failing the tap.
func (s *Service) latestContent(ctx context.Context, shopID *string) *models.ContentItem {
	if shopID == nil || *shopID == "" {
		return nil
	}

	var item models.ContentItem
	err := s.db.WithContext(ctx).
		Where("shop_id = ?", *shopID).
		Order("created_at DESC, id DESC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		s.log.Warn("content lookup failed", zap.String("shop_id", *shopID), zap.Error(err))
		return nil
	}
	return &item
}
