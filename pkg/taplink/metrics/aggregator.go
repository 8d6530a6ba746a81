// Package metrics computes the per-shop counts behind merchant dashboards.
package metrics

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/allvalue/taplink/pkg/taplink/models"
)

// RecentContentLimit caps the content list on a dashboard
const RecentContentLimit = 50

// ShopRef identifies the shop a metrics response belongs to
type ShopRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ContentEntry is one row of the dashboard's recent-content list
type ContentEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ShopMetrics is a dashboard response. Each field is computed by an
// independent sub-query and defaults for that field alone when its read
// fails; the response as a whole never errors.
type ShopMetrics struct {
	Shop     ShopRef        `json:"shop"`
	Visits   int64          `json:"visits"`
	Reviews  int64          `json:"reviews"`
	Contents []ContentEntry `json:"contents"`
}

// ShopSummary is one row of the shops overview with lifetime counts
type ShopSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Visits  int64  `json:"visits"`
	Reviews int64  `json:"reviews"`
}

// Scope restricts which shops a summaries call may see. The aggregator
// never implicitly returns cross-tenant data; callers always say whether
// they want all shops or exactly one.
type Scope struct {
	shopID string
	all    bool
}

// ScopeAll covers every shop (admin callers)
func ScopeAll() Scope { return Scope{all: true} }

// ScopeShop covers exactly one shop (merchant callers)
func ScopeShop(shopID string) Scope { return Scope{shopID: shopID} }

// Aggregator computes visit and content counts on demand. Daily boundaries
// use UTC and are recomputed per call.
type Aggregator struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// NewAggregator creates an aggregator on the given connection
func NewAggregator(db *gorm.DB, log *zap.Logger) *Aggregator {
	return &Aggregator{db: db, log: log, now: time.Now}
}

// ShopMetrics returns today's visit count, today's content-creation count
// and the most recent content items for one shop. Sub-queries run in
// parallel; each contains its own failure. A dashboard partially populated
// beats an error page, so this method has no error return.
func (a *Aggregator) ShopMetrics(ctx context.Context, shopID string) *ShopMetrics {
	dayStart := a.todayStart()
	m := &ShopMetrics{
		Shop:     ShopRef{ID: shopID, Name: "Unknown Shop"},
		Contents: []ContentEntry{},
	}

	var shop models.Shop
	if err := a.db.WithContext(ctx).First(&shop, "id = ?", shopID).Error; err == nil {
		m.Shop.Name = shop.Name
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		a.log.Warn("shop lookup failed", zap.String("shop_id", shopID), zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.Visits = a.todayVisitCount(gctx, shopID, dayStart)
		return nil
	})
	g.Go(func() error {
		m.Reviews = a.todayContentCount(gctx, shopID, dayStart)
		return nil
	})
	g.Go(func() error {
		m.Contents = a.recentContents(gctx, shopID)
		return nil
	})
	g.Wait()

	return m
}

// ShopSummaries returns lifetime visit and content counts for the shops the
// scope allows. Per-shop count failures degrade to zero.
func (a *Aggregator) ShopSummaries(ctx context.Context, scope Scope) ([]ShopSummary, error) {
	query := a.db.WithContext(ctx).Order("created_at DESC")
	if !scope.all {
		query = query.Where("id = ?", scope.shopID)
	}

	var shops []models.Shop
	if err := query.Find(&shops).Error; err != nil {
		return nil, err
	}

	summaries := make([]ShopSummary, len(shops))
	for idx, shop := range shops {
		summaries[idx] = ShopSummary{
			ID:      shop.ID,
			Name:    shop.Name,
			Visits:  a.lifetimeVisitCount(ctx, shop.ID),
			Reviews: a.lifetimeContentCount(ctx, shop.ID),
		}
	}
	return summaries, nil
}

// todayStart returns the current UTC day boundary, recomputed per call
func (a *Aggregator) todayStart() time.Time {
	now := a.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (a *Aggregator) shopTagIDs(shopID string) *gorm.DB {
	return a.db.Model(&models.Tag{}).Select("id").Where("shop_id = ?", shopID)
}

func (a *Aggregator) todayVisitCount(ctx context.Context, shopID string, dayStart time.Time) int64 {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.Visit{}).
		Where("tag_id IN (?)", a.shopTagIDs(shopID)).
		Where("created_at >= ?", dayStart).
		Count(&count).Error
	if err != nil {
		a.log.Warn("visit count failed", zap.String("shop_id", shopID), zap.Error(err))
		return 0
	}
	return count
}

func (a *Aggregator) todayContentCount(ctx context.Context, shopID string, dayStart time.Time) int64 {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("shop_id = ?", shopID).
		Where("created_at >= ?", dayStart).
		Count(&count).Error
	if err != nil {
		a.log.Warn("content count failed", zap.String("shop_id", shopID), zap.Error(err))
		return 0
	}
	return count
}

func (a *Aggregator) recentContents(ctx context.Context, shopID string) []ContentEntry {
	var items []models.ContentItem
	err := a.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("created_at DESC, id DESC").
		Limit(RecentContentLimit).
		Find(&items).Error
	if err != nil {
		a.log.Warn("recent contents failed", zap.String("shop_id", shopID), zap.Error(err))
		return []ContentEntry{}
	}

	entries := make([]ContentEntry, len(items))
	for i, item := range items {
		entries[i] = ContentEntry{
			ID:        item.ID,
			Title:     item.Title,
			CreatedBy: item.CreatedBy,
			CreatedAt: item.CreatedAt,
		}
	}
	return entries
}

func (a *Aggregator) lifetimeVisitCount(ctx context.Context, shopID string) int64 {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.Visit{}).
		Where("tag_id IN (?)", a.shopTagIDs(shopID)).
		Count(&count).Error
	if err != nil {
		a.log.Warn("lifetime visit count failed", zap.String("shop_id", shopID), zap.Error(err))
		return 0
	}
	return count
}

func (a *Aggregator) lifetimeContentCount(ctx context.Context, shopID string) int64 {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.ContentItem{}).
		Where("shop_id = ?", shopID).
		Count(&count).Error
	if err != nil {
		a.log.Warn("lifetime content count failed", zap.String("shop_id", shopID), zap.Error(err))
		return 0
	}
	return count
}
