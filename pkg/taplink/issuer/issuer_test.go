package issuer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/allvalue/taplink/pkg/taplink/models"
	"github.com/allvalue/taplink/pkg/taplink/store"
	"github.com/allvalue/taplink/pkg/taplink/token"
)

func setupIssuer(t *testing.T) (*Issuer, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	codec := token.NewCodec("https://app.example.com")
	return New(store.NewGormTagStore(db), codec, zap.NewNop()), db
}

func createShop(t *testing.T, db *gorm.DB, name string) models.Shop {
	shop := models.Shop{Name: name}
	require.NoError(t, db.Create(&shop).Error)
	return shop
}

func TestIssueBatch(t *testing.T) {
	iss, db := setupIssuer(t)
	shop := createShop(t, db, "Shop A")

	tokens, err := iss.IssueBatch(context.Background(), shop.ID, 3, "shopA-")
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	seen := make(map[string]bool)
	for _, tok := range tokens {
		assert.True(t, strings.HasPrefix(tok, "shopA-"))
		assert.False(t, seen[tok], "tokens must be distinct")
		seen[tok] = true

		var tag models.Tag
		require.NoError(t, db.First(&tag, "token = ?", tok).Error)
		assert.Equal(t, models.TagStatusUnused, tag.Status)
		require.NotNil(t, tag.ShopID)
		assert.Equal(t, shop.ID, *tag.ShopID)
		assert.Equal(t, "https://app.example.com/t/"+tok, tag.Payload.URI)
	}
}

func TestIssueBatchInvalidCount(t *testing.T) {
	iss, db := setupIssuer(t)
	shop := createShop(t, db, "Shop B")

	for _, count := range []int{0, -1, 10001} {
		_, err := iss.IssueBatch(context.Background(), shop.ID, count, "")
		assert.ErrorIs(t, err, ErrInvalidCount, "count %d", count)
	}

	var tags int64
	db.Model(&models.Tag{}).Count(&tags)
	assert.Zero(t, tags, "rejected batches must persist nothing")
}

// collidingStore wraps a real store and forces the first n inserts to
// collide, to exercise the regenerate-and-retry path.
type collidingStore struct {
	store.TagStore
	mu         sync.Mutex
	collisions int
}

func (c *collidingStore) CreateTag(ctx context.Context, shopID *string, tok string, payload models.NDEFPayload) (*models.Tag, error) {
	c.mu.Lock()
	collide := c.collisions > 0
	if collide {
		c.collisions--
	}
	c.mu.Unlock()
	if collide {
		return nil, store.ErrDuplicateToken
	}
	return c.TagStore.CreateTag(ctx, shopID, tok, payload)
}

func TestIssueBatchRetriesOnCollision(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	shop := createShop(t, db, "Shop C")

	// Collisions injected outside the transaction wrapper so they apply
	// to the inner store the issuer actually writes through.
	inner := &collidingStore{TagStore: store.NewGormTagStore(db), collisions: 3}
	iss := New(&passthroughTx{inner: inner}, token.NewCodec("https://x"), zap.NewNop())

	tokens, err := iss.IssueBatch(context.Background(), shop.ID, 2, "")
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

// passthroughTx hands the same store to Transact callbacks, keeping
// injected collision state visible inside the "transaction".
type passthroughTx struct {
	inner store.TagStore
}

func (p *passthroughTx) CreateTag(ctx context.Context, shopID *string, tok string, payload models.NDEFPayload) (*models.Tag, error) {
	return p.inner.CreateTag(ctx, shopID, tok, payload)
}

func (p *passthroughTx) FindByToken(ctx context.Context, tok string) (*models.Tag, error) {
	return p.inner.FindByToken(ctx, tok)
}

func (p *passthroughTx) AdvanceStatus(ctx context.Context, tagID string, from, to models.TagStatus) (*models.Tag, error) {
	return p.inner.AdvanceStatus(ctx, tagID, from, to)
}

func (p *passthroughTx) ListByShop(ctx context.Context, shopID string) ([]models.Tag, error) {
	return p.inner.ListByShop(ctx, shopID)
}

func (p *passthroughTx) Transact(ctx context.Context, fn func(store.TagStore) error) error {
	return fn(p.inner)
}

func TestIssueBatchExhaustsRetries(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	shop := createShop(t, db, "Shop D")

	inner := &collidingStore{TagStore: store.NewGormTagStore(db), collisions: 1 << 20}
	iss := New(&passthroughTx{inner: inner}, token.NewCodec("https://x"), zap.NewNop())

	_, err = iss.IssueBatch(context.Background(), shop.ID, 1, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIssuanceExhausted)

	var issErr *IssuanceError
	require.ErrorAs(t, err, &issErr)
	assert.Zero(t, issErr.Committed)
}

func TestIssueBatchConcurrentUniqueness(t *testing.T) {
	// A file-backed database so concurrent batches contend on a real
	// uniqueness constraint rather than separate in-memory databases.
	dsn := filepath.Join(t.TempDir(), "issuer.db") + "?_busy_timeout=10000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	shop := createShop(t, db, "Shop E")

	iss := New(store.NewGormTagStore(db), token.NewCodec("https://x"), zap.NewNop())

	const batches = 4
	const perBatch = 50
	results := make([][]string, batches)
	errs := make([]error, batches)

	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			results[b], errs[b] = iss.IssueBatch(context.Background(), shop.ID, perBatch, "")
		}(b)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for b := 0; b < batches; b++ {
		require.NoError(t, errs[b], "batch %d", b)
		require.Len(t, results[b], perBatch)
		for _, tok := range results[b] {
			assert.False(t, seen[tok], "token %s issued twice", tok)
			seen[tok] = true
		}
	}
	assert.Len(t, seen, batches*perBatch)

	var count int64
	db.Model(&models.Tag{}).Count(&count)
	assert.EqualValues(t, batches*perBatch, count)
}

func TestIssuanceErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &IssuanceError{Committed: 0, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "0 tags committed")
}
