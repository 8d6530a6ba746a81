// Package issuer creates batches of distinct tokens for a shop ahead of
// physical tag encoding.
package issuer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/allvalue/taplink/pkg/taplink/models"
	"github.com/allvalue/taplink/pkg/taplink/store"
	"github.com/allvalue/taplink/pkg/taplink/token"
)

const (
	MinBatchSize = 1
	MaxBatchSize = 10000

	// Token entropy makes collisions statistically unreachable; the bound
	// exists so a broken random source fails loudly instead of spinning.
	maxCollisionRetries = 5
)

var (
	// ErrInvalidCount rejects a batch size outside [1, 10000] before any
	// side effect.
	ErrInvalidCount = errors.New("count must be between 1 and 10000")

	// ErrIssuanceExhausted means token generation kept colliding past the
	// retry bound.
	ErrIssuanceExhausted = errors.New("token generation exhausted collision retries")
)

// IssuanceError reports a failed batch together with how many tags were
// durably committed. The batch runs in one transaction, so Committed is
// zero today; the field keeps the reporting contract if a store without
// batch transactions ever backs the issuer.
type IssuanceError struct {
	Committed int
	Err       error
}

func (e *IssuanceError) Error() string {
	return fmt.Sprintf("batch issuance failed (%d tags committed): %v", e.Committed, e.Err)
}

func (e *IssuanceError) Unwrap() error { return e.Err }

// Issuer orchestrates bulk token creation for a shop
type Issuer struct {
	store store.TagStore
	codec *token.Codec
	log   *zap.Logger
}

// New creates an issuer over the given store and codec
func New(s store.TagStore, codec *token.Codec, log *zap.Logger) *Issuer {
	return &Issuer{store: s, codec: codec, log: log}
}

// IssueBatch creates count distinct tags for the shop and returns their
// tokens in issuance order. The whole batch commits atomically: on any
// failure nothing from the batch is durable and the returned IssuanceError
// says so.
func (i *Issuer) IssueBatch(ctx context.Context, shopID string, count int, prefix string) ([]string, error) {
	if count < MinBatchSize || count > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}

	tokens := make([]string, 0, count)
	err := i.store.Transact(ctx, func(tx store.TagStore) error {
		for n := 0; n < count; n++ {
			tok, err := i.issueOne(ctx, tx, shopID, prefix)
			if err != nil {
				return err
			}
			tokens = append(tokens, tok)
		}
		return nil
	})
	if err != nil {
		return nil, &IssuanceError{Committed: 0, Err: err}
	}

	i.log.Info("issued tag batch",
		zap.String("shop_id", shopID),
		zap.Int("count", count),
		zap.String("prefix", prefix))
	return tokens, nil
}

func (i *Issuer) issueOne(ctx context.Context, tx store.TagStore, shopID, prefix string) (string, error) {
	for attempt := 1; attempt <= maxCollisionRetries; attempt++ {
		tok, err := i.codec.Generate(prefix)
		if err != nil {
			return "", err
		}
		_, err = tx.CreateTag(ctx, &shopID, tok, models.NDEFPayload{URI: i.codec.URI(tok)})
		if err == nil {
			return tok, nil
		}
		if errors.Is(err, store.ErrDuplicateToken) {
			i.log.Warn("token collision, regenerating",
				zap.String("shop_id", shopID),
				zap.Int("attempt", attempt))
			continue
		}
		return "", err
	}
	return "", ErrIssuanceExhausted
}
