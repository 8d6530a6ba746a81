// Package store owns tag persistence: existence, token uniqueness and the
// status state machine. Callers never do read-decide-write against tags;
// every mutation here is a single atomic storage operation.
package store

import (
	"context"
	"errors"

	"github.com/allvalue/taplink/pkg/taplink/models"
)

var (
	// ErrDuplicateToken means a tag with the same token already exists.
	// The losing side of a concurrent insert gets this, never a partial row.
	ErrDuplicateToken = errors.New("token already exists")

	// ErrTagNotFound means no tag owns the given token or id
	ErrTagNotFound = errors.New("tag not found")

	// ErrStaleStatus means a conditional status update lost to a
	// concurrent transition; the caller's view of the tag was stale.
	ErrStaleStatus = errors.New("tag status changed concurrently")

	// ErrInvalidTransition means the requested transition is not part of
	// the forward-only lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// TagStore is the single authority for tag records. Implementations enforce
// token uniqueness as a storage-level constraint.
type TagStore interface {
	// CreateTag inserts a tag in unused status. A concurrent insert with
	// the same token fails with ErrDuplicateToken.
	CreateTag(ctx context.Context, shopID *string, token string, payload models.NDEFPayload) (*models.Tag, error)

	// FindByToken reads the latest committed tag for a token
	FindByToken(ctx context.Context, token string) (*models.Tag, error)

	// AdvanceStatus moves a tag one step forward in its lifecycle. The
	// update is conditional on the current status matching from; a
	// mismatch yields ErrStaleStatus.
	AdvanceStatus(ctx context.Context, tagID string, from, to models.TagStatus) (*models.Tag, error)

	// ListByShop returns a shop's tags, newest first
	ListByShop(ctx context.Context, shopID string) ([]models.Tag, error)

	// Transact runs fn against a store bound to a single transaction.
	// If fn returns an error the transaction rolls back.
	Transact(ctx context.Context, fn func(TagStore) error) error
}
