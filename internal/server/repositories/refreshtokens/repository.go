// Package refreshtokens declares the server-side repository contract for
// refresh token rows and its PostgreSQL and SQLite implementations.
//
// Repositories are bound to a dbx.DBTX, so the same code runs inside or
// outside a transaction. Status changes are conditional on the row still
// being active; callers learn from the returned flag or count whether they
// won the transition.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/server/models"
)

// Repository defines the row-level operations the token store is built on.
type Repository interface {
	// Create inserts a new token row. The row's ID, status and timestamps
	// must already be set.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash looks up a token by the hash of its secret.
	// Implementations return common.ErrorNotFound when the hash is unknown.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// FindByHashForUpdate is FindByHash that also locks the row until the
	// surrounding transaction ends, on engines that support row locks.
	FindByHashForUpdate(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// ListFamily returns every row of a family, oldest first.
	ListFamily(ctx context.Context, familyID string) ([]models.RefreshToken, error)

	// Deactivate moves one active row to status at the given time. It
	// reports false when the row was not active any more.
	Deactivate(ctx context.Context, tokenID string, status models.TokenStatus, at time.Time) (bool, error)

	// RevokeFamily revokes every active row of the family and returns how
	// many rows changed.
	RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error)

	// RevokeAllForUser revokes every active row owned by userID.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)

	// DeleteOlderThan removes rows that expired before expiredBefore or
	// were deactivated before deactivatedBefore.
	DeleteOlderThan(ctx context.Context, expiredBefore, deactivatedBefore time.Time) (int64, error)
}
