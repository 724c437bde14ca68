package tokenstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/cryptox"
	"github.com/dmitrijs2005/skyhaul/internal/server/models"
	"github.com/dmitrijs2005/skyhaul/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/skyhaul/internal/timex"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testUserID = "8f0e2a8e-55a4-4b61-9d6e-2f1f6f0b9a11"

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// newSQLiteStore opens a migrated file-backed SQLite database with one
// registered user and returns a store over it.
func newSQLiteStore(t *testing.T) (*Store, *timex.ManualClock, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	db, m, err := repomanager.Open(ctx, "sqlite:"+filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, m.RunMigrations(ctx, db))

	_, err = m.Users(db).Create(ctx, &models.User{
		ID:           testUserID,
		Email:        "customer@example.com",
		PasswordHash: "x",
		Role:         models.RoleCustomer,
		CreatedAt:    testStart,
	})
	require.NoError(t, err)

	clock := timex.NewManualClock(testStart)
	return New(db, m, WithClock(clock)), clock, db
}

// issueNew starts a family and returns the secret and the stored row.
func issueNew(t *testing.T, s *Store, fingerprint string, lifetime time.Duration) (string, *models.RefreshToken) {
	t.Helper()
	secret, hash, err := cryptox.GenerateToken()
	require.NoError(t, err)

	tok, err := s.Issue(context.Background(), IssueParams{
		UserID:      testUserID,
		FamilyID:    uuid.NewString(),
		TokenHash:   hash,
		Fingerprint: fingerprint,
		ExpiresAt:   s.now().Add(lifetime),
	})
	require.NoError(t, err)
	return secret, tok
}

// rotate consumes secret and issues its successor the way the
// authentication service does.
func rotate(t *testing.T, s *Store, secret string) (string, *models.RefreshToken) {
	t.Helper()
	ctx := context.Background()

	out, err := s.ConsumeToken(ctx, cryptox.HashToken(secret))
	require.NoError(t, err)
	require.Equal(t, OutcomeSucceeded, out.Kind, "rotation source must be consumable")

	next, hash, err := cryptox.GenerateToken()
	require.NoError(t, err)
	tok, err := s.Issue(ctx, IssueParams{
		UserID:      out.Token.UserID,
		FamilyID:    out.Token.FamilyID,
		TokenHash:   hash,
		Fingerprint: out.Token.Fingerprint,
		ExpiresAt:   out.Token.ExpiresAt,
	})
	require.NoError(t, err)
	return next, tok
}

func familyStatuses(t *testing.T, s *Store, familyID string) map[string]models.TokenStatus {
	t.Helper()
	rows, err := s.Family(context.Background(), familyID)
	require.NoError(t, err)
	out := make(map[string]models.TokenStatus, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Status
	}
	return out
}
