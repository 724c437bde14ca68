package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/common"
	"github.com/dmitrijs2005/skyhaul/internal/dbx"
	"github.com/dmitrijs2005/skyhaul/internal/server/models"
)

// SQLiteRepository implements Repository for the embedded SQLite engine.
// Timestamps are stored as unix microseconds. SQLite has no row locks, so
// FindByHashForUpdate relies on the database-level write lock taken by the
// conditional update that follows it.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository constructs a repository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func toMicros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func (r *SQLiteRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, fingerprint, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.FamilyID, token.TokenHash, token.Fingerprint,
		string(token.Status), toMicros(token.ExpiresAt), toMicros(token.CreatedAt),
	); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `SELECT ` + selectColumns + ` FROM refresh_tokens WHERE token_hash = ?`

	token, err := scanSQLite(r.db.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *SQLiteRepository) FindByHashForUpdate(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	return r.FindByHash(ctx, tokenHash)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*models.RefreshToken, error) {
	var (
		token         models.RefreshToken
		status        string
		expiresAt     int64
		createdAt     int64
		deactivatedAt sql.NullInt64
	)
	if err := row.Scan(
		&token.ID, &token.UserID, &token.FamilyID, &token.TokenHash, &token.Fingerprint,
		&status, &expiresAt, &createdAt, &deactivatedAt,
	); err != nil {
		return nil, err
	}
	token.Status = models.TokenStatus(status)
	token.ExpiresAt = fromMicros(expiresAt)
	token.CreatedAt = fromMicros(createdAt)
	if deactivatedAt.Valid {
		t := fromMicros(deactivatedAt.Int64)
		token.DeactivatedAt = &t
	}
	return &token, nil
}

func (r *SQLiteRepository) ListFamily(ctx context.Context, familyID string) ([]models.RefreshToken, error) {
	query := `SELECT ` + selectColumns + ` FROM refresh_tokens WHERE family_id = ? ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.RefreshToken
	for rows.Next() {
		token, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Deactivate(ctx context.Context, tokenID string, status models.TokenStatus, at time.Time) (bool, error) {
	query := `UPDATE refresh_tokens SET status = ?, deactivated_at = ? WHERE id = ? AND status = 'active'`
	n, err := r.exec(ctx, query, string(status), toMicros(at), tokenID)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLiteRepository) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	query := `UPDATE refresh_tokens SET status = 'revoked', deactivated_at = ? WHERE family_id = ? AND status = 'active'`
	return r.exec(ctx, query, toMicros(at), familyID)
}

func (r *SQLiteRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `UPDATE refresh_tokens SET status = 'revoked', deactivated_at = ? WHERE user_id = ? AND status = 'active'`
	return r.exec(ctx, query, toMicros(at), userID)
}

func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, expiredBefore, deactivatedBefore time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < ?
		   OR (deactivated_at IS NOT NULL AND deactivated_at < ?)
	`
	return r.exec(ctx, query, toMicros(expiredBefore), toMicros(deactivatedBefore))
}

func (r *SQLiteRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
