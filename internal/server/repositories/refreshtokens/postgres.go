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

const selectColumns = `id, user_id, family_id, token_hash, fingerprint, status, expires_at, created_at, deactivated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, fingerprint, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.FamilyID, token.TokenHash, token.Fingerprint,
		string(token.Status), token.ExpiresAt, token.CreatedAt,
	); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	return r.findOne(ctx, query, tokenHash)
}

func (r *PostgresRepository) FindByHashForUpdate(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`
	return r.findOne(ctx, query, tokenHash)
}

func (r *PostgresRepository) findOne(ctx context.Context, query string, args ...any) (*models.RefreshToken, error) {
	var (
		token         models.RefreshToken
		status        string
		deactivatedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&token.ID, &token.UserID, &token.FamilyID, &token.TokenHash, &token.Fingerprint,
		&status, &token.ExpiresAt, &token.CreatedAt, &deactivatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	token.Status = models.TokenStatus(status)
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		token.DeactivatedAt = &t
	}
	return &token, nil
}

func (r *PostgresRepository) ListFamily(ctx context.Context, familyID string) ([]models.RefreshToken, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE family_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.RefreshToken
	for rows.Next() {
		var (
			token         models.RefreshToken
			status        string
			deactivatedAt sql.NullTime
		)
		if err := rows.Scan(
			&token.ID, &token.UserID, &token.FamilyID, &token.TokenHash, &token.Fingerprint,
			&status, &token.ExpiresAt, &token.CreatedAt, &deactivatedAt,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		token.Status = models.TokenStatus(status)
		if deactivatedAt.Valid {
			t := deactivatedAt.Time
			token.DeactivatedAt = &t
		}
		result = append(result, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, tokenID string, status models.TokenStatus, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET status = $2, deactivated_at = $3
		WHERE id = $1 AND status = 'active'
	`
	n, err := r.exec(ctx, query, tokenID, string(status), at)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID string, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET status = 'revoked', deactivated_at = $2
		WHERE family_id = $1 AND status = 'active'
	`
	return r.exec(ctx, query, familyID, at)
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET status = 'revoked', deactivated_at = $2
		WHERE user_id = $1 AND status = 'active'
	`
	return r.exec(ctx, query, userID, at)
}

func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, expiredBefore, deactivatedBefore time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
		   OR (deactivated_at IS NOT NULL AND deactivated_at < $2)
	`
	return r.exec(ctx, query, expiredBefore, deactivatedBefore)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
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
