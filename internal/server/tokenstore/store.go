// Package tokenstore implements the refresh token state machine on top of
// the refresh token repositories.
//
// A token row starts Active and leaves it exactly once, to Consumed
// (rotated), Revoked (family killed) or TurnedIn (signed out). Every
// transition is a conditional update on status = 'active' executed inside a
// transaction, so concurrent callers cannot both move the same row.
package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/common"
	"github.com/dmitrijs2005/skyhaul/internal/dbx"
	"github.com/dmitrijs2005/skyhaul/internal/logging"
	"github.com/dmitrijs2005/skyhaul/internal/server/models"
	"github.com/dmitrijs2005/skyhaul/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/skyhaul/internal/timex"
	"github.com/google/uuid"
)

// DefaultTxAttempts bounds how often a transaction aborted by a
// serialization failure is started over.
const DefaultTxAttempts = 3

// Store owns every state change of refresh token rows.
type Store struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	txOpts      *sql.TxOptions
	attempts    int
	clock       timex.Clock
	logger      logging.Logger
}

type Option func(*Store)

// WithClock sets the time source used for expiry and deactivation stamps.
func WithClock(c timex.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithTxOptions sets the transaction options. PostgreSQL deployments pass
// repeatable read or serializable; SQLite uses nil.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(s *Store) { s.txOpts = opts }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTxAttempts overrides DefaultTxAttempts.
func WithTxAttempts(n int) Option {
	return func(s *Store) { s.attempts = n }
}

func New(db *sql.DB, m repomanager.RepositoryManager, opts ...Option) *Store {
	s := &Store{
		db:          db,
		repomanager: m,
		attempts:    DefaultTxAttempts,
		clock:       timex.SystemClock{},
		logger:      logging.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "tokenstore")
	return s
}

// now returns the store time at the precision both engines persist.
func (s *Store) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// IssueParams describes a new Active row. A new family uses a fresh
// FamilyID; a rotation reuses the predecessor's FamilyID and ExpiresAt.
type IssueParams struct {
	UserID      string
	FamilyID    string
	TokenHash   string
	Fingerprint string
	ExpiresAt   time.Time
}

// Issue inserts a new Active token row.
func (s *Store) Issue(ctx context.Context, p IssueParams) (*models.RefreshToken, error) {
	token := &models.RefreshToken{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		FamilyID:    p.FamilyID,
		TokenHash:   p.TokenHash,
		Fingerprint: p.Fingerprint,
		Status:      models.TokenStatusActive,
		ExpiresAt:   p.ExpiresAt.UTC().Truncate(time.Microsecond),
		CreatedAt:   s.now(),
	}

	if err := s.repomanager.RefreshTokens(s.db).Create(ctx, token); err != nil {
		return nil, fmt.Errorf("error issuing refresh token: %w", err)
	}

	s.logger.Debug(ctx, "refresh token issued", "family_id", token.FamilyID, "user_id", token.UserID)
	return token, nil
}

// ConsumeToken moves the row identified by tokenHash from Active to
// Consumed. Status is checked before expiry, so a replayed secret is always
// reported as reuse even after the family expired. Non-success outcomes
// leave the row untouched.
//
// Among concurrent callers presenting the same hash at most one observes
// OutcomeSucceeded; the others observe OutcomeAlreadyConsumed.
func (s *Store) ConsumeToken(ctx context.Context, tokenHash string) (ConsumeOutcome, error) {
	var out ConsumeOutcome

	err := dbx.WithTxRetry(ctx, s.db, s.txOpts, s.attempts, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		token, err := repo.FindByHashForUpdate(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				out = ConsumeOutcome{Kind: OutcomeNotFound}
				return nil
			}
			return err
		}

		if o, terminal := terminalOutcome(token); terminal {
			out = o
			return nil
		}

		now := s.now()
		if token.IsExpiredAt(now) {
			out = ConsumeOutcome{Kind: OutcomeExpired, FamilyID: token.FamilyID}
			return nil
		}

		ok, err := repo.Deactivate(ctx, token.ID, models.TokenStatusConsumed, now)
		if err != nil {
			return err
		}
		if !ok {
			// Someone else moved the row between our read and our update.
			out = s.classifyLostRace(ctx, tx, token)
			return nil
		}

		out = ConsumeOutcome{Kind: OutcomeSucceeded, FamilyID: token.FamilyID, Token: token}
		return nil
	})
	if err != nil {
		return ConsumeOutcome{}, fmt.Errorf("error consuming refresh token: %w", err)
	}

	s.logger.Debug(ctx, "refresh token consume", "outcome", out.Kind.String(), "family_id", out.FamilyID)
	return out, nil
}

// classifyLostRace re-reads a row whose conditional update matched nothing.
// If the snapshot still shows it active, the winner's commit is not visible
// to us yet and the row is reported as consumed.
func (s *Store) classifyLostRace(ctx context.Context, tx dbx.DBTX, token *models.RefreshToken) ConsumeOutcome {
	current, err := s.repomanager.RefreshTokens(tx).FindByHash(ctx, token.TokenHash)
	if err == nil {
		if o, terminal := terminalOutcome(current); terminal {
			return o
		}
	}
	return ConsumeOutcome{Kind: OutcomeAlreadyConsumed, FamilyID: token.FamilyID}
}

// Lookup returns the row for tokenHash without changing it, or
// common.ErrorNotFound.
func (s *Store) Lookup(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	return s.repomanager.RefreshTokens(s.db).FindByHash(ctx, tokenHash)
}

// Family returns every row of a family, oldest first.
func (s *Store) Family(ctx context.Context, familyID string) ([]models.RefreshToken, error) {
	return s.repomanager.RefreshTokens(s.db).ListFamily(ctx, familyID)
}

// RevokeFamily moves every Active row of the family to Revoked and returns
// how many rows changed. Revoking an already dead family changes nothing.
func (s *Store) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	var n int64
	err := dbx.WithTxRetry(ctx, s.db, s.txOpts, s.attempts, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = s.repomanager.RefreshTokens(tx).RevokeFamily(ctx, familyID, s.now())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("error revoking token family: %w", err)
	}

	s.logger.Debug(ctx, "token family revoked", "family_id", familyID, "rows", n)
	return n, nil
}

// TurnIn signs out the token identified by tokenHash: an Active row becomes
// TurnedIn and every other Active row of its family becomes Revoked, in one
// transaction. Unknown hashes and repeated calls are no-ops.
func (s *Store) TurnIn(ctx context.Context, tokenHash string) error {
	err := dbx.WithTxRetry(ctx, s.db, s.txOpts, s.attempts, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		token, err := repo.FindByHashForUpdate(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil
			}
			return err
		}

		now := s.now()
		if token.Status == models.TokenStatusActive {
			if _, err := repo.Deactivate(ctx, token.ID, models.TokenStatusTurnedIn, now); err != nil {
				return err
			}
		}

		_, err = repo.RevokeFamily(ctx, token.FamilyID, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("error turning in refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every Active row the user owns, across families.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := dbx.WithTxRetry(ctx, s.db, s.txOpts, s.attempts, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, userID, s.now())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("error revoking user tokens: %w", err)
	}
	return n, nil
}

// DeleteOldTokens removes rows that expired more than expiredForDays ago or
// were deactivated more than deactivatedForDays ago, and returns the count.
func (s *Store) DeleteOldTokens(ctx context.Context, expiredForDays, deactivatedForDays int) (int64, error) {
	now := s.now()
	expiredBefore := now.Add(-time.Duration(expiredForDays) * 24 * time.Hour)
	deactivatedBefore := now.Add(-time.Duration(deactivatedForDays) * 24 * time.Hour)

	n, err := s.repomanager.RefreshTokens(s.db).DeleteOlderThan(ctx, expiredBefore, deactivatedBefore)
	if err != nil {
		return 0, fmt.Errorf("error deleting old refresh tokens: %w", err)
	}
	return n, nil
}
