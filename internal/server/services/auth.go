package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/common"
	"github.com/dmitrijs2005/skyhaul/internal/cryptox"
	"github.com/dmitrijs2005/skyhaul/internal/logging"
	"github.com/dmitrijs2005/skyhaul/internal/server/auth"
	"github.com/dmitrijs2005/skyhaul/internal/server/config"
	"github.com/dmitrijs2005/skyhaul/internal/server/events"
	"github.com/dmitrijs2005/skyhaul/internal/server/models"
	"github.com/dmitrijs2005/skyhaul/internal/server/tokenstore"
	"github.com/dmitrijs2005/skyhaul/internal/timex"
	"github.com/google/uuid"
)

// Identity is the principal directory the orchestrator authenticates
// against. *UserService implements it.
type Identity interface {
	Register(ctx context.Context, in SignUpInput) (*models.User, error)
	VerifyCredentials(ctx context.Context, email, password string) (*models.User, error)
	FindPrincipalByID(ctx context.Context, id string) (*models.User, error)
}

// AccessIssuer mints access credentials. *auth.AccessIssuer implements it.
type AccessIssuer interface {
	Issue(user *models.User, familyID string) (string, time.Time, error)
}

// TokenStore is the refresh token state machine. *tokenstore.Store
// implements it.
type TokenStore interface {
	Issue(ctx context.Context, p tokenstore.IssueParams) (*models.RefreshToken, error)
	ConsumeToken(ctx context.Context, tokenHash string) (tokenstore.ConsumeOutcome, error)
	Lookup(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	TurnIn(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// AuthResult is returned by every successful sign-in, sign-up or refresh.
// RefreshToken is the plaintext secret; it is handed to the client once.
type AuthResult struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *models.User
}

// AuthService orchestrates sign-up, sign-in, refresh and sign-out on top of
// the token store, and answers suspected theft by revoking the whole token
// family before rejecting the request.
type AuthService struct {
	identity        Identity
	store           TokenStore
	access          AccessIssuer
	fingerprints    auth.FingerprintProvider
	publisher       events.Publisher
	clock           timex.Clock
	refreshLifetime time.Duration
	logger          logging.Logger
}

func NewAuthService(
	identity Identity,
	store TokenStore,
	access AccessIssuer,
	fingerprints auth.FingerprintProvider,
	publisher events.Publisher,
	cfg *config.Config,
	clock timex.Clock,
	logger logging.Logger,
) *AuthService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if clock == nil {
		clock = timex.SystemClock{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &AuthService{
		identity:        identity,
		store:           store,
		access:          access,
		fingerprints:    fingerprints,
		publisher:       publisher,
		clock:           clock,
		refreshLifetime: cfg.RefreshTokenValidityDuration,
		logger:          logger.With("module", "auth"),
	}
}

// SignUp registers a principal and opens its first token family.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	user, err := s.identity.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.startFamily(ctx, user)
}

// SignIn verifies credentials and opens a new token family.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.identity.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.startFamily(ctx, user)
}

func (s *AuthService) startFamily(ctx context.Context, user *models.User) (*AuthResult, error) {
	familyID := uuid.NewString()
	expiresAt := s.clock.Now().Add(s.refreshLifetime)

	secret, hash, err := cryptox.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	token, err := s.store.Issue(ctx, tokenstore.IssueParams{
		UserID:      user.ID,
		FamilyID:    familyID,
		TokenHash:   hash,
		Fingerprint: s.fingerprints.Current(ctx),
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, err
	}

	return s.result(user, token, secret)
}

func (s *AuthService) result(user *models.User, token *models.RefreshToken, secret string) (*AuthResult, error) {
	access, accessExp, err := s.access.Issue(user, token.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("error issuing access token: %w", err)
	}
	return &AuthResult{
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          secret,
		RefreshTokenExpiresAt: token.ExpiresAt,
		User:                  user,
	}, nil
}

// Refresh exchanges a refresh secret for a new access token and a new
// secret in the same family. Rejections are common.ErrInvalidRefreshToken or
// common.ErrRefreshTokenExpired; any other error is a persistence failure.
func (s *AuthService) Refresh(ctx context.Context, secret string) (*AuthResult, error) {
	if secret == "" {
		return nil, common.ErrInvalidRefreshToken
	}

	fingerprint := s.fingerprints.Current(ctx)
	out, err := s.store.ConsumeToken(ctx, cryptox.HashToken(secret))
	if err != nil {
		return nil, err
	}

	switch out.Kind {
	case tokenstore.OutcomeNotFound:
		s.logger.Info(ctx, "refresh rejected", "reason", out.Kind.String())
		return nil, common.ErrInvalidRefreshToken

	case tokenstore.OutcomeAlreadyConsumed, tokenstore.OutcomeAlreadyRevoked, tokenstore.OutcomeAlreadyTurnedIn:
		if err := s.revokeCompromised(ctx, events.TypeRefreshReuse, out.FamilyID, "", out.Kind.String()); err != nil {
			return nil, err
		}
		return nil, common.ErrInvalidRefreshToken

	case tokenstore.OutcomeExpired:
		s.logger.Info(ctx, "refresh rejected", "reason", out.Kind.String(), "family_id", out.FamilyID)
		return nil, common.ErrRefreshTokenExpired
	}

	old := out.Token
	if !sameFingerprint(fingerprint, old.Fingerprint) {
		if err := s.revokeCompromised(ctx, events.TypeFingerprintMismatch, old.FamilyID, old.UserID, "fingerprint_mismatch"); err != nil {
			return nil, err
		}
		return nil, common.ErrInvalidRefreshToken
	}

	user, err := s.identity.FindPrincipalByID(ctx, old.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			if _, err := s.store.RevokeFamily(ctx, old.FamilyID); err != nil {
				return nil, err
			}
			s.logger.Warn(ctx, "refresh for unknown principal", "family_id", old.FamilyID, "user_id", old.UserID)
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, err
	}

	next, hash, err := cryptox.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}
	token, err := s.store.Issue(ctx, tokenstore.IssueParams{
		UserID:      old.UserID,
		FamilyID:    old.FamilyID,
		TokenHash:   hash,
		Fingerprint: old.Fingerprint,
		ExpiresAt:   old.ExpiresAt,
	})
	if err != nil {
		return nil, err
	}

	return s.result(user, token, next)
}

// SignOut turns in the presented secret. A fingerprint mismatch revokes the
// family instead. Unknown secrets are ignored; only persistence failures
// are returned.
func (s *AuthService) SignOut(ctx context.Context, secret string) error {
	if secret == "" {
		return nil
	}

	fingerprint := s.fingerprints.Current(ctx)
	hash := cryptox.HashToken(secret)

	token, err := s.store.Lookup(ctx, hash)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if token != nil && !sameFingerprint(fingerprint, token.Fingerprint) {
		return s.revokeCompromised(ctx, events.TypeSignOutMismatch, token.FamilyID, token.UserID, "fingerprint_mismatch")
	}

	return s.store.TurnIn(ctx, hash)
}

// SignOutEverywhere revokes every refresh token the user holds.
func (s *AuthService) SignOutEverywhere(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "signed out everywhere", "user_id", userID, "rows", n)
	return n, nil
}

// revokeCompromised kills the family, then logs and publishes the event.
// Publishing failures never change the outcome.
func (s *AuthService) revokeCompromised(ctx context.Context, eventType, familyID, userID, reason string) error {
	n, err := s.store.RevokeFamily(ctx, familyID)
	if err != nil {
		return err
	}

	s.logger.Warn(ctx, "refresh token family revoked",
		"event", eventType, "family_id", familyID, "user_id", userID, "reason", reason, "rows", n)

	ev := events.SecurityEvent{
		Type:        eventType,
		UserID:      userID,
		FamilyID:    familyID,
		Reason:      reason,
		RevokedRows: n,
		OccurredAt:  s.clock.Now().UTC(),
	}
	if err := s.publisher.PublishSecurityEvent(ctx, ev); err != nil {
		s.logger.Error(ctx, "error publishing security event", "event", eventType, "family_id", familyID, "error", err)
	}
	return nil
}

func sameFingerprint(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
