// Package services contains server-side business logic: the identity
// collaborator (UserService) and the authentication orchestrator
// (AuthService) that drives the refresh token store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/common"
	"github.com/dmitrijs2005/skyhaul/internal/cryptox"
	"github.com/dmitrijs2005/skyhaul/internal/server/config"
	"github.com/dmitrijs2005/skyhaul/internal/server/models"
	"github.com/dmitrijs2005/skyhaul/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/skyhaul/internal/timex"
	"github.com/google/uuid"
)

const minPasswordLength = 8

// UserService registers principals and verifies their credentials.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	bcryptCost  int
	clock       timex.Clock

	// dummyHash is compared against when the email is unknown so that
	// both branches of VerifyCredentials cost one bcrypt comparison.
	dummyHash string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, clock timex.Clock) *UserService {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	dummy, _ := cryptox.HashPassword(uuid.NewString(), cfg.BcryptCost)
	return &UserService{
		db:          db,
		repomanager: m,
		bcryptCost:  cfg.BcryptCost,
		clock:       clock,
		dummyHash:   dummy,
	}
}

// SignUpInput is what a new principal provides.
type SignUpInput struct {
	Email          string
	Password       string
	Role           models.Role
	LinkedEntityID string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register validates in and creates the user. A taken email yields
// common.ErrorAlreadyExists; bad input yields common.ErrorValidation.
func (s *UserService) Register(ctx context.Context, in SignUpInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLength)
	}
	role := in.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, in.Role)
	}

	hash, err := cryptox.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		ID:             uuid.NewString(),
		Email:          email,
		PasswordHash:   hash,
		Role:           role,
		LinkedEntityID: in.LinkedEntityID,
		CreatedAt:      s.clock.Now().UTC().Truncate(time.Microsecond),
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// VerifyCredentials returns the principal for email if password matches,
// and common.ErrorUnauthorized otherwise.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = cryptox.CheckPassword(s.dummyHash, password)
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	ok, err := cryptox.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("error checking password: %w", err)
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// FindPrincipalByID reloads a principal so that role and linked entity are
// always current. Unknown ids yield common.ErrorNotFound.
func (s *UserService) FindPrincipalByID(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}
