package models

import "time"

// TokenStatus is the lifecycle state of a refresh token row. Active is the
// only non-terminal state.
type TokenStatus string

const (
	TokenStatusActive   TokenStatus = "active"
	TokenStatusConsumed TokenStatus = "consumed"
	TokenStatusRevoked  TokenStatus = "revoked"
	TokenStatusTurnedIn TokenStatus = "turned_in"
)

// IsTerminal reports whether the status can never change again.
func (s TokenStatus) IsTerminal() bool {
	return s != TokenStatusActive
}

// RefreshToken is one issued refresh secret. Only the hash of the secret is
// stored. Every token rotated out of the same sign-in shares FamilyID and
// ExpiresAt.
type RefreshToken struct {
	ID            string
	UserID        string
	FamilyID      string
	TokenHash     string
	Fingerprint   string
	Status        TokenStatus
	ExpiresAt     time.Time
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// IsExpiredAt reports whether the token is past its absolute expiry at now.
func (t *RefreshToken) IsExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
