// Package events publishes security events raised by the authentication
// service to RabbitMQ so that downstream consumers (alerting, audit) can
// react to suspected token theft.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeRefreshReuse        = "refresh_token_reuse"
	TypeFingerprintMismatch = "fingerprint_mismatch"
	TypeSignOutMismatch     = "signout_fingerprint_mismatch"
)

// SecurityEvent describes one theft-suspected family revocation.
type SecurityEvent struct {
	Type        string    `json:"type"`
	UserID      string    `json:"user_id,omitempty"`
	FamilyID    string    `json:"family_id"`
	Reason      string    `json:"reason"`
	RevokedRows int64     `json:"revoked_rows"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishSecurityEvent(ctx context.Context, ev SecurityEvent) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishSecurityEvent(context.Context, SecurityEvent) error { return nil }
