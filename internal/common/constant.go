// Package common contains shared constants and sentinel errors used across
// skyhaul components.
package common

const (
	// RefreshCookieName is the HttpOnly cookie carrying the refresh secret.
	RefreshCookieName = "refresh_token"

	// RefreshCookiePath scopes the refresh cookie to the auth endpoints.
	RefreshCookiePath = "/api/auth"

	// FingerprintHeaderName lets first-party clients send a stable device tag.
	FingerprintHeaderName = "X-Device-Fingerprint"
)
