// Package cryptox holds the secret handling used by the auth server:
// opaque refresh token generation and hashing, and password hashing.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// TokenBytes is the amount of entropy in a refresh token secret.
const TokenBytes = 32

// GenerateRandByteArray returns size bytes from crypto/rand.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateToken returns a fresh refresh token secret and the hash under
// which it is stored. Only the hash is ever persisted; the secret goes to
// the client once.
func GenerateToken() (secret, hash string, err error) {
	b, err := GenerateRandByteArray(TokenBytes)
	if err != nil {
		return "", "", err
	}
	secret = base64.RawURLEncoding.EncodeToString(b)
	return secret, HashToken(secret), nil
}

// HashToken derives the lookup key for a presented secret.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// HashFingerprint reduces a raw device fingerprint (header value or user
// agent) to a fixed-size hex digest. Empty input stays empty.
func HashFingerprint(raw string) string {
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
