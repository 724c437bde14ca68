package auth

import (
	"context"

	"github.com/dmitrijs2005/skyhaul/internal/cryptox"
)

// RequestInfo holds the per-request client signals the transport layer
// extracts before calling into the services.
type RequestInfo struct {
	DeviceFingerprint string
	UserAgent         string
	RemoteIP          string
}

type requestInfoKey struct{}

// WithRequestInfo attaches info to ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom returns the RequestInfo stored in ctx, if any.
func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

// FingerprintProvider derives the binding tag for the request in ctx.
type FingerprintProvider interface {
	Current(ctx context.Context) string
}

// HeaderFingerprint uses the explicit device fingerprint sent by the client,
// falling back to the user agent. The raw value is hashed so the stored tag
// has a fixed size and never echoes client input.
type HeaderFingerprint struct{}

func (HeaderFingerprint) Current(ctx context.Context) string {
	info, ok := RequestInfoFrom(ctx)
	if !ok {
		return ""
	}
	if info.DeviceFingerprint != "" {
		return cryptox.HashFingerprint(info.DeviceFingerprint)
	}
	return cryptox.HashFingerprint(info.UserAgent)
}

// FingerprintFunc adapts a plain function to FingerprintProvider.
type FingerprintFunc func(ctx context.Context) string

func (f FingerprintFunc) Current(ctx context.Context) string { return f(ctx) }
