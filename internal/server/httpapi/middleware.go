package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/skyhaul/internal/common"
	"github.com/dmitrijs2005/skyhaul/internal/server/auth"
	"github.com/labstack/echo/v4"
)

const claimsKey = "claims"

// requestInfo copies the client's device metadata into the request context
// where the fingerprint provider reads it.
func requestInfo(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := auth.WithRequestInfo(req.Context(), auth.RequestInfo{
			DeviceFingerprint: req.Header.Get(common.FingerprintHeaderName),
			UserAgent:         req.UserAgent(),
			RemoteIP:          c.RealIP(),
		})
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// rateLimit throttles a route per client IP. Redis failures let the request
// through.
func (h *Handler) rateLimit(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if h.limiter == nil {
			return next
		}
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			d, err := h.limiter.Allow(ctx, scope, c.RealIP())
			if err != nil {
				h.logger.Warn(ctx, "rate limiter unavailable", "scope", scope, "error", err)
				return next(c)
			}

			hdr := c.Response().Header()
			hdr.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			hdr.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				hdr.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": common.ErrRateLimited.Error()})
			}
			return next(c)
		}
	}
}

// bearer requires a valid access token and stores its claims on the context.
func (h *Handler) bearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hdr := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(hdr, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
		}

		claims, err := h.tokens.Parse(strings.TrimPrefix(hdr, "Bearer "))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, common.ErrTokenExpired) {
				msg = "token expired"
			}
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
		}

		c.Set(claimsKey, claims)
		return next(c)
	}
}
