// Package httpapi is the JSON/HTTP surface of the auth server: credential
// endpoints, the refresh cookie and the request metadata the token store
// relies on.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/common"
	"github.com/dmitrijs2005/skyhaul/internal/logging"
	"github.com/dmitrijs2005/skyhaul/internal/server/auth"
	"github.com/dmitrijs2005/skyhaul/internal/server/models"
	"github.com/dmitrijs2005/skyhaul/internal/server/ratelimit"
	"github.com/dmitrijs2005/skyhaul/internal/server/services"
	"github.com/labstack/echo/v4"
)

// AuthAPI is implemented by services.AuthService.
type AuthAPI interface {
	SignUp(ctx context.Context, in services.SignUpInput) (*services.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, secret string) (*services.AuthResult, error)
	SignOut(ctx context.Context, secret string) error
	SignOutEverywhere(ctx context.Context, userID string) (int64, error)
}

// TokenParser validates bearer access tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// RateLimiter is implemented by ratelimit.Limiter.
type RateLimiter interface {
	Allow(ctx context.Context, scope, key string) (ratelimit.Decision, error)
}

type Handler struct {
	auth          AuthAPI
	tokens        TokenParser
	limiter       RateLimiter
	secureCookies bool
	logger        logging.Logger
}

// NewHandler wires the endpoints. limiter may be nil to disable throttling.
func NewHandler(a AuthAPI, tokens TokenParser, limiter RateLimiter, secureCookies bool, l logging.Logger) *Handler {
	if l == nil {
		l = logging.Nop()
	}
	return &Handler{
		auth:          a,
		tokens:        tokens,
		limiter:       limiter,
		secureCookies: secureCookies,
		logger:        l.With("module", "httpapi"),
	}
}

type signUpReq struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	LinkedEntityID string `json:"linked_entity_id"`
}

type signInReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type userResp struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	LinkedEntityID string `json:"linked_entity_id,omitempty"`
}

type authResp struct {
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	User                  *userResp `json:"user,omitempty"`
}

func toUserResp(u *models.User) *userResp {
	if u == nil {
		return nil
	}
	return &userResp{ID: u.ID, Email: u.Email, Role: string(u.Role), LinkedEntityID: u.LinkedEntityID}
}

func toAuthResp(r *services.AuthResult, withUser bool) authResp {
	resp := authResp{
		AccessToken:           r.AccessToken,
		AccessTokenExpiresAt:  r.AccessTokenExpiresAt,
		RefreshToken:          r.RefreshToken,
		RefreshTokenExpiresAt: r.RefreshTokenExpiresAt,
	}
	if withUser {
		resp.User = toUserResp(r.User)
	}
	return resp
}

func (h *Handler) SignUp(c echo.Context) error {
	var req signUpReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	res, err := h.auth.SignUp(c.Request().Context(), services.SignUpInput{
		Email:          req.Email,
		Password:       req.Password,
		Role:           models.Role(req.Role),
		LinkedEntityID: req.LinkedEntityID,
	})
	if err != nil {
		return h.credentialError(c, err)
	}

	h.setRefreshCookie(c, res.RefreshToken, res.RefreshTokenExpiresAt)
	return c.JSON(http.StatusCreated, toAuthResp(res, true))
}

func (h *Handler) SignIn(c echo.Context) error {
	var req signInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	res, err := h.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.credentialError(c, err)
	}

	h.setRefreshCookie(c, res.RefreshToken, res.RefreshTokenExpiresAt)
	return c.JSON(http.StatusOK, toAuthResp(res, true))
}

func (h *Handler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	res, err := h.auth.Refresh(ctx, h.presentedSecret(c))
	if err != nil {
		if !errors.Is(err, common.ErrInvalidRefreshToken) && !errors.Is(err, common.ErrRefreshTokenExpired) {
			h.logger.Error(ctx, "refresh failed", "error", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		h.clearRefreshCookie(c)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": common.ErrInvalidRefreshToken.Error()})
	}

	h.setRefreshCookie(c, res.RefreshToken, res.RefreshTokenExpiresAt)
	return c.JSON(http.StatusOK, toAuthResp(res, false))
}

// SignOut always answers 204 and clears the cookie; failures are only logged.
func (h *Handler) SignOut(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.auth.SignOut(ctx, h.presentedSecret(c)); err != nil {
		h.logger.Error(ctx, "sign out failed", "error", err)
	}

	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SignOutEverywhere(c echo.Context) error {
	ctx := c.Request().Context()

	claims, ok := c.Get(claimsKey).(*auth.Claims)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	if _, err := h.auth.SignOutEverywhere(ctx, claims.Subject); err != nil {
		h.logger.Error(ctx, "sign out everywhere failed", "user_id", claims.Subject, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// presentedSecret prefers the cookie and falls back to a JSON body.
func (h *Handler) presentedSecret(c echo.Context) string {
	if ck, err := c.Cookie(common.RefreshCookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func (h *Handler) credentialError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, common.ErrorAlreadyExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	case errors.Is(err, common.ErrorUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	default:
		h.logger.Error(c.Request().Context(), "credential request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

func (h *Handler) setRefreshCookie(c echo.Context, secret string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     common.RefreshCookieName,
		Value:    secret,
		Path:     common.RefreshCookiePath,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     common.RefreshCookieName,
		Value:    "",
		Path:     common.RefreshCookiePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
