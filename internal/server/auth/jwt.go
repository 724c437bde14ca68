package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/common"
	"github.com/dmitrijs2005/skyhaul/internal/server/models"
	"github.com/dmitrijs2005/skyhaul/internal/timex"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the principal data embedded into an access token.
// FamilyID links the access token to the refresh family it was minted from.
type Claims struct {
	jwt.RegisteredClaims
	Role           string `json:"role"`
	LinkedEntityID string `json:"lid,omitempty"`
	FamilyID       string `json:"fam,omitempty"`
}

// AccessIssuer mints and verifies short-lived HS256 access tokens.
type AccessIssuer struct {
	secretKey []byte
	validity  time.Duration
	clock     timex.Clock
}

func NewAccessIssuer(secretKey []byte, validity time.Duration, clock timex.Clock) *AccessIssuer {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &AccessIssuer{secretKey: secretKey, validity: validity, clock: clock}
}

// Issue signs an access token for user. The returned time is the token's
// expiry.
func (i *AccessIssuer) Issue(user *models.User, familyID string) (string, time.Time, error) {
	now := i.clock.Now()
	expiresAt := now.Add(i.validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:           string(user.Role),
		LinkedEntityID: user.LinkedEntityID,
		FamilyID:       familyID,
	})

	tokenString, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Parse verifies tokenString and returns its claims. Expired tokens yield
// common.ErrTokenExpired; anything else unusable yields common.ErrInvalidToken.
func (i *AccessIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
