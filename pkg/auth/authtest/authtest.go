// Package authtest signs access tokens the way the account service does, for
// tests of code that verifies them.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/boutique-checkout/pkg/auth"
	"github.com/angelmondragon/boutique-checkout/pkg/config"
)

// SignAccessToken returns an HS256 token for username issued at issuedAt and
// valid for cfg.ExpirationMinutes.
func SignAccessToken(tb testing.TB, cfg config.JWTConfig, issuedAt time.Time, userID uuid.UUID, username string) string {
	tb.Helper()
	claims := auth.AccessTokenClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		tb.Fatalf("sign access token: %v", err)
	}
	return signed
}
