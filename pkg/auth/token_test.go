package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/boutique-checkout/pkg/auth"
	"github.com/angelmondragon/boutique-checkout/pkg/auth/authtest"
	"github.com/angelmondragon/boutique-checkout/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "boutique",
		ExpirationMinutes: 30,
	}
}

func TestParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token := authtest.SignAccessToken(t, cfg, time.Now().UTC(), userID, "ada")

	claims, err := auth.ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Username != "ada" || claims.Subject != "ada" {
		t.Fatalf("unexpected username claims %q/%q", claims.Username, claims.Subject)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be carried")
	}
}

func TestParseRejectsBlankUsername(t *testing.T) {
	cfg := testJWTConfig()
	token := authtest.SignAccessToken(t, cfg, time.Now(), uuid.New(), " ")
	if _, err := auth.ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected blank username to be rejected")
	}
}

func TestParseRequiresSecret(t *testing.T) {
	token := authtest.SignAccessToken(t, testJWTConfig(), time.Now(), uuid.New(), "ada")
	if _, err := auth.ParseAccessToken(config.JWTConfig{Issuer: "boutique"}, token); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	cfg := testJWTConfig()
	expired := authtest.SignAccessToken(t, cfg, time.Now().Add(-2*time.Hour), uuid.New(), "ada")
	if _, err := auth.ParseAccessToken(cfg, expired); err == nil {
		t.Fatal("expected expired token to fail")
	}

	other := cfg
	other.Secret = "other"
	token := authtest.SignAccessToken(t, other, time.Now(), uuid.New(), "ada")
	if _, err := auth.ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected signature mismatch to fail")
	}

	wrongIssuer := cfg
	wrongIssuer.Issuer = "elsewhere"
	token = authtest.SignAccessToken(t, wrongIssuer, time.Now(), uuid.New(), "ada")
	if _, err := auth.ParseAccessToken(cfg, token); err == nil || !strings.Contains(err.Error(), "issuer") {
		t.Fatalf("expected issuer error, got %v", err)
	}
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	cfg := testJWTConfig()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, auth.AccessTokenClaims{
		Username:         "ada",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: cfg.Issuer},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := auth.ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected none algorithm to be rejected")
	}
}
