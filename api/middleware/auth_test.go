package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/boutique-checkout/pkg/auth"
	"github.com/angelmondragon/boutique-checkout/pkg/auth/authtest"
	"github.com/angelmondragon/boutique-checkout/pkg/config"
)

func captureUsername(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = UsernameFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestOptionalAuthDefaultsToAnonymous(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}
	var username string
	handler := OptionalAuth(cfg, nil)(captureUsername(&username))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if username != auth.AnonymousUsername {
		t.Fatalf("expected anonymous user got %q", username)
	}
}

func TestOptionalAuthRejectsInvalidToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 10}
	var username string
	handler := OptionalAuth(cfg, nil)(captureUsername(&username))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if username != "" {
		t.Fatalf("handler should not run, captured %q", username)
	}
}

func TestOptionalAuthAllowsValidToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
	token := authtest.SignAccessToken(t, cfg, time.Now(), uuid.New(), "alice")

	var username string
	handler := OptionalAuth(cfg, nil)(captureUsername(&username))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if username != "alice" {
		t.Fatalf("expected alice got %q", username)
	}
}

func TestOptionalAuthRejectsForeignIssuer(t *testing.T) {
	mintCfg := config.JWTConfig{Secret: "secret", Issuer: "someone-else", ExpirationMinutes: 60}
	token := authtest.SignAccessToken(t, mintCfg, time.Now(), uuid.New(), "alice")

	cfg := config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}
	var username string
	handler := OptionalAuth(cfg, nil)(captureUsername(&username))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
