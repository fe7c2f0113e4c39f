package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/boutique-checkout/api/responses"
	pkgAuth "github.com/angelmondragon/boutique-checkout/pkg/auth"
	"github.com/angelmondragon/boutique-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
)

// OptionalAuth resolves the shopper from a bearer token when one is sent.
// Requests without a token continue as the anonymous user; a token that
// fails verification is rejected.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithUsername(r.Context(), claims.Username)
			if logg != nil {
				ctx = logg.WithUsername(ctx, claims.Username)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
