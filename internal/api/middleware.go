package api

import (
	"context"
	"net/http"
	"strings"

	"storefront-catalog-service/internal/auth"
)

type tokenVerifier interface {
	VerifyContext(ctx context.Context, token string) (*auth.Claims, error)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireToken rejects requests without a valid bearer token and stores the
// verified claims in the request context.
func RequireToken(v tokenVerifier) func(http.Handler) http.Handler {
	return gate(v, false)
}

// RequireAdmin is RequireToken restricted to admin claims.
func RequireAdmin(v tokenVerifier) func(http.Handler) http.Handler {
	return gate(v, true)
}

func gate(v tokenVerifier, adminOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			claims, err := v.VerifyContext(r.Context(), token)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			if adminOnly && !claims.IsAdmin() {
				respondWithError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
