package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"family_tree/internal/api/session"
	"family_tree/internal/common"
	"family_tree/internal/common/security"
	"family_tree/internal/domain/model"
)

const (
	msgAuthRequired = "Authentication required. Please log in."
	msgInvalidToken = "Invalid or expired token"
)

type contextKey string

const ClaimsCtxKey contextKey = "claims"

// TokenVerifier turns a raw token into verified claims.
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (*security.Claims, error)
}

// IsProtected reports whether r needs a session: any state-changing method on
// a path under one of prefixes. GET, HEAD and OPTIONS never need one.
func IsProtected(prefixes []string, r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}

// RequireSession rejects protected requests that do not carry a valid token.
// Accepted requests get the verified claims in their context.
func RequireSession(prefixes []string, transport *session.Transport, verifier TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsProtected(prefixes, r) {
				next.ServeHTTP(w, r)
				return
			}

			token := transport.ExtractToken(r)
			if token == "" {
				common.RespondWithError(w, http.StatusUnauthorized, msgAuthRequired)
				return
			}

			claims, err := verifier.Authenticate(r.Context(), token)
			if err != nil {
				if common.HTTPStatusFromError(err) == http.StatusUnauthorized {
					log.DebugContext(r.Context(), "rejected session token", "path", r.URL.Path, "error", err)
					common.RespondWithError(w, http.StatusUnauthorized, msgInvalidToken)
					return
				}
				common.RespondWithServiceError(w, r, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			common.RespondWithError(w, http.StatusUnauthorized, msgAuthRequired)
			return
		}
		if claims.Role != model.RoleAdmin {
			common.RespondWithError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithClaims(ctx context.Context, claims *security.Claims) context.Context {
	return context.WithValue(ctx, ClaimsCtxKey, claims)
}

// Helper to get the verified claims from context
func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(ClaimsCtxKey).(*security.Claims)
	return claims, ok && claims != nil
}
