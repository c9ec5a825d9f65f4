package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"quizgenius-service/internal/domain"
)

const (
	msgNoToken      = "No token, authorization denied"
	msgInvalidToken = "Token is not valid"
	msgForbidden    = "Access denied"
)

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the request principal, or Anonymous when none was set.
func PrincipalFromContext(ctx context.Context) domain.Principal {
	if p, ok := ctx.Value(principalKey{}).(domain.Principal); ok {
		return p
	}
	return domain.Anonymous()
}

// TokenFromRequest reads the bearer token from the Authorization header, falling back to
// the token query parameter (browsers cannot set headers on websocket upgrades).
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// Authenticate attaches the token's principal to the request. Requests without a token
// continue as anonymous; a token that fails verification is rejected with 400.
func Authenticate(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, err := issuer.Parse(raw)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, msgInvalidToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()).Role == domain.RoleAnonymous {
			writeMessage(w, http.StatusUnauthorized, msgNoToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFromContext(r.Context()).IsAdmin() {
			writeMessage(w, http.StatusForbidden, msgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
