package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/keygatehq/keygate/internal/service"
)

type contextKeyAuth string

// AdminPrincipalKey is the context key for the authenticated admin.
const AdminPrincipalKey contextKeyAuth = "admin_principal"

// AdminAuth returns an HTTP middleware that validates a JWT bearer token and
// attaches the admin principal to the request context. Requests without a
// bearer token pass through unauthenticated; RequireAdmin does the enforcing.
func AdminAuth(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := authSvc.ValidateJWT(r.Context(), strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), AdminPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns an HTTP middleware that enforces admin-level access.
// It must be used after AdminAuth in the middleware chain.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetAdmin(r.Context()) == nil {
				writeAuthError(w, http.StatusUnauthorized, "Admin authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetAdmin extracts the authenticated admin from the context. Returns nil
// for requests that did not present a valid bearer token.
func GetAdmin(ctx context.Context) *service.JWTPrincipal {
	if p, ok := ctx.Value(AdminPrincipalKey).(*service.JWTPrincipal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid an import cycle with the handler
	// package.
	w.Write([]byte(`{"error":{"code":` + strconv.Itoa(status) + `,"message":"` + message + `"}}`))
}
