package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/service"
	"github.com/keygatehq/keygate/internal/session"
)

// TokenVerifier runs the credential verification pipeline for a raw API-key
// token.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token, sessionID string) (*session.Session, *model.APIKey, error)
}

// APIKeyAuth returns the API-key authentication middleware. Requests carry
// the token as the username of a Basic Authorization header with an empty
// password; anything else passes through untouched, so other auth schemes on
// the same routes keep working.
//
// When a credential is present:
//
//   - with requireSecure set, plain-HTTP requests are rejected with 403
//     before the token is looked up, so secrets sent in the clear are never
//     matched against the store;
//   - a failed verification answers 401 with a WWW-Authenticate Basic
//     challenge naming the provider realm;
//   - a successful verification attaches the populated session and the
//     authenticating key to the request context.
func APIKeyAuth(verifier TokenVerifier, requireSecure bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if requireSecure && !isSecure(r) {
				logger.Warn("api key presented over insecure channel",
					"request_id", GetRequestID(r.Context()),
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "API keys require a secure connection")
				return
			}

			ctx, sessionID := session.EnsureID(r.Context())

			sess, key, err := verifier.VerifyToken(ctx, token, sessionID)
			if err != nil {
				logger.Warn("api key rejected",
					"reason", err,
					"request_id", GetRequestID(ctx),
					"session_id", sessionID,
				)
				Challenge(w)
				return
			}

			// The request logger runs outside this middleware and never sees
			// the derived context, so the session id is logged here; the
			// shared request_id ties the two lines together.
			logger.Info("api key authenticated",
				"request_id", GetRequestID(ctx),
				"session_id", sessionID,
				"user", sess.UserName,
				"environment", key.Environment,
				"key_type", key.KeyType,
			)

			ctx = session.WithSession(ctx, sess)
			ctx = session.WithAPIKey(ctx, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession gates a route on an authorized session. Requests that did
// not authenticate, or authenticated without a resolvable username, receive
// the same 401 challenge as a bad credential.
func RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !session.FromContext(r.Context()).IsAuthorized() {
				Challenge(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Challenge writes the 401 response inviting the client to retry with an
// API-key credential.
func Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+service.Realm+`"`)
	writeAuthError(w, http.StatusUnauthorized, "Invalid or missing API key")
}

// extractToken pulls the API-key token out of the request. The convention is
// Basic auth with the token as username and an empty password; a non-empty
// password means the header belongs to some other credential scheme.
func extractToken(r *http.Request) (string, bool) {
	token, password, ok := r.BasicAuth()
	if !ok || password != "" || token == "" {
		return "", false
	}
	return token, true
}

// isSecure reports whether the request arrived over TLS, either directly or
// via a terminating proxy that stamped X-Forwarded-Proto.
func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
