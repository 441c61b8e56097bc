// Package session holds the per-request authentication state produced by
// credential verification and consumed by downstream handlers.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/keygatehq/keygate/internal/model"
)

type contextKey string

const (
	sessionKey contextKey = "auth_session"
	apiKeyKey  contextKey = "auth_api_key"
	idKey      contextKey = "session_id"
)

// Session is the authenticated identity for one request.
type Session struct {
	ID            string `json:"session_id"`
	Provider      string `json:"provider"`
	UserID        int64  `json:"user_id"`
	UserName      string `json:"username"`
	DisplayName   string `json:"display_name"`
	Email         string `json:"email,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// IsAuthorized reports whether the session may be used for capability
// checks. Authentication alone is not enough: an authenticated session
// without a resolved username is not authorized.
func (s *Session) IsAuthorized() bool {
	return s != nil && s.Authenticated && s.UserName != ""
}

// EnsureID returns a context that carries a session identifier, generating
// one if absent. Calling it again on the returned context is a no-op.
func EnsureID(ctx context.Context) (context.Context, string) {
	if id, ok := ctx.Value(idKey).(string); ok && id != "" {
		return ctx, id
	}
	id := uuid.Must(uuid.NewV7()).String()
	return context.WithValue(ctx, idKey, id), id
}

// IDFromContext returns the request's session identifier, or empty string.
func IDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(idKey).(string); ok {
		return id
	}
	return ""
}

// WithSession attaches the verified session to the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session attached to the context, or nil for an
// unauthenticated request.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey).(*Session); ok {
		return s
	}
	return nil
}

// WithAPIKey attaches the API key that authenticated the request, so
// downstream handlers can read which environment and key type the caller
// presented.
func WithAPIKey(ctx context.Context, k *model.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyKey, k)
}

// APIKeyFromContext returns the authenticating key, or nil if the request
// was not authenticated with an API key.
func APIKeyFromContext(ctx context.Context) *model.APIKey {
	if k, ok := ctx.Value(apiKeyKey).(*model.APIKey); ok {
		return k
	}
	return nil
}
