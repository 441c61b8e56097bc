package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/service"
	"github.com/keygatehq/keygate/internal/session"
)

type stubVerifier struct {
	sess  *session.Session
	key   *model.APIKey
	err   error
	calls int
	token string
}

func (v *stubVerifier) VerifyToken(ctx context.Context, token, sessionID string) (*session.Session, *model.APIKey, error) {
	v.calls++
	v.token = token
	if v.err != nil {
		return nil, nil, v.err
	}
	if v.sess != nil {
		v.sess.ID = sessionID
	}
	return v.sess, v.key, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if called != nil {
			*called = true
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuthPassThrough(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *http.Request)
	}{
		{"no authorization header", func(r *http.Request) {}},
		{"bearer token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer sometoken")
		}},
		{"basic with password", func(r *http.Request) {
			r.SetBasicAuth("user", "password")
		}},
		{"basic with empty username", func(r *http.Request) {
			r.SetBasicAuth("", "")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &stubVerifier{}
			called := false
			h := APIKeyAuth(verifier, true, discardLogger())(okHandler(&called))

			r := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
			tt.setup(r)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			if !called {
				t.Error("handler not reached; extractor should be a no-op")
			}
			if verifier.calls != 0 {
				t.Errorf("verifier called %d times on a request with no credential", verifier.calls)
			}
			if sess := session.FromContext(r.Context()); sess != nil {
				t.Error("session attached without a credential")
			}
		})
	}
}

func TestAPIKeyAuthInsecureRejectedBeforeLookup(t *testing.T) {
	verifier := &stubVerifier{}
	called := false
	h := APIKeyAuth(verifier, true, discardLogger())(okHandler(&called))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	r.SetBasicAuth("sometoken", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if verifier.calls != 0 {
		t.Errorf("verifier called %d times; insecure rejection must precede lookup", verifier.calls)
	}
	if called {
		t.Error("handler reached on insecure credential")
	}
}

func TestAPIKeyAuthForwardedProtoCountsAsSecure(t *testing.T) {
	verifier := &stubVerifier{
		sess: &session.Session{Provider: service.ProviderAPIKey, UserName: "alice", Authenticated: true},
		key:  &model.APIKey{ID: 1, Environment: "Live", KeyType: "ApiKey"},
	}
	called := false
	h := APIKeyAuth(verifier, true, discardLogger())(okHandler(&called))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	r.SetBasicAuth("sometoken", "")
	r.Header.Set("X-Forwarded-Proto", "https")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if verifier.calls != 1 {
		t.Errorf("verifier calls = %d, want 1", verifier.calls)
	}
}

func TestAPIKeyAuthInsecureAllowedWhenDisabled(t *testing.T) {
	verifier := &stubVerifier{
		sess: &session.Session{Provider: service.ProviderAPIKey, UserName: "alice", Authenticated: true},
		key:  &model.APIKey{ID: 1},
	}
	h := APIKeyAuth(verifier, false, discardLogger())(okHandler(nil))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	r.SetBasicAuth("sometoken", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAPIKeyAuthChallenge(t *testing.T) {
	verifier := &stubVerifier{err: service.ErrKeyNotFound}
	h := APIKeyAuth(verifier, false, discardLogger())(okHandler(nil))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	r.SetBasicAuth("badtoken", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	want := `Basic realm="/auth/apikey"`
	if got := w.Header().Get("WWW-Authenticate"); got != want {
		t.Errorf("WWW-Authenticate = %q, want %q", got, want)
	}
	if verifier.token != "badtoken" {
		t.Errorf("verifier saw token %q", verifier.token)
	}
}

func TestAPIKeyAuthAttachesSessionAndKey(t *testing.T) {
	verifier := &stubVerifier{
		sess: &session.Session{
			Provider:      service.ProviderAPIKey,
			UserID:        7,
			UserName:      "alice",
			Authenticated: true,
		},
		key: &model.APIKey{ID: 3, Environment: "Test", KeyType: "ApiKey"},
	}

	var gotSess *session.Session
	var gotKey *model.APIKey
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSess = session.FromContext(r.Context())
		gotKey = session.APIKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := APIKeyAuth(verifier, false, discardLogger())(inner)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	r.SetBasicAuth("goodtoken", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotSess == nil || gotSess.UserName != "alice" || !gotSess.IsAuthorized() {
		t.Errorf("session = %+v", gotSess)
	}
	if gotSess.ID == "" {
		t.Error("session has no ID; middleware should establish one")
	}
	if gotKey == nil || gotKey.Environment != "Test" {
		t.Errorf("key = %+v", gotKey)
	}
}

func TestRequireSession(t *testing.T) {
	h := RequireSession()(okHandler(nil))

	// No session at all.
	r := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no session: status = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("no session: missing WWW-Authenticate challenge")
	}

	// Authenticated but no username: still unauthorized.
	r = httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	ctx := session.WithSession(r.Context(), &session.Session{Authenticated: true})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r.WithContext(ctx))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no username: status = %d, want 401", w.Code)
	}

	// Fully authorized.
	r = httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	ctx = session.WithSession(r.Context(), &session.Session{Authenticated: true, UserName: "alice"})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r.WithContext(ctx))
	if w.Code != http.StatusOK {
		t.Errorf("authorized: status = %d, want 200", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got == "" {
		t.Fatal("no request ID assigned")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("request ID %q is not a UUID", got)
	}
	if w.Header().Get("X-Request-ID") != got {
		t.Error("response header does not echo the request ID")
	}
}

func TestRequestIDHonorsValidClientID(t *testing.T) {
	clientID := uuid.Must(uuid.NewV7()).String()

	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", clientID)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got != clientID {
		t.Errorf("request ID = %q, want client-supplied %q", got, clientID)
	}
}

func TestRequestIDReplacesGarbageClientID(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "not-a-uuid")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got == "not-a-uuid" {
		t.Error("garbage client request ID was honored")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("request ID %q is not a UUID", got)
	}
}

func TestLoggerCapturesStatus(t *testing.T) {
	h := Logger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
	if w.Body.String() != "short and stout" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestAPIKeyAuthLogsSessionID(t *testing.T) {
	verifier := &stubVerifier{
		sess: &session.Session{Provider: service.ProviderAPIKey, UserName: "alice", Authenticated: true},
		key:  &model.APIKey{ID: 1, Environment: "Live", KeyType: "ApiKey"},
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var gotSess *session.Session
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSess = session.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := APIKeyAuth(verifier, false, logger)(inner)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	r.SetBasicAuth("goodtoken", "")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotSess == nil || gotSess.ID == "" {
		t.Fatal("no session id established")
	}
	if !strings.Contains(buf.String(), "session_id="+gotSess.ID) {
		t.Errorf("auth log line missing session id %q:\n%s", gotSess.ID, buf.String())
	}
}

func TestRateLimitByCredential(t *testing.T) {
	h := RateLimitByCredential(2)(okHandler(nil))

	send := func(token string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
		if token != "" {
			r.SetBasicAuth(token, "")
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	// Two requests within the limit, the third is throttled.
	for i := 0; i < 2; i++ {
		if code := send("noisy-token"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := send("noisy-token"); code != http.StatusTooManyRequests {
		t.Errorf("over limit: status = %d, want 429", code)
	}

	// A different credential has its own bucket.
	if code := send("quiet-token"); code != http.StatusOK {
		t.Errorf("other token: status = %d, want 200", code)
	}
}

func TestRequireAdminWithoutPrincipal(t *testing.T) {
	h := RequireAdmin()(okHandler(nil))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
