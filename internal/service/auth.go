package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keygatehq/keygate/internal/model"
	"github.com/keygatehq/keygate/internal/session"
	"github.com/keygatehq/keygate/internal/store"
)

// Verification failures, one per pipeline stage. The transport boundary maps
// all of them to the same 401 + challenge; the distinction is for logs.
var (
	ErrKeyNotFound   = errors.New("api key not found")
	ErrKeyCancelled  = errors.New("api key cancelled")
	ErrKeyExpired    = errors.New("api key expired")
	ErrOwnerMissing  = errors.New("api key owner missing")
	ErrAccountLocked = errors.New("account locked")

	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	// ProviderAPIKey is the identity-provider name carried on sessions
	// authenticated with an API key.
	ProviderAPIKey = "apikey"

	// Realm is the scope string presented in the WWW-Authenticate challenge,
	// distinguishing this provider from other configured auth methods.
	Realm = "/auth/apikey"
)

// AuthStore is the slice of the store the verifier needs.
type AuthStore interface {
	GetKeyByToken(ctx context.Context, token string) (*model.APIKey, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
}

// AuthService verifies API-key credentials and manages admin JWT sessions.
type AuthService struct {
	store     AuthStore
	jwtSecret []byte

	// now is replaceable so expiry boundaries can be tested at an exact
	// instant.
	now func() time.Time
}

// NewAuthService creates an AuthService backed by the given store.
func NewAuthService(st AuthStore, jwtSecret string) *AuthService {
	return &AuthService{
		store:     st,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// VerifyToken runs the ordered verification pipeline for a raw API-key
// token: lookup, cancellation, expiry, owner resolution, lock check, then
// session population. Each stage short-circuits with its own error, and the
// order is fixed: a key that is both cancelled and expired always reports
// cancellation. Callers should not depend on which reason a doubly-invalid
// key produces.
//
// On success the returned session is authenticated and carries the owner's
// identity; the returned key is the record that authenticated the call.
func (s *AuthService) VerifyToken(ctx context.Context, token, sessionID string) (*session.Session, *model.APIKey, error) {
	key, err := s.store.GetKeyByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrKeyNotFound
		}
		return nil, nil, err
	}

	if key.Cancelled() {
		return nil, nil, ErrKeyCancelled
	}

	if key.ExpiredAt(s.now()) {
		return nil, nil, ErrKeyExpired
	}

	owner, err := s.store.GetAccount(ctx, key.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrOwnerMissing
		}
		return nil, nil, err
	}

	if owner.Locked() {
		return nil, nil, ErrAccountLocked
	}

	sess := &session.Session{
		ID:            sessionID,
		Provider:      ProviderAPIKey,
		UserID:        owner.ID,
		UserName:      owner.UserName,
		DisplayName:   owner.ResolveDisplayName(),
		Email:         owner.Email,
		Authenticated: true,
	}
	return sess, key, nil
}

// ---------------------------------------------------------------------------
// Admin JWT sessions
// ---------------------------------------------------------------------------

// JWTPrincipal is the admin identity carried in a bearer token.
type JWTPrincipal struct {
	AdminID int64
	Email   string
}

type jwtClaims struct {
	AdminID int64  `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// IssueJWT creates a new signed JWT token for the given admin.
func (s *AuthService) IssueJWT(ctx context.Context, adminID int64, email string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwtClaims{
		AdminID: adminID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "keygate",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateJWT verifies a JWT bearer token and returns the admin identity.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*JWTPrincipal, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !token.Valid {
		return nil, ErrInvalidCredentials
	}

	return &JWTPrincipal{
		AdminID: claims.AdminID,
		Email:   claims.Email,
	}, nil
}
