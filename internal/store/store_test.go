package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keygatehq/keygate/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenSQLite("")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return st
}

func createTestAccount(t *testing.T, st *Store, username string) *model.Account {
	t.Helper()
	acc := &model.Account{UserName: username, Email: username + "@example.com"}
	if err := st.CreateAccount(context.Background(), acc); err != nil {
		t.Fatalf("CreateAccount(%q): %v", username, err)
	}
	return acc
}

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func TestEnsureSchemaIdempotent(t *testing.T) {
	st := newTestStore(t)
	// Running it again against the same database must be a no-op.
	if err := st.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "dsn"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

func TestInsertAndGetKey(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	acc := createTestAccount(t, st, "alice")

	refID := int64(42)
	expires := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	key := &model.APIKey{
		OwnerID:     acc.ID,
		Environment: "Live",
		KeyType:     "ApiKey",
		Token:       "tok-alice-live",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		ExpiresAt:   &expires,
		Notes:       "issued for rollout",
		RefID:       &refID,
		RefIDStr:    "ext-42",
		Meta:        map[string]string{"team": "billing"},
	}
	if err := st.InsertKeys(ctx, []*model.APIKey{key}); err != nil {
		t.Fatalf("InsertKeys: %v", err)
	}
	if key.ID == 0 {
		t.Fatal("InsertKeys did not assign an ID")
	}

	got, err := st.GetKeyByToken(ctx, "tok-alice-live")
	if err != nil {
		t.Fatalf("GetKeyByToken: %v", err)
	}
	if got.ID != key.ID || got.OwnerID != acc.ID {
		t.Errorf("got ID=%d owner=%d, want ID=%d owner=%d", got.ID, got.OwnerID, key.ID, acc.ID)
	}
	if got.Environment != "Live" || got.KeyType != "ApiKey" {
		t.Errorf("got env=%q type=%q", got.Environment, got.KeyType)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}
	if got.Notes != "issued for rollout" {
		t.Errorf("Notes = %q", got.Notes)
	}
	if got.RefID == nil || *got.RefID != 42 || got.RefIDStr != "ext-42" {
		t.Errorf("RefID = %v, RefIDStr = %q", got.RefID, got.RefIDStr)
	}
	if got.Meta["team"] != "billing" {
		t.Errorf("Meta = %v", got.Meta)
	}
	if got.Cancelled() {
		t.Error("fresh key reports cancelled")
	}
}

func TestGetKeyByTokenExactMatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	acc := createTestAccount(t, st, "bob")

	key := &model.APIKey{
		OwnerID: acc.ID, Environment: "Live", KeyType: "ApiKey",
		Token: "CaseSensitiveToken", CreatedAt: time.Now().UTC(),
	}
	if err := st.InsertKeys(ctx, []*model.APIKey{key}); err != nil {
		t.Fatalf("InsertKeys: %v", err)
	}

	for _, probe := range []string{"casesensitivetoken", "CaseSensitiveToke", "CaseSensitiveToken "} {
		if _, err := st.GetKeyByToken(ctx, probe); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetKeyByToken(%q) err = %v, want ErrNotFound", probe, err)
		}
	}
}

func TestInsertKeysDuplicateToken(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	acc := createTestAccount(t, st, "carol")

	first := &model.APIKey{
		OwnerID: acc.ID, Environment: "Live", KeyType: "ApiKey",
		Token: "dup-token", CreatedAt: time.Now().UTC(),
	}
	if err := st.InsertKeys(ctx, []*model.APIKey{first}); err != nil {
		t.Fatalf("InsertKeys: %v", err)
	}

	second := &model.APIKey{
		OwnerID: acc.ID, Environment: "Test", KeyType: "ApiKey",
		Token: "dup-token", CreatedAt: time.Now().UTC(),
	}
	err := st.InsertKeys(ctx, []*model.APIKey{second})
	if !errors.Is(err, ErrDuplicateToken) {
		t.Fatalf("err = %v, want ErrDuplicateToken", err)
	}
}

func TestInsertKeysBatchIsAtomic(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	acc := createTestAccount(t, st, "dave")

	now := time.Now().UTC()
	batch := []*model.APIKey{
		{OwnerID: acc.ID, Environment: "Live", KeyType: "ApiKey", Token: "batch-a", CreatedAt: now},
		{OwnerID: acc.ID, Environment: "Test", KeyType: "ApiKey", Token: "batch-b", CreatedAt: now},
		{OwnerID: acc.ID, Environment: "Stage", KeyType: "ApiKey", Token: "batch-a", CreatedAt: now},
	}
	err := st.InsertKeys(ctx, batch)
	if !errors.Is(err, ErrDuplicateToken) {
		t.Fatalf("err = %v, want ErrDuplicateToken", err)
	}

	// Nothing from the batch survives, including the rows before the clash.
	keys, err := st.ListKeysByOwner(ctx, acc.ID)
	if err != nil {
		t.Fatalf("ListKeysByOwner: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("found %d keys after failed batch, want 0", len(keys))
	}
}

func TestCancelKey(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	acc := createTestAccount(t, st, "eve")

	key := &model.APIKey{
		OwnerID: acc.ID, Environment: "Live", KeyType: "ApiKey",
		Token: "cancel-me", CreatedAt: time.Now().UTC(),
	}
	if err := st.InsertKeys(ctx, []*model.APIKey{key}); err != nil {
		t.Fatalf("InsertKeys: %v", err)
	}

	if err := st.CancelKey(ctx, key.ID); err != nil {
		t.Fatalf("CancelKey: %v", err)
	}

	got, err := st.GetKeyByToken(ctx, "cancel-me")
	if err != nil {
		t.Fatalf("GetKeyByToken: %v", err)
	}
	if !got.Cancelled() {
		t.Fatal("key not marked cancelled")
	}
	stamp := *got.CancelledAt

	// Cancellation is permanent: a second cancel finds nothing to do and the
	// original timestamp stays put.
	if err := st.CancelKey(ctx, key.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second CancelKey err = %v, want ErrNotFound", err)
	}
	got, err = st.GetKeyByToken(ctx, "cancel-me")
	if err != nil {
		t.Fatalf("GetKeyByToken: %v", err)
	}
	if !got.CancelledAt.Equal(stamp) {
		t.Errorf("CancelledAt changed from %v to %v", stamp, got.CancelledAt)
	}
}

func TestCancelKeyNotFound(t *testing.T) {
	st := newTestStore(t)
	if err := st.CancelKey(context.Background(), 12345); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListKeysByOwnerNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice := createTestAccount(t, st, "frank")
	other := createTestAccount(t, st, "grace")

	base := time.Now().UTC().Truncate(time.Second)
	for i, tok := range []string{"old", "mid", "new"} {
		k := &model.APIKey{
			OwnerID: alice.ID, Environment: "Live", KeyType: "ApiKey",
			Token: tok, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.InsertKeys(ctx, []*model.APIKey{k}); err != nil {
			t.Fatalf("InsertKeys(%s): %v", tok, err)
		}
	}
	theirs := &model.APIKey{
		OwnerID: other.ID, Environment: "Live", KeyType: "ApiKey",
		Token: "theirs", CreatedAt: base,
	}
	if err := st.InsertKeys(ctx, []*model.APIKey{theirs}); err != nil {
		t.Fatalf("InsertKeys: %v", err)
	}

	keys, err := st.ListKeysByOwner(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListKeysByOwner: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(keys))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if keys[i].Token != want {
			t.Errorf("keys[%d].Token = %q, want %q", i, keys[i].Token, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func TestAccountRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	acc := &model.Account{
		UserName:    "henry",
		DisplayName: "Henry H",
		FirstName:   "Henry",
		LastName:    "Hudson",
		Email:       "henry@example.com",
	}
	if err := st.CreateAccount(ctx, acc); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.ID == 0 {
		t.Fatal("CreateAccount did not assign an ID")
	}

	got, err := st.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.UserName != "henry" || got.DisplayName != "Henry H" || got.Email != "henry@example.com" {
		t.Errorf("got %+v", got)
	}
	if got.Locked() {
		t.Error("fresh account reports locked")
	}

	byName, err := st.GetAccountByUserName(ctx, "henry")
	if err != nil {
		t.Fatalf("GetAccountByUserName: %v", err)
	}
	if byName.ID != acc.ID {
		t.Errorf("byName.ID = %d, want %d", byName.ID, acc.ID)
	}
}

func TestCreateAccountDuplicateUsername(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	createTestAccount(t, st, "iris")

	dup := &model.Account{UserName: "iris"}
	if err := st.CreateAccount(ctx, dup); err == nil {
		t.Fatal("expected error for duplicate username")
	}
}

func TestGetAccountNotFound(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.GetAccount(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := st.GetAccountByUserName(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLockUnlockAccount(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	acc := createTestAccount(t, st, "judy")

	if err := st.LockAccount(ctx, acc.ID); err != nil {
		t.Fatalf("LockAccount: %v", err)
	}
	got, err := st.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !got.Locked() {
		t.Fatal("account not locked")
	}

	if err := st.UnlockAccount(ctx, acc.ID); err != nil {
		t.Fatalf("UnlockAccount: %v", err)
	}
	got, err = st.GetAccount(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Locked() {
		t.Fatal("account still locked after unlock")
	}
}

func TestLockAccountNotFound(t *testing.T) {
	st := newTestStore(t)
	if err := st.LockAccount(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

func TestAdminLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	any, err := st.HasAnyAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAnyAdmin: %v", err)
	}
	if any {
		t.Fatal("empty store reports an admin")
	}

	admin := &model.Admin{
		Email:        "root@example.com",
		PasswordHash: HashPassword("hunter22"),
		Name:         "Root",
		IsActive:     true,
	}
	if err := st.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if admin.ID == 0 {
		t.Fatal("CreateAdmin did not assign an ID")
	}

	any, err = st.HasAnyAdmin(ctx)
	if err != nil {
		t.Fatalf("HasAnyAdmin: %v", err)
	}
	if !any {
		t.Fatal("HasAnyAdmin = false after create")
	}

	got, err := st.GetAdminByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if got.PasswordHash != HashPassword("hunter22") {
		t.Error("stored hash does not match")
	}
	if got.LastLoginAt != nil {
		t.Error("fresh admin has last_login_at set")
	}

	if err := st.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		t.Fatalf("UpdateAdminLastLogin: %v", err)
	}
	got, err = st.GetAdminByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if got.LastLoginAt == nil {
		t.Error("last_login_at not stamped")
	}
}

func TestHashPassword(t *testing.T) {
	a := HashPassword("secret")
	b := HashPassword("secret")
	if a != b {
		t.Error("hash is not deterministic")
	}
	if a == HashPassword("Secret") {
		t.Error("distinct passwords hash identically")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
