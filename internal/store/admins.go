package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/keygatehq/keygate/internal/model"
)

// CreateAdmin inserts a new admin account. The ID, CreatedAt, and UpdatedAt
// fields on admin are populated after a successful insert.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const insert = `INSERT INTO admins
		(email, password_hash, name, is_active, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{
		admin.Email, admin.PasswordHash, admin.Name, admin.IsActive,
		admin.LastLoginAt, admin.CreatedAt, admin.UpdatedAt,
	}

	if s.returningID() {
		q := s.rebind(insert + ` RETURNING id`)
		if err := s.db.QueryRowContext(ctx, q, args...).Scan(&admin.ID); err != nil {
			return fmt.Errorf("insert admin: %w", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, s.rebind(insert), args...)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get admin id: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdminByEmail returns an admin by email address.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin model.Admin
	q := s.rebind(`SELECT * FROM admins WHERE email = ?`)
	if err := s.db.GetContext(ctx, &admin, q, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, `SELECT * FROM admins ORDER BY email`); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. Used to
// surface a first-run hint on startup.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM admins`); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp for an admin.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	q := s.rebind(`UPDATE admins SET last_login_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, q, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	return nil
}

// HashPassword returns the hex-encoded SHA-256 hash of an admin password.
func HashPassword(password string) string {
	h := sha256.Sum256([]byte(password))
	return hex.EncodeToString(h[:])
}
