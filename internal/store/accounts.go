package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/keygatehq/keygate/internal/model"
)

// CreateAccount inserts a new owner account. The ID, CreatedAt, and
// UpdatedAt fields on acc are populated after a successful insert.
func (s *Store) CreateAccount(ctx context.Context, acc *model.Account) error {
	now := time.Now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	const insert = `INSERT INTO accounts
		(username, display_name, first_name, last_name, email, locked_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{
		acc.UserName, acc.DisplayName, acc.FirstName, acc.LastName,
		acc.Email, acc.LockedAt, acc.CreatedAt, acc.UpdatedAt,
	}

	if s.returningID() {
		q := s.rebind(insert + ` RETURNING id`)
		if err := s.db.QueryRowContext(ctx, q, args...).Scan(&acc.ID); err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, s.rebind(insert), args...)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get account id: %w", err)
	}
	acc.ID = id
	return nil
}

// GetAccount returns an account by ID.
func (s *Store) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	var acc model.Account
	q := s.rebind(`SELECT * FROM accounts WHERE id = ?`)
	if err := s.db.GetContext(ctx, &acc, q, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &acc, nil
}

// GetAccountByUserName returns an account by its unique username.
func (s *Store) GetAccountByUserName(ctx context.Context, username string) (*model.Account, error) {
	var acc model.Account
	q := s.rebind(`SELECT * FROM accounts WHERE username = ?`)
	if err := s.db.GetContext(ctx, &acc, q, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account by username: %w", err)
	}
	return &acc, nil
}

// ListAccounts returns all accounts ordered by username.
func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var accs []model.Account
	q := `SELECT * FROM accounts ORDER BY username`
	if err := s.db.SelectContext(ctx, &accs, q); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accs, nil
}

// LockAccount sets locked_at on an account, blocking all of its keys from
// authenticating. Re-locking refreshes the timestamp.
func (s *Store) LockAccount(ctx context.Context, id int64) error {
	q := s.rebind(`UPDATE accounts SET locked_at = ?, updated_at = ? WHERE id = ?`)
	now := time.Now().UTC()
	return s.touchAccount(ctx, q, now, now, id)
}

// UnlockAccount clears locked_at. Unlike key cancellation, account locks are
// reversible.
func (s *Store) UnlockAccount(ctx context.Context, id int64) error {
	q := s.rebind(`UPDATE accounts SET locked_at = NULL, updated_at = ? WHERE id = ?`)
	return s.touchAccount(ctx, q, time.Now().UTC(), id)
}

func (s *Store) touchAccount(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
