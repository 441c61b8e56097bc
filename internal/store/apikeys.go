package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/keygatehq/keygate/internal/model"
)

// keyRow maps 1:1 to the api_keys table columns. The meta_json column stores
// the JSON-encoded Meta map.
type keyRow struct {
	ID          int64      `db:"id"`
	OwnerID     int64      `db:"owner_id"`
	Environment string     `db:"environment"`
	KeyType     string     `db:"key_type"`
	Token       string     `db:"token"`
	CreatedAt   time.Time  `db:"created_at"`
	ExpiresAt   *time.Time `db:"expires_at"`
	CancelledAt *time.Time `db:"cancelled_at"`
	Notes       string     `db:"notes"`
	RefID       *int64     `db:"ref_id"`
	RefIDStr    string     `db:"ref_id_str"`
	MetaJSON    string     `db:"meta_json"`
}

func keyRowFromModel(k *model.APIKey) (keyRow, error) {
	meta := k.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return keyRow{}, fmt.Errorf("marshal key meta: %w", err)
	}
	return keyRow{
		ID:          k.ID,
		OwnerID:     k.OwnerID,
		Environment: k.Environment,
		KeyType:     k.KeyType,
		Token:       k.Token,
		CreatedAt:   k.CreatedAt,
		ExpiresAt:   k.ExpiresAt,
		CancelledAt: k.CancelledAt,
		Notes:       k.Notes,
		RefID:       k.RefID,
		RefIDStr:    k.RefIDStr,
		MetaJSON:    string(metaJSON),
	}, nil
}

func (r keyRow) toModel() (model.APIKey, error) {
	var meta map[string]string
	if r.MetaJSON != "" {
		if err := json.Unmarshal([]byte(r.MetaJSON), &meta); err != nil {
			return model.APIKey{}, fmt.Errorf("unmarshal key meta: %w", err)
		}
	}
	if len(meta) == 0 {
		meta = nil
	}
	return model.APIKey{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Environment: r.Environment,
		KeyType:     r.KeyType,
		Token:       r.Token,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		CancelledAt: r.CancelledAt,
		Notes:       r.Notes,
		RefID:       r.RefID,
		RefIDStr:    r.RefIDStr,
		Meta:        meta,
	}, nil
}

const keyColumns = `id, owner_id, environment, key_type, token, created_at,
	expires_at, cancelled_at, notes, ref_id, ref_id_str, meta_json`

// GetKeyByToken looks up an API key by exact token match. The unique index
// on token guarantees at most one row.
func (s *Store) GetKeyByToken(ctx context.Context, token string) (*model.APIKey, error) {
	var row keyRow
	q := s.rebind(`SELECT ` + keyColumns + ` FROM api_keys WHERE token = ?`)
	if err := s.db.GetContext(ctx, &row, q, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by token: %w", err)
	}
	key, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// InsertKeys persists a batch of API keys in a single transaction. The batch
// is all-or-nothing: any failure, including a token collision against the
// unique index, rolls back every row. IDs are assigned on the passed keys
// after a successful commit.
func (s *Store) InsertKeys(ctx context.Context, keys []*model.APIKey) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert keys: %w", err)
	}
	defer tx.Rollback()

	const insert = `INSERT INTO api_keys
		(owner_id, environment, key_type, token, created_at, expires_at,
		 cancelled_at, notes, ref_id, ref_id_str, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, k := range keys {
		row, err := keyRowFromModel(k)
		if err != nil {
			return err
		}

		args := []interface{}{
			row.OwnerID, row.Environment, row.KeyType, row.Token,
			row.CreatedAt, row.ExpiresAt, row.CancelledAt, row.Notes,
			row.RefID, row.RefIDStr, row.MetaJSON,
		}

		if s.returningID() {
			q := s.rebind(insert + ` RETURNING id`)
			if err := tx.QueryRowContext(ctx, q, args...).Scan(&k.ID); err != nil {
				return classifyInsertErr(err)
			}
			continue
		}

		res, err := tx.ExecContext(ctx, s.rebind(insert), args...)
		if err != nil {
			return classifyInsertErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("get api key id: %w", err)
		}
		k.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert keys: %w", err)
	}
	return nil
}

// CancelKey sets cancelled_at on an API key. Cancellation is permanent:
// already-cancelled keys are left untouched and reported as not found.
func (s *Store) CancelKey(ctx context.Context, id int64) error {
	q := s.rebind(`UPDATE api_keys SET cancelled_at = ? WHERE id = ? AND cancelled_at IS NULL`)
	res, err := s.db.ExecContext(ctx, q, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("cancel api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel api key rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListKeys returns all API keys, newest first.
func (s *Store) ListKeys(ctx context.Context) ([]model.APIKey, error) {
	return s.listKeys(ctx, `SELECT `+keyColumns+` FROM api_keys ORDER BY created_at DESC, id DESC`)
}

// ListKeysByOwner returns all API keys belonging to one account.
func (s *Store) ListKeysByOwner(ctx context.Context, ownerID int64) ([]model.APIKey, error) {
	return s.listKeys(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID)
}

func (s *Store) listKeys(ctx context.Context, query string, args ...interface{}) ([]model.APIKey, error) {
	var rows []keyRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	keys := make([]model.APIKey, len(rows))
	for i, r := range rows {
		k, err := r.toModel()
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

// classifyInsertErr maps unique-index violations onto ErrDuplicateToken so
// callers can distinguish a token collision from an infrastructure fault.
func classifyInsertErr(err error) error {
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate") {
		return fmt.Errorf("insert api key: %w", ErrDuplicateToken)
	}
	return fmt.Errorf("insert api key: %w", err)
}
