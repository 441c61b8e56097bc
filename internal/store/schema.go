package store

import (
	"context"
	"fmt"
	"strings"
)

// EnsureSchema creates the keygate tables and indexes if they do not already
// exist. It is idempotent and safe to run on every process start; existing
// data is never touched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaFor(s.driver) {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; a re-run reports the
			// index as a duplicate key name, which is a no-op for us.
			if strings.Contains(strings.ToLower(err.Error()), "duplicate key name") {
				continue
			}
			return fmt.Errorf("ensure schema: %w\nSQL: %s", err, ddl)
		}
	}
	return nil
}

func schemaFor(driver string) []string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	boolDefault1 := "INTEGER NOT NULL DEFAULT 1"
	timestamp := "DATETIME"
	ifNotExists := "IF NOT EXISTS "

	switch driver {
	case "pgx":
		pk = "BIGSERIAL PRIMARY KEY"
		boolDefault1 = "BOOLEAN NOT NULL DEFAULT TRUE"
		timestamp = "TIMESTAMPTZ"
	case "mysql":
		pk = "BIGINT PRIMARY KEY AUTO_INCREMENT"
		boolDefault1 = "BOOLEAN NOT NULL DEFAULT TRUE"
		timestamp = "DATETIME(6)"
		ifNotExists = "" // MySQL rejects IF NOT EXISTS on CREATE INDEX
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS accounts (
			id %s,
			username VARCHAR(255) UNIQUE NOT NULL,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			first_name VARCHAR(255) NOT NULL DEFAULT '',
			last_name VARCHAR(255) NOT NULL DEFAULT '',
			email VARCHAR(255) NOT NULL DEFAULT '',
			locked_at %s,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, pk, timestamp, timestamp, timestamp),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS api_keys (
			id %s,
			owner_id BIGINT NOT NULL,
			environment VARCHAR(64) NOT NULL,
			key_type VARCHAR(64) NOT NULL,
			token VARCHAR(255) NOT NULL,
			created_at %s NOT NULL,
			expires_at %s,
			cancelled_at %s,
			notes TEXT NOT NULL,
			ref_id BIGINT,
			ref_id_str VARCHAR(255) NOT NULL DEFAULT '',
			meta_json TEXT NOT NULL
		)`, pk, timestamp, timestamp, timestamp),

		// The unique token index is what makes concurrent issuance safe:
		// a colliding token fails the insert instead of producing duplicates.
		fmt.Sprintf(`CREATE UNIQUE INDEX %sidx_api_keys_token ON api_keys(token)`, ifNotExists),
		fmt.Sprintf(`CREATE INDEX %sidx_api_keys_owner_id ON api_keys(owner_id)`, ifNotExists),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS admins (
			id %s,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			is_active %s,
			last_login_at %s,
			created_at %s NOT NULL,
			updated_at %s NOT NULL
		)`, pk, boolDefault1, timestamp, timestamp, timestamp),
	}
}
