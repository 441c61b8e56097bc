package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store persists API keys, owner accounts, and admin users. It runs on
// SQLite by default and also supports Postgres and MySQL; all SQL is written
// with "?" placeholders and rebound per driver.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the backing database. Supported drivers are "sqlite",
// "postgres" (pgx), and "mysql". It does not create the schema; call
// EnsureSchema for that.
func Open(driver, dsn string) (*Store, error) {
	name, err := normalizeDriver(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Connect(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}

	if name == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

		// Foreign keys are off by default in SQLite.
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	return &Store{db: db, driver: name}, nil
}

// OpenSQLite opens the default SQLite store under dataDir. Pass empty string
// for in-memory.
func OpenSQLite(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "keygate.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return Open("sqlite", dsn)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the normalized driver name in use.
func (s *Store) Driver() string {
	return s.driver
}

func normalizeDriver(driver string) (string, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	case "mysql", "mariadb":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported store driver %q", driver)
	}
}

// rebind converts "?" placeholders to the driver's native style (e.g. $1 for
// Postgres). SQLite and MySQL queries pass through unchanged.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// returningID reports whether inserts must use a RETURNING clause instead of
// LastInsertId, which the pgx stdlib driver does not implement.
func (s *Store) returningID() bool {
	return s.driver == "pgx"
}
