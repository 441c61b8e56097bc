package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/keygatehq/keygate/internal/config"
	"github.com/keygatehq/keygate/internal/store"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from the --data-dir flag, the
// KEYGATE_DATA_DIR env var, or ~/.keygate as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("KEYGATE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.keygate"
}

// settings returns the effective configuration: defaults overlaid with the
// config file and KEYGATE_* environment variables.
func settings() *config.Config {
	cfg := config.Default()
	_ = viper.Unmarshal(cfg)
	return cfg
}

// openStore opens the configured database and, unless disabled, ensures the
// schema exists. SQLite with no explicit DSN lands in the data directory.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	var (
		st  *store.Store
		err error
	)
	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		dir := cfg.Store.DataDir
		if dir == "" {
			dir = resolveDataDir()
		}
		st, err = store.OpenSQLite(dir)
	} else {
		st, err = store.Open(cfg.Store.Driver, cfg.Store.DSN)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Store.InitSchema {
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return st, nil
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
