// Package config defines the keygate configuration file format and its
// defaults. Values here can be overridden per-key through environment
// variables with the KEYGATE_ prefix; the CLI layer handles that binding.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level keygate configuration file.
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Keys    KeysConfig    `yaml:"keys" mapstructure:"keys"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host" mapstructure:"host"`
	Port            int        `yaml:"port" mapstructure:"port"`
	ShutdownTimeout string     `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	LoginRateLimit  int        `yaml:"login_rate_limit" mapstructure:"login_rate_limit"`
	KeyRateLimit    int        `yaml:"key_rate_limit" mapstructure:"key_rate_limit"`
	CORS            CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins" mapstructure:"origins"`
}

// StoreConfig controls the backing database.
type StoreConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	DSN        string `yaml:"dsn" mapstructure:"dsn"`
	DataDir    string `yaml:"data_dir" mapstructure:"data_dir"`
	InitSchema bool   `yaml:"init_schema" mapstructure:"init_schema"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	JWTExpiry     string `yaml:"jwt_expiry" mapstructure:"jwt_expiry"`
	RequireSecure bool   `yaml:"require_secure" mapstructure:"require_secure"`
}

// KeysConfig controls the shape of issued key batches.
type KeysConfig struct {
	Environments []string `yaml:"environments" mapstructure:"environments"`
	Types        []string `yaml:"types" mapstructure:"types"`
	SizeBytes    int      `yaml:"size_bytes" mapstructure:"size_bytes"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads and parses a YAML configuration file. Environment variables
// referenced as ${VAR_NAME} in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-filled with sensible defaults: SQLite storage,
// one Live and one Test key per account, 16-byte tokens, and the secure-channel
// requirement switched on.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: "30s",
			LoginRateLimit:  10,
			KeyRateLimit:    120,
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			DataDir:    "",
			InitSchema: true,
		},
		Auth: AuthConfig{
			JWTExpiry:     "24h",
			RequireSecure: true,
		},
		Keys: KeysConfig{
			Environments: []string{"Live", "Test"},
			Types:        []string{"ApiKey"},
			SizeBytes:    16,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefault writes the default configuration to a YAML file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
