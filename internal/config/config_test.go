package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.LoginRateLimit != 10 {
		t.Errorf("Server.LoginRateLimit = %d, want 10", cfg.Server.LoginRateLimit)
	}
	if cfg.Server.KeyRateLimit != 120 {
		t.Errorf("Server.KeyRateLimit = %d, want 120", cfg.Server.KeyRateLimit)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Store.Driver = %q, want sqlite", cfg.Store.Driver)
	}
	if !cfg.Store.InitSchema {
		t.Error("Store.InitSchema = false, want true")
	}
	if !cfg.Auth.RequireSecure {
		t.Error("Auth.RequireSecure = false, want true")
	}
	if cfg.Auth.JWTSecret != "" {
		t.Error("Auth.JWTSecret should have no default")
	}
	if want := []string{"Live", "Test"}; !reflect.DeepEqual(cfg.Keys.Environments, want) {
		t.Errorf("Keys.Environments = %v, want %v", cfg.Keys.Environments, want)
	}
	if want := []string{"ApiKey"}; !reflect.DeepEqual(cfg.Keys.Types, want) {
		t.Errorf("Keys.Types = %v, want %v", cfg.Keys.Types, want)
	}
	if cfg.Keys.SizeBytes != 16 {
		t.Errorf("Keys.SizeBytes = %d, want 16", cfg.Keys.SizeBytes)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keygate.yaml")

	content := `
server:
  port: 9090
auth:
  jwt_secret: file-secret
keys:
  environments: [Live, Test, Stage]
  size_bytes: 32
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Auth.JWTSecret != "file-secret" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if want := []string{"Live", "Test", "Stage"}; !reflect.DeepEqual(cfg.Keys.Environments, want) {
		t.Errorf("Keys.Environments = %v, want %v", cfg.Keys.Environments, want)
	}
	if cfg.Keys.SizeBytes != 32 {
		t.Errorf("Keys.SizeBytes = %d, want 32", cfg.Keys.SizeBytes)
	}

	// Values the file leaves out keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if !cfg.Auth.RequireSecure {
		t.Error("Auth.RequireSecure lost its default")
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("KEYGATE_TEST_SECRET", "from-the-environment")

	dir := t.TempDir()
	path := filepath.Join(dir, "keygate.yaml")
	content := `
auth:
  jwt_secret: ${KEYGATE_TEST_SECRET}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-the-environment" {
		t.Errorf("Auth.JWTSecret = %q, want expanded value", cfg.Auth.JWTSecret)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not: a map"), 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keygate.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("round-tripped config differs from defaults:\ngot  %+v\nwant %+v", cfg, Default())
	}
}
