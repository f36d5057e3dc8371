package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("IPINFO_TOKEN", "")
	t.Setenv("IPDR_JWT_SECRET", "")
	cfg, err := LoadConfig(writeConfig(t, "server:\n  jwt_secret: s3cret\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.URL != "ipdr_data.db" {
		t.Fatalf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.GeoIPTimeout() != 5*time.Second {
		t.Fatalf("expected 5s geoip timeout, got %v", cfg.GeoIPTimeout())
	}
	if cfg.Anomaly.Trees != 100 || cfg.Anomaly.SampleSize != 256 || cfg.Anomaly.DefaultContamination != 0.10 {
		t.Fatalf("unexpected anomaly defaults: %+v", cfg.Anomaly)
	}
	if cfg.Server.JWTSecret != "s3cret" {
		t.Fatalf("expected jwt secret from file, got %q", cfg.Server.JWTSecret)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("IPINFO_TOKEN", "tok-from-env")
	t.Setenv("IPDR_JWT_SECRET", "env-secret")
	cfg, err := LoadConfig(writeConfig(t, "geoip:\n  token: file-token\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GeoIP.Token != "tok-from-env" {
		t.Fatalf("expected env token, got %q", cfg.GeoIP.Token)
	}
	if cfg.Server.JWTSecret != "env-secret" {
		t.Fatalf("expected env secret, got %q", cfg.Server.JWTSecret)
	}
}

func TestLoadConfig_PostgresKeepsURL(t *testing.T) {
	t.Setenv("IPDR_JWT_SECRET", "env-secret")
	cfg, err := LoadConfig(writeConfig(t, "database:\n  type: postgres\n  url: postgres://u:p@localhost/ipdr\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.URL != "postgres://u:p@localhost/ipdr" {
		t.Fatalf("unexpected url: %q", cfg.Database.URL)
	}
}

func TestLoadConfig_RequiresJWTSecret(t *testing.T) {
	t.Setenv("IPDR_JWT_SECRET", "")
	if _, err := LoadConfig(writeConfig(t, "server:\n  port: \"9000\"\n")); !errors.Is(err, ErrMissingJWTSecret) {
		t.Fatalf("expected ErrMissingJWTSecret, got %v", err)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
