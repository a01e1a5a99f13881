package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": "8080"},
		"database": {"host": "db", "port": "5432", "user": "city", "password": "pw", "dbname": "smartcity"},
		"jwt": {"secret": "file-secret"}
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.JWT.Lifetime() != 30*24*time.Hour {
		t.Errorf("Expected 30 day token lifetime, got %v", cfg.JWT.Lifetime())
	}
	if cfg.Cookie.Name != "token" {
		t.Errorf("Expected default cookie name 'token', got %q", cfg.Cookie.Name)
	}
	if cfg.RabbitMQ.Enabled() {
		t.Error("Expected RabbitMQ to be disabled without a host")
	}
	if cfg.RateLimit.LoginAttempts != 10 || cfg.RateLimit.Window() != 15*time.Minute {
		t.Errorf("Unexpected rate limit defaults: %+v", cfg.RateLimit)
	}

	want := "host=db port=5432 user=city password=pw dbname=smartcity sslmode=disable"
	if got := cfg.Database.DSN(); got != want {
		t.Errorf("Expected DSN %q, got %q", want, got)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"jwt": {"secret": "file-secret"}, "server": {"port": "8080"}}`)

	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "1")
	t.Setenv("RABBITMQ_HOST", "rabbit")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected env port 9090, got %s", cfg.Server.Port)
	}
	if cfg.JWT.Secret != "env-secret" {
		t.Errorf("Expected env secret, got %q", cfg.JWT.Secret)
	}
	if cfg.JWT.Lifetime() != time.Hour {
		t.Errorf("Expected 1h lifetime, got %v", cfg.JWT.Lifetime())
	}
	if !cfg.RabbitMQ.Enabled() || cfg.RabbitMQ.Port != "5672" {
		t.Errorf("Expected RabbitMQ enabled on default port, got %+v", cfg.RabbitMQ)
	}
	if !cfg.Cookie.Secure {
		t.Error("Expected secure cookie from env")
	}
}

func TestLoadConfig_MissingFileUsesEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "only-env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Port != "5000" {
		t.Errorf("Expected default port 5000, got %s", cfg.Server.Port)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		path := writeConfig(t, `{"server": {"port": "8080"}}`)
		if _, err := LoadConfig(path); err == nil {
			t.Error("Expected error when jwt secret is missing")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeConfig(t, `{"server":`)
		if _, err := LoadConfig(path); err == nil {
			t.Error("Expected decode error")
		}
	})

	t.Run("bad int env", func(t *testing.T) {
		path := writeConfig(t, `{"jwt": {"secret": "s"}}`)
		t.Setenv("REDIS_DB", "zero")
		if _, err := LoadConfig(path); err == nil {
			t.Error("Expected error for non-numeric REDIS_DB")
		}
	})
}
