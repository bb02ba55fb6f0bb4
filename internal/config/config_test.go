package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: "https://api.example.org/"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != ":8080" {
		t.Errorf("listen: got %q", cfg.Listen)
	}
	if cfg.LogLevel != "info" || cfg.ParseLogLevel() != slog.LevelInfo {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
	if cfg.Backend.BaseURL != "https://api.example.org" {
		t.Errorf("base url should lose trailing slash: got %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.TimeoutDuration() != 10*time.Second {
		t.Errorf("backend timeout: got %v", cfg.Backend.TimeoutDuration())
	}
	if cfg.Session.CookieName != "jwt-co2" {
		t.Errorf("cookie name: got %q", cfg.Session.CookieName)
	}
	if cfg.Session.VerifyTimeoutDuration() != 10*time.Second {
		t.Errorf("verify timeout: got %v", cfg.Session.VerifyTimeoutDuration())
	}
	if want := filepath.Join(filepath.Dir(path), "dashboard.sqlite"); cfg.DBPath != want {
		t.Errorf("db path: got %q, want %q", cfg.DBPath, want)
	}
	if cfg.Backend.HealthCheck.IntervalDuration() != 30*time.Second {
		t.Errorf("health interval: got %v", cfg.Backend.HealthCheck.IntervalDuration())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
backend:
  base_url: "https://api.example.org"
session:
  cookie_secure: false
`)
	t.Setenv("DASHBOARD_BACKEND_URL", "https://staging.example.org")
	t.Setenv("DASHBOARD_SESSION_COOKIE_SECURE", "true")
	t.Setenv("DASHBOARD_LISTEN", ":9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://staging.example.org" {
		t.Errorf("base url: got %q", cfg.Backend.BaseURL)
	}
	if !cfg.Session.CookieSecure {
		t.Error("cookie_secure should be overridden to true")
	}
	if cfg.Listen != ":9090" {
		t.Errorf("listen: got %q", cfg.Listen)
	}
	if cfg.ParseLogLevel() != slog.LevelDebug {
		t.Errorf("log level from file should survive: got %v", cfg.ParseLogLevel())
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: "https://api.example.org"
`)
	dotenv := "DASHBOARD_DOMAIN=co2.example.org\nDASHBOARD_LISTEN=:7070\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DASHBOARD_DOMAIN", "")
	os.Unsetenv("DASHBOARD_DOMAIN")
	t.Setenv("DASHBOARD_LISTEN", ":9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Domain != "co2.example.org" {
		t.Errorf("domain from .env: got %q", cfg.Domain)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("process environment must win over .env: got %q", cfg.Listen)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := map[string]string{
		"missing backend": `listen: ":8080"`,
		"bad backend url": `
backend:
  base_url: "not a url"
`,
		"bad log level": `
log_level: verbose
backend:
  base_url: "https://api.example.org"
`,
		"bad frontend url": `
backend:
  base_url: "https://api.example.org"
frontend:
  base_url: "::nope"
`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: "https://api.example.org"
frontend:
  base_url: "https://co2.example.org"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "nested", "copy.yaml")
	if err := cfg.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	back, err := Load(out)
	if err != nil {
		t.Fatalf("Load saved: %v", err)
	}
	if back.Frontend.BaseURL != "https://co2.example.org" || back.Backend.BaseURL != cfg.Backend.BaseURL {
		t.Fatalf("round trip lost data: %+v", back)
	}
}

func TestURL(t *testing.T) {
	cfg := &Config{Listen: ":8080"}
	if got := cfg.URL(); got != "http://localhost:8080/" {
		t.Errorf("got %q", got)
	}
	cfg.Domain = "co2.example.org"
	if got := cfg.URL(); got != "https://co2.example.org/" {
		t.Errorf("got %q", got)
	}
}
