package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel          string                  `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	Listen            string                  `yaml:"listen" env:"LISTEN" validate:"required"`
	Domain            string                  `yaml:"domain" env:"DOMAIN"`
	DBPath            string                  `yaml:"db_path" env:"DB_PATH" validate:"required"`
	Backend           BackendConfig           `yaml:"backend" envPrefix:"BACKEND_"`
	Session           SessionConfig           `yaml:"session" envPrefix:"SESSION_"`
	Frontend          FrontendConfig          `yaml:"frontend" envPrefix:"FRONTEND_"`
	ObservabilityHTTP ObservabilityHTTPConfig `yaml:"observability_http" envPrefix:"OBSERVABILITY_"`
}

type BackendConfig struct {
	BaseURL     string            `yaml:"base_url" env:"URL" validate:"required,url"`
	Timeout     int               `yaml:"timeout"  env:"TIMEOUT" validate:"gte=0"` // seconds
	HealthCheck HealthCheckConfig `yaml:"health_check" envPrefix:"HEALTH_"`
}

type HealthCheckConfig struct {
	Enabled  bool   `yaml:"enabled"  env:"ENABLED"`
	Interval int    `yaml:"interval" env:"INTERVAL" validate:"gte=0"` // seconds
	Path     string `yaml:"path"     env:"PATH"`
}

type SessionConfig struct {
	CookieName    string `yaml:"cookie_name"    env:"COOKIE_NAME"`
	CookieDomain  string `yaml:"cookie_domain"  env:"COOKIE_DOMAIN"`
	CookieSecure  bool   `yaml:"cookie_secure"  env:"COOKIE_SECURE"`
	VerifyTimeout int    `yaml:"verify_timeout" env:"VERIFY_TIMEOUT" validate:"gte=0"` // seconds
	// JarKey seals the token the command line keeps in the database.
	JarKey string `yaml:"jar_key" env:"JAR_KEY"`
}

// FrontendConfig locates the donation, limit and stats flows the
// dashboard hands users over to. An empty BaseURL keeps redirects relative.
type FrontendConfig struct {
	BaseURL string `yaml:"base_url" env:"URL" validate:"omitempty,url"`
}

type ObservabilityHTTPConfig struct {
	Addr    string `yaml:"addr"    env:"ADDR"`
	Metrics bool   `yaml:"metrics" env:"METRICS"`
	Pprof   bool   `yaml:"pprof"   env:"PPROF"`
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DASHBOARD_"

// Load reads the YAML file at path, applies DASHBOARD_* environment
// overrides and defaults, then validates the result. A .env file next to
// the config feeds the environment without replacing variables already set.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", dotenv, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(path), "dashboard.sqlite")
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10
	}
	if cfg.Backend.HealthCheck.Interval == 0 {
		cfg.Backend.HealthCheck.Interval = 30
	}
	if cfg.Backend.HealthCheck.Path == "" {
		cfg.Backend.HealthCheck.Path = "/"
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "jwt-co2"
	}
	if cfg.Session.VerifyTimeout == 0 {
		cfg.Session.VerifyTimeout = 10
	}
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	cfg.Frontend.BaseURL = strings.TrimRight(cfg.Frontend.BaseURL, "/")

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// URL returns the public URL of the dashboard.
func (c *Config) URL() string {
	if c.Domain == "" {
		return "http://localhost" + c.Listen + "/"
	}
	return fmt.Sprintf("https://%s/", c.Domain)
}

func (b BackendConfig) TimeoutDuration() time.Duration {
	return time.Duration(b.Timeout) * time.Second
}

func (h HealthCheckConfig) IntervalDuration() time.Duration {
	return time.Duration(h.Interval) * time.Second
}

func (s SessionConfig) VerifyTimeoutDuration() time.Duration {
	return time.Duration(s.VerifyTimeout) * time.Second
}

func (c *Config) ParseLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
