package commands

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/blikh/co2-dashboard/internal/config"
)

func Init(args []string, logger *slog.Logger) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "configs/dashboard.yaml", "path to config file")
	backendURL := fs.String("backend", "", "CO2 backend API base URL (required)")
	frontendURL := fs.String("frontend", "", "base URL of the donation/limit/stats flows")
	listen := fs.String("listen", ":8080", "dashboard listen address")
	domain := fs.String("domain", "", "public domain; enables secure cookies")
	force := fs.Bool("force", false, "overwrite an existing config")
	fs.Parse(args)

	if *backendURL == "" {
		fmt.Fprintln(os.Stderr, "error: -backend is required (e.g. https://api.example.org)")
		fs.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*configPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "error: %s already exists (use -force to overwrite)\n", *configPath)
		os.Exit(1)
	}

	cfg := &config.Config{
		LogLevel: "info",
		Listen:   *listen,
		Domain:   *domain,
		Backend: config.BackendConfig{
			BaseURL: *backendURL,
			Timeout: 10,
			HealthCheck: config.HealthCheckConfig{
				Enabled:  true,
				Interval: 30,
				Path:     "/",
			},
		},
		Session: config.SessionConfig{
			CookieName:    "jwt-co2",
			CookieDomain:  *domain,
			CookieSecure:  *domain != "",
			VerifyTimeout: 10,
		},
		Frontend: config.FrontendConfig{BaseURL: *frontendURL},
		ObservabilityHTTP: config.ObservabilityHTTPConfig{
			Addr:    "127.0.0.1:9100",
			Metrics: true,
		},
	}

	if err := cfg.Save(*configPath); err != nil {
		logger.Error("failed to write config", "err", err)
		os.Exit(1)
	}
	// Load validates what was written.
	if _, err := config.Load(*configPath); err != nil {
		logger.Error("written config does not validate", "err", err)
		os.Exit(1)
	}

	fmt.Println("=== Config initialized ===")
	fmt.Printf("Config:    %s\n", *configPath)
	fmt.Printf("Backend:   %s\n", *backendURL)
	fmt.Printf("Dashboard: %s\n", cfg.URL())
	fmt.Println()
	fmt.Println("Run 'dashboard login -token <jwt>' to sign in from the command line.")
}
