package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/blikh/co2-dashboard/internal/backend"
	"github.com/blikh/co2-dashboard/internal/config"
	"github.com/blikh/co2-dashboard/internal/dashboard"
	"github.com/blikh/co2-dashboard/internal/store"
)

const logo = `
   ___ ___ ___   ___          _    _                      _
  / __/ _ \_  ) |   \ __ _ __| |_ | |__  ___  __ _ _ _ __| |
 | (_| (_) / /  | |) / _' (_-< ' \| '_ \/ _ \/ _' | '_/ _' |
  \___\___/___| |___/\__,_/__/_||_|_.__/\___/\__,_|_| \__,_|`

func Run(args []string, logger *slog.Logger, version string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "configs/dashboard.yaml", "path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.ParseLogLevel()}))

	fmt.Println(logo)
	logger.Info("starting co2 dashboard", "version", version, "url", cfg.URL())
	if bi, ok := debug.ReadBuildInfo(); ok {
		var buildAttrs []any
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision", "vcs.time", "vcs.modified":
				buildAttrs = append(buildAttrs, s.Key, s.Value)
			}
		}
		if len(buildAttrs) > 0 {
			logger.Info("build info", buildAttrs...)
		}
	}

	db, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.TimeoutDuration(), logger)

	var health dashboard.HealthReporter
	var checker *backend.HealthChecker
	if hc := cfg.Backend.HealthCheck; hc.Enabled {
		checker = backend.NewHealthChecker(cfg.Backend.BaseURL, hc.Path, hc.IntervalDuration(), logger)
		health = checker
	}

	srv, err := dashboard.New(cfg, client, client, db, health, logger)
	if err != nil {
		logger.Error("failed to build dashboard", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gCtx)
	})

	if checker != nil {
		g.Go(func() error {
			checker.Run(gCtx)
			return nil
		})
	}

	if obs := cfg.ObservabilityHTTP; obs.Addr != "" {
		g.Go(func() error {
			return serveObservability(gCtx, obs, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("dashboard error", "err", err)
		os.Exit(1)
	}
	logger.Info("dashboard stopped")
}

func serveObservability(ctx context.Context, obs config.ObservabilityHTTPConfig, logger *slog.Logger) error {
	mux := http.NewServeMux()
	if obs.Pprof {
		// net/http/pprof registers on DefaultServeMux.
		mux.HandleFunc("/debug/pprof/", http.DefaultServeMux.ServeHTTP)
	}
	if obs.Metrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{Addr: obs.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	logger.Info("starting observability server", "addr", obs.Addr, "pprof", obs.Pprof, "metrics", obs.Metrics)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observability server: %w", err)
	}
	return nil
}
