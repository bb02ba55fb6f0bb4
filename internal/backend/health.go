package backend

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/blikh/co2-dashboard/internal/metrics"
)

// HealthChecker periodically probes the backend. Any HTTP response counts
// as reachable; only transport failures mark it degraded.
type HealthChecker struct {
	target   string
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger

	healthy atomic.Bool
}

// NewHealthChecker probes baseURL+path every interval.
func NewHealthChecker(baseURL, path string, interval time.Duration, logger *slog.Logger) *HealthChecker {
	if interval == 0 {
		interval = 30 * time.Second
	}
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &HealthChecker{
		target:   strings.TrimRight(baseURL, "/") + path,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// Healthy reports the result of the last probe.
func (h *HealthChecker) Healthy() bool {
	return h.healthy.Load()
}

// Run probes until ctx is cancelled.
func (h *HealthChecker) Run(ctx context.Context) {
	h.check(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

func (h *HealthChecker) check(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, h.target, nil)
	if err != nil {
		h.setHealthy(false)
		h.logger.Error("backend health check: bad target", "target", h.target, "err", err)
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logger.Warn("backend health check failed", "target", h.target, "err", err)
		h.setHealthy(false)
		return
	}
	resp.Body.Close()

	h.logger.Debug("backend health check passed", "target", h.target, "status", resp.StatusCode)
	h.setHealthy(true)
}

func (h *HealthChecker) setHealthy(ok bool) {
	prev := h.healthy.Swap(ok)
	if ok {
		metrics.BackendUp.Set(1)
	} else {
		metrics.BackendUp.Set(0)
	}
	if prev != ok && ok {
		h.logger.Info("backend reachable again", "target", h.target)
	}
}
