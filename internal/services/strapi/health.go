package strapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"strapisync/internal/logger"
)

// HealthMonitor caches the remote's liveness. A healthy answer is reused
// for cacheTTL; an unhealthy one is rechecked every time.
type HealthMonitor struct {
	baseURL      string
	httpClient   *http.Client
	cacheTTL     time.Duration
	pollInterval time.Duration
	now          func() time.Time
	logger       *logger.Logger

	mu    sync.RWMutex
	state HealthState
}

func NewHealthMonitor(baseURL string, httpClient *http.Client, cacheTTL, pollInterval time.Duration, logger *logger.Logger) *HealthMonitor {
	if cacheTTL <= 0 {
		cacheTTL = 120 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &HealthMonitor{
		baseURL:      baseURL,
		httpClient:   httpClient,
		cacheTTL:     cacheTTL,
		pollInterval: pollInterval,
		now:          time.Now,
		logger:       logger,
	}
}

// CheckHealth returns the cached state when it is healthy and fresh,
// otherwise calls HEAD /_health.
func (h *HealthMonitor) CheckHealth(ctx context.Context) bool {
	h.mu.RLock()
	state := h.state
	h.mu.RUnlock()

	if state.Healthy && h.now().Sub(state.CheckedAt) < h.cacheTTL {
		return true
	}

	healthy := h.ping(ctx)

	h.mu.Lock()
	h.state = HealthState{Healthy: healthy, CheckedAt: h.now()}
	h.mu.Unlock()

	if healthy != state.Healthy {
		h.logger.Info("strapi health changed: healthy=%t", healthy)
	}
	return healthy
}

// errNotHealthy drives the poll loop in WaitForHealth.
var errNotHealthy = errors.New("strapi not healthy")

// WaitForHealth polls every pollInterval until the remote is healthy. Only
// ctx bounds it.
func (h *HealthMonitor) WaitForHealth(ctx context.Context) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if h.CheckHealth(ctx) {
			return struct{}{}, nil
		}
		return struct{}{}, errNotHealthy
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(h.pollInterval)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(_ error, next time.Duration) {
			h.logger.Debug("strapi not healthy yet, retrying in %s", next)
		}),
	)
	if err != nil {
		return fmt.Errorf("waiting for strapi health: %w", err)
	}
	return nil
}

// State returns the last recorded health without probing.
func (h *HealthMonitor) State() HealthState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *HealthMonitor) ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, h.baseURL+"/_health", nil)
	if err != nil {
		return false
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Debug("strapi health check failed: %v", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}
