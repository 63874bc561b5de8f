package handlers

import (
	"context"
	"net/http"
	"time"

	"strapisync/internal/mirror"
	"strapisync/internal/services/strapi"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports the remote's liveness.
type HealthChecker interface {
	CheckHealth(ctx context.Context) bool
	State() strapi.HealthState
}

// BootstrapReporter exposes the outcome of account provisioning.
type BootstrapReporter interface {
	BootstrapStatus() mirror.BootstrapStatus
}

type HealthHandler struct {
	health    HealthChecker
	bootstrap BootstrapReporter
	timeout   time.Duration
}

// NewHealthHandler builds the health routes. bootstrap may be nil.
func NewHealthHandler(health HealthChecker, bootstrap BootstrapReporter, timeout time.Duration) *HealthHandler {
	return &HealthHandler{health: health, bootstrap: bootstrap, timeout: timeout}
}

// Live includes the last known remote state. It answers 503 "degraded"
// once bootstrap has failed, until a later run succeeds.
func (h *HealthHandler) Live(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"strapi": stateBody(h.health.State()),
	}
	status := http.StatusOK
	if h.bootstrap != nil {
		boot := h.bootstrap.BootstrapStatus()
		body["bootstrap"] = boot
		if boot.State == mirror.BootstrapFailed {
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, body)
}

// Strapi checks the remote, answering 503 while it is unhealthy.
func (h *HealthHandler) Strapi(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	if !h.health.CheckHealth(ctx) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stateBody(h.health.State()))
}

func stateBody(state strapi.HealthState) gin.H {
	body := gin.H{"healthy": state.Healthy}
	if !state.CheckedAt.IsZero() {
		body["checked_at"] = state.CheckedAt
	}
	return body
}
