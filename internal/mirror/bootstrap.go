package mirror

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"strapisync/internal/services/strapi"
)

// Bootstrap states reported by BootstrapStatus.
const (
	BootstrapPending = "pending"
	BootstrapRunning = "running"
	BootstrapReady   = "ready"
	BootstrapFailed  = "failed"
	BootstrapSkipped = "skipped"
)

// BootstrapStatus is the outcome of the latest Bootstrap run.
type BootstrapStatus struct {
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BootstrapStatus reports the latest Bootstrap outcome.
func (e *Engine) BootstrapStatus() BootstrapStatus {
	e.bootMu.RLock()
	defer e.bootMu.RUnlock()
	return e.boot
}

// SkipBootstrap records that provisioning was deliberately not run.
func (e *Engine) SkipBootstrap() {
	e.setBootstrap(BootstrapSkipped, nil)
}

func (e *Engine) setBootstrap(state string, err error) {
	status := BootstrapStatus{State: state, UpdatedAt: time.Now()}
	if err != nil {
		status.Error = err.Error()
	}
	e.bootMu.Lock()
	e.boot = status
	e.bootMu.Unlock()
}

// Bootstrap registers or logs in the super admin, then the service account,
// then asks the CMS plugin to run a full synchronisation. A failing step
// stops the ones after it. Running it again is harmless, and a successful
// run clears an earlier failure.
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.setBootstrap(BootstrapRunning, nil)
	if err := e.bootstrap(ctx); err != nil {
		e.setBootstrap(BootstrapFailed, err)
		return err
	}
	e.setBootstrap(BootstrapReady, nil)
	return nil
}

func (e *Engine) bootstrap(ctx context.Context) error {
	admin := e.client.Auth.Admin()
	if _, err := e.client.Auth.RegisterOrLoginAdmin(ctx); err != nil {
		return fmt.Errorf("failed to authenticate strapi admin %s: %w", admin.Email, err)
	}
	e.logger.Info("strapi admin %s ready", admin.Email)

	user := e.opts.ServiceUser
	if _, err := e.client.Auth.RegisterOrLogin(ctx, user); err != nil {
		return fmt.Errorf("failed to authenticate strapi service user %s: %w", user.Email, err)
	}
	e.logger.Info("strapi service user %s ready", user.Email)

	return e.TriggerBulkSync(ctx)
}

// TriggerBulkSync posts to the CMS plugin's synchronisation endpoint with
// the admin token. The call is bounded by BulkSyncTimeout.
func (e *Engine) TriggerBulkSync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.BulkSyncTimeout)
	defer cancel()

	body := map[string]interface{}{"medusa_backend_url": e.opts.MedusaBackendURL}
	_, err := e.withAdminToken(ctx, func(token string) (*strapi.Response, error) {
		return e.client.Do(ctx, strapi.Request{
			Method:       http.MethodPost,
			Path:         e.opts.BulkSyncPath,
			Token:        token,
			Body:         body,
			ResourceType: "bulk-sync",
			Timeout:      e.opts.BulkSyncTimeout,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to trigger strapi bulk sync: %w", err)
	}
	e.logger.Info("strapi bulk sync completed")
	return nil
}
