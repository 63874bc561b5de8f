package strapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strapisync/internal/logger"
)

func healthServer(t *testing.T, checks *int32, healthyAfter int32) *httptest.Server {
	t.Helper()
	router := gin.New()
	router.HEAD("/_health", func(c *gin.Context) {
		if atomic.AddInt32(checks, 1) <= healthyAfter {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusNoContent)
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestCheckHealthCachesHealthyState(t *testing.T) {
	var checks int32
	server := healthServer(t, &checks, 0)

	now := time.Now()
	monitor := NewHealthMonitor(server.URL, server.Client(), 2*time.Minute, 10*time.Millisecond, logger.NewNop())
	monitor.now = func() time.Time { return now }

	assert.True(t, monitor.CheckHealth(context.Background()))
	assert.True(t, monitor.CheckHealth(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&checks))

	now = now.Add(2 * time.Minute)
	assert.True(t, monitor.CheckHealth(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&checks))

	state := monitor.State()
	assert.True(t, state.Healthy)
	assert.Equal(t, now, state.CheckedAt)
}

func TestCheckHealthRechecksWhileUnhealthy(t *testing.T) {
	var checks int32
	server := healthServer(t, &checks, 100)

	monitor := NewHealthMonitor(server.URL, server.Client(), time.Minute, 10*time.Millisecond, logger.NewNop())

	assert.False(t, monitor.CheckHealth(context.Background()))
	assert.False(t, monitor.CheckHealth(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&checks))
}

func TestWaitForHealthPollsUntilHealthy(t *testing.T) {
	var checks int32
	server := healthServer(t, &checks, 2)

	monitor := NewHealthMonitor(server.URL, server.Client(), time.Minute, 5*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, monitor.WaitForHealth(ctx))
	assert.Equal(t, int32(3), atomic.LoadInt32(&checks))
}

func TestWaitForHealthStopsOnContext(t *testing.T) {
	var checks int32
	server := healthServer(t, &checks, 1_000_000)

	monitor := NewHealthMonitor(server.URL, server.Client(), time.Minute, 5*time.Millisecond, logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	err := monitor.WaitForHealth(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, monitor.State().Healthy)
}
