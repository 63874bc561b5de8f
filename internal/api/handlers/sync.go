package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"strapisync/internal/logger"
	"strapisync/internal/mirror"
	"strapisync/internal/worker/processors"

	"github.com/gin-gonic/gin"
)

// Publisher queues events for the worker.
type Publisher interface {
	Publish(ctx context.Context, event processors.Event) error
}

type SyncHandler struct {
	engine      processors.Engine
	publisher   Publisher
	timeout     time.Duration
	bulkTimeout time.Duration
	logger      *logger.Logger
}

// NewSyncHandler builds the handler. publisher may be nil, in which case
// async requests are refused.
func NewSyncHandler(engine processors.Engine, publisher Publisher, timeout, bulkTimeout time.Duration, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{
		engine:      engine,
		publisher:   publisher,
		timeout:     timeout,
		bulkTimeout: bulkTimeout,
		logger:      logger,
	}
}

// Event applies one change event, or queues it with ?async=true.
func (h *SyncHandler) Event(c *gin.Context) {
	var ev mirror.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := mirror.ParseKind(string(ev.Kind)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if isAsync(c) {
		h.enqueue(c, processors.Event{
			Type:   string(ev.Kind) + "." + ev.Action,
			ID:     ev.ID,
			Fields: ev.Fields,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.engine.Handle(ctx, ev)
	if err != nil {
		h.logger.Error("Failed to handle %s.%s %s: %v", ev.Kind, ev.Action, ev.ID, err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

type resyncRequest struct {
	Kinds []string `json:"kinds"`
}

// Resync upserts every entity of the requested kinds, all kinds when none
// are given.
func (h *SyncHandler) Resync(c *gin.Context) {
	var req resyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kinds := make([]mirror.Kind, 0, len(req.Kinds))
	for _, name := range req.Kinds {
		kind, err := mirror.ParseKind(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		kinds = append(kinds, kind)
	}

	if isAsync(c) {
		h.enqueue(c, processors.Event{Type: processors.TypeSyncRequested, Kinds: req.Kinds})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.bulkTimeout)
	defer cancel()

	stats, err := h.engine.Resync(ctx, kinds...)
	if err != nil {
		h.logger.Error("Resync failed: %v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "data": stats})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

// Bootstrap provisions both accounts and triggers the bulk synchronisation.
func (h *SyncHandler) Bootstrap(c *gin.Context) {
	if isAsync(c) {
		h.enqueue(c, processors.Event{Type: processors.TypeBootstrapRequested})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.bulkTimeout)
	defer cancel()

	if err := h.engine.Bootstrap(ctx); err != nil {
		h.logger.Error("Bootstrap failed: %v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SyncHandler) enqueue(c *gin.Context, event processors.Event) {
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event queue is not configured"})
		return
	}
	event.Timestamp = time.Now().UTC()
	if err := h.publisher.Publish(c.Request.Context(), event); err != nil {
		h.logger.Error("Failed to queue %s: %v", event.Type, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "type": event.Type})
}

func isAsync(c *gin.Context) bool {
	return c.Query("async") == "true"
}
