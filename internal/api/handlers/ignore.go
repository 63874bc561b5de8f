package handlers

import (
	"net/http"

	"strapisync/internal/guard"
	"strapisync/internal/logger"

	"github.com/gin-gonic/gin"
)

type IgnoreHandler struct {
	guard  *guard.Guard
	logger *logger.Logger
}

func NewIgnoreHandler(g *guard.Guard, logger *logger.Logger) *IgnoreHandler {
	return &IgnoreHandler{
		guard:  g,
		logger: logger,
	}
}

type ignoreRequest struct {
	ID   string `json:"id" binding:"required"`
	Side string `json:"side" binding:"required,oneof=strapi medusa"`
}

// Add records an echo marker, e.g. from the CMS plugin before it writes
// back to the commerce side.
func (h *IgnoreHandler) Add(c *gin.Context) {
	var req ignoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.guard.Add(c.Request.Context(), req.ID, req.Side); err != nil {
		h.logger.Error("%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record ignore marker"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"id":     req.ID,
		"side":   req.Side,
		"ttl_ms": h.guard.TTL().Milliseconds(),
	}})
}

// Get reports whether a marker is live for :id on :side.
func (h *IgnoreHandler) Get(c *gin.Context) {
	side := c.Param("side")
	if side != guard.SideStrapi && side != guard.SideMedusa {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be strapi or medusa"})
		return
	}
	id := c.Param("id")

	ignore, err := h.guard.ShouldIgnore(c.Request.Context(), id, side)
	if err != nil {
		h.logger.Error("%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read ignore marker"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "side": side, "ignore": ignore}})
}
