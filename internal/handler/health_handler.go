package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/garimpo_api/internal/config"
	"github.com/GTDGit/garimpo_api/internal/store"
	"github.com/GTDGit/garimpo_api/internal/utils"
)

var startTime = time.Now()

// StoreStatus is the part of the store adapter the health check reads.
type StoreStatus interface {
	Status(ctx context.Context) store.Status
	CheckRemote(ctx context.Context) error
}

// HealthHandler provides health endpoint.
type HealthHandler struct {
	store StoreStatus
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(st StoreStatus) *HealthHandler {
	return &HealthHandler{store: st}
}

// GetHealth responds with service and record store status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	remote := "connected"
	if err := h.store.CheckRemote(ctx); err != nil {
		remote = "disconnected"
	}
	st := h.store.Status(ctx)
	if st.Strategy != config.StorageRemote {
		remote = "disabled"
	}

	status := "healthy"
	if st.Degraded || remote == "disconnected" {
		status = "degraded"
	}

	utils.Success(c, http.StatusOK, "Service is "+status, gin.H{
		"status":  status,
		"version": "1.0.0",
		"uptime":  int(time.Since(startTime).Seconds()),
		"store": gin.H{
			"strategy": st.Strategy,
			"remote":   remote,
			"degraded": st.Degraded,
			"pending":  st.Pending,
		},
	})
}
