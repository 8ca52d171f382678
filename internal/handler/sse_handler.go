package handler

import (
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/garimpo_api/internal/sse"
)

// SSEHandler streams catalog change events to dashboards.
type SSEHandler struct {
	hub          *sse.Hub
	pingInterval time.Duration
}

// NewSSEHandler creates a new SSEHandler.
func NewSSEHandler(hub *sse.Hub) *SSEHandler {
	return &SSEHandler{hub: hub, pingInterval: 30 * time.Second}
}

// Stream handles GET /v1/events
func (h *SSEHandler) Stream(c *gin.Context) {
	clientID := fmt.Sprintf("dash-%s-%d", c.GetString("request_id"), time.Now().UnixNano())

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

	client := h.hub.Register(clientID)
	defer h.hub.Unregister(clientID)

	c.SSEvent("connected", gin.H{
		"clientId":  clientID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	c.Writer.Flush()

	log.Debug().Str("client_id", clientID).Msg("Catalog event stream started")

	c.Stream(func(w io.Writer) bool {
		select {
		case data, ok := <-client.Events:
			if !ok {
				return false
			}
			c.SSEvent("catalog", string(data))
			return true
		case <-time.After(h.pingInterval):
			c.SSEvent("ping", gin.H{"timestamp": time.Now().Format(time.RFC3339)})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
