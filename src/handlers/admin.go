package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khabaroff/meeting-minutes-webhooks/src/logging"
	"github.com/khabaroff/meeting-minutes-webhooks/src/middleware"
)

// EventCacheAdmin exposes the processor's dedup cache
type EventCacheAdmin interface {
	ClearProcessedEventsCache(ctx context.Context) error
	HasProcessedEvent(ctx context.Context, eventID string) bool
}

// AdminHandler handles operator endpoints
type AdminHandler struct {
	events EventCacheAdmin
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(events EventCacheAdmin) *AdminHandler {
	return &AdminHandler{events: events}
}

// HandleClearEventCache forgets every processed event ID
func (ah *AdminHandler) HandleClearEventCache(c *gin.Context) {
	if err := ah.events.ClearProcessedEventsCache(c.Request.Context()); err != nil {
		logger := logging.ComponentLogger("admin", middleware.GetRequestID(c))
		logger.Error().Err(err).Msg("failed to clear event cache")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear event cache"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// HandleGetEvent reports whether an event ID has been processed
func (ah *AdminHandler) HandleGetEvent(c *gin.Context) {
	eventID := c.Param("event_id")

	c.JSON(http.StatusOK, gin.H{
		"event_id":  eventID,
		"processed": ah.events.HasProcessedEvent(c.Request.Context(), eventID),
	})
}
