package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/khabaroff/meeting-minutes-webhooks/src/logging"
	"github.com/khabaroff/meeting-minutes-webhooks/src/middleware"
	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
	"github.com/khabaroff/meeting-minutes-webhooks/src/services"
)

const maxListLimit = 200

// MinutesTrigger starts minutes generation on demand
type MinutesTrigger interface {
	TriggerMinutesGeneration(ctx context.Context, req services.TriggerRequest) (*models.MinutesGenerationResult, error)
}

// MinutesReader reads stored minutes
type MinutesReader interface {
	GetByMeeting(ctx context.Context, meetingID string) (*models.Minutes, error)
	List(ctx context.Context, limit int) ([]*models.Minutes, error)
}

// MinutesHandler serves minutes generation and retrieval
type MinutesHandler struct {
	trigger MinutesTrigger
	reader  MinutesReader
}

// NewMinutesHandler creates a new minutes handler
func NewMinutesHandler(trigger MinutesTrigger, reader MinutesReader) *MinutesHandler {
	return &MinutesHandler{trigger: trigger, reader: reader}
}

// GenerateMinutesRequest is the body of POST /minutes/generate
type GenerateMinutesRequest struct {
	MeetingID         string           `json:"meeting_id" binding:"required"`
	AccessToken       string           `json:"access_token"`
	WaitForTranscript bool             `json:"wait_for_transcript"`
	Topic             string           `json:"topic"`
	EndTime           models.EpochTime `json:"end_time"`
}

// HandleGenerate runs the pipeline for one meeting and returns the minutes
func (mh *MinutesHandler) HandleGenerate(c *gin.Context) {
	var req GenerateMinutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meeting_id is required"})
		return
	}

	// Token may also come from the Authorization header
	token := req.AccessToken
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	}

	triggerReq := services.TriggerRequest{
		MeetingID:         req.MeetingID,
		AccessToken:       token,
		WaitForTranscript: req.WaitForTranscript,
		Topic:             req.Topic,
	}
	if req.EndTime > 0 {
		triggerReq.EndTime = req.EndTime.Time()
	}

	result, err := mh.trigger.TriggerMinutesGeneration(c.Request.Context(), triggerReq)
	if err != nil {
		status, code := statusForProcessingError(err)
		logger := logging.ComponentLogger("minutes", middleware.GetRequestID(c))
		logger.Warn().
			Err(err).
			Str("meeting_id", req.MeetingID).
			Int("status", status).
			Msg("minutes generation request failed")
		c.JSON(status, gin.H{
			"error": err.Error(),
			"code":  code,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleGetByMeeting returns the latest minutes for a meeting
func (mh *MinutesHandler) HandleGetByMeeting(c *gin.Context) {
	meetingID := c.Param("meeting_id")

	minutes, err := mh.reader.GetByMeeting(c.Request.Context(), meetingID)
	if errors.Is(err, services.ErrMinutesNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "minutes not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load minutes"})
		return
	}

	c.JSON(http.StatusOK, minutes)
}

// HandleList returns recent minutes, newest first
func (mh *MinutesHandler) HandleList(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	items, err := mh.reader.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list minutes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"minutes": items,
		"count":   len(items),
	})
}

// statusForProcessingError maps pipeline error codes onto HTTP statuses
func statusForProcessingError(err error) (int, string) {
	code := services.ErrorCodeOf(err)
	switch code {
	case services.CodeMissingAccessToken:
		return http.StatusBadRequest, string(code)
	case services.CodeTranscriptNotReady:
		return http.StatusConflict, string(code)
	case services.CodeGenerationFailed:
		return http.StatusBadGateway, string(code)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "CANCELLED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}
