package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khabaroff/meeting-minutes-webhooks/src/config"
	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                        8080,
		Env:                         "test",
		EventCacheBackend:           models.EventCacheMemory,
		LarkBaseURL:                 "http://127.0.0.1:1",
		LarkVerificationToken:       "verify-me",
		LarkHTTPTimeout:             time.Second,
		TranscriptMaxRetries:        1,
		TranscriptRetryInitialDelay: time.Millisecond,
		AnthropicAPIKey:             "sk-test",
		GenerationRequestsPerMinute: 60,
		WebhookRequestsPerMinute:    600,
		MinutesRetention:            time.Hour,
	}
}

func newTestApp(t *testing.T) (*app, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a, err := newApp(testConfig(), setupDI(testConfig()))
	require.NoError(t, err)
	router := a.router()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.shutdown(ctx)
	})
	return a, router
}

func serve(router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestNewApp_WiresDependencies(t *testing.T) {
	a, _ := newTestApp(t)

	assert.Nil(t, a.db)
	assert.Nil(t, a.crypto)
	assert.NotNil(t, a.processor)
	assert.Equal(t, 1, a.processor.RetryConfig().MaxRetries)
	assert.Equal(t, time.Millisecond, a.processor.RetryConfig().InitialDelay)
}

func TestRouter_Health(t *testing.T) {
	_, router := newTestApp(t)

	w := serve(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodGet, "/info", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), serviceName)
}

func TestRouter_URLVerification(t *testing.T) {
	_, router := newTestApp(t)

	w := serve(router, http.MethodPost, "/webhook/lark",
		`{"type":"url_verification","token":"verify-me","challenge":"xyz"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "xyz", body["challenge"])
}

func TestRouter_AdminEvents(t *testing.T) {
	a, router := newTestApp(t)

	// Transcript-ready events complete immediately and are remembered
	w := serve(router, http.MethodPost, "/webhook/lark", `{
		"schema": "2.0",
		"header": {"event_id": "evt-9", "token": "verify-me"},
		"event": {"type": "vc.meeting.transcript_ready_v1", "meeting_id": "m9"}
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.webhookHandler.Wait(waitCtx))

	w = serve(router, http.MethodGet, "/admin/events/evt-9", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processed":true`)

	w = serve(router, http.MethodDelete, "/admin/events/cache", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodGet, "/admin/events/evt-9", "")
	assert.Contains(t, w.Body.String(), `"processed":false`)
}

func TestRouter_GenerateWithoutToken(t *testing.T) {
	_, router := newTestApp(t)

	w := serve(router, http.MethodPost, "/minutes/generate", `{"meeting_id":"m1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_ACCESS_TOKEN")
}

func TestRouter_Metrics(t *testing.T) {
	_, router := newTestApp(t)

	w := serve(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_MinutesNotFound(t *testing.T) {
	_, router := newTestApp(t)

	w := serve(router, http.MethodGet, "/minutes/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(router, http.MethodGet, "/minutes", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}
