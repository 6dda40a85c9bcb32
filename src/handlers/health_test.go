package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleHealth(t *testing.T) {
	t.Run("no dependencies", func(t *testing.T) {
		hh := NewHealthHandler("meeting-minutes-webhooks", "1.0.0", nil)
		w, c := createTestContext(http.MethodGet, "/health", nil)
		hh.HandleHealth(c)

		assertStatusCode(t, w, http.StatusOK)
		assert.Equal(t, "ok", decodeBody(t, w)["status"])
	})

	t.Run("failing dependency", func(t *testing.T) {
		hh := NewHealthHandler("svc", "1.0.0", map[string]HealthCheck{
			"database": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		})
		w, c := createTestContext(http.MethodGet, "/health", nil)
		hh.HandleHealth(c)

		assertStatusCode(t, w, http.StatusServiceUnavailable)
		body := decodeBody(t, w)
		assert.Equal(t, "unhealthy", body["status"])
		deps := body["dependencies"].(map[string]interface{})
		assert.Equal(t, "connected", deps["database"].(map[string]interface{})["status"])
		assert.Equal(t, "connection refused", deps["redis"].(map[string]interface{})["error"])
	})
}

func TestHandleReady(t *testing.T) {
	healthy := true
	hh := NewHealthHandler("svc", "1.0.0", map[string]HealthCheck{
		"database": func(ctx context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("down")
		},
	})

	w, c := createTestContext(http.MethodGet, "/ready", nil)
	hh.HandleReady(c)
	assertStatusCode(t, w, http.StatusOK)
	assert.Equal(t, true, decodeBody(t, w)["ready"])

	healthy = false
	w, c = createTestContext(http.MethodGet, "/ready", nil)
	hh.HandleReady(c)
	assertStatusCode(t, w, http.StatusServiceUnavailable)
}

func TestHandleInfo(t *testing.T) {
	hh := NewHealthHandler("meeting-minutes-webhooks", "1.2.3", nil)
	w, c := createTestContext(http.MethodGet, "/info", nil)
	hh.HandleInfo(c)

	assertStatusCode(t, w, http.StatusOK)
	body := decodeBody(t, w)
	assert.Equal(t, "meeting-minutes-webhooks", body["service"])
	assert.Equal(t, "1.2.3", body["version"])
}
