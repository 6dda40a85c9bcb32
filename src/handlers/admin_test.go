package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeEventCache struct {
	cleared  int
	clearErr error
	seen     map[string]bool
}

func (f *fakeEventCache) ClearProcessedEventsCache(ctx context.Context) error {
	f.cleared++
	return f.clearErr
}

func (f *fakeEventCache) HasProcessedEvent(ctx context.Context, eventID string) bool {
	return f.seen[eventID]
}

func TestHandleClearEventCache(t *testing.T) {
	cache := &fakeEventCache{}
	ah := NewAdminHandler(cache)

	w, c := createTestContext(http.MethodDelete, "/admin/events/cache", nil)
	ah.HandleClearEventCache(c)

	assertStatusCode(t, w, http.StatusOK)
	assert.Equal(t, "cleared", decodeBody(t, w)["status"])
	assert.Equal(t, 1, cache.cleared)
}

func TestHandleClearEventCache_Error(t *testing.T) {
	ah := NewAdminHandler(&fakeEventCache{clearErr: errors.New("redis down")})

	w, c := createTestContext(http.MethodDelete, "/admin/events/cache", nil)
	ah.HandleClearEventCache(c)

	assertStatusCode(t, w, http.StatusInternalServerError)
	assertJSONError(t, w, "failed to clear event cache")
}

func TestHandleGetEvent(t *testing.T) {
	ah := NewAdminHandler(&fakeEventCache{seen: map[string]bool{"evt-1": true}})

	for id, want := range map[string]bool{"evt-1": true, "evt-2": false} {
		w, c := createTestContext(http.MethodGet, "/admin/events/"+id, nil)
		c.Params = gin.Params{{Key: "event_id", Value: id}}
		ah.HandleGetEvent(c)

		assertStatusCode(t, w, http.StatusOK)
		body := decodeBody(t, w)
		assert.Equal(t, id, body["event_id"])
		assert.Equal(t, want, body["processed"])
	}
}
