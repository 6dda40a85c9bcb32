package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khabaroff/meeting-minutes-webhooks/src/services"
)

func signedRouter(t *testing.T, crypto *services.EventCrypto) (*gin.Engine, *string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seenBody string
	router := gin.New()
	router.POST("/webhook/lark", LarkSignatureMiddleware(crypto), func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		seenBody = string(b)
		c.Status(http.StatusOK)
	})
	return router, &seenBody
}

func signedRequest(body, timestamp, nonce, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook/lark", strings.NewReader(body))
	req.Header.Set(HeaderLarkTimestamp, timestamp)
	req.Header.Set(HeaderLarkNonce, nonce)
	if signature != "" {
		req.Header.Set(HeaderLarkSignature, signature)
	}
	return req
}

func TestLarkSignatureMiddleware_Valid(t *testing.T) {
	crypto, err := services.NewEventCrypto("encrypt-key")
	require.NoError(t, err)
	router, seen := signedRouter(t, crypto)

	body := `{"encrypt":"abc"}`
	sig := crypto.Signature("1700000000", "n1", []byte(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(body, "1700000000", "n1", sig))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, *seen, "body must be restored for the handler")
}

func TestLarkSignatureMiddleware_Invalid(t *testing.T) {
	crypto, _ := services.NewEventCrypto("encrypt-key")
	router, _ := signedRouter(t, crypto)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(`{"encrypt":"abc"}`, "1700000000", "n1", "deadbeef"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid webhook signature")
}

func TestLarkSignatureMiddleware_Unsigned(t *testing.T) {
	crypto, _ := services.NewEventCrypto("encrypt-key")
	router, seen := signedRouter(t, crypto)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(`{"type":"url_verification"}`, "", "", ""))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"type":"url_verification"}`, *seen)
}

func TestLarkSignatureMiddleware_Disabled(t *testing.T) {
	router, _ := signedRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(`{}`, "1", "n", "anything"))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLarkSignatureMiddleware_OversizedBody(t *testing.T) {
	crypto, _ := services.NewEventCrypto("encrypt-key")
	router, seen := signedRouter(t, crypto)

	body := `{"encrypt":"` + strings.Repeat("a", MaxWebhookBodySize) + `"}`
	sig := crypto.Signature("1700000000", "n1", []byte(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(body, "1700000000", "n1", sig))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, *seen)
}
