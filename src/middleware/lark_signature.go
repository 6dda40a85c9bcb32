package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/khabaroff/meeting-minutes-webhooks/src/services"
)

// Lark request signature headers
const (
	HeaderLarkTimestamp = "X-Lark-Request-Timestamp"
	HeaderLarkNonce     = "X-Lark-Request-Nonce"
	HeaderLarkSignature = "X-Lark-Signature"
)

// MaxWebhookBodySize bounds Lark webhook bodies
const MaxWebhookBodySize = 1 << 20 // 1MB

// LarkSignatureMiddleware validates X-Lark-Signature when an encrypt key is configured.
// Requests without a signature header pass through to the token check in the handler.
func LarkSignatureMiddleware(crypto *services.EventCrypto) gin.HandlerFunc {
	if crypto == nil {
		log.Warn().Msg("LARK_ENCRYPT_KEY is not set, webhook signatures are not verified")
	}

	return func(c *gin.Context) {
		signature := c.GetHeader(HeaderLarkSignature)
		if crypto == nil || signature == "" {
			c.Next()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodySize)
		body, err := io.ReadAll(c.Request.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "payload too large (max 1MB)",
			})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "failed to read request body",
			})
			return
		}

		timestamp := c.GetHeader(HeaderLarkTimestamp)
		nonce := c.GetHeader(HeaderLarkNonce)
		if !crypto.VerifySignature(timestamp, nonce, body, signature) {
			log.Warn().
				Str("request_id", GetRequestID(c)).
				Str("client_ip", c.ClientIP()).
				Msg("invalid Lark webhook signature")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid webhook signature",
			})
			return
		}

		// Restore body for the handler
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
