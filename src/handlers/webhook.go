package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/khabaroff/meeting-minutes-webhooks/src/logging"
	"github.com/khabaroff/meeting-minutes-webhooks/src/middleware"
	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
	"github.com/khabaroff/meeting-minutes-webhooks/src/services"
)

const maxBodySize = middleware.MaxWebhookBodySize

// EventProcessor processes a decoded webhook delivery
type EventProcessor interface {
	ProcessEvent(ctx context.Context, payload *models.WebhookPayload, accessToken string) models.WebhookProcessingResult
}

// WebhookHandler receives Lark event deliveries
type WebhookHandler struct {
	processor         EventProcessor
	crypto            *services.EventCrypto
	verificationToken string

	// dispatch runs processing off the request goroutine
	dispatch func(fn func())
	inflight sync.WaitGroup

	// base is cancelled by Shutdown to stop background processing
	base   context.Context
	cancel context.CancelFunc
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(processor EventProcessor, crypto *services.EventCrypto, verificationToken string) *WebhookHandler {
	wh := &WebhookHandler{
		processor:         processor,
		crypto:            crypto,
		verificationToken: verificationToken,
	}
	wh.base, wh.cancel = context.WithCancel(context.Background())
	wh.dispatch = func(fn func()) { go fn() }
	return wh
}

// HandleLarkWebhook acknowledges a Lark delivery and processes it in the background
func (wh *WebhookHandler) HandleLarkWebhook(c *gin.Context) {
	logger := logging.ComponentLogger("webhook", middleware.GetRequestID(c))

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) > maxBodySize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large (max 1MB)"})
		return
	}

	body, err = wh.decrypt(body)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to decrypt webhook body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to decrypt event"})
		return
	}

	// URL verification handshake sent when the callback URL is configured
	var challenge models.URLVerification
	if err := json.Unmarshal(body, &challenge); err == nil && challenge.Type == models.CallbackTypeURLVerification {
		if !wh.tokenMatches(challenge.Token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": services.ErrInvalidToken.Error()})
			return
		}
		logger.Info().Msg("answered Lark URL verification")
		c.JSON(http.StatusOK, gin.H{"challenge": challenge.Challenge})
		return
	}

	payload, err := models.ParseWebhookPayload(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrInvalidPayload.Error()})
		return
	}
	if !wh.tokenMatches(payload.Header.Token) {
		logger.Warn().Str("event_id", payload.Header.EventID).Msg("webhook token mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": services.ErrInvalidToken.Error()})
		return
	}

	// Processing outlives the request but not the handler
	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	stop := context.AfterFunc(wh.base, cancel)
	wh.inflight.Add(1)
	wh.dispatch(func() {
		defer wh.inflight.Done()
		defer cancel()
		defer stop()
		wh.processor.ProcessEvent(ctx, payload, "")
	})

	logger.Debug().
		Str("event_id", payload.Header.EventID).
		Str("event_type", payload.EventType()).
		Msg("webhook accepted")

	c.JSON(http.StatusOK, gin.H{
		"status":   "accepted",
		"event_id": payload.Header.EventID,
	})
}

// Wait blocks until background processing finishes or ctx is done
func (wh *WebhookHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		wh.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels background processing and waits for it to return
func (wh *WebhookHandler) Shutdown(ctx context.Context) error {
	wh.cancel()
	return wh.Wait(ctx)
}

// decrypt unwraps {"encrypt": "..."} bodies; plain bodies pass through
func (wh *WebhookHandler) decrypt(body []byte) ([]byte, error) {
	var envelope models.EncryptedPayload
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Encrypt == "" {
		return body, nil
	}
	plain, err := wh.crypto.Decrypt(envelope.Encrypt)
	if err != nil {
		return nil, err
	}
	if !json.Valid(plain) {
		return nil, errors.New("decrypted event is not valid JSON")
	}
	return plain, nil
}

func (wh *WebhookHandler) tokenMatches(token string) bool {
	if wh.verificationToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(wh.verificationToken)) == 1
}
