package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Lark event type tags
const (
	EventTypeMeetingEnded    = "vc.meeting.meeting_ended_v1"
	EventTypeTranscriptReady = "vc.meeting.transcript_ready_v1"

	// CallbackTypeURLVerification is sent once when the webhook URL is registered
	CallbackTypeURLVerification = "url_verification"
)

// WebhookHeader is the envelope header of a Lark event delivery
type WebhookHeader struct {
	EventID    string `json:"event_id"`
	Token      string `json:"token"`
	CreateTime string `json:"create_time"`
	EventType  string `json:"event_type"`
	AppID      string `json:"app_id,omitempty"`
	TenantKey  string `json:"tenant_key,omitempty"`
}

// WebhookPayload is a Lark event delivery. Event holds the variant body and is
// decoded lazily once the variant is known.
type WebhookPayload struct {
	Schema string          `json:"schema,omitempty"`
	Header WebhookHeader   `json:"header"`
	Event  json.RawMessage `json:"event,omitempty"`
}

// URLVerification is the challenge body Lark sends when a callback URL is configured
type URLVerification struct {
	Type      string `json:"type"`
	Token     string `json:"token"`
	Challenge string `json:"challenge"`
}

// EncryptedPayload wraps an event body when an encrypt key is configured on the app
type EncryptedPayload struct {
	Encrypt string `json:"encrypt"`
}

// MeetingEndedEvent is the body of a meeting-ended delivery
type MeetingEndedEvent struct {
	Type             string    `json:"type"`
	MeetingID        string    `json:"meeting_id"`
	EndTime          EpochTime `json:"end_time"`
	HostUserID       string    `json:"host_user_id"`
	Topic            *string   `json:"topic,omitempty"`
	ParticipantCount *int      `json:"participant_count,omitempty"`
}

// TranscriptReadyEvent is the body of a transcript-ready delivery
type TranscriptReadyEvent struct {
	Type         string `json:"type"`
	MeetingID    string `json:"meeting_id"`
	TranscriptID string `json:"transcript_id,omitempty"`
}

// ParseWebhookPayload decodes a raw delivery body
func ParseWebhookPayload(body []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	return &payload, nil
}

// EventType returns the discriminating type of the event body, falling back
// to the header tag when the body carries none.
func (p *WebhookPayload) EventType() string {
	if len(p.Event) > 0 {
		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(p.Event, &probe); err == nil && probe.Type != "" {
			return probe.Type
		}
	}
	return p.Header.EventType
}

// MeetingEnded decodes the body as a meeting-ended event
func (p *WebhookPayload) MeetingEnded() (*MeetingEndedEvent, error) {
	var ev MeetingEndedEvent
	if err := json.Unmarshal(p.Event, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode meeting ended event: %w", err)
	}
	if ev.MeetingID == "" {
		return nil, fmt.Errorf("meeting ended event has no meeting_id")
	}
	return &ev, nil
}

// TranscriptReady decodes the body as a transcript-ready event
func (p *WebhookPayload) TranscriptReady() (*TranscriptReadyEvent, error) {
	var ev TranscriptReadyEvent
	if err := json.Unmarshal(p.Event, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode transcript ready event: %w", err)
	}
	return &ev, nil
}

// EpochTime is a unix timestamp in seconds. Lark sends it either as a number
// or as a numeric string depending on the event version.
type EpochTime int64

// UnmarshalJSON accepts 1700000000 and "1700000000"
func (e *EpochTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*e = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid epoch time %q: %w", s, err)
		}
		*e = EpochTime(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid epoch time: %w", err)
	}
	*e = EpochTime(v)
	return nil
}

// Time converts the timestamp to UTC time
func (e EpochTime) Time() time.Time {
	return time.Unix(int64(e), 0).UTC()
}
