package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/khabaroff/meeting-minutes-webhooks/src/logging"
	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

// DefaultLarkBaseURL is the Lark open platform endpoint
const DefaultLarkBaseURL = "https://open.larksuite.com"

// Lark response codes that mean the transcript does not exist (yet)
const (
	larkCodeOK                 = 0
	larkCodeMeetingNotFound    = 121001
	larkCodeTranscriptNotFound = 121005
)

// LarkService fetches meeting transcripts from the Lark VC open API
type LarkService struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewLarkService creates a new Lark client
func NewLarkService(baseURL string, timeout time.Duration) *LarkService {
	if baseURL == "" {
		baseURL = DefaultLarkBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LarkService{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logging.NewLogger("lark_service"),
	}
}

// larkEnvelope is the common Lark open API response wrapper
type larkEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// larkTranscriptData is the data section of the transcript endpoint
type larkTranscriptData struct {
	MeetingID string                  `json:"meeting_id"`
	Segments  []larkTranscriptSegment `json:"segments"`
}

type larkTranscriptSegment struct {
	StartTime flexibleInt `json:"start_time"`
	EndTime   flexibleInt `json:"end_time"`
	Speaker   struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	} `json:"speaker"`
	Text string `json:"text"`
}

// flexibleInt accepts millisecond offsets sent as number or string
type flexibleInt int64

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	var e models.EpochTime
	if err := e.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = flexibleInt(e)
	return nil
}

// GetTranscript fetches the transcript of a meeting. A meeting whose transcript
// is still being produced returns ErrTranscriptNotFound.
func (s *LarkService) GetTranscript(ctx context.Context, accessToken, meetingID string) (*models.Transcript, error) {
	endpoint := fmt.Sprintf("%s/open-apis/vc/v1/meetings/%s/transcript", s.baseURL, url.PathEscape(meetingID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send transcript request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		s.logger.Debug().Str("meeting_id", meetingID).Msg("transcript endpoint returned 404")
		return nil, fmt.Errorf("meeting %s: %w", meetingID, ErrTranscriptNotFound)
	}

	var envelope larkEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			s.logger.Warn().
				Str("meeting_id", meetingID).
				Int("status", resp.StatusCode).
				Msg("Lark transcript request failed")
			return nil, fmt.Errorf("Lark API error (status %d): %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("failed to decode transcript response: %w", err)
	}

	switch envelope.Code {
	case larkCodeOK:
	case larkCodeMeetingNotFound, larkCodeTranscriptNotFound:
		s.logger.Debug().
			Str("meeting_id", meetingID).
			Int("code", envelope.Code).
			Msg("transcript not available yet")
		return nil, fmt.Errorf("meeting %s: %w", meetingID, ErrTranscriptNotFound)
	default:
		s.logger.Warn().
			Str("meeting_id", meetingID).
			Int("code", envelope.Code).
			Str("msg", envelope.Msg).
			Msg("Lark API returned an error code")
		return nil, fmt.Errorf("Lark API error (code %d): %s", envelope.Code, envelope.Msg)
	}

	var data larkTranscriptData
	if len(envelope.Data) > 0 && string(envelope.Data) != "null" {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode transcript data: %w", err)
		}
	}

	transcript := &models.Transcript{
		MeetingID: meetingID,
		Segments:  make([]models.TranscriptSegment, 0, len(data.Segments)),
	}
	for _, seg := range data.Segments {
		speaker := seg.Speaker.Name
		if speaker == "" {
			speaker = seg.Speaker.UserID
		}
		transcript.Segments = append(transcript.Segments, models.TranscriptSegment{
			StartMs: int64(seg.StartTime),
			EndMs:   int64(seg.EndTime),
			Speaker: speaker,
			Text:    seg.Text,
		})
	}
	sort.SliceStable(transcript.Segments, func(i, j int) bool {
		return transcript.Segments[i].StartMs < transcript.Segments[j].StartMs
	})

	return transcript, nil
}

// HasTranscript reports whether a non-empty transcript is available
func (s *LarkService) HasTranscript(ctx context.Context, accessToken, meetingID string) (bool, error) {
	transcript, err := s.GetTranscript(ctx, accessToken, meetingID)
	if err != nil {
		if errors.Is(err, ErrTranscriptNotFound) {
			return false, nil
		}
		return false, err
	}
	return !transcript.IsEmpty(), nil
}
