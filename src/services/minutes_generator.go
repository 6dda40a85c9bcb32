package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/khabaroff/meeting-minutes-webhooks/src/logging"
	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
	"github.com/khabaroff/meeting-minutes-webhooks/src/templates"
)

// DefaultClaudeModel is used when no model is configured
const DefaultClaudeModel = "claude-sonnet-4-5"

// ClaudeConfig holds minutes generator configuration
type ClaudeConfig struct {
	APIKey            string
	Model             string
	MaxTokens         int64
	BaseURL           string
	MaxRetries        int
	RequestsPerMinute int
}

// ClaudeMinutesGenerator generates minutes with the Anthropic Messages API
type ClaudeMinutesGenerator struct {
	client  anthropic.Client
	model   string
	tokens  int64
	prompt  *templates.PromptConfig
	limiter *rate.Limiter
	logger  zerolog.Logger
	now     func() time.Time
}

// NewClaudeMinutesGenerator creates a new generator
func NewClaudeMinutesGenerator(cfg ClaudeConfig, prompt *templates.PromptConfig) (*ClaudeMinutesGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if prompt == nil {
		return nil, errors.New("prompt config is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultClaudeModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = prompt.Model.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	// Unlimited unless configured
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &ClaudeMinutesGenerator{
		client:  anthropic.NewClient(opts...),
		model:   model,
		tokens:  maxTokens,
		prompt:  prompt,
		limiter: limiter,
		logger:  logging.NewLogger("minutes_generator"),
		now:     time.Now,
	}, nil
}

// GenerateMinutes asks Claude for structured minutes of the transcript
func (g *ClaudeMinutesGenerator) GenerateMinutes(ctx context.Context, input models.MinutesGenerationInput) (*models.MinutesGenerationResult, error) {
	start := time.Now()

	if input.Transcript.IsEmpty() {
		return nil, ErrEmptyTranscript
	}

	userPrompt, err := g.prompt.RenderMinutesPrompt(templates.NewMinutesPromptData(input))
	if err != nil {
		return nil, err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for generation slot: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.tokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if strings.TrimSpace(g.prompt.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: g.prompt.System}}
	}
	if g.prompt.Model.Temperature > 0 {
		params.Temperature = anthropic.Float(g.prompt.Model.Temperature)
	}

	message, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	minutes, err := parseMinutesResponse(text.String(), input, g.now())
	if err != nil {
		return nil, err
	}

	usage := models.TokenUsage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	g.logger.Info().
		Str("meeting_id", input.Meeting.ID).
		Str("model", g.model).
		Int64("input_tokens", usage.InputTokens).
		Int64("output_tokens", usage.OutputTokens).
		Int("action_items", len(minutes.ActionItems)).
		Msg("minutes generated")

	return &models.MinutesGenerationResult{
		Minutes:          minutes,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Usage:            usage,
	}, nil
}

// minutesResponse is the JSON shape requested from the model
type minutesResponse struct {
	Title       string              `json:"title"`
	Summary     string              `json:"summary"`
	Topics      []string            `json:"topics"`
	Decisions   []string            `json:"decisions"`
	ActionItems []models.ActionItem `json:"action_items"`
	Attendees   []string            `json:"attendees"`
}

// parseMinutesResponse extracts the JSON object from the model reply and
// fills in meeting context the model does not own
func parseMinutesResponse(text string, input models.MinutesGenerationInput, now time.Time) (*models.Minutes, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("claude response contains no JSON object")
	}

	var resp minutesResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode minutes JSON: %w", err)
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return nil, fmt.Errorf("claude response has an empty summary")
	}

	// Prefer the model's title over the generated placeholder
	title := input.Meeting.Title
	if resp.Title != "" && (title == "" || title == "Meeting "+input.Meeting.ID) {
		title = resp.Title
	}

	attendees := input.Meeting.Attendees
	if len(attendees) == 0 {
		attendees = resp.Attendees
	}
	if len(attendees) == 0 {
		attendees = speakers(input.Transcript)
	}

	actionItems := make([]models.ActionItem, 0, len(resp.ActionItems))
	for _, item := range resp.ActionItems {
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		item.Priority = normalizePriority(item.Priority)
		actionItems = append(actionItems, item)
	}

	return &models.Minutes{
		ID:          uuid.New(),
		MeetingID:   input.Meeting.ID,
		Title:       title,
		Date:        input.Meeting.Date,
		Attendees:   nonNil(attendees),
		Summary:     strings.TrimSpace(resp.Summary),
		Topics:      nonNil(resp.Topics),
		Decisions:   nonNil(resp.Decisions),
		ActionItems: actionItems,
		CreatedAt:   now.UTC(),
	}, nil
}

// speakers lists distinct speakers in order of first appearance
func speakers(t *models.Transcript) []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, seg := range t.Segments {
		if seg.Speaker == "" || seen[seg.Speaker] {
			continue
		}
		seen[seg.Speaker] = true
		out = append(out, seg.Speaker)
	}
	return out
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high":
		return models.PriorityHigh
	case "low":
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
