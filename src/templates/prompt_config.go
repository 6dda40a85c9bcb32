package templates

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

//go:embed prompts/*
var promptTemplates embed.FS

// PromptConfig holds the minutes prompt loaded from prompts/minutes.yaml
type PromptConfig struct {
	Model struct {
		MaxTokens   int64   `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"model"`

	System string `yaml:"system"`
	User   string `yaml:"user"`

	// MaxTranscriptChars truncates very long transcripts before they reach the model
	MaxTranscriptChars int `yaml:"max_transcript_chars"`
}

// LoadPromptConfig loads the embedded prompt config, or the file at path when set
func LoadPromptConfig(path string) (*PromptConfig, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = promptTemplates.ReadFile("prompts/minutes.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}

	var config PromptConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}
	if strings.TrimSpace(config.User) == "" {
		return nil, fmt.Errorf("prompt config has no user template")
	}

	return &config, nil
}

// MinutesPromptData holds data for the user prompt template
type MinutesPromptData struct {
	MeetingID string
	Title     string
	Date      string
	Attendees []string
	Segments  []models.TranscriptSegment
}

// NewMinutesPromptData builds template data from a generation input
func NewMinutesPromptData(input models.MinutesGenerationInput) MinutesPromptData {
	data := MinutesPromptData{
		MeetingID: input.Meeting.ID,
		Title:     input.Meeting.Title,
		Date:      input.Meeting.Date,
		Attendees: input.Meeting.Attendees,
	}
	if input.Transcript != nil {
		data.Segments = input.Transcript.Segments
	}
	return data
}

// RenderMinutesPrompt renders the user prompt
func (c *PromptConfig) RenderMinutesPrompt(data MinutesPromptData) (string, error) {
	funcMap := template.FuncMap{
		"join":      strings.Join,
		"timestamp": formatOffset,
	}

	tmpl, err := template.New("minutes").Funcs(funcMap).Parse(c.User)
	if err != nil {
		return "", fmt.Errorf("failed to parse minutes template: %w", err)
	}

	if c.MaxTranscriptChars > 0 {
		data.Segments = truncateSegments(data.Segments, c.MaxTranscriptChars)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute minutes template: %w", err)
	}

	return buf.String(), nil
}

// formatOffset renders a millisecond offset as HH:MM:SS
func formatOffset(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// truncateSegments keeps leading segments whose text fits in limit characters
func truncateSegments(segments []models.TranscriptSegment, limit int) []models.TranscriptSegment {
	used := 0
	for i, seg := range segments {
		used += len(seg.Text)
		if used > limit {
			return segments[:i]
		}
	}
	return segments
}
