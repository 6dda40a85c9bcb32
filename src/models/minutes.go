package models

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptSegment is one speaker-attributed span of a transcript
type TranscriptSegment struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Transcript is the finalized transcript of a meeting
type Transcript struct {
	MeetingID string              `json:"meeting_id"`
	Segments  []TranscriptSegment `json:"segments"`
}

// IsEmpty reports whether the platform has produced any content yet
func (t *Transcript) IsEmpty() bool {
	return t == nil || len(t.Segments) == 0
}

// MeetingInfo is the meeting context handed to the minutes generator
type MeetingInfo struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	Attendees []string `json:"attendees"`
}

// MinutesGenerationInput is the generator request
type MinutesGenerationInput struct {
	Transcript *Transcript `json:"transcript"`
	Meeting    MeetingInfo `json:"meeting"`
}

// ActionItem is a follow-up extracted from the meeting
type ActionItem struct {
	Content  string `json:"content"`
	Assignee string `json:"assignee,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// Minutes is the structured summary of a meeting
type Minutes struct {
	ID          uuid.UUID    `json:"id"`
	MeetingID   string       `json:"meeting_id"`
	Title       string       `json:"title"`
	Date        string       `json:"date"`
	Attendees   []string     `json:"attendees"`
	Summary     string       `json:"summary"`
	Topics      []string     `json:"topics"`
	Decisions   []string     `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TokenUsage reports LLM token consumption
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// MinutesGenerationResult is the generator response
type MinutesGenerationResult struct {
	Minutes          *Minutes   `json:"minutes"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
	Usage            TokenUsage `json:"usage"`
}
