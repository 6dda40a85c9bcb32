package models

// ProcessingState is the terminal state of a processed webhook event
type ProcessingState string

const (
	StateCompleted ProcessingState = "COMPLETED"
	StateSkipped   ProcessingState = "SKIPPED"
	StateFailed    ProcessingState = "FAILED"
)

// WebhookProcessingResult is returned once per processed delivery
type WebhookProcessingResult struct {
	State      ProcessingState `json:"state"`
	EventID    string          `json:"event_id"`
	MeetingID  string          `json:"meeting_id,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Error      string          `json:"error,omitempty"`
}
