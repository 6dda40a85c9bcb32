package services

import (
	"errors"
	"fmt"

	"github.com/khabaroff/meeting-minutes-webhooks/src/repositories"
)

// Sentinel errors for explicit error handling
// Callers distinguish failure modes with errors.Is() instead of string matching

var (
	// ErrEmptyTranscript indicates the transcript exists but has no segments yet
	ErrEmptyTranscript = errors.New("transcript has no segments yet")

	// ErrTranscriptNotFound indicates the platform has no transcript for the meeting
	ErrTranscriptNotFound = errors.New("transcript not found")

	// ErrMinutesNotFound indicates no minutes are stored for the meeting
	ErrMinutesNotFound = repositories.ErrMinutesNotFound

	// ErrInvalidPayload indicates a webhook body could not be decoded
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrInvalidToken indicates the verification token does not match
	ErrInvalidToken = errors.New("invalid verification token")

	// Code sentinels, matched against *ProcessingError by errors.Is
	ErrMissingAccessToken = errors.New(string(CodeMissingAccessToken))
	ErrTranscriptNotReady = errors.New(string(CodeTranscriptNotReady))
	ErrGenerationFailed   = errors.New(string(CodeGenerationFailed))
)

// ErrorCode classifies a processing failure
type ErrorCode string

const (
	CodeMissingAccessToken ErrorCode = "MISSING_ACCESS_TOKEN"
	CodeTranscriptNotReady ErrorCode = "TRANSCRIPT_NOT_READY"
	CodeGenerationFailed   ErrorCode = "GENERATION_FAILED"
)

// ProcessingError is the single error type surfaced by the minutes pipeline
type ProcessingError struct {
	Code      ErrorCode
	EventID   string
	MeetingID string
	Cause     error
}

func (e *ProcessingError) Error() string {
	var msg string
	switch e.Code {
	case CodeMissingAccessToken:
		msg = "Access token is required to fetch the meeting transcript"
	case CodeTranscriptNotReady:
		msg = fmt.Sprintf("transcript for meeting %s is not ready", e.MeetingID)
	case CodeGenerationFailed:
		msg = fmt.Sprintf("minutes generation failed for meeting %s", e.MeetingID)
	default:
		msg = "minutes processing failed"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Is matches the code sentinels
func (e *ProcessingError) Is(target error) bool {
	switch target {
	case ErrMissingAccessToken:
		return e.Code == CodeMissingAccessToken
	case ErrTranscriptNotReady:
		return e.Code == CodeTranscriptNotReady
	case ErrGenerationFailed:
		return e.Code == CodeGenerationFailed
	}
	return false
}

func newProcessingError(code ErrorCode, eventID, meetingID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      code,
		EventID:   eventID,
		MeetingID: meetingID,
		Cause:     cause,
	}
}

// ErrorCodeOf extracts the processing code from err, or "" when err is not a ProcessingError
func ErrorCodeOf(err error) ErrorCode {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
