package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/khabaroff/meeting-minutes-webhooks/src/logging"
	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
	"github.com/khabaroff/meeting-minutes-webhooks/src/repositories"
)

// MinutesService stores and serves generated minutes
type MinutesService struct {
	repo   repositories.MinutesRepository
	logger zerolog.Logger
}

// NewMinutesService creates a new minutes service
func NewMinutesService(repo repositories.MinutesRepository) *MinutesService {
	return &MinutesService{
		repo:   repo,
		logger: logging.NewLogger("minutes_service"),
	}
}

// Persist is a success subscriber that stores generated minutes
func (s *MinutesService) Persist(ctx context.Context, ev MinutesGeneratedEvent) {
	if ev.Result == nil || ev.Result.Minutes == nil {
		return
	}
	if err := s.repo.Save(ctx, ev.Result.Minutes); err != nil {
		s.logger.Error().Err(err).
			Str("meeting_id", ev.MeetingID).
			Str("event_id", ev.EventID).
			Msg("failed to store minutes")
		return
	}
	s.logger.Debug().Str("meeting_id", ev.MeetingID).Msg("minutes stored")
}

// GetByMeeting returns the latest minutes for a meeting
func (s *MinutesService) GetByMeeting(ctx context.Context, meetingID string) (*models.Minutes, error) {
	m, err := s.repo.GetLatestByMeetingID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("get minutes for meeting %s: %w", meetingID, err)
	}
	return m, nil
}

// List returns recent minutes, newest first
func (s *MinutesService) List(ctx context.Context, limit int) ([]*models.Minutes, error) {
	return s.repo.List(ctx, limit)
}
