package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

// ErrMinutesNotFound is returned when no minutes exist for a meeting
var ErrMinutesNotFound = errors.New("minutes not found")

// DefaultListLimit caps List when the caller passes a non-positive limit
const DefaultListLimit = 50

// MinutesRepository defines the interface for minutes data access
type MinutesRepository interface {
	Save(ctx context.Context, minutes *models.Minutes) error
	GetLatestByMeetingID(ctx context.Context, meetingID string) (*models.Minutes, error)
	List(ctx context.Context, limit int) ([]*models.Minutes, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
