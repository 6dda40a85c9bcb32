package mock

import (
	"context"
	"sync"
	"time"

	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
	"github.com/khabaroff/meeting-minutes-webhooks/src/repositories"
)

// MinutesRepository is a mock implementation of repositories.MinutesRepository
type MinutesRepository struct {
	// Function stubs that can be overridden in tests
	SaveFunc                 func(ctx context.Context, minutes *models.Minutes) error
	GetLatestByMeetingIDFunc func(ctx context.Context, meetingID string) (*models.Minutes, error)
	ListFunc                 func(ctx context.Context, limit int) ([]*models.Minutes, error)
	DeleteOlderThanFunc      func(ctx context.Context, cutoff time.Time) (int64, error)

	// Call tracking
	mu    sync.Mutex
	Calls map[string][]interface{}
}

// NewMinutesRepository creates a new mock minutes repository
func NewMinutesRepository() *MinutesRepository {
	return &MinutesRepository{
		Calls: make(map[string][]interface{}),
	}
}

func (m *MinutesRepository) record(name string, arg interface{}) {
	m.mu.Lock()
	m.Calls[name] = append(m.Calls[name], arg)
	m.mu.Unlock()
}

// CallCount returns how many times a method was invoked
func (m *MinutesRepository) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls[name])
}

func (m *MinutesRepository) Save(ctx context.Context, minutes *models.Minutes) error {
	m.record("Save", minutes)
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, minutes)
	}
	return nil
}

func (m *MinutesRepository) GetLatestByMeetingID(ctx context.Context, meetingID string) (*models.Minutes, error) {
	m.record("GetLatestByMeetingID", meetingID)
	if m.GetLatestByMeetingIDFunc != nil {
		return m.GetLatestByMeetingIDFunc(ctx, meetingID)
	}
	return nil, repositories.ErrMinutesNotFound
}

func (m *MinutesRepository) List(ctx context.Context, limit int) ([]*models.Minutes, error) {
	m.record("List", limit)
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}
	return []*models.Minutes{}, nil
}

func (m *MinutesRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.record("DeleteOlderThan", cutoff)
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// Verify interface compliance
var _ repositories.MinutesRepository = (*MinutesRepository)(nil)
