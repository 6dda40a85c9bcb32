package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

// MemoryMinutesRepository keeps minutes in process memory.
// Used when no DATABASE_URL is configured.
type MemoryMinutesRepository struct {
	mu    sync.RWMutex
	items []*models.Minutes
}

// NewMemoryMinutesRepository creates a new in-memory minutes repository
func NewMemoryMinutesRepository() *MemoryMinutesRepository {
	return &MemoryMinutesRepository{}
}

// Save stores a copy of the minutes
func (r *MemoryMinutesRepository) Save(ctx context.Context, minutes *models.Minutes) error {
	if minutes == nil {
		return nil
	}
	cp := *minutes
	r.mu.Lock()
	r.items = append(r.items, &cp)
	r.mu.Unlock()
	return nil
}

// GetLatestByMeetingID returns the most recently created minutes for a meeting
func (r *MemoryMinutesRepository) GetLatestByMeetingID(ctx context.Context, meetingID string) (*models.Minutes, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.Minutes
	for _, m := range r.items {
		if m.MeetingID != meetingID {
			continue
		}
		if latest == nil || !m.CreatedAt.Before(latest.CreatedAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, ErrMinutesNotFound
	}
	cp := *latest
	return &cp, nil
}

// List returns minutes newest first
func (r *MemoryMinutesRepository) List(ctx context.Context, limit int) ([]*models.Minutes, error) {
	limit = normalizeLimit(limit)

	r.mu.RLock()
	out := make([]*models.Minutes, 0, len(r.items))
	for _, m := range r.items {
		cp := *m
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteOlderThan removes minutes created before cutoff
func (r *MemoryMinutesRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.items[:0]
	var deleted int64
	for _, m := range r.items {
		if m.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.items = kept
	return deleted, nil
}

var _ MinutesRepository = (*MemoryMinutesRepository)(nil)
