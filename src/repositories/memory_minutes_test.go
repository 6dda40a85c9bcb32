package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khabaroff/meeting-minutes-webhooks/src/models"
)

func newMinutes(meetingID string, createdAt time.Time) *models.Minutes {
	return &models.Minutes{
		ID:          uuid.New(),
		MeetingID:   meetingID,
		Title:       "Meeting " + meetingID,
		Date:        createdAt.Format(time.RFC3339),
		Attendees:   []string{"Alice"},
		Summary:     "summary",
		Topics:      []string{},
		Decisions:   []string{},
		ActionItems: []models.ActionItem{{Content: "follow up", Priority: models.PriorityLow}},
		CreatedAt:   createdAt,
	}
}

func TestMemoryMinutesRepository_GetLatest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMinutesRepository()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.GetLatestByMeetingID(ctx, "m1")
	assert.ErrorIs(t, err, ErrMinutesNotFound)

	older := newMinutes("m1", base)
	newer := newMinutes("m1", base.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newMinutes("m2", base.Add(2*time.Hour))))

	got, err := repo.GetLatestByMeetingID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	// Returned values are copies
	got.Title = "changed"
	again, err := repo.GetLatestByMeetingID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Meeting m1", again.Title)
}

func TestMemoryMinutesRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMinutesRepository()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, newMinutes("m", base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].CreatedAt.After(all[4].CreatedAt))

	limited, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, base.Add(4*time.Minute), limited[0].CreatedAt)
}

func TestMemoryMinutesRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryMinutesRepository()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, newMinutes("old", base)))
	require.NoError(t, repo.Save(ctx, newMinutes("new", base.Add(48*time.Hour))))

	deleted, err := repo.DeleteOlderThan(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetLatestByMeetingID(ctx, "old")
	assert.ErrorIs(t, err, ErrMinutesNotFound)
	_, err = repo.GetLatestByMeetingID(ctx, "new")
	assert.NoError(t, err)
}

func TestMemoryMinutesRepository_SaveNil(t *testing.T) {
	repo := NewMemoryMinutesRepository()
	require.NoError(t, repo.Save(context.Background(), nil))

	all, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}
