package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khabaroff/meeting-minutes-webhooks/src/database"
)

func TestPostgresMinutesRepository(t *testing.T) {
	database.WithTestDB(t, func(tdb *database.TestDB) {
		ctx := context.Background()
		repo := NewPostgresMinutesRepository(tdb.Pool)
		base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

		_, err := repo.GetLatestByMeetingID(ctx, "m1")
		assert.ErrorIs(t, err, ErrMinutesNotFound)

		first := newMinutes("m1", base)
		second := newMinutes("m1", base.Add(time.Hour))
		second.Attendees = nil
		require.NoError(t, repo.Save(ctx, first))
		require.NoError(t, repo.Save(ctx, second))

		got, err := repo.GetLatestByMeetingID(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
		assert.Equal(t, []string{}, got.Attendees)
		require.Len(t, got.ActionItems, 1)
		assert.Equal(t, "follow up", got.ActionItems[0].Content)

		list, err := repo.List(ctx, 1)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, second.ID, list[0].ID)

		deleted, err := repo.DeleteOlderThan(ctx, base.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		list, err = repo.List(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}
