package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khabaroff/meeting-minutes-webhooks/src/repositories/mock"
)

func TestCleanupService_RunOnce(t *testing.T) {
	repo := mock.NewMinutesRepository()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var gotCutoff time.Time
	repo.DeleteOlderThanFunc = func(ctx context.Context, cutoff time.Time) (int64, error) {
		gotCutoff = cutoff
		return 3, nil
	}

	cs := NewCleanupService(repo, 30*24*time.Hour, true)
	cs.now = func() time.Time { return now }

	deleted, err := cs.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.Equal(t, now.Add(-30*24*time.Hour), gotCutoff)
}

func TestCleanupService_RunOnceError(t *testing.T) {
	repo := mock.NewMinutesRepository()
	repo.DeleteOlderThanFunc = func(ctx context.Context, cutoff time.Time) (int64, error) {
		return 0, errors.New("db down")
	}

	cs := NewCleanupService(repo, time.Hour, true)
	_, err := cs.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestCleanupService_Loop(t *testing.T) {
	repo := mock.NewMinutesRepository()
	cs := NewCleanupService(repo, time.Hour, true)
	cs.interval = 10 * time.Millisecond

	cs.Start(context.Background())
	assert.Eventually(t, func() bool {
		return repo.CallCount("DeleteOlderThan") >= 2
	}, time.Second, 5*time.Millisecond)

	cs.Stop()
	cs.Stop() // idempotent
}

func TestCleanupService_Disabled(t *testing.T) {
	repo := mock.NewMinutesRepository()

	cs := NewCleanupService(repo, 0, true)
	cs.interval = time.Millisecond
	cs.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	cs.Stop()

	assert.Equal(t, 0, repo.CallCount("DeleteOlderThan"))
}
