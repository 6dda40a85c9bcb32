package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/khabaroff/meeting-minutes-webhooks/src/logging"
	"github.com/khabaroff/meeting-minutes-webhooks/src/repositories"
)

// DefaultCleanupInterval is how often expired minutes are purged
const DefaultCleanupInterval = 24 * time.Hour

// CleanupService handles automatic removal of minutes past their retention
type CleanupService struct {
	repo      repositories.MinutesRepository
	enabled   bool
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(repo repositories.MinutesRepository, retention time.Duration, enabled bool) *CleanupService {
	return &CleanupService{
		repo:      repo,
		enabled:   enabled && retention > 0,
		retention: retention,
		interval:  DefaultCleanupInterval,
		now:       time.Now,
		logger:    logging.NewLogger("cleanup"),
		done:      make(chan struct{}),
	}
}

// Start starts the cleanup loop
func (cs *CleanupService) Start(ctx context.Context) {
	if !cs.enabled {
		cs.logger.Info().Msg("cleanup service is disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				cs.logger.Info().Msg("cleanup service stopped")
				return
			case <-cs.done:
				cs.logger.Info().Msg("cleanup service stopped")
				return
			case <-ticker.C:
				if _, err := cs.RunOnce(ctx); err != nil {
					cs.logger.Error().Err(err).Msg("cleanup failed")
				}
			}
		}
	}()

	cs.logger.Info().Dur("retention", cs.retention).Dur("interval", cs.interval).Msg("cleanup service started")
}

// Stop stops the cleanup loop
func (cs *CleanupService) Stop() {
	cs.stopOnce.Do(func() { close(cs.done) })
}

// RunOnce deletes minutes older than the retention window
func (cs *CleanupService) RunOnce(ctx context.Context) (int64, error) {
	cutoff := cs.now().Add(-cs.retention)
	deleted, err := cs.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		cs.logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("cleanup completed")
	}
	return deleted, nil
}
