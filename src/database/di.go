package database

import (
	"context"
	"errors"
	"time"

	"github.com/samber/do/v2"

	"github.com/khabaroff/meeting-minutes-webhooks/src/config"
)

const databaseInitTimeout = 15 * time.Second

// RegisterDI provides *Database when DATABASE_URL is configured
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Database, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is not set")
		}

		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		return New(ctx, cfg.DatabaseURL)
	})
}
