package repositories

import (
	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/khabaroff/meeting-minutes-webhooks/src/config"
	"github.com/khabaroff/meeting-minutes-webhooks/src/database"
)

// RegisterDI provides the MinutesRepository: PostgreSQL when DATABASE_URL is set, memory otherwise
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (MinutesRepository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.DatabaseURL == "" {
			log.Warn().Msg("DATABASE_URL is not set, minutes are kept in memory only")
			return NewMemoryMinutesRepository(), nil
		}

		db, err := do.Invoke[*database.Database](i)
		if err != nil {
			return nil, err
		}
		return NewPostgresMinutesRepository(db.GetPool()), nil
	})
}
