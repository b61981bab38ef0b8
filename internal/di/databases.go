package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/cache"
	"github.com/aristath/vnmarket/internal/config"
	"github.com/aristath/vnmarket/internal/database"
)

// InitializeCache opens the configured second tier and builds the response
// cache in front of it.
func InitializeCache(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{Config: cfg}

	var store cache.Store
	switch cfg.Cache.Backend {
	case config.CacheBackendSQLite:
		cacheDB, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, "cache.db"),
			Profile: database.ProfileCache,
			Name:    "cache",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache database: %w", err)
		}
		if err := cacheDB.Migrate(cache.SQLiteSchema); err != nil {
			cacheDB.Close()
			return nil, fmt.Errorf("failed to apply cache schema: %w", err)
		}
		container.CacheDB = cacheDB
		store = cache.NewSQLiteStore(cacheDB.Conn())
		log.Info().Str("path", cacheDB.Path()).Msg("Persistent cache tier: sqlite")

	case config.CacheBackendRedis:
		client, err := cache.OpenRedis(cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis cache tier: %w", err)
		}
		container.Redis = client
		store = cache.NewRedisStore(client, "")
		log.Info().Msg("Persistent cache tier: redis")
	}

	c, err := cache.New(cache.Config{
		MaxEntries: cfg.Cache.MaxEntries,
		DefaultTTL: cfg.Cache.ShortTTL,
		Store:      store,
	}, log)
	if err != nil {
		closeCacheTier(container)
		return nil, err
	}
	container.Cache = c
	container.Classifier = cache.NewClassifier(cfg.Cache.ShortTTL, cfg.Cache.LongTTL)

	return container, nil
}

func closeCacheTier(container *Container) {
	if container.CacheDB != nil {
		container.CacheDB.Close()
	}
	if container.Redis != nil {
		container.Redis.Close()
	}
}
