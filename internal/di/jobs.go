package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/config"
	"github.com/aristath/vnmarket/internal/scheduler"
)

// CacheCleanupSchedule sweeps expired rows out of the persistent cache tier.
const CacheCleanupSchedule = "@hourly"

// RegisterJobs creates the scheduler and registers background jobs.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)

	if store := container.Cache.Store(); store != nil {
		if err := sched.AddJob(CacheCleanupSchedule, scheduler.NewCacheCleanupJob(store, log)); err != nil {
			return fmt.Errorf("failed to register cache cleanup job: %w", err)
		}
	}

	if cfg.Ranking.Schedule != "" {
		if err := sched.AddJob(cfg.Ranking.Schedule, container.RankingJob); err != nil {
			return fmt.Errorf("failed to register ranking refresh job: %w", err)
		}
	}

	container.Scheduler = sched
	return nil
}
