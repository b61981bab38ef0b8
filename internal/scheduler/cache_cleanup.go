package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/cache"
)

// CacheCleanupJob purges expired rows from the persistent cache tier. Lookups
// already expire entries lazily; this bounds rows nobody asks for again.
type CacheCleanupJob struct {
	store cache.Store
	now   func() time.Time
	log   zerolog.Logger
}

// NewCacheCleanupJob creates the job. A nil store makes Run a no-op.
func NewCacheCleanupJob(store cache.Store, log zerolog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		store: store,
		now:   time.Now,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run deletes expired entries.
func (j *CacheCleanupJob) Run() error {
	if j.store == nil {
		return nil
	}

	deleted, err := j.store.DeleteExpired(j.now())
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired cache entries")
		return err
	}
	if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Cleaned up expired cache entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}
