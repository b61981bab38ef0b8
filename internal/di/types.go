// Package di provides dependency injection type definitions.
//
// Container holds every long-lived component. It is built once by Wire and
// passed to the HTTP server; nothing in the application is a global.
package di

import (
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aristath/vnmarket/internal/batch"
	"github.com/aristath/vnmarket/internal/cache"
	"github.com/aristath/vnmarket/internal/clients/cachedhttp"
	"github.com/aristath/vnmarket/internal/clients/prediction"
	"github.com/aristath/vnmarket/internal/clients/ssi"
	"github.com/aristath/vnmarket/internal/config"
	"github.com/aristath/vnmarket/internal/database"
	"github.com/aristath/vnmarket/internal/export"
	"github.com/aristath/vnmarket/internal/scheduler"
	"github.com/aristath/vnmarket/internal/scoring"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	StartedAt time.Time

	// Cache tiers. CacheDB and Redis are nil unless selected by CACHE_BACKEND.
	CacheDB    *database.DB
	Redis      *redis.Client
	Cache      *cache.Cache
	Classifier *cache.Classifier

	// Upstream clients
	Session    *cachedhttp.Session
	SSI        *ssi.Client
	Prediction *prediction.Client

	// Batch fetching
	Orchestrator    *batch.Orchestrator
	BatchController *batch.Controller
	Jobs            *batch.Jobs

	// Ranking
	Ranker     *scoring.Ranker
	Exporter   *export.Exporter
	RankingJob *scheduler.RankingRefreshJob

	Scheduler *scheduler.Scheduler
}

// Controllers returns the fetch controllers in a stable order.
func (c *Container) Controllers() []*batch.Controller {
	var out []*batch.Controller
	if c.BatchController != nil {
		out = append(out, c.BatchController)
	}
	if c.RankingJob != nil {
		out = append(out, c.RankingJob.Controller())
	}
	return out
}
