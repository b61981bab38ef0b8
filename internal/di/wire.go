package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize the response cache and its persistent tier
// 2. Initialize clients and services
// 3. Register jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	// Step 1: Initialize cache
	container, err := InitializeCache(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	container.StartedAt = time.Now()

	// Step 2: Initialize services
	if err := InitializeServices(container, cfg, log); err != nil {
		closeCacheTier(container)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Step 3: Register jobs
	if err := RegisterJobs(container, cfg, log); err != nil {
		closeCacheTier(container)
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}

// Close stops background work and releases the cache tier.
func (c *Container) Close() {
	for _, ctrl := range c.Controllers() {
		ctrl.Stop()
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	closeCacheTier(c)
}
