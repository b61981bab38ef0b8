package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/batch"
	"github.com/aristath/vnmarket/internal/scoring"
)

// DefaultRankingTimeout bounds one ranking run. A full HOSE pass is a few
// hundred symbols at one per second.
const DefaultRankingTimeout = 30 * time.Minute

// Authenticator logs in to the market data API once.
type Authenticator interface {
	EnsureLogin(ctx context.Context) error
}

// Ranker produces a ranking snapshot.
type Ranker interface {
	Run(ctx context.Context, opts ...batch.Option) (*scoring.Snapshot, error)
}

// Exporter publishes a ranking snapshot.
type Exporter interface {
	Export(ctx context.Context, snapshot *scoring.Snapshot) (map[string]string, error)
}

// RankingRefreshJob re-ranks the market and exports the tables. Runs are
// guarded by a controller so a scheduled run and a manual refresh never overlap.
type RankingRefreshJob struct {
	auth       Authenticator
	ranker     Ranker
	exporter   Exporter
	controller *batch.Controller
	timeout    time.Duration
	log        zerolog.Logger
}

// NewRankingRefreshJob creates the job. auth and exporter may be nil.
func NewRankingRefreshJob(auth Authenticator, ranker Ranker, exporter Exporter, controller *batch.Controller, log zerolog.Logger) *RankingRefreshJob {
	return &RankingRefreshJob{
		auth:       auth,
		ranker:     ranker,
		exporter:   exporter,
		controller: controller,
		timeout:    DefaultRankingTimeout,
		log:        log.With().Str("job", "ranking_refresh").Logger(),
	}
}

// Run refreshes synchronously. A run skipped because another is in progress is not an error.
func (j *RankingRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	err := j.controller.Run(ctx, j.refresh)
	if errors.Is(err, batch.ErrBusy) {
		j.log.Info().Msg("Ranking refresh already running, skipping")
		return nil
	}
	return err
}

// Start refreshes in the background. It returns batch.ErrBusy when a refresh
// is already running.
func (j *RankingRefreshJob) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	err := j.controller.Start(ctx, func(ctx context.Context) error {
		defer cancel()
		return j.refresh(ctx)
	})
	if err != nil {
		cancel()
	}
	return err
}

// Trigger schedules a refresh after the controller's debounce window.
// Triggers arriving within the window collapse into one run.
func (j *RankingRefreshJob) Trigger() {
	j.controller.Debounce(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, j.timeout)
		defer cancel()
		return j.refresh(ctx)
	})
}

// Controller exposes the guarding state machine.
func (j *RankingRefreshJob) Controller() *batch.Controller {
	return j.controller
}

// Name returns the job name for scheduling and logging.
func (j *RankingRefreshJob) Name() string {
	return "ranking_refresh"
}

func (j *RankingRefreshJob) refresh(ctx context.Context) error {
	if j.auth != nil {
		if err := j.auth.EnsureLogin(ctx); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}

	snapshot, err := j.ranker.Run(ctx, batch.WithProgress(func(p batch.Progress) {
		if p.Completed%25 == 0 || p.Completed == p.Total {
			j.log.Info().Int("completed", p.Completed).Int("total", p.Total).Msg("Ranking progress")
		}
	}))
	if err != nil {
		return err
	}

	if j.exporter != nil {
		if _, err := j.exporter.Export(ctx, snapshot); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	return nil
}
