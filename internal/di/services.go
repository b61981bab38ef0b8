package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/vnmarket/internal/batch"
	"github.com/aristath/vnmarket/internal/clients/cachedhttp"
	"github.com/aristath/vnmarket/internal/clients/prediction"
	"github.com/aristath/vnmarket/internal/clients/ssi"
	"github.com/aristath/vnmarket/internal/config"
	"github.com/aristath/vnmarket/internal/export"
	"github.com/aristath/vnmarket/internal/scheduler"
	"github.com/aristath/vnmarket/internal/scoring"
)

// InitializeServices builds clients, batch machinery, the ranker and the exporter.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.Cache == nil {
		return fmt.Errorf("container cache must be initialized first")
	}

	// The session is set once after login and shared by every SSI call
	container.Session = cachedhttp.NewSession()

	container.SSI = ssi.NewClient(ssi.Config{
		BaseURL:        cfg.SSI.BaseURL,
		ConsumerID:     cfg.SSI.ConsumerID,
		ConsumerSecret: cfg.SSI.ConsumerSecret,
		Timeout:        cfg.RequestTimeout,
		Classifier:     container.Classifier,
	}, container.Cache, container.Session, log)

	container.Prediction = prediction.NewClient(prediction.Config{
		FactorURL:     cfg.Analytics.FactorURL,
		PredictionURL: cfg.Analytics.PredictionURL,
		Timeout:       cfg.RequestTimeout,
		Classifier:    container.Classifier,
	}, container.Cache, log)

	container.Orchestrator = batch.New(batch.Config{Delay: cfg.Batch.Delay}, log)
	container.BatchController = batch.NewController("batch", cfg.Batch.DebounceWindow, log)
	container.Jobs = batch.NewJobs(batch.DefaultMaxJobs)

	container.Ranker = scoring.NewRanker(scoring.RankerConfig{
		Market:       cfg.Ranking.Market,
		TopN:         cfg.Ranking.TopN,
		LookbackDays: cfg.Ranking.LookbackDays,
	}, container.SSI, container.Orchestrator, log)

	if cfg.Ranking.SeedFile != "" {
		if err := seedRanking(container.Ranker, cfg.Ranking.SeedFile); err != nil {
			log.Warn().Err(err).Str("file", cfg.Ranking.SeedFile).Msg("Failed to load ranking seed")
		} else {
			log.Info().Str("file", cfg.Ranking.SeedFile).Msg("Ranking seeded from file")
		}
	}

	sink, err := newExportSink(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize export sink: %w", err)
	}
	container.Exporter = export.NewExporter(sink, cfg.Ranking.TopN, log)
	log.Info().Str("sink", sink.Kind()).Msg("Ranking exporter ready")

	container.RankingJob = scheduler.NewRankingRefreshJob(
		container.SSI,
		container.Ranker,
		container.Exporter,
		batch.NewController("ranking", cfg.Batch.DebounceWindow, log),
		log,
	)

	return nil
}

func seedRanking(ranker *scoring.Ranker, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rankings, err := scoring.LoadRanking(f)
	if err != nil {
		return err
	}
	ranker.Seed(rankings)
	return nil
}

func newExportSink(cfg *config.Config) (export.Sink, error) {
	if cfg.Export.Bucket == "" {
		return export.NewFileSink(filepath.Join(cfg.DataDir, "exports"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return export.NewS3Sink(ctx, export.S3Config{
		Bucket:          cfg.Export.Bucket,
		Prefix:          cfg.Export.Prefix,
		Endpoint:        cfg.Export.Endpoint,
		Region:          cfg.Export.Region,
		AccessKeyID:     cfg.Export.AccessKeyID,
		SecretAccessKey: cfg.Export.SecretAccessKey,
	})
}
