package di

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/vnmarket/internal/config"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		DataDir:        dir,
		RequestTimeout: 15 * time.Second,
		SSI: config.SSIConfig{
			BaseURL: "http://127.0.0.1:1",
		},
		Analytics: config.AnalyticsConfig{
			FactorURL:     "http://127.0.0.1:1",
			PredictionURL: "http://127.0.0.1:1",
		},
		Cache: config.CacheConfig{
			Backend:    config.CacheBackendMemory,
			MaxEntries: 64,
			ShortTTL:   5 * time.Minute,
			LongTTL:    30 * time.Minute,
		},
		Batch: config.BatchConfig{
			Delay:          time.Second,
			DebounceWindow: 300 * time.Millisecond,
		},
		Ranking: config.RankingConfig{
			Market:       "HOSE",
			TopN:         20,
			LookbackDays: 30,
			Schedule:     "@every 2h",
		},
	}
}

func TestWire_MemoryBackend(t *testing.T) {
	cfg := testConfig(t.TempDir())

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.NotNil(t, container.Cache)
	assert.Nil(t, container.CacheDB)
	assert.Nil(t, container.Cache.Store())
	assert.NotNil(t, container.SSI)
	assert.NotNil(t, container.Prediction)
	assert.Same(t, container.Session, container.SSI.Session())
	assert.Equal(t, time.Second, container.Orchestrator.Delay())
	assert.Len(t, container.Controllers(), 2)
	assert.Equal(t, "HOSE", container.Ranker.Market())

	// Only the ranking refresh is scheduled without a persistent tier
	jobs := container.Scheduler.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "ranking_refresh", jobs[0].Name)

	assert.DirExists(t, filepath.Join(cfg.DataDir, "exports"))
}

func TestWire_SQLiteBackend(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Cache.Backend = config.CacheBackendSQLite

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	require.NotNil(t, container.CacheDB)
	assert.NotNil(t, container.Cache.Store())
	assert.FileExists(t, filepath.Join(cfg.DataDir, "cache.db"))

	names := []string{}
	for _, j := range container.Scheduler.Jobs() {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{"cache_cleanup", "ranking_refresh"}, names)

	// Entries written through the cache land in the sqlite tier
	container.Cache.Set("GET:/Market/Securities?market=HOSE", []byte(`{"status":"Success"}`))
	entry, ok, err := container.Cache.Store().Load("GET:/Market/Securities?market=HOSE")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"status":"Success"}`, string(entry.Payload))
}

func TestWire_SeedFile(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "top.csv")
	require.NoError(t, os.WriteFile(seed, []byte("symbol,final_score\nFPT,0.9\nVNM,0.4\n"), 0644))

	cfg := testConfig(dir)
	cfg.Ranking.SeedFile = seed

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	snapshot, ok := container.Ranker.Latest()
	require.True(t, ok)
	assert.Equal(t, "seed", snapshot.Source)
	require.Len(t, snapshot.All, 2)
	assert.Equal(t, "FPT", snapshot.All[0].Symbol)
}

func TestWire_MissingSeedFileIsNotFatal(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Ranking.SeedFile = filepath.Join(cfg.DataDir, "missing.csv")

	container, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	_, ok := container.Ranker.Latest()
	assert.False(t, ok)
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Ranking.Schedule = "not a schedule"

	_, err := Wire(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ranking refresh")
}
