package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "https://fc-data.ssi.com.vn/api/v2", cfg.SSI.BaseURL)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.ShortTTL)
	assert.Equal(t, 30*time.Minute, cfg.Cache.LongTTL)
	assert.Equal(t, time.Second, cfg.Batch.Delay)
	assert.Equal(t, 300*time.Millisecond, cfg.Batch.DebounceWindow)
	assert.Equal(t, "HOSE", cfg.Ranking.Market)
	assert.Equal(t, 20, cfg.Ranking.TopN)
	assert.Equal(t, 30, cfg.Ranking.LookbackDays)
	assert.False(t, cfg.HasSSICredentials())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_BACKEND", "SQLite")
	t.Setenv("CACHE_SHORT_TTL", "2m")
	t.Setenv("BATCH_DELAY", "250")
	t.Setenv("RANKING_MARKET", "hnx")
	t.Setenv("SSI_CONSUMER_ID", "id")
	t.Setenv("SSI_CONSUMER_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, CacheBackendSQLite, cfg.Cache.Backend)
	assert.Equal(t, 2*time.Minute, cfg.Cache.ShortTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.Delay)
	assert.Equal(t, "HNX", cfg.Ranking.Market)
	assert.True(t, cfg.HasSSICredentials())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("PORT", "not-a-number")
	t.Setenv("DEV_MODE", "maybe")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RequestTimeout: 15 * time.Second,
			Cache:          CacheConfig{Backend: CacheBackendMemory, MaxEntries: 10, ShortTTL: time.Minute, LongTTL: time.Hour},
			Batch:          BatchConfig{Delay: time.Second},
			Ranking:        RankingConfig{TopN: 20, LookbackDays: 30},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"zero ttl", func(c *Config) { c.Cache.ShortTTL = 0 }, true},
		{"zero max entries", func(c *Config) { c.Cache.MaxEntries = 0 }, true},
		{"negative delay", func(c *Config) { c.Batch.Delay = -time.Second }, true},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, true},
		{"zero top n", func(c *Config) { c.Ranking.TopN = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
