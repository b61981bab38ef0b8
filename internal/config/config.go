// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendSQLite = "sqlite"
	CacheBackendRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for the cache database and exports (always absolute)
	LogLevel       string
	LogPretty      bool
	Port           int
	DevMode        bool
	RequestTimeout time.Duration

	SSI       SSIConfig
	Analytics AnalyticsConfig
	Cache     CacheConfig
	Batch     BatchConfig
	Ranking   RankingConfig
	Export    ExportConfig
}

// SSIConfig holds SSI FastConnect credentials
type SSIConfig struct {
	BaseURL        string
	ConsumerID     string
	ConsumerSecret string
}

// AnalyticsConfig points at the factor-model and prediction services
type AnalyticsConfig struct {
	FactorURL     string
	PredictionURL string
}

// CacheConfig controls the response cache tiers
type CacheConfig struct {
	Backend    string
	MaxEntries int
	ShortTTL   time.Duration
	LongTTL    time.Duration
	RedisURL   string
}

// BatchConfig controls sequential fetch pacing
type BatchConfig struct {
	Delay          time.Duration
	DebounceWindow time.Duration
}

// RankingConfig controls the periodic top-symbol ranking
type RankingConfig struct {
	Market       string
	TopN         int
	LookbackDays int
	Schedule     string
	SeedFile     string // Optional pre-ranked CSV loaded at startup
}

// ExportConfig controls where ranking CSVs are written.
// S3 is used when Bucket is set, otherwise files land in DataDir/exports.
type ExportConfig struct {
	Bucket          string
	Prefix          string
	Endpoint        string // S3-compatible endpoint (R2, MinIO); empty for AWS
	Region          string
	AccessKeyID     string // Static credentials; the default AWS chain is used when empty
	SecretAccessKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getEnvAsBool("LOG_PRETTY", true),
		Port:           getEnvAsInt("PORT", 8001),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		SSI: SSIConfig{
			BaseURL:        getEnv("SSI_BASE_URL", "https://fc-data.ssi.com.vn/api/v2"),
			ConsumerID:     getEnv("SSI_CONSUMER_ID", ""),
			ConsumerSecret: getEnv("SSI_CONSUMER_SECRET", ""),
		},
		Analytics: AnalyticsConfig{
			FactorURL:     getEnv("FACTOR_API_URL", "http://127.0.0.1:8000"),
			PredictionURL: getEnv("PREDICTION_API_URL", "http://127.0.0.1:8080"),
		},
		Cache: CacheConfig{
			Backend:    strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 1024),
			ShortTTL:   getEnvAsDuration("CACHE_SHORT_TTL", 5*time.Minute),
			LongTTL:    getEnvAsDuration("CACHE_LONG_TTL", 30*time.Minute),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Batch: BatchConfig{
			Delay:          getEnvAsDuration("BATCH_DELAY", time.Second),
			DebounceWindow: getEnvAsDuration("DEBOUNCE_WINDOW", 300*time.Millisecond),
		},
		Ranking: RankingConfig{
			Market:       strings.ToUpper(getEnv("RANKING_MARKET", "HOSE")),
			TopN:         getEnvAsInt("RANKING_TOP_N", 20),
			LookbackDays: getEnvAsInt("RANKING_LOOKBACK_DAYS", 30),
			Schedule:     getEnv("RANKING_SCHEDULE", "@every 2h"),
			SeedFile:     getEnv("RANKING_SEED_FILE", ""),
		},
		Export: ExportConfig{
			Bucket:          getEnv("EXPORT_S3_BUCKET", ""),
			Prefix:          getEnv("EXPORT_S3_PREFIX", "rankings"),
			Endpoint:        getEnv("EXPORT_S3_ENDPOINT", ""),
			Region:          getEnv("EXPORT_S3_REGION", "auto"),
			AccessKeyID:     getEnv("EXPORT_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("EXPORT_S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendSQLite, CacheBackendRedis:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q: must be memory, sqlite or redis", c.Cache.Backend)
	}
	if c.Cache.ShortTTL <= 0 || c.Cache.LongTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Batch.Delay < 0 {
		return fmt.Errorf("BATCH_DELAY must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.Ranking.TopN <= 0 || c.Ranking.LookbackDays <= 0 {
		return fmt.Errorf("ranking top N and lookback days must be positive")
	}

	// Note: SSI credentials are optional; market endpoints answer 401 until they are set

	return nil
}

// HasSSICredentials reports whether a login can be attempted
func (c *Config) HasSSICredentials() bool {
	return c.SSI.ConsumerID != "" && c.SSI.ConsumerSecret != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers are milliseconds
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
