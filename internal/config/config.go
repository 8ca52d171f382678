package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StorageStrategy selects the backing medium of the record store.
// It is resolved once in Load and never changes for the life of the process.
type StorageStrategy string

const (
	StorageRemote StorageStrategy = "remote"
	StorageLocal  StorageStrategy = "local"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	Storage    StorageStrategy
	DB         DatabaseConfig
	Redis      RedisConfig
	LocalCache LocalCacheConfig
	Gemini     GeminiConfig
	Finance    FinanceConfig
	Worker     WorkerConfig

	CORSAllowedOrigins []string
}

// DatabaseConfig contains PostgreSQL connection parameters for the remote store.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Configured reports whether enough credentials exist to reach the remote store.
func (c DatabaseConfig) Configured() bool {
	return c.Host != "" && c.User != "" && c.Name != ""
}

// RedisConfig contains Redis connection parameters. An empty Host disables Redis.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether Redis should be dialed.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// LocalCacheConfig selects the key-value backend of the local fallback cache.
type LocalCacheConfig struct {
	Backend string // file, sqlite or redis
	Path    string
}

// GeminiConfig configures the enrichment gateway. An empty APIKey disables it.
type GeminiConfig struct {
	APIKey   string
	Model    string
	Timeout  time.Duration
	CacheTTL time.Duration
	// SearchGrounding lets the model consult Google Search and report its sources.
	SearchGrounding bool
}

// FinanceConfig holds the viability thresholds and the assumed conversion rate.
type FinanceConfig struct {
	ProfitableROI        float64
	CautionROI           float64
	AssumedClicksPerSale float64
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	ResyncInterval time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "localhost:3000,127.0.0.1:3000"))

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", ""),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Local fallback cache
	cfg.LocalCache = LocalCacheConfig{
		Backend: strings.ToLower(getEnv("LOCAL_CACHE_BACKEND", "file")),
		Path:    getEnv("LOCAL_CACHE_PATH", "data"),
	}
	switch cfg.LocalCache.Backend {
	case "file", "sqlite":
	case "redis":
		if !cfg.Redis.Enabled() {
			return nil, errors.New("LOCAL_CACHE_BACKEND=redis requires REDIS_HOST")
		}
	default:
		return nil, fmt.Errorf("invalid LOCAL_CACHE_BACKEND %q: expected file, sqlite or redis", cfg.LocalCache.Backend)
	}

	cfg.Storage = resolveStorage(getEnv("STORAGE_STRATEGY", ""), cfg.DB)

	// Gemini
	cfg.Gemini = GeminiConfig{
		APIKey: getEnv("GEMINI_API_KEY", ""),
		Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		SearchGrounding: getEnvBool("ENRICHMENT_SEARCH_GROUNDING", true),
	}

	var err error
	if cfg.Gemini.Timeout, err = parseDurationEnv("ENRICHMENT_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid ENRICHMENT_TIMEOUT: %w", err)
	}
	if cfg.Gemini.CacheTTL, err = parseDurationEnv("ENRICHMENT_CACHE_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid ENRICHMENT_CACHE_TTL: %w", err)
	}
	if cfg.Worker.ResyncInterval, err = parseDurationEnv("RESYNC_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid RESYNC_INTERVAL: %w", err)
	}

	// Finance
	if cfg.Finance.ProfitableROI, err = getEnvFloat("VIABILITY_PROFITABLE_ROI", 50); err != nil {
		return nil, fmt.Errorf("invalid VIABILITY_PROFITABLE_ROI: %w", err)
	}
	if cfg.Finance.CautionROI, err = getEnvFloat("VIABILITY_CAUTION_ROI", 20); err != nil {
		return nil, fmt.Errorf("invalid VIABILITY_CAUTION_ROI: %w", err)
	}
	if cfg.Finance.AssumedClicksPerSale, err = getEnvFloat("ASSUMED_CLICKS_PER_SALE", 30); err != nil {
		return nil, fmt.Errorf("invalid ASSUMED_CLICKS_PER_SALE: %w", err)
	}
	if cfg.Finance.CautionROI > cfg.Finance.ProfitableROI {
		return nil, errors.New("VIABILITY_CAUTION_ROI must not exceed VIABILITY_PROFITABLE_ROI")
	}
	if cfg.Finance.AssumedClicksPerSale <= 0 {
		return nil, errors.New("ASSUMED_CLICKS_PER_SALE must be > 0")
	}

	return cfg, nil
}

// resolveStorage picks remote only when credentials are present and not explicitly overridden.
func resolveStorage(forced string, db DatabaseConfig) StorageStrategy {
	if strings.EqualFold(forced, string(StorageLocal)) {
		return StorageLocal
	}
	if db.Configured() {
		return StorageRemote
	}
	return StorageLocal
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvBool returns the value of an environment variable as a bool or a default if empty/invalid.
func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvFloat parses a float environment variable, returning def when unset.
func getEnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
