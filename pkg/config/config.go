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

// Config holds all configuration for the pipeline.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Source adapters
	Quotes QuoteFeedConfig
	Crypto CryptoFeedConfig
	News   NewsFeedConfig

	// Pipeline tuning
	Signal    SignalConfig
	TTL       TTLConfig
	Threshold ThresholdDefaults
	Crawl     CrawlConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// QuoteFeedConfig holds the stock quote feed adapter configuration.
type QuoteFeedConfig struct {
	BaseURL string
	APIKey  string
	Symbols []string
	Timeout time.Duration
}

// CryptoFeedConfig holds the crypto market data adapter configuration.
type CryptoFeedConfig struct {
	BaseURL string
	APIKey  string
	Symbols []string
	Timeout time.Duration
}

// NewsFeedConfig holds the news feed adapter configuration.
type NewsFeedConfig struct {
	BaseURL string
	Topics  []string
	Timeout time.Duration
}

// SignalConfig holds signal synthesis tuning.
// Reference defaults: urgent at |change| >= 5%, notable at >= 2%.
type SignalConfig struct {
	UrgentChangePct  float64
	NotableChangePct float64

	// Per-source-type confidence priors. Confidence reflects source
	// reliability, not signal strength.
	QuoteConfidence  float64
	CryptoConfidence float64
	NewsConfidence   float64
}

// TTLConfig holds per-asset-class lifetimes.
type TTLConfig struct {
	Stock      time.Duration
	Crypto     time.Duration
	Prediction time.Duration
	DedupCache time.Duration
}

// ThresholdDefaults holds the default threshold policy applied to targets
// without a per-target override.
type ThresholdDefaults struct {
	MinPredictors         int
	MinCombinedStrength   float64
	MinDirectionConsensus float64
}

// CrawlConfig holds crawl orchestration tuning.
type CrawlConfig struct {
	Workers        int
	RequestsPerSec float64
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Quotes: QuoteFeedConfig{
			BaseURL: getEnv("QUOTES_BASE_URL", "https://api.quotes.example.com"),
			APIKey:  getEnv("QUOTES_API_KEY", ""),
			Symbols: getEnvAsSlice("QUOTES_SYMBOLS", []string{"AAPL", "MSFT", "NVDA", "TSLA"}),
			Timeout: getEnvAsDuration("QUOTES_TIMEOUT", "15s"),
		},

		Crypto: CryptoFeedConfig{
			BaseURL: getEnv("CRYPTO_BASE_URL", "https://api.cryptodata.example.com"),
			APIKey:  getEnv("CRYPTO_API_KEY", ""),
			Symbols: getEnvAsSlice("CRYPTO_SYMBOLS", []string{"BTC", "ETH", "SOL"}),
			Timeout: getEnvAsDuration("CRYPTO_TIMEOUT", "15s"),
		},

		News: NewsFeedConfig{
			BaseURL: getEnv("NEWS_BASE_URL", "https://news.example.com/rss"),
			Topics:  getEnvAsSlice("NEWS_TOPICS", []string{"AAPL", "MSFT", "BTC"}),
			Timeout: getEnvAsDuration("NEWS_TIMEOUT", "20s"),
		},

		Signal: SignalConfig{
			UrgentChangePct:  getEnvAsFloat("SIGNAL_URGENT_CHANGE_PCT", 5.0),
			NotableChangePct: getEnvAsFloat("SIGNAL_NOTABLE_CHANGE_PCT", 2.0),
			QuoteConfidence:  getEnvAsFloat("SIGNAL_QUOTE_CONFIDENCE", 0.95),
			CryptoConfidence: getEnvAsFloat("SIGNAL_CRYPTO_CONFIDENCE", 0.9),
			NewsConfidence:   getEnvAsFloat("SIGNAL_NEWS_CONFIDENCE", 0.7),
		},

		TTL: TTLConfig{
			Stock:      getEnvAsDuration("TTL_STOCK", "24h"),
			Crypto:     getEnvAsDuration("TTL_CRYPTO", "12h"),
			Prediction: getEnvAsDuration("TTL_PREDICTION", "24h"),
			DedupCache: getEnvAsDuration("TTL_DEDUP_CACHE", "48h"),
		},

		Threshold: ThresholdDefaults{
			MinPredictors:         getEnvAsInt("THRESHOLD_MIN_PREDICTORS", 3),
			MinCombinedStrength:   getEnvAsFloat("THRESHOLD_MIN_COMBINED_STRENGTH", 15),
			MinDirectionConsensus: getEnvAsFloat("THRESHOLD_MIN_DIRECTION_CONSENSUS", 0.7),
		},

		Crawl: CrawlConfig{
			Workers:        getEnvAsInt("CRAWL_WORKERS", 8),
			RequestsPerSec: getEnvAsFloat("CRAWL_REQUESTS_PER_SEC", 10),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Threshold.MinDirectionConsensus <= 0 || c.Threshold.MinDirectionConsensus > 1 {
		return fmt.Errorf("THRESHOLD_MIN_DIRECTION_CONSENSUS must be in (0,1]")
	}

	if c.Signal.NotableChangePct > c.Signal.UrgentChangePct {
		return fmt.Errorf("SIGNAL_NOTABLE_CHANGE_PCT must not exceed SIGNAL_URGENT_CHANGE_PCT")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
