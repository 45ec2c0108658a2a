package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all daemon configuration
type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Scheduler
	TickInterval     time.Duration
	AnalysisInterval time.Duration
	RateLimitGCEvery int

	// Cache TTLs per series class
	QuotesTTL    time.Duration
	FastTTL      time.Duration
	SentimentTTL time.Duration
	HeavyTTL     time.Duration

	// Outbound HTTP
	RequestTimeout time.Duration
	RequestsPerSec int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	BanCooldown    time.Duration

	// Evaluation
	EvalHorizonsMin []int
	EvalWindow      time.Duration
	EvalBatchSize   int
	SnapshotSymbol  string
	SnapshotSource  string

	// Inbound rate-limit bookkeeping
	RateLimitIdleTTL time.Duration

	// Alerts
	TelegramBotToken string
	TelegramChatID   int64

	LogLevel string
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		DBHost:     getEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     getEnvWithDefault("DB_PORT", "5432"),
		DBUser:     getEnvWithDefault("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnvWithDefault("DB_NAME", "ryzm"),
		DBSSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),

		TickInterval:     getEnvSecondsWithDefault("TICK_INTERVAL", 60),
		AnalysisInterval: getEnvSecondsWithDefault("ANALYSIS_INTERVAL", 3600),
		RateLimitGCEvery: getEnvIntWithDefault("RATE_LIMIT_GC_EVERY", 10),

		QuotesTTL:    getEnvSecondsWithDefault("QUOTES_TTL", 60),
		FastTTL:      getEnvSecondsWithDefault("FAST_TTL", 120),
		SentimentTTL: getEnvSecondsWithDefault("SENTIMENT_TTL", 300),
		HeavyTTL:     getEnvSecondsWithDefault("HEAVY_TTL", 600),

		RequestTimeout: getEnvSecondsWithDefault("REQUEST_TIMEOUT", 10),
		RequestsPerSec: getEnvIntWithDefault("REQUESTS_PER_SEC", 5),
		BackoffBase:    getEnvSecondsWithDefault("BACKOFF_BASE", 10),
		BackoffCap:     getEnvSecondsWithDefault("BACKOFF_CAP", 45),
		BanCooldown:    getEnvSecondsWithDefault("BAN_COOLDOWN", 90),

		EvalHorizonsMin: getEnvIntListWithDefault("EVAL_HORIZONS_MIN", []int{15, 60, 240, 1440}),
		EvalWindow:      getEnvMinutesWithDefault("EVAL_WINDOW_MIN", 10),
		EvalBatchSize:   getEnvIntWithDefault("EVAL_BATCH_SIZE", 50),
		SnapshotSymbol:  getEnvWithDefault("SNAPSHOT_SYMBOL", "BTC"),
		SnapshotSource:  getEnvWithDefault("SNAPSHOT_SOURCE", "binance"),

		RateLimitIdleTTL: getEnvSecondsWithDefault("RATE_LIMIT_IDLE_TTL", 600),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSecondsWithDefault(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvIntWithDefault(key, defaultSeconds)) * time.Second
}

func getEnvMinutesWithDefault(key string, defaultMinutes int) time.Duration {
	return time.Duration(getEnvIntWithDefault(key, defaultMinutes)) * time.Minute
}

func getEnvIntListWithDefault(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
