package config

import (
	"fmt"
	"os"
	"time"

	"github.com/RishiKendai/plagscan/internal/configs/env"
)

// DefaultRemovePattern strips C-style block and line comments.
const DefaultRemovePattern = `(/\*([^*]|[\r\n]|(\*+([^*/]|[\r\n])))*\*+/)|(//.*)`

// Config holds all configuration for the application
type Config struct {
	// Corpus
	CorpusPath    string
	TemplateFile  string
	RemovePattern string

	// Outputs
	ResultFile  string
	SummaryFile string
	FailedFile  string

	// Graph export, only when GraphThreshold is set
	GraphThreshold *float64
	GraphFile      string

	// Signature
	NumPerm  int
	HashSeed int64

	// Concurrency
	Workers         int
	DocumentTimeout time.Duration

	// Logging
	LogLevel string

	// Server mode
	Serve             bool
	ServerPort        string
	MetricsPort       string
	MaxConcurrentRuns int
	RunTimeout        time.Duration

	// MongoDB
	MongoURI    string
	MongoDBName string

	// Redis
	RedisHost               string
	RedisPassword           string
	RedisStreamKey          string
	RedisConsumerGroup      string
	RedisDeadLetterKey      string
	StreamRetentionDuration time.Duration

	// JWT
	JWTSecret string

	// Rate Limiting
	RateLimitRPS float64
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Corpus
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	cfg.CorpusPath = env.GetEnv("CORPUS_PATH", cwd)
	cfg.TemplateFile = env.GetEnv("TEMPLATE_FILE", "")
	cfg.RemovePattern = env.GetEnv("REMOVE_PATTERN", DefaultRemovePattern)

	// Outputs
	cfg.ResultFile = env.GetEnv("RESULT_FILE", "result.csv")
	cfg.SummaryFile = env.GetEnv("SUMMARY_FILE", "summary.csv")
	cfg.FailedFile = env.GetEnv("FAILED_FILE", "failed.csv")

	// Graph
	if threshold, ok := env.LookupEnvFloat("GRAPH_THRESHOLD"); ok {
		cfg.GraphThreshold = &threshold
	}
	cfg.GraphFile = env.GetEnv("GRAPH_FILE", "graph.dot")

	// Signature
	cfg.NumPerm = env.GetEnvInt("NUM_PERM", 128)
	cfg.HashSeed = env.GetEnvInt64("HASH_SEED", 1)

	// Concurrency
	cfg.Workers = env.GetEnvInt("WORKERS", 0)
	timeoutSeconds := env.GetEnvInt("DOCUMENT_TIMEOUT_SECONDS", 0)
	cfg.DocumentTimeout = time.Duration(timeoutSeconds) * time.Second

	// Logging
	cfg.LogLevel = env.GetEnv("LOG_LEVEL", "info")

	// Server
	cfg.Serve = env.GetEnvBool("SERVE", false)
	cfg.ServerPort = env.GetEnv("SERVER_PORT", "8080")
	cfg.MetricsPort = env.GetEnv("METRICS_PORT", "2112")
	cfg.MaxConcurrentRuns = env.GetEnvInt("MAX_CONCURRENT_RUNS", 2)
	runTimeoutMinutes := env.GetEnvInt("RUN_TIMEOUT_MINUTES", 30)
	cfg.RunTimeout = time.Duration(runTimeoutMinutes) * time.Minute

	// MongoDB
	cfg.MongoURI = env.GetEnv("MONGO_URI", "")
	cfg.MongoDBName = env.GetEnv("MONGO_DB_NAME", "")

	// Redis
	cfg.RedisHost = env.GetEnv("REDIS_HOST", "localhost:6379")
	cfg.RedisPassword = env.GetEnv("REDIS_PASSWORD", "")
	cfg.RedisStreamKey = env.GetEnv("REDIS_STREAM_KEY", "similarity:stream")
	cfg.RedisConsumerGroup = env.GetEnv("REDIS_CONSUMER_GROUP", "similarity:group")
	cfg.RedisDeadLetterKey = env.GetEnv("REDIS_DEAD_LETTER_KEY", "similarity:dlq")
	retentionHours := env.GetEnvInt("STREAM_RETENTION_HOURS", 24)
	cfg.StreamRetentionDuration = time.Duration(retentionHours) * time.Hour

	// JWT
	cfg.JWTSecret = env.GetEnv("JWT_SECRET", "")

	// Rate Limiting
	cfg.RateLimitRPS = env.GetEnvFloat("RATE_LIMIT_RPS", 10.0)

	return cfg, nil
}

// Validate checks the settings every run needs.
func (c *Config) Validate() error {
	if c.CorpusPath == "" {
		return fmt.Errorf("CORPUS_PATH is required")
	}
	if c.RemovePattern == "" {
		return fmt.Errorf("REMOVE_PATTERN must not be empty")
	}
	if c.ResultFile == "" || c.SummaryFile == "" {
		return fmt.Errorf("RESULT_FILE and SUMMARY_FILE are required")
	}
	if c.NumPerm <= 0 {
		return fmt.Errorf("NUM_PERM must be greater than 0")
	}
	if c.Workers < 0 {
		return fmt.Errorf("WORKERS must not be negative")
	}
	if c.DocumentTimeout < 0 {
		return fmt.Errorf("DOCUMENT_TIMEOUT_SECONDS must not be negative")
	}
	if c.GraphThreshold != nil && (*c.GraphThreshold < 0 || *c.GraphThreshold > 1) {
		return fmt.Errorf("GRAPH_THRESHOLD must be within [0, 1], got %v", *c.GraphThreshold)
	}
	return nil
}

// ValidateServer checks the additional settings of server mode.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.MongoDBName == "" {
		return fmt.Errorf("MONGO_DB_NAME is required")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_RUNS must be greater than 0")
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT_MINUTES must be greater than 0")
	}
	if c.StreamRetentionDuration <= 0 {
		return fmt.Errorf("STREAM_RETENTION_HOURS must be greater than 0")
	}
	return nil
}
