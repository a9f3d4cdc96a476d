package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"CORPUS_PATH", "TEMPLATE_FILE", "REMOVE_PATTERN", "RESULT_FILE", "SUMMARY_FILE",
		"GRAPH_THRESHOLD", "NUM_PERM", "HASH_SEED", "WORKERS", "DOCUMENT_TIMEOUT_SECONDS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.CorpusPath)
	assert.Equal(t, DefaultRemovePattern, cfg.RemovePattern)
	assert.Equal(t, "result.csv", cfg.ResultFile)
	assert.Equal(t, "summary.csv", cfg.SummaryFile)
	assert.Nil(t, cfg.GraphThreshold)
	assert.Equal(t, 128, cfg.NumPerm)
	assert.Equal(t, int64(1), cfg.HashSeed)
	assert.Zero(t, cfg.Workers)
	assert.Zero(t, cfg.DocumentTimeout)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CORPUS_PATH", "/srv/submissions")
	t.Setenv("GRAPH_THRESHOLD", "0.75")
	t.Setenv("NUM_PERM", "64")
	t.Setenv("DOCUMENT_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/submissions", cfg.CorpusPath)
	require.NotNil(t, cfg.GraphThreshold)
	assert.Equal(t, 0.75, *cfg.GraphThreshold)
	assert.Equal(t, 64, cfg.NumPerm)
	assert.Equal(t, 5*time.Second, cfg.DocumentTimeout)
}

func TestValidate(t *testing.T) {
	outOfRange := 1.5

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty corpus", func(c *Config) { c.CorpusPath = "" }},
		{"zero permutations", func(c *Config) { c.NumPerm = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"threshold above one", func(c *Config) { c.GraphThreshold = &outOfRange }},
		{"empty pattern", func(c *Config) { c.RemovePattern = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateServerRequiresBackends(t *testing.T) {
	cfg := validConfig()
	assert.Error(t, cfg.ValidateServer())

	cfg.MongoURI = "mongodb://localhost:27017"
	cfg.MongoDBName = "plagscan"
	cfg.JWTSecret = "secret"
	assert.NoError(t, cfg.ValidateServer())
}

func validConfig() *Config {
	return &Config{
		CorpusPath:              ".",
		RemovePattern:           DefaultRemovePattern,
		ResultFile:              "result.csv",
		SummaryFile:             "summary.csv",
		NumPerm:                 128,
		RedisHost:               "localhost:6379",
		MaxConcurrentRuns:       1,
		RunTimeout:              time.Minute,
		StreamRetentionDuration: time.Hour,
	}
}
