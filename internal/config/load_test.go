package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, LogLevel: "info"},
		Database: DatabaseConfig{URL: "postgres://localhost:5432/slides"},
		Storage:  StorageConfig{DataRoot: "data", FileBaseURL: "/files"},
		LLM: LLMConfig{
			GeminiAPIKey:      "test-key",
			TextModel:         "gemini-2.5-flash",
			ImageModel:        "gemini-2.5-flash-image",
			MaxRetries:        3,
			RetryDelaySeconds: 2,
		},
		Tasks: TasksConfig{QueueSize: 100, WorkerCount: 4, MaxPageWorkers: 5},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("valid config passes", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, Validate(validConfig()))
	})

	t.Run("missing api key fails", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.LLM.GeminiAPIKey = ""
		err := Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GeminiAPIKey")
	})

	t.Run("invalid port fails", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Server.Port = 0
		assert.Error(t, Validate(cfg))
	})

	t.Run("invalid log level fails", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Server.LogLevel = "trace"
		assert.Error(t, Validate(cfg))
	})

	t.Run("missing database url fails", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Database.URL = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("missing data root fails", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Storage.DataRoot = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("excessive retries fail", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.LLM.MaxRetries = 50
		assert.Error(t, Validate(cfg))
	})
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SLIDES_DATABASE_URL", "postgres://localhost:5432/slides_test")
	t.Setenv("SLIDES_LLM_GEMINI_API_KEY", "env-key")
	t.Setenv("SLIDES_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/slides_test", cfg.Database.URL)
	assert.Equal(t, "env-key", cfg.LLM.GeminiAPIKey)
	assert.Equal(t, 9090, cfg.Server.Port)

	// Defaults fill everything the environment left unset.
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.TextModel)
	assert.Equal(t, 100, cfg.Tasks.QueueSize)
}

func TestLoadMissingRequiredValues(t *testing.T) {
	// No environment and no config file: required values are absent.
	_, err := Load()
	assert.Error(t, err)
}
