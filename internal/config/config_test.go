package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libraria.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, time.Hour, cfg.JobTTL)
	assert.Equal(t, int64(52428800), cfg.MaxUploadBytes)
	assert.Equal(t, 50, cfg.Segment.MaxChapters)
	assert.Equal(t, 500, cfg.Segment.FallbackWords)
	assert.Equal(t, 5000, cfg.Segment.MaxContentChars)
	assert.Equal(t, "Chapter %d", cfg.Segment.TitleFormat)
	assert.Contains(t, cfg.Segment.ChapterWords, "Bölüm")
	assert.Equal(t, "none", cfg.Summary.Provider)
	assert.Equal(t, 30*time.Second, cfg.Summary.Timeout)
	assert.Equal(t, 2.0, cfg.Summary.RateLimit)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.NoError(t, cfg.Validate())
}

func TestNewManager_File(t *testing.T) {
	path := writeConfig(t, `
port: "9000"
job_ttl: 10m
segment:
  fallback_words: 200
summary:
  provider: ollama
  model: llama3
  timeout: 5s
`)
	mgr, err := NewManager(path, nil)
	require.NoError(t, err)

	cfg := mgr.Get()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.JobTTL)
	assert.Equal(t, 200, cfg.Segment.FallbackWords)
	assert.Equal(t, 50, cfg.Segment.MaxChapters, "unset keys keep defaults")
	assert.Equal(t, "ollama", cfg.Summary.Provider)
	assert.Equal(t, 5*time.Second, cfg.Summary.Timeout)
	assert.Equal(t, path, mgr.ConfigFile())
}

func TestNewManager_EnvOverrides(t *testing.T) {
	t.Setenv("LIBRARIA_PORT", "7000")
	t.Setenv("LIBRARIA_SUMMARY_MAX_RETRIES", "7")
	t.Setenv("LIBRARIA_STORE_DRIVER", "postgres")
	t.Setenv("LIBRARIA_STORE_DSN", "postgres://localhost/books")

	cfg, err := Load(writeConfig(t, "port: \"9000\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 7, cfg.Summary.MaxRetries)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/books", cfg.Store.DSN)
}

func TestNewManager_MissingExplicitFile(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestNewManager_ProviderKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load(writeConfig(t, "summary:\n  provider: OpenAI\n"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Summary.Provider)
	assert.Equal(t, "sk-test", cfg.Summary.APIKey)
}

func TestNewManager_APIKeyReference(t *testing.T) {
	t.Setenv("MY_CLAUDE_KEY", "ak-123")
	cfg, err := Load(writeConfig(t, "summary:\n  provider: anthropic\n  api_key: ${MY_CLAUDE_KEY}\n"))
	require.NoError(t, err)
	assert.Equal(t, "ak-123", cfg.Summary.APIKey)
}

func TestNewManager_NormalizesNonPositive(t *testing.T) {
	cfg, err := Load(writeConfig(t, "worker_count: 0\nmax_queue_size: -1\nsummary:\n  max_concurrent: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 100, cfg.MaxQueueSize)
	assert.Equal(t, 4, cfg.Summary.MaxConcurrent)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"openai without key", func(c *Config) { c.Summary.Provider = "openai"; c.Summary.APIKey = "" }},
		{"unknown provider", func(c *Config) { c.Summary.Provider = "gpt-local" }},
		{"negative rate", func(c *Config) { c.Summary.RateLimit = -1 }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }},
		{"pathstore without url", func(c *Config) { c.Store.Driver = DriverPathstore; c.Store.PathstoreURL = "" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"title without number", func(c *Config) { c.Segment.TitleFormat = "Part" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewManager_InvalidFileRejected(t *testing.T) {
	_, err := NewManager(writeConfig(t, "store:\n  driver: sqlite\n"), nil)
	assert.ErrorContains(t, err, "store.driver")
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "debug"
	assert.Equal(t, "DEBUG", cfg.SlogLevel().String())
	cfg.LogLevel = "loud"
	assert.Equal(t, "INFO", cfg.SlogLevel().String())
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Summary.Provider = "anthropic"
	cfg.Summary.APIKey = "k"

	assert.Equal(t, 500, cfg.ChunkerConfig().FallbackWords)
	assert.Equal(t, "antiword", cfg.ParserOptions().AntiwordPath)
	assert.Equal(t, cfg.Segment.ChapterWords, cfg.TOCOptions().ChapterWords)
	assert.Equal(t, "anthropic", cfg.ServiceConfig().Provider)
	assert.Equal(t, 3, cfg.SummarizerConfig().MaxRetries)
	assert.False(t, cfg.SummarizerConfig().RejectSuspicious)

	cfg.Summary.RejectSuspicious = true
	assert.True(t, cfg.SummarizerConfig().RejectSuspicious)
}

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret123")
	assert.Equal(t, "secret123", ResolveEnvVars("${TEST_API_KEY}"))
	assert.Equal(t, "", ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"))
	assert.Equal(t, "literal-value", ResolveEnvVars("literal-value"))
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libraria.yaml")
	require.NoError(t, WriteDefault(path))
	assert.Error(t, WriteDefault(path), "existing file must not be overwritten")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestManager_Watch(t *testing.T) {
	path := writeConfig(t, "summary:\n  language: English\n")
	mgr, err := NewManager(path, nil)
	require.NoError(t, err)
	require.Equal(t, "English", mgr.Get().Summary.Language)

	var calls atomic.Int32
	var last atomic.Value
	mgr.OnChange(func(cfg Config) {
		calls.Add(1)
		last.Store(cfg.Summary.Language)
	})
	mgr.Watch()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("summary:\n  language: Turkish\n"), 0o644))

	assert.Eventually(t, func() bool {
		return calls.Load() > 0 && last.Load() == "Turkish"
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, "Turkish", mgr.Get().Summary.Language)
}
