package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dgallion1/libraria/internal/chunker"
	"github.com/dgallion1/libraria/internal/parser"
	"github.com/dgallion1/libraria/internal/summarize"
	"github.com/dgallion1/libraria/internal/toc"
)

// EnvPrefix is prepended to every environment override, with dots in
// keys replaced by underscores: LIBRARIA_SUMMARY_PROVIDER.
const EnvPrefix = "LIBRARIA"

type Config struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// Upload limits
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	// Worker pool
	WorkerCount  int           `mapstructure:"worker_count"`
	MaxQueueSize int           `mapstructure:"max_queue_size"`
	JobTTL       time.Duration `mapstructure:"job_ttl"`

	// External extractors
	PDFFallbackPdftotext bool   `mapstructure:"pdf_fallback_pdftotext"`
	AntiwordPath         string `mapstructure:"antiword_path"`

	Segment SegmentConfig `mapstructure:"segment"`
	Summary SummaryConfig `mapstructure:"summary"`
	Store   StoreConfig   `mapstructure:"store"`
}

type SegmentConfig struct {
	MaxChapters     int      `mapstructure:"max_chapters"`
	FallbackWords   int      `mapstructure:"fallback_words"`
	MaxContentChars int      `mapstructure:"max_content_chars"`
	TitleFormat     string   `mapstructure:"title_format"`
	ChapterWords    []string `mapstructure:"chapter_words"`
}

type SummaryConfig struct {
	Provider      string        `mapstructure:"provider"`
	Model         string        `mapstructure:"model"`
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	MaxRetries    int           `mapstructure:"max_retries"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	Language      string        `mapstructure:"language"`

	RejectSuspicious bool `mapstructure:"reject_suspicious"`
}

type StoreConfig struct {
	Driver          string `mapstructure:"driver"`
	DSN             string `mapstructure:"dsn"`
	PathstoreURL    string `mapstructure:"pathstore_url"`
	PathstoreAPIKey string `mapstructure:"pathstore_api_key"`
}

// Store drivers.
const (
	DriverMemory    = "memory"
	DriverPostgres  = "postgres"
	DriverPathstore = "pathstore"
)

// defaults maps every key to its default. Keys not listed here cannot be
// set from the environment.
func defaults() map[string]any {
	return map[string]any{
		"port":                   "8090",
		"log_level":              "info",
		"max_upload_bytes":       52428800, // 50MB
		"worker_count":           2,
		"max_queue_size":         100,
		"job_ttl":                "1h",
		"pdf_fallback_pdftotext": true,
		"antiword_path":          "antiword",

		"segment.max_chapters":      50,
		"segment.fallback_words":    500,
		"segment.max_content_chars": 5000,
		"segment.title_format":      "Chapter %d",
		"segment.chapter_words":     toc.DefaultChapterWords,

		"summary.provider":          "none",
		"summary.model":             "",
		"summary.api_key":           "",
		"summary.base_url":          "",
		"summary.timeout":           "30s",
		"summary.rate_limit":        2.0,
		"summary.max_retries":       3,
		"summary.max_concurrent":    4,
		"summary.language":          "",
		"summary.reject_suspicious": false,

		"store.driver":            DriverMemory,
		"store.dsn":               "",
		"store.pathstore_url":     "http://localhost:8080",
		"store.pathstore_api_key": "",
	}
}

// Default returns the configuration with no file or environment applied.
func Default() Config {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v   *viper.Viper
	log *slog.Logger

	mu        sync.RWMutex
	config    Config
	callbacks []func(Config)
}

// NewManager loads .env, then cfgFile (or libraria.yaml from the working
// directory or ~/.libraria when cfgFile is empty), then LIBRARIA_*
// environment variables.
func NewManager(cfgFile string, log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	// A missing .env is normal.
	_ = godotenv.Load()

	m := &Manager{v: viper.New(), log: log}
	for k, val := range defaults() {
		m.v.SetDefault(k, val)
	}
	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	if cfgFile != "" {
		m.v.SetConfigFile(cfgFile)
	} else {
		m.v.SetConfigName("libraria")
		m.v.SetConfigType("yaml")
		m.v.AddConfigPath(".")
		m.v.AddConfigPath("$HOME/.libraria")
	}
	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg, err := m.load()
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return m, nil
}

// Load is a one-shot NewManager(cfgFile).Get().
func Load(cfgFile string) (Config, error) {
	m, err := NewManager(cfgFile, nil)
	if err != nil {
		return Config{}, err
	}
	return m.Get(), nil
}

func (m *Manager) load() (Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Get returns the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// ConfigFile is the file the configuration was read from, if any.
func (m *Manager) ConfigFile() string {
	return m.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (m *Manager) OnChange(fn func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Watch reloads the configuration when its file changes. An invalid edit
// is logged and the previous configuration stays in effect.
func (m *Manager) Watch() {
	if m.v.ConfigFileUsed() == "" {
		return
	}
	m.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := m.load()
		if err != nil {
			m.log.Warn("config reload rejected", "file", e.Name, "error", err)
			return
		}

		m.mu.Lock()
		m.config = cfg
		callbacks := slices.Clone(m.callbacks)
		m.mu.Unlock()

		m.log.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	m.v.WatchConfig()
}

func (c *Config) normalize() {
	d := Default()
	if c.WorkerCount <= 0 {
		c.WorkerCount = d.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = d.MaxQueueSize
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.JobTTL <= 0 {
		c.JobTTL = d.JobTTL
	}
	if c.Summary.MaxConcurrent <= 0 {
		c.Summary.MaxConcurrent = d.Summary.MaxConcurrent
	}
	if c.Summary.Timeout <= 0 {
		c.Summary.Timeout = d.Summary.Timeout
	}
	c.Summary.Provider = strings.ToLower(strings.TrimSpace(c.Summary.Provider))
	c.Summary.APIKey = ResolveEnvVars(c.Summary.APIKey)
	if c.Summary.APIKey == "" {
		c.Summary.APIKey = providerKeyFromEnv(c.Summary.Provider)
	}
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Store.DSN = ResolveEnvVars(c.Store.DSN)
	c.Store.PathstoreAPIKey = ResolveEnvVars(c.Store.PathstoreAPIKey)
}

// providerKeyFromEnv reads the provider's conventional key variable.
func providerKeyFromEnv(provider string) string {
	switch provider {
	case summarize.OpenAIName:
		return os.Getenv("OPENAI_API_KEY")
	case summarize.AnthropicName:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	switch c.Summary.Provider {
	case "", summarize.NoopName, summarize.LocalName, summarize.OllamaName:
	case summarize.OpenAIName, summarize.AnthropicName:
		if c.Summary.APIKey == "" {
			return fmt.Errorf("summary.api_key is required for provider %q", c.Summary.Provider)
		}
	default:
		return fmt.Errorf("unknown summary.provider %q", c.Summary.Provider)
	}
	if c.Summary.RateLimit < 0 {
		return fmt.Errorf("summary.rate_limit must not be negative")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", DriverPostgres)
		}
	case DriverPathstore:
		if c.Store.PathstoreURL == "" {
			return fmt.Errorf("store.pathstore_url is required for driver %q", DriverPathstore)
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if !strings.Contains(c.Segment.TitleFormat, "%d") {
		return fmt.Errorf("segment.title_format must contain %%d")
	}
	return nil
}

// SlogLevel parses LogLevel, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParserOptions converts the extractor settings.
func (c Config) ParserOptions() parser.Options {
	return parser.Options{
		FallbackPdftotext: c.PDFFallbackPdftotext,
		AntiwordPath:      c.AntiwordPath,
	}
}

// ChunkerConfig converts the segmentation settings.
func (c Config) ChunkerConfig() chunker.Config {
	return chunker.Config{
		MaxChapters:     c.Segment.MaxChapters,
		FallbackWords:   c.Segment.FallbackWords,
		MaxContentChars: c.Segment.MaxContentChars,
		TitleFormat:     c.Segment.TitleFormat,
	}
}

// TOCOptions converts the heading detection settings.
func (c Config) TOCOptions() toc.Options {
	return toc.Options{ChapterWords: c.Segment.ChapterWords}
}

// ServiceConfig converts the summary backend settings.
func (c Config) ServiceConfig() summarize.ServiceConfig {
	return summarize.ServiceConfig{
		Provider: c.Summary.Provider,
		Model:    c.Summary.Model,
		APIKey:   c.Summary.APIKey,
		BaseURL:  c.Summary.BaseURL,
		Timeout:  c.Summary.Timeout,
	}
}

// SummarizerConfig converts the remote call policy.
func (c Config) SummarizerConfig() summarize.Config {
	return summarize.Config{
		Timeout:    c.Summary.Timeout,
		RateLimit:  c.Summary.RateLimit,
		MaxRetries: c.Summary.MaxRetries,
		Language:   c.Summary.Language,

		RejectSuspicious: c.Summary.RejectSuspicious,
	}
}

var envRefRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRefRe.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
