// Package config loads the oppradar configuration: a YAML file merged over
// built-in defaults, with environment overrides for credentials and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all oppradar configuration.
type Config struct {
	Scraper   ScraperConfig   `yaml:"scraper"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Match     MatchConfig     `yaml:"match"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ScraperConfig tunes the ingestion pipeline.
type ScraperConfig struct {
	// IntervalHours is the period for scheduled list-scrape jobs.
	IntervalHours int `yaml:"interval_hours"`

	// RequestDelaySeconds is the minimum delay between list-page fetches
	// within one source.
	RequestDelaySeconds float64 `yaml:"request_delay_seconds"`

	// MaxPages bounds one run's pagination per source.
	MaxPages int `yaml:"max_pages"`

	// TimeoutSeconds is the per-request timeout for adapter fetches.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// Sources maps source name to an enable flag. Sources absent from the
	// map are enabled; an explicit false disables them.
	Sources map[string]bool `yaml:"sources"`
}

// BreakerConfig tunes the per-source circuit breakers.
type BreakerConfig struct {
	FailureThreshold    int `yaml:"failure_threshold"`
	ResetTimeoutSeconds int `yaml:"reset_timeout_seconds"`
	HalfOpenMaxCalls    int `yaml:"half_open_max_calls"`
}

// StoreConfig locates the record store.
type StoreConfig struct {
	// Path is the sqlite database file. Dir + Database compose it when
	// Path is empty.
	Path     string `yaml:"path"`
	Dir      string `yaml:"dir"`
	Database string `yaml:"database"`
}

// DatabasePath resolves the sqlite file location.
func (s StoreConfig) DatabasePath() string {
	if s.Path != "" {
		return s.Path
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	name := s.Database
	if name == "" {
		name = "oppradar"
	}
	if !strings.HasSuffix(name, ".db") {
		name += ".db"
	}
	return filepath.Join(dir, name)
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider: "openai" or "genai".
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`

	// BatchSize is the default chunk for embed-missing sweeps.
	BatchSize int `yaml:"batch_size"`
}

// MatchConfig tunes the match service.
type MatchConfig struct {
	MinScore float64 `yaml:"min_score"`
	Limit    int     `yaml:"limit"`
}

// MetricsConfig controls the Prometheus endpoint. Collection is always on;
// serving happens only when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	File   string `yaml:"file"`   // empty logs to stderr
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Scraper: ScraperConfig{
			IntervalHours:       6,
			RequestDelaySeconds: 2,
			MaxPages:            10,
			TimeoutSeconds:      30,
			Sources:             map[string]bool{},
		},
		Breaker: BreakerConfig{
			FailureThreshold:    5,
			ResetTimeoutSeconds: 300,
			HalfOpenMaxCalls:    3,
		},
		Store: StoreConfig{
			Database: "oppradar",
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 50,
		},
		Match: MatchConfig{
			MinScore: 0.3,
			Limit:    50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Embedding.Provider == "genai" && c.Embedding.APIKey == "" {
		c.Embedding.APIKey = key
	}
	if key := os.Getenv("OPPRADAR_EMBEDDING_KEY"); key != "" {
		c.Embedding.APIKey = key
	}
	if path := os.Getenv("OPPRADAR_DB"); path != "" {
		c.Store.Path = path
	}
	if addr := os.Getenv("OPPRADAR_METRICS_ADDR"); addr != "" {
		c.Metrics.ListenAddr = addr
	}
}

func (c *Config) validate() error {
	if c.Scraper.IntervalHours <= 0 {
		return fmt.Errorf("scraper.interval_hours must be positive, got %d", c.Scraper.IntervalHours)
	}
	if c.Scraper.RequestDelaySeconds < 0 {
		return fmt.Errorf("scraper.request_delay_seconds must not be negative")
	}
	if c.Scraper.MaxPages <= 0 {
		return fmt.Errorf("scraper.max_pages must be positive, got %d", c.Scraper.MaxPages)
	}
	if c.Breaker.FailureThreshold <= 0 || c.Breaker.HalfOpenMaxCalls <= 0 {
		return fmt.Errorf("breaker thresholds must be positive")
	}
	if c.Match.MinScore < 0 || c.Match.MinScore > 1 {
		return fmt.Errorf("match.min_score must be in [0,1], got %g", c.Match.MinScore)
	}
	switch c.Embedding.Provider {
	case "openai", "genai":
	default:
		return fmt.Errorf("embedding.provider must be openai or genai, got %q", c.Embedding.Provider)
	}
	return nil
}

// RequestDelay returns the per-source pacing interval.
func (c *Config) RequestDelay() time.Duration {
	return time.Duration(c.Scraper.RequestDelaySeconds * float64(time.Second))
}

// ScrapeInterval returns the scheduled scrape period.
func (c *Config) ScrapeInterval() time.Duration {
	return time.Duration(c.Scraper.IntervalHours) * time.Hour
}

// RequestTimeout returns the per-request timeout for adapter fetches.
func (c *Config) RequestTimeout() time.Duration {
	if c.Scraper.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// ResetTimeout returns the breaker open-state duration.
func (c *Config) ResetTimeout() time.Duration {
	return time.Duration(c.Breaker.ResetTimeoutSeconds) * time.Second
}

// SourceEnabled reports whether the orchestrator should run a source.
// Sources default to enabled; only an explicit false disables.
func (c *Config) SourceEnabled(name string) bool {
	if c.Scraper.Sources == nil {
		return true
	}
	enabled, ok := c.Scraper.Sources[name]
	if !ok {
		return true
	}
	return enabled
}
