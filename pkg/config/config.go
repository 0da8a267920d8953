package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Request  RequestConfig  `yaml:"request"`
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Wikidata WikidataConfig `yaml:"wikidata"`
	Commons  CommonsConfig  `yaml:"commons"`
	Sync     SyncConfig     `yaml:"sync"`
	Backfill BackfillConfig `yaml:"backfill"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// WikidataConfig holds Wikidata endpoint settings.
type WikidataConfig struct {
	SparqlEndpoint string   `yaml:"sparql_endpoint"`
	APIEndpoint    string   `yaml:"api_endpoint"`
	LabelCacheSize int      `yaml:"label_cache_size"`
	LabelCacheTTL  Duration `yaml:"label_cache_ttl"`
}

// CommonsConfig holds Wikimedia Commons API settings.
type CommonsConfig struct {
	APIEndpoint string `yaml:"api_endpoint"`
	PageSize    int    `yaml:"page_size"`
}

// SyncConfig holds settings for the bulk synchronization run.
type SyncConfig struct {
	BatchSize  int      `yaml:"batch_size"`
	MaxBatches int      `yaml:"max_batches"`
	BatchPause Duration `yaml:"batch_pause"`
	LockTTL    Duration `yaml:"lock_ttl"`
}

// BackfillConfig holds settings for the incremental backfill jobs.
type BackfillConfig struct {
	BatchSize    int      `yaml:"batch_size"`
	Interval     Duration `yaml:"interval"`      // delay between runs while a backlog remains
	IdleInterval Duration `yaml:"idle_interval"` // delay once the backlog looks exhausted
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(120 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(60 * time.Second),
			},
		},
		Log: LogConfig{
			Path:  "./logs/anitgo.log",
			Level: "INFO",
		},
		DB: DBConfig{
			Path: "./data/anitgo.db",
		},
		Wikidata: WikidataConfig{
			SparqlEndpoint: "https://query.wikidata.org/sparql",
			APIEndpoint:    "https://www.wikidata.org/w/api.php",
			LabelCacheSize: 4096,
			LabelCacheTTL:  Duration(Day),
		},
		Commons: CommonsConfig{
			APIEndpoint: "https://commons.wikimedia.org/w/api.php",
			PageSize:    50,
		},
		Sync: SyncConfig{
			BatchSize:  500,
			MaxBatches: 0, // unlimited
			BatchPause: Duration(2 * time.Second),
			LockTTL:    Duration(4 * time.Hour),
		},
		Backfill: BackfillConfig{
			BatchSize:    50,
			Interval:     Duration(10 * time.Minute),
			IdleInterval: Duration(1 * time.Hour),
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it is created with default values.
// If the file exists, defaults are merged with existing values but NOT saved
// back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Env fallbacks for endpoint overrides (not saved back to disk).
		if ep := os.Getenv("ANITGO_SPARQL_ENDPOINT"); ep != "" {
			cfg.Wikidata.SparqlEndpoint = ep
		}
		if ep := os.Getenv("ANITGO_WIKIDATA_API"); ep != "" {
			cfg.Wikidata.APIEndpoint = ep
		}
		if ep := os.Getenv("ANITGO_COMMONS_API"); ep != "" {
			cfg.Commons.APIEndpoint = ep
		}

		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# AnitGo Configuration
# --------------------
# Supported Duration units: ns, us, ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, do nothing
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
