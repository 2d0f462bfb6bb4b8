package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Gemini      GeminiConfig   `toml:"gemini"`
	Claude      ClaudeConfig   `toml:"claude"`
	Provider    ProviderConfig `toml:"provider"`
	Worker      WorkerConfig   `toml:"worker"`
	Jobs        JobsConfig     `toml:"jobs"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey    string        `toml:"api_key"`
	Model     string        `toml:"model"`      // default: "gemini-2.0-flash"
	Timeout   time.Duration `toml:"timeout"`    // per-search timeout
	RateLimit time.Duration `toml:"rate_limit"` // minimum gap between requests
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey    string        `toml:"api_key"`
	Model     string        `toml:"model"` // default: "claude-haiku-3-5-20241022"
	MaxTokens int           `toml:"max_tokens"`
	Timeout   time.Duration `toml:"timeout"`
	RateLimit time.Duration `toml:"rate_limit"`
}

// ProviderType identifies the search provider backend
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderClaude ProviderType = "claude"
)

// ProviderConfig selects the default search provider
type ProviderConfig struct {
	Default ProviderType `toml:"default"` // "gemini" or "claude"
}

// WorkerConfig contains job worker tunables. All have sane defaults and
// are optional.
type WorkerConfig struct {
	MaxAttempts    int           `toml:"max_attempts"`    // attempts per category (default: 2)
	RetryDelay     time.Duration `toml:"retry_delay"`     // delay between attempts
	Concurrency    int           `toml:"concurrency"`     // categories fetched per batch (default: 3)
	BatchDelay     time.Duration `toml:"batch_delay"`     // pause between batches
	RequestTimeout time.Duration `toml:"request_timeout"` // per-fetch bound
}

// JobsConfig contains job retention configuration
type JobsConfig struct {
	Retention       time.Duration `toml:"retention"`        // job age before cleanup (default: 24h)
	CleanupSchedule string        `toml:"cleanup_schedule"` // cron schedule for the sweep
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings should be exposed in eventscout.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Gemini: GeminiConfig{
			APIKey:    "", // user must provide API key
			Model:     "gemini-2.0-flash",
			Timeout:   60 * time.Second,
			RateLimit: 4 * time.Second, // 15 RPM free tier
		},
		Claude: ClaudeConfig{
			APIKey:    "",
			Model:     "claude-haiku-3-5-20241022",
			MaxTokens: 4096,
			Timeout:   60 * time.Second,
			RateLimit: 1 * time.Second,
		},
		Provider: ProviderConfig{
			Default: ProviderGemini,
		},
		Worker: WorkerConfig{
			MaxAttempts:    2,
			RetryDelay:     2 * time.Second,
			Concurrency:    3,
			BatchDelay:     1 * time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Jobs: JobsConfig{
			Retention:       24 * time.Hour,
			CleanupSchedule: "@every 1h",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("EVENTSCOUT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("EVENTSCOUT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("EVENTSCOUT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("EVENTSCOUT_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("EVENTSCOUT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Gemini configuration
	if apiKey := os.Getenv("EVENTSCOUT_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("EVENTSCOUT_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Claude configuration; the standard ANTHROPIC_API_KEY works too
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("EVENTSCOUT_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("EVENTSCOUT_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if provider := os.Getenv("EVENTSCOUT_PROVIDER"); provider != "" {
		config.Provider.Default = ProviderType(provider)
	}

	if attempts := os.Getenv("EVENTSCOUT_WORKER_MAX_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil && a > 0 {
			config.Worker.MaxAttempts = a
		}
	}
	if concurrency := os.Getenv("EVENTSCOUT_WORKER_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil && c > 0 {
			config.Worker.Concurrency = c
		}
	}
	if timeout := os.Getenv("EVENTSCOUT_WORKER_REQUEST_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			config.Worker.RequestTimeout = d
		}
	}

	if retention := os.Getenv("EVENTSCOUT_JOBS_RETENTION"); retention != "" {
		if d, err := time.ParseDuration(retention); err == nil {
			config.Jobs.Retention = d
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
