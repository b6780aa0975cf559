package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the growth engine
type Config struct {
	// Account credentials and identity
	Account AccountConfig `yaml:"account" json:"account"`

	// Ledger database settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Automation relay settings
	Relay RelayConfig `yaml:"relay" json:"relay"`

	// Candidate filter settings
	Filter FilterConfig `yaml:"filter" json:"filter"`

	// Bandit tag selection settings
	Bandit BanditConfig `yaml:"bandit" json:"bandit"`

	// Request retry and cooldown settings
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AccountConfig holds the Instagram account credentials
type AccountConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// DatabaseConfig holds ledger database configuration
type DatabaseConfig struct {
	// Path is the sqlite database file path
	Path string `yaml:"path" json:"path"`
}

// RelayConfig holds the push-action relay bridge configuration
type RelayConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// FilterConfig holds candidate filter configuration
type FilterConfig struct {
	// SkipPrivate drops private accounts from the good-user pipeline
	SkipPrivate bool `yaml:"skip_private" json:"skip_private"`
	// MaxRatio is the follower/following ratio at or above which a candidate
	// is considered unlikely to follow back
	MaxRatio float64 `yaml:"max_ratio" json:"max_ratio"`
}

// BanditConfig holds the Thompson sampling prior calibration
type BanditConfig struct {
	// PriorAlpha and PriorBeta parameterize the informative Beta prior.
	// The defaults center belief around a 7% likeback rate.
	PriorAlpha float64 `yaml:"prior_alpha" json:"prior_alpha"`
	PriorBeta  float64 `yaml:"prior_beta" json:"prior_beta"`
}

// RetryConfig holds request retry and cooldown configuration
type RetryConfig struct {
	RateLimitCooldown   time.Duration `yaml:"rate_limit_cooldown" json:"rate_limit_cooldown"`
	NetworkCooldown     time.Duration `yaml:"network_cooldown" json:"network_cooldown"`
	MaxRateLimitRetries int           `yaml:"max_rate_limit_retries" json:"max_rate_limit_retries"`
	JitterBase          time.Duration `yaml:"jitter_base" json:"jitter_base"`
	JitterSpread        time.Duration `yaml:"jitter_spread" json:"jitter_spread"`
	RequestTimeout      time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "iggrowth.db",
		},
		Relay: RelayConfig{
			Enabled: false,
		},
		Filter: FilterConfig{
			SkipPrivate: false,
			MaxRatio:    0.5,
		},
		Bandit: BanditConfig{
			PriorAlpha: 3,
			PriorBeta:  25,
		},
		Retry: RetryConfig{
			RateLimitCooldown:   10 * time.Minute,
			NetworkCooldown:     5 * time.Second,
			MaxRateLimitRetries: 3,
			JitterBase:          3 * time.Second,
			JitterSpread:        500 * time.Millisecond,
			RequestTimeout:      30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given file (optional), then applies
// environment variable overrides. A .env file in the working directory is
// loaded first if present.
func Load(path string) (*Config, error) {
	// Load .env if it exists; missing file is fine
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path == "" {
		path = defaultConfigPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromEnv applies IGGROWTH_* environment variable overrides
func (c *Config) loadFromEnv() {
	if v := os.Getenv("IGGROWTH_USERNAME"); v != "" {
		c.Account.Username = v
	}
	if v := os.Getenv("IGGROWTH_PASSWORD"); v != "" {
		c.Account.Password = v
	}
	if v := os.Getenv("IGGROWTH_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("IGGROWTH_RELAY_BASE_URL"); v != "" {
		c.Relay.BaseURL = v
		c.Relay.Enabled = true
	}
	if v := os.Getenv("IGGROWTH_SKIP_PRIVATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Filter.SkipPrivate = b
		}
	}
	if v := os.Getenv("IGGROWTH_MAX_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Filter.MaxRatio = f
		}
	}
	if v := os.Getenv("IGGROWTH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IGGROWTH_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Filter.MaxRatio <= 0 {
		return fmt.Errorf("filter max_ratio must be positive, got %v", c.Filter.MaxRatio)
	}
	if c.Bandit.PriorAlpha <= 0 || c.Bandit.PriorBeta <= 0 {
		return fmt.Errorf("bandit prior must be positive, got alpha=%v beta=%v",
			c.Bandit.PriorAlpha, c.Bandit.PriorBeta)
	}
	if c.Retry.MaxRateLimitRetries < 0 {
		return fmt.Errorf("max_rate_limit_retries must not be negative, got %d", c.Retry.MaxRateLimitRetries)
	}
	if c.Relay.Enabled && c.Relay.BaseURL == "" {
		return fmt.Errorf("relay is enabled but base_url is empty")
	}
	return nil
}

// defaultConfigPath returns the default config file location if one exists
func defaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".iggrowth.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if _, err := os.Stat("iggrowth.yaml"); err == nil {
		return "iggrowth.yaml"
	}
	return ""
}
