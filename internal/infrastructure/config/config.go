package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load policies for module files that fail to load.
const (
	PolicyFail = "fail"
	PolicySkip = "skip"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Modules     ModulesConfig
	Sandbox     SandboxConfig
	Fetch       FetchConfig
	Logging     LogConfig
	RateLimit   RateLimitConfig
	Compression CompressionConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// ModulesConfig controls where API modules are discovered.
type ModulesConfig struct {
	Dir        string `envconfig:"MODULES_DIR" default:"scraper"`
	Pattern    string `envconfig:"MODULES_PATTERN" default:"*.{js,yaml,yml,toml}"`
	LoadPolicy string `envconfig:"MODULES_LOAD_POLICY" default:"fail"`
}

// SandboxConfig holds JavaScript runtime limits.
type SandboxConfig struct {
	PoolSize         int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	Timeout          time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"0s"`
	MaxCallStackSize int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	EnableConsole    bool          `envconfig:"SANDBOX_CONSOLE" default:"true"`
}

// FetchConfig holds the outbound HTTP client settings used by modules.
type FetchConfig struct {
	Timeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	Retries   int           `envconfig:"FETCH_RETRIES" default:"3"`
	RPS       float64       `envconfig:"FETCH_RPS" default:"0"`
	UserAgent string        `envconfig:"FETCH_USER_AGENT" default:"ScraperAPI/1.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// CompressionConfig controls gzip encoding of responses.
type CompressionConfig struct {
	Enabled bool `envconfig:"COMPRESSION_ENABLED" default:"true"`
	MinSize int  `envconfig:"COMPRESSION_MIN_SIZE" default:"1024"`
}

// LoadDotEnv reads .env style files into the process environment.
// Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate checks values envconfig cannot express as types.
func (c *Config) Validate() error {
	switch c.Modules.LoadPolicy {
	case PolicyFail, PolicySkip:
	default:
		return fmt.Errorf("invalid MODULES_LOAD_POLICY %q: want %q or %q", c.Modules.LoadPolicy, PolicyFail, PolicySkip)
	}
	if c.Modules.Dir == "" {
		return errors.New("MODULES_DIR must not be empty")
	}
	if c.Sandbox.PoolSize < 1 {
		return fmt.Errorf("SANDBOX_POOL_SIZE must be positive, got %d", c.Sandbox.PoolSize)
	}
	if c.Sandbox.Timeout < 0 {
		return fmt.Errorf("SANDBOX_TIMEOUT must not be negative, got %s", c.Sandbox.Timeout)
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("FETCH_RETRIES must not be negative, got %d", c.Fetch.Retries)
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		Modules: ModulesConfig{
			Dir:        "scraper",
			Pattern:    "*.{js,yaml,yml,toml}",
			LoadPolicy: PolicyFail,
		},
		Sandbox: SandboxConfig{
			PoolSize:         4,
			MaxCallStackSize: 1024,
			EnableConsole:    true,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			Retries:   3,
			UserAgent: "ScraperAPI/1.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Compression: CompressionConfig{
			Enabled: true,
			MinSize: 1024,
		},
	}
}
