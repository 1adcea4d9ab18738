// Package config provides configuration management for the option-chain poller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"nseoptions/internal/logging"
	"nseoptions/internal/nse"
)

// Config holds all application configuration.
type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Poll   PollConfig   `mapstructure:"poll"`
	Chain  ChainConfig  `mapstructure:"chain"`
	Output OutputConfig `mapstructure:"output"`
	Log    LogConfig    `mapstructure:"log"`
}

// APIConfig holds the NSE endpoint configuration.
type APIConfig struct {
	Base     string            `mapstructure:"base"`
	URI      string            `mapstructure:"uri"`  // full URL override, "{symbol}" substituted
	Type     string            `mapstructure:"type"` // "index" or "stock"
	Paths    map[string]string `mapstructure:"paths"`
	Headers  map[string]string `mapstructure:"headers"`
	Insecure bool              `mapstructure:"insecure"`
	Timeout  time.Duration     `mapstructure:"timeout"`
}

// PollConfig holds the polling-loop configuration.
type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	RetryWait   time.Duration `mapstructure:"retry_wait"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	MaxFailures int           `mapstructure:"max_failures"`
}

// ChainConfig holds transform defaults.
type ChainConfig struct {
	NStrikes  int            `mapstructure:"nstrikes"`
	Multiples map[string]int `mapstructure:"multiples"`
}

// OutputConfig holds sink configuration.
type OutputConfig struct {
	Dir     string `mapstructure:"dir"`
	JSON    bool   `mapstructure:"json"`
	RawJSON bool   `mapstructure:"raw_json"`
	CSV     bool   `mapstructure:"csv"`
	SQLite  bool   `mapstructure:"sqlite"`
	DBPath  string `mapstructure:"db_path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/nseoptions"
	}
	return filepath.Join(home, ".config", "nseoptions")
}

// Load loads configuration from the specified directory. If configDir
// is empty, the default config directory is used; a missing config
// file is replaced with a commented template and defaults.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.yaml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("writing config template: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.yaml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("api.base", nse.DefaultBaseURL)
	v.SetDefault("api.type", "index")
	v.SetDefault("api.paths", map[string]string{
		"index": nse.IndexPath,
		"stock": nse.StockPath,
	})
	v.SetDefault("api.timeout", 10*time.Second)

	v.SetDefault("poll.interval", 30*time.Second)
	v.SetDefault("poll.retry_wait", 20*time.Second)
	v.SetDefault("poll.max_attempts", 3)
	v.SetDefault("poll.max_failures", 5)

	v.SetDefault("chain.nstrikes", 20)

	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.json", true)
	v.SetDefault("output.raw_json", true)
	v.SetDefault("output.csv", true)
	v.SetDefault("output.sqlite", true)
	v.SetDefault("output.db_path", filepath.Join(configDir, "nseoptions.db"))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.path", filepath.Join(configDir, "logs", "nseoptions.log"))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NSE_API_BASE"); v != "" {
		cfg.API.Base = v
	}
	if v := os.Getenv("NSE_API_URI"); v != "" {
		cfg.API.URI = v
	}
	if v := os.Getenv("NSE_API_TYPE"); v != "" {
		cfg.API.Type = v
	}
	if v := os.Getenv("NSE_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("NSE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.API.Type != "index" && c.API.Type != "stock" {
		return fmt.Errorf("invalid api.type: %s (must be 'index' or 'stock')", c.API.Type)
	}
	if c.API.URI == "" {
		if _, ok := c.API.Paths[c.API.Type]; !ok {
			return fmt.Errorf("api.paths has no entry for type %q", c.API.Type)
		}
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("poll.max_attempts must be at least 1")
	}
	if c.Poll.MaxFailures < 1 {
		return fmt.Errorf("poll.max_failures must be at least 1")
	}
	if c.Chain.NStrikes < 0 {
		return fmt.Errorf("chain.nstrikes must be non-negative")
	}
	return nil
}

// FetcherConfig builds the NSE client configuration.
func (c *Config) FetcherConfig() nse.Config {
	return nse.Config{
		BaseURL:  c.API.Base,
		Path:     c.API.Paths[c.API.Type],
		URI:      c.API.URI,
		Headers:  c.API.Headers,
		Timeout:  c.API.Timeout,
		Insecure: c.API.Insecure,
	}
}

// LoggingConfig builds the logging configuration.
func (c *Config) LoggingConfig() logging.LogConfig {
	lc := logging.DefaultLogConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	lc.Console = c.Log.Console
	lc.File = c.Log.File
	if c.Log.Path != "" {
		lc.FilePath = c.Log.Path
	}
	return lc
}

// Multiple returns the configured strike step for a symbol, or zero
// when unset so the caller can fall back to the exchange default.
// Viper lowercases map keys, so the lookup ignores case.
func (c *Config) Multiple(symbol string) int {
	for k, m := range c.Chain.Multiples {
		if strings.EqualFold(k, symbol) {
			return m
		}
	}
	return 0
}
