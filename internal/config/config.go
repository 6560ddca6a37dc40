package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ErrConfigNotFound is returned when the config file is not found by Load.
var ErrConfigNotFound = errors.New("configuration file not found")

// EnvPrefix prefixes every environment override
const EnvPrefix = "DATOCMS_MCP"

// Config represents the application configuration
type Config struct {
	DatoCMS  DatoCMSConfig  `mapstructure:"datocms"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Security SecurityConfig `mapstructure:"security"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Profiles ProfilesConfig `mapstructure:"profiles"`
}

// DatoCMSConfig holds Content Management API client settings shared by all profiles
type DatoCMSConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Environment       string        `mapstructure:"environment"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// MCPConfig represents MCP protocol settings
type MCPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit represents rate limiting configuration
type RateLimit struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// SecurityConfig represents security settings
type SecurityConfig struct {
	BatchMode              bool          `mapstructure:"batch_mode"`
	AutoApprove            bool          `mapstructure:"auto_approve"`
	ConfirmationTimeout    time.Duration `mapstructure:"confirmation_timeout"`
	ProtectionPasswordHash string        `mapstructure:"protection_password_hash"`
}

// UploadConfig holds defaults for upload operations
type UploadConfig struct {
	Concurrency  int  `mapstructure:"concurrency"`
	SkipIfExists bool `mapstructure:"skip_if_exists"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint of the serve command
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ProfilesConfig represents profile settings
type ProfilesConfig struct {
	Default string `mapstructure:"default"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		DatoCMS: DatoCMSConfig{
			RequestTimeout:    60 * time.Second,
			MaxRetries:        3,
			RequestsPerSecond: 10,
		},
		MCP: MCPConfig{
			Timeout: 30 * time.Second,
			RateLimit: RateLimit{
				RequestsPerMinute: 120,
				Burst:             20,
			},
		},
		Security: SecurityConfig{
			ConfirmationTimeout: 30 * time.Second,
		},
		Upload: UploadConfig{
			Concurrency: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Profiles: ProfilesConfig{
			Default: "default",
		},
	}
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("datocms.base_url", c.DatoCMS.BaseURL)
	v.SetDefault("datocms.environment", c.DatoCMS.Environment)
	v.SetDefault("datocms.request_timeout", c.DatoCMS.RequestTimeout)
	v.SetDefault("datocms.max_retries", c.DatoCMS.MaxRetries)
	v.SetDefault("datocms.requests_per_second", c.DatoCMS.RequestsPerSecond)
	v.SetDefault("mcp.timeout", c.MCP.Timeout)
	v.SetDefault("mcp.rate_limit.requests_per_minute", c.MCP.RateLimit.RequestsPerMinute)
	v.SetDefault("mcp.rate_limit.burst", c.MCP.RateLimit.Burst)
	v.SetDefault("security.batch_mode", c.Security.BatchMode)
	v.SetDefault("security.auto_approve", c.Security.AutoApprove)
	v.SetDefault("security.confirmation_timeout", c.Security.ConfirmationTimeout)
	v.SetDefault("security.protection_password_hash", c.Security.ProtectionPasswordHash)
	v.SetDefault("upload.concurrency", c.Upload.Concurrency)
	v.SetDefault("upload.skip_if_exists", c.Upload.SkipIfExists)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file", c.Logging.File)
	v.SetDefault("metrics.addr", c.Metrics.Addr)
	v.SetDefault("profiles.default", c.Profiles.Default)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	_ = v.BindEnv("security.batch_mode", EnvPrefix+"_BATCH_MODE")
	_ = v.BindEnv("security.auto_approve", EnvPrefix+"_AUTO_APPROVE")
	_ = v.BindEnv("logging.level", EnvPrefix+"_LOG_LEVEL")
	_ = v.BindEnv("profiles.default", EnvPrefix+"_PROFILE")
	_ = v.BindEnv("upload.concurrency", EnvPrefix+"_UPLOAD_CONCURRENCY")
	_ = v.BindEnv("datocms.environment", EnvPrefix+"_ENVIRONMENT")
	_ = v.BindEnv("metrics.addr", EnvPrefix+"_METRICS_ADDR")
}

// Load loads configuration from file. Environment variables override file values.
func Load(configFile string) (*Config, error) {
	configDir := getConfigDir()
	if configFile == "" {
		configFile = filepath.Join(configDir, "config.yaml")
	}
	if _, err := os.Stat(configFile); errors.Is(err, os.ErrNotExist) {
		return nil, ErrConfigNotFound
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file content: %w", err)
	}

	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Logging.File == "" {
		config.Logging.File = filepath.Join(configDir, "audit.log")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// FromEnv builds a configuration from defaults and environment variables only
func FromEnv() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	bindEnv(v)

	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings that cannot work
func (c *Config) Validate() error {
	if c.Upload.Concurrency < 0 || c.Upload.Concurrency > 20 {
		return fmt.Errorf("upload.concurrency must be between 0 and 20, got %d", c.Upload.Concurrency)
	}
	if c.DatoCMS.MaxRetries < 0 {
		return fmt.Errorf("datocms.max_retries cannot be negative")
	}
	if c.DatoCMS.RequestsPerSecond < 0 {
		return fmt.Errorf("datocms.requests_per_second cannot be negative")
	}
	if c.MCP.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("mcp.rate_limit.requests_per_minute cannot be negative")
	}
	return nil
}

// Save saves configuration to file
func (c *Config) Save(configFile string) error {
	if configFile == "" {
		configFile = filepath.Join(getConfigDir(), "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	v.Set("datocms.base_url", c.DatoCMS.BaseURL)
	v.Set("datocms.environment", c.DatoCMS.Environment)
	v.Set("datocms.request_timeout", c.DatoCMS.RequestTimeout.String())
	v.Set("datocms.max_retries", c.DatoCMS.MaxRetries)
	v.Set("datocms.requests_per_second", c.DatoCMS.RequestsPerSecond)
	v.Set("mcp.timeout", c.MCP.Timeout.String())
	v.Set("mcp.rate_limit.requests_per_minute", c.MCP.RateLimit.RequestsPerMinute)
	v.Set("mcp.rate_limit.burst", c.MCP.RateLimit.Burst)
	v.Set("security.batch_mode", c.Security.BatchMode)
	v.Set("security.auto_approve", c.Security.AutoApprove)
	v.Set("security.confirmation_timeout", c.Security.ConfirmationTimeout.String())
	v.Set("security.protection_password_hash", c.Security.ProtectionPasswordHash)
	v.Set("upload.concurrency", c.Upload.Concurrency)
	v.Set("upload.skip_if_exists", c.Upload.SkipIfExists)
	v.Set("logging.level", c.Logging.Level)
	v.Set("logging.file", c.Logging.File)
	v.Set("metrics.addr", c.Metrics.Addr)
	v.Set("profiles.default", c.Profiles.Default)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Chmod(configFile, 0o600)
}

func getConfigDir() string {
	if configDir := os.Getenv(EnvPrefix + "_CONFIG_DIR"); configDir != "" {
		return configDir
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "datocms-mcp")
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ".datocms-mcp")
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	return getConfigDir()
}

// LoadOrCreate loads existing config or writes and returns the defaults
func LoadOrCreate(configFile string) (*Config, error) {
	cfg, err := Load(configFile)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	cfg = DefaultConfig()
	if configFile == "" {
		configFile = filepath.Join(getConfigDir(), "config.yaml")
	}
	cfg.Logging.File = filepath.Join(filepath.Dir(configFile), "audit.log")
	if err := cfg.Save(configFile); err != nil {
		return nil, fmt.Errorf("failed to save default config to %s: %w", configFile, err)
	}
	return cfg, nil
}
