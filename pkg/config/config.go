package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the exporter
type Config struct {
	// Telegram API credentials and session location
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TelegramConfig holds Telegram-specific configuration
type TelegramConfig struct {
	APIID      int    `yaml:"api_id" json:"api_id"`
	APIHash    string `yaml:"api_hash" json:"api_hash"`
	Phone      string `yaml:"phone" json:"phone"`
	SessionDir string `yaml:"session_dir" json:"session_dir"`
	// RequestsPerSecond smooths individual RPC calls; the burst gate in
	// rate_limit is a separate, coarser protection layer.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
}

// RateLimitConfig holds the burst-gate and retry configuration
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window" json:"requests_per_window"`
	Window            time.Duration `yaml:"window" json:"window"`
	Cooldown          time.Duration `yaml:"cooldown" json:"cooldown"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	RetryJitter       time.Duration `yaml:"retry_jitter" json:"retry_jitter"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	MaxParallel  int           `yaml:"max_parallel" json:"max_parallel"`
	ItemDelay    time.Duration `yaml:"item_delay" json:"item_delay"`
	BatchDelay   time.Duration `yaml:"batch_delay" json:"batch_delay"`
	PageDelay    time.Duration `yaml:"page_delay" json:"page_delay"`
	MessageLimit int           `yaml:"message_limit" json:"message_limit"`
	// MediaTypes is the allow-set of media tags or file extensions.
	// The wildcard "all" admits every media type.
	MediaTypes []string `yaml:"media_types" json:"media_types"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory        string `yaml:"base_directory" json:"base_directory"`
	CreateChannelFolders bool   `yaml:"create_channel_folders" json:"create_channel_folders"`
	MessageLogName       string `yaml:"message_log_name" json:"message_log_name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			SessionDir:        defaultSessionDir(),
			RequestsPerSecond: 2.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 10,
			Window:            time.Minute,
			Cooldown:          time.Minute,
			MaxRetries:        3,
			RetryBaseDelay:    time.Second,
			RetryJitter:       time.Second,
		},
		Download: DownloadConfig{
			MaxParallel:  12,
			ItemDelay:    500 * time.Millisecond,
			BatchDelay:   time.Second,
			PageDelay:    time.Second,
			MessageLimit: 8192,
			MediaTypes:   []string{"all"},
		},
		Output: OutputConfig{
			BaseDirectory:        "./export",
			CreateChannelFolders: true,
			MessageLogName:       "all_message.json",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tgexport"
	}
	return filepath.Join(home, ".tgexport")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("TGEXPORT_API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TGEXPORT_API_ID: %w", err)
		}
		c.Telegram.APIID = id
	}
	if v := os.Getenv("TGEXPORT_API_HASH"); v != "" {
		c.Telegram.APIHash = v
	}
	if v := os.Getenv("TGEXPORT_PHONE"); v != "" {
		c.Telegram.Phone = v
	}
	if v := os.Getenv("TGEXPORT_SESSION_DIR"); v != "" {
		c.Telegram.SessionDir = v
	}
	if v := os.Getenv("TGEXPORT_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("TGEXPORT_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Download.MaxParallel = n
		}
	}
	if v := os.Getenv("TGEXPORT_MEDIA_TYPES"); v != "" {
		c.Download.MediaTypes = splitList(v)
	}
	if v := os.Getenv("TGEXPORT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".tgexport.yaml",
		".tgexport.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tgexport", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "tgexport", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".tgexport.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.APIID <= 0 {
		errs = append(errs, errors.New("telegram api_id is required"))
	}
	if c.Telegram.APIHash == "" {
		errs = append(errs, errors.New("telegram api_hash is required"))
	}

	if c.RateLimit.RequestsPerWindow <= 0 {
		errs = append(errs, errors.New("requests per window must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if c.RateLimit.MaxRetries < 1 {
		errs = append(errs, errors.New("max retries must be at least 1"))
	}

	if c.Download.MaxParallel <= 0 {
		errs = append(errs, errors.New("max parallel downloads must be positive"))
	}
	if c.Download.MessageLimit <= 0 {
		errs = append(errs, errors.New("message limit must be positive"))
	}
	if len(c.Download.MediaTypes) == 0 {
		errs = append(errs, errors.New("at least one media type is required"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.MessageLogName == "" {
		errs = append(errs, errors.New("message log name is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// MergeFlags merges command line flag values into the configuration
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if dir, ok := flags["output"].(string); ok && dir != "" {
		c.Output.BaseDirectory = dir
	}
	if parallel, ok := flags["parallel"].(int); ok && parallel > 0 {
		c.Download.MaxParallel = parallel
	}
	if types, ok := flags["media-types"].([]string); ok && len(types) > 0 {
		c.Download.MediaTypes = types
	}
	if limit, ok := flags["message-limit"].(int); ok && limit > 0 {
		c.Download.MessageLimit = limit
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tgexport.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
