package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int    `yaml:"port"`
	BehindProxy bool   `yaml:"behind_proxy"`
	DataDir     string `yaml:"data_dir"`
	TempRoot    string `yaml:"temp_root"`
	OutputDir   string `yaml:"output_dir"`

	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`

	Retry      RetryConfig    `yaml:"retry"`
	Timeouts   TimeoutConfig  `yaml:"timeouts"`
	Cleanup    CleanupConfig  `yaml:"cleanup"`
	Log        LogConfig      `yaml:"log"`
	Auth       AuthConfig     `yaml:"auth"`
	Tools      ToolsConfig    `yaml:"tools"`
	UserAgents []string       `yaml:"user_agents"`
	History    HistoryConfig  `yaml:"history"`
	Overrides  []KindOverride `yaml:"kind_overrides"`
	Delay      RandomDelay    `yaml:"random_delay"`
}

type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// KindOverride replaces the recovery budget of one error kind.
type KindOverride struct {
	Kind       string        `yaml:"kind"`
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
}

type RandomDelay struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

type TimeoutConfig struct {
	Network  time.Duration `yaml:"network"`
	Transfer time.Duration `yaml:"transfer"`
	Shutdown time.Duration `yaml:"shutdown"`
}

type CleanupConfig struct {
	Interval         time.Duration `yaml:"interval"`
	MaxAge           time.Duration `yaml:"max_age"`
	SessionRetention time.Duration `yaml:"session_retention"`
	HistoryRetention time.Duration `yaml:"history_retention"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type AuthConfig struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"-"`
	PasswordHash string `yaml:"password_hash"`
	SecretKey    string `yaml:"-"`
}

type ToolsConfig struct {
	YtDlp   string `yaml:"ytdlp"`
	FFprobe string `yaml:"ffprobe"`
}

type HistoryConfig struct {
	// Backend is "sqlite" or "json".
	Backend string `yaml:"backend"`
}

func Default() *Config {
	return &Config{
		Port:        7890,
		DataDir:     "/data",
		TempRoot:    "/data/tmp",
		OutputDir:   "/data/downloads",
		Concurrency: 2,
		QueueSize:   50,
		Retry: RetryConfig{
			MaxRetries:        3,
			BaseDelay:         2 * time.Second,
			MaxDelay:          60 * time.Second,
			BackoffMultiplier: 2,
		},
		Timeouts: TimeoutConfig{
			Network:  30 * time.Second,
			Transfer: 30 * time.Minute,
			Shutdown: 30 * time.Second,
		},
		Cleanup: CleanupConfig{
			Interval:         time.Hour,
			MaxAge:           24 * time.Hour,
			SessionRetention: 24 * time.Hour,
			HistoryRetention: 30 * 24 * time.Hour,
		},
		Log:     LogConfig{Level: "info"},
		Auth:    AuthConfig{Username: "admin"},
		Tools:   ToolsConfig{YtDlp: "yt-dlp", FFprobe: "ffprobe"},
		History: HistoryConfig{Backend: "sqlite"},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var err error

	if c.Port, err = envInt("PORT", c.Port); err != nil {
		return err
	}
	if c.BehindProxy, err = envBool("BEHIND_PROXY", c.BehindProxy); err != nil {
		return err
	}
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.TempRoot = getEnv("TEMP_ROOT", c.TempRoot)
	c.OutputDir = getEnv("OUTPUT_DIR", c.OutputDir)

	if c.Concurrency, err = envInt("CONCURRENCY", c.Concurrency); err != nil {
		return err
	}
	if c.QueueSize, err = envInt("QUEUE_SIZE", c.QueueSize); err != nil {
		return err
	}
	if c.Retry.MaxRetries, err = envInt("MAX_RETRIES", c.Retry.MaxRetries); err != nil {
		return err
	}
	if c.Retry.BaseDelay, err = envDuration("RETRY_BASE_DELAY", c.Retry.BaseDelay); err != nil {
		return err
	}
	if c.Retry.MaxDelay, err = envDuration("RETRY_MAX_DELAY", c.Retry.MaxDelay); err != nil {
		return err
	}
	if c.Timeouts.Network, err = envDuration("NETWORK_TIMEOUT", c.Timeouts.Network); err != nil {
		return err
	}
	if c.Timeouts.Transfer, err = envDuration("TRANSFER_TIMEOUT", c.Timeouts.Transfer); err != nil {
		return err
	}
	if c.Cleanup.Interval, err = envDuration("CLEANUP_INTERVAL", c.Cleanup.Interval); err != nil {
		return err
	}
	if c.Cleanup.MaxAge, err = envDuration("CLEANUP_MAX_AGE", c.Cleanup.MaxAge); err != nil {
		return err
	}
	if c.Cleanup.HistoryRetention, err = envDuration("HISTORY_RETENTION", c.Cleanup.HistoryRetention); err != nil {
		return err
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	if c.Log.JSON, err = envBool("LOG_JSON", c.Log.JSON); err != nil {
		return err
	}

	c.Auth.Username = getEnv("AUTH_USERNAME", c.Auth.Username)
	c.Auth.Password = getEnv("AUTH_PASSWORD", c.Auth.Password)
	c.Auth.PasswordHash = getEnv("AUTH_PASSWORD_HASH", c.Auth.PasswordHash)
	c.Auth.SecretKey = getEnv("SECRET_KEY", c.Auth.SecretKey)

	c.Tools.YtDlp = getEnv("YTDLP_PATH", c.Tools.YtDlp)
	c.Tools.FFprobe = getEnv("FFPROBE_PATH", c.Tools.FFprobe)
	c.History.Backend = getEnv("HISTORY_BACKEND", c.History.Backend)

	if v := os.Getenv("USER_AGENTS"); v != "" {
		c.UserAgents = splitList(v, "|")
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT: %d", c.Port))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("CONCURRENCY must be at least 1, got %d", c.Concurrency))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("QUEUE_SIZE must not be negative, got %d", c.QueueSize))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must not be negative, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("retry backoff_multiplier must be at least 1, got %v", c.Retry.BackoffMultiplier))
	}
	if c.Delay.Max < c.Delay.Min {
		errs = append(errs, errors.New("random_delay max is below min"))
	}
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("SECRET_KEY is required"))
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		errs = append(errs, errors.New("AUTH_PASSWORD or AUTH_PASSWORD_HASH is required"))
	}
	switch c.History.Backend {
	case "sqlite", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown HISTORY_BACKEND %q", c.History.Backend))
	}
	for _, o := range c.Overrides {
		if o.Kind == "" {
			errs = append(errs, errors.New("kind_overrides entry without kind"))
		}
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v, sep string) []string {
	var out []string
	for _, part := range strings.Split(v, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
