package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LMSConfig holds the connection settings for the course platform API.
type LMSConfig struct {
	// BaseURL is the root URL of the LMS REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries is the number of retries on HTTP 429.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// MailboxConfig configures the optional IMAP source for site-wide
// announcements. When enabled it replaces the LMS global endpoint.
type MailboxConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Folder   string `mapstructure:"folder" yaml:"folder"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
	Limit    int    `mapstructure:"limit" yaml:"limit"`
}

// StorageConfig selects the key-value backend for notification settings.
type StorageConfig struct {
	// Backend is one of "sqlite", "redis" or "memory".
	Backend  string `mapstructure:"backend" yaml:"backend"`
	Path     string `mapstructure:"path" yaml:"path"`
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`
}

// FeedConfig controls aggregation scheduling and fan-out.
type FeedConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	MaxConcurrency  int `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	FetchTimeoutSec int `mapstructure:"fetch_timeout_sec" yaml:"fetch_timeout_sec"`
}

// LogConfig holds logger settings. Logs go to a file since the terminal
// is owned by the UI.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	File   string `mapstructure:"file" yaml:"file"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Role    string        `mapstructure:"role" yaml:"role"`
	LMS     LMSConfig     `mapstructure:"lms" yaml:"lms"`
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Feed    FeedConfig    `mapstructure:"feed" yaml:"feed"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// configDir returns ~/.config/classfeed, or the working directory when
// the home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "classfeed")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/classfeed/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		Role: string(RoleLearner),
		LMS: LMSConfig{
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Mailbox: MailboxConfig{
			Port:   "993",
			Folder: "Announcements",
			TLS:    true,
			Limit:  50,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    filepath.Join(dir, "classfeed.db"),
		},
		Feed: FeedConfig{
			PollIntervalSec: 300,
			MaxConcurrency:  8,
			FetchTimeoutSec: 30,
		},
		Log: LogConfig{
			Level:  "info",
			File:   filepath.Join(dir, "classfeed.log"),
			Format: "json",
		},
	}
}

// setDefaults mirrors defaultAppConfig into viper so that partially
// populated files resolve every key.
func setDefaults(v *viper.Viper) {
	def := defaultAppConfig()
	v.SetDefault("role", def.Role)
	v.SetDefault("lms.base_url", def.LMS.BaseURL)
	v.SetDefault("lms.timeout_sec", def.LMS.TimeoutSec)
	v.SetDefault("lms.max_retries", def.LMS.MaxRetries)
	v.SetDefault("mailbox.enabled", def.Mailbox.Enabled)
	v.SetDefault("mailbox.host", def.Mailbox.Host)
	v.SetDefault("mailbox.port", def.Mailbox.Port)
	v.SetDefault("mailbox.username", def.Mailbox.Username)
	v.SetDefault("mailbox.folder", def.Mailbox.Folder)
	v.SetDefault("mailbox.tls", def.Mailbox.TLS)
	v.SetDefault("mailbox.limit", def.Mailbox.Limit)
	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.path", def.Storage.Path)
	v.SetDefault("storage.redis_url", def.Storage.RedisURL)
	v.SetDefault("feed.poll_interval_sec", def.Feed.PollIntervalSec)
	v.SetDefault("feed.max_concurrency", def.Feed.MaxConcurrency)
	v.SetDefault("feed.fetch_timeout_sec", def.Feed.FetchTimeoutSec)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("metrics.addr", def.Metrics.Addr)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// CLASSFEED_* environment variables override file values
// (e.g. CLASSFEED_LMS_BASE_URL).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("classfeed")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, missing := err.(*os.PathError)
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			missing = true
		}
		if !missing {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if _, err := ParseRole(cfg.Role); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Feed.MaxConcurrency <= 0 {
		cfg.Feed.MaxConcurrency = 8
	}
	if cfg.Feed.PollIntervalSec <= 0 {
		cfg.Feed.PollIntervalSec = 300
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	return cfg, nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("role", cfg.Role)
	v.Set("lms", cfg.LMS)
	v.Set("mailbox", cfg.Mailbox)
	v.Set("storage", cfg.Storage)
	v.Set("feed", cfg.Feed)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
