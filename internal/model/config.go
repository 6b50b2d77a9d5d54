package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (INBOX_API_BASE_URL).
const EnvPrefix = "INBOX"

// APIConfig points the client at the platform's REST API.
type APIConfig struct {
	// BaseURL is the root of the API, without the /api suffix.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`

	// TimeoutSec bounds every HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" validate:"gte=1"`
}

// SyncConfig controls the notification poll loop.
type SyncConfig struct {
	PollIntervalMs int `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms" validate:"gte=1000"`
	FetchTimeoutMs int `mapstructure:"fetch_timeout_ms" yaml:"fetch_timeout_ms" validate:"gte=100"`
}

// ToastConfig controls the transient notification overlay.
type ToastConfig struct {
	DurationMs int  `mapstructure:"duration_ms" yaml:"duration_ms" validate:"gte=500"`
	MaxVisible int  `mapstructure:"max_visible" yaml:"max_visible" validate:"gte=1,lte=20"`
	OpenURLs   bool `mapstructure:"open_urls" yaml:"open_urls"`
}

// InboxConfig tunes the read/trash commands.
type InboxConfig struct {
	// MarkAllRate is the number of single mark-read calls per second issued
	// by mark-all-as-read.
	MarkAllRate float64 `mapstructure:"mark_all_rate" yaml:"mark_all_rate" validate:"gt=0"`

	// BulkMarkAll uses the single read-all endpoint instead.
	BulkMarkAll bool `mapstructure:"bulk_mark_all" yaml:"bulk_mark_all"`
}

// StoreConfig locates the local notification cache.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// MetricsConfig enables the optional Prometheus listener.
type MetricsConfig struct {
	// Addr is a listen address such as ":9464". Empty disables the listener.
	Addr string `mapstructure:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file" validate:"required"`
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// TraceConfig enables span export.
type TraceConfig struct {
	// File receives finished spans as JSON lines. Empty disables tracing.
	File string `mapstructure:"file" yaml:"file"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Toast   ToastConfig   `mapstructure:"toast" yaml:"toast"`
	Inbox   InboxConfig   `mapstructure:"inbox" yaml:"inbox"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Trace   TraceConfig   `mapstructure:"trace" yaml:"trace"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// PollInterval returns the configured poll interval.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Sync.PollIntervalMs) * time.Millisecond
}

// FetchTimeout returns the per-poll fetch deadline.
func (c *AppConfig) FetchTimeout() time.Duration {
	return time.Duration(c.Sync.FetchTimeoutMs) * time.Millisecond
}

// ToastDuration returns the auto-dismiss delay for toasts.
func (c *AppConfig) ToastDuration() time.Duration {
	return time.Duration(c.Toast.DurationMs) * time.Millisecond
}

// APITimeout returns the HTTP client timeout.
func (c *AppConfig) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// ConfigDir returns ~/.config/claims-inbox, or the working directory when
// the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "claims-inbox")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/claims-inbox/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaults lists every key with its default so that viper can resolve
// environment overrides for keys absent from the file.
func defaults() map[string]any {
	dir := ConfigDir()
	return map[string]any{
		"api.base_url":          "http://localhost:8080",
		"api.timeout_sec":       30,
		"sync.poll_interval_ms": 30000,
		"sync.fetch_timeout_ms": 30000,
		"toast.duration_ms":     5000,
		"toast.max_visible":     5,
		"toast.open_urls":       false,
		"inbox.mark_all_rate":   10.0,
		"inbox.bulk_mark_all":   false,
		"store.path":            filepath.Join(dir, "inbox.db"),
		"metrics.addr":          "",
		"log.file":              filepath.Join(dir, "inbox.log"),
		"log.level":             "info",
		"trace.file":            "",
		"display.theme":         "default",
	}
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API:     APIConfig{BaseURL: "http://localhost:8080", TimeoutSec: 30},
		Sync:    SyncConfig{PollIntervalMs: 30000, FetchTimeoutMs: 30000},
		Toast:   ToastConfig{DurationMs: 5000, MaxVisible: 5},
		Inbox:   InboxConfig{MarkAllRate: 10},
		Store:   StoreConfig{Path: filepath.Join(dir, "inbox.db")},
		Log:     LogConfig{File: filepath.Join(dir, "inbox.log"), Level: "info"},
		Display: DisplayConfig{Theme: "default"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// then applies INBOX_* environment overrides. A missing file yields the
// defaults (still subject to overrides).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Log.File = expandHome(cfg.Log.File)
	cfg.Trace.File = expandHome(cfg.Trace.File)
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c *AppConfig) Validate() error {
	return validator.New().Struct(c)
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

	v.Set("api", cfg.API)
	v.Set("sync", cfg.Sync)
	v.Set("toast", cfg.Toast)
	v.Set("inbox", cfg.Inbox)
	v.Set("store", cfg.Store)
	v.Set("metrics", cfg.Metrics)
	v.Set("log", cfg.Log)
	v.Set("trace", cfg.Trace)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
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
