package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a sign-in run.
type Config struct {
	UserAgent   string
	MaxWorkers  int
	GetMessages bool
	GetDetails  bool
	AipOCR      AipOCRConfig
	// Sites maps a site ID to either a single account config or a list of them.
	Sites map[string]any

	Schedule     string
	Timezone     string
	Log          LogConfig
	Store        StoreConfig
	Notification NotificationConfig
	RateLimit    RateLimitConfig
	HTTP         HTTPConfig
}

// AipOCRConfig holds Baidu AIP OCR credentials. Handlers that solve captchas read it.
type AipOCRConfig struct {
	AppID     string `yaml:"app_id" toml:"app_id"`
	APIKey    string `yaml:"api_key" toml:"api_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
}

// Enabled reports whether enough credentials are present to call the OCR API.
func (c AipOCRConfig) Enabled() bool {
	return c.APIKey != "" && c.SecretKey != ""
}

// LogConfig controls the logging service.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"` // trace, debug, info, warn, error
	File  string `yaml:"file" toml:"file"`   // optional JSON log file
}

// StoreConfig controls where report history is kept.
type StoreConfig struct {
	Path      string        // sqlite database path
	Retention time.Duration // reports older than this are removed after each run
}

// NotificationConfig controls which notifier receives the final report.
type NotificationConfig struct {
	Type       string         `yaml:"type" toml:"type"`               // "log", "slack" or "telegram"
	WebhookURL string         `yaml:"webhook_url" toml:"webhook_url"` // required if type is "slack"
	Telegram   TelegramConfig `yaml:"telegram" toml:"telegram"`
}

// TelegramConfig holds the bot credentials for the telegram notifier.
type TelegramConfig struct {
	Token  string `yaml:"token" toml:"token"`
	ChatID int64  `yaml:"chat_id" toml:"chat_id"`
}

// RateLimitConfig limits handler HTTP traffic per host.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
}

// HTTPConfig controls the HTTP client handed to site handlers.
type HTTPConfig struct {
	Timeout time.Duration
	Retries int
}

const (
	defaultSchedule  = "0 9 * * *"
	defaultStorePath = "autosignin.db"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// rawConfig is used for YAML/TOML unmarshaling (snake_case fields, optional
// booleans and durations as strings).
type rawConfig struct {
	UserAgent    string             `yaml:"user-agent" toml:"user-agent"`
	MaxWorkers   *int               `yaml:"max_workers" toml:"max_workers"`
	GetMessages  *bool              `yaml:"get_messages" toml:"get_messages"`
	GetDetails   *bool              `yaml:"get_details" toml:"get_details"`
	AipOCR       AipOCRConfig       `yaml:"aipocr" toml:"aipocr"`
	Sites        map[string]any     `yaml:"sites" toml:"sites"`
	Schedule     string             `yaml:"schedule" toml:"schedule"`
	Timezone     string             `yaml:"timezone" toml:"timezone"`
	Log          LogConfig          `yaml:"log" toml:"log"`
	Store        rawStoreConfig     `yaml:"store" toml:"store"`
	Notification NotificationConfig `yaml:"notification" toml:"notification"`
	RateLimit    rawRateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	HTTP         rawHTTPConfig      `yaml:"http" toml:"http"`
}

type rawStoreConfig struct {
	Path      string `yaml:"path" toml:"path"`
	Retention string `yaml:"retention" toml:"retention"`
}

type rawRateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" toml:"per_second"`
	Burst     int     `yaml:"burst" toml:"burst"`
}

type rawHTTPConfig struct {
	Timeout string `yaml:"timeout" toml:"timeout"`
	Retries *int   `yaml:"retries" toml:"retries"`
}

// Load reads and parses the config file at path, validates it, and returns Config.
// Files ending in .toml are parsed as TOML, everything else as YAML. A .env file
// next to the config is loaded first so ${VAR} references can resolve secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	return Parse(data, filepath.Ext(path))
}

// Parse decodes raw config bytes. ext selects the format (".toml" or YAML otherwise).
func Parse(data []byte, ext string) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if strings.EqualFold(ext, ".toml") {
		if _, err := toml.Decode(expanded, &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg := &Config{
		UserAgent:    raw.UserAgent,
		MaxWorkers:   1,
		GetMessages:  true,
		GetDetails:   true,
		AipOCR:       raw.AipOCR,
		Sites:        raw.Sites,
		Schedule:     raw.Schedule,
		Timezone:     raw.Timezone,
		Log:          raw.Log,
		Notification: raw.Notification,
		RateLimit: RateLimitConfig{
			PerSecond: raw.RateLimit.PerSecond,
			Burst:     raw.RateLimit.Burst,
		},
		Store: StoreConfig{
			Path:      raw.Store.Path,
			Retention: 90 * 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
			Retries: 2,
		},
	}

	if raw.MaxWorkers != nil {
		cfg.MaxWorkers = *raw.MaxWorkers
	}
	if raw.GetMessages != nil {
		cfg.GetMessages = *raw.GetMessages
	}
	if raw.GetDetails != nil {
		cfg.GetDetails = *raw.GetDetails
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Sites == nil {
		cfg.Sites = map[string]any{}
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}
	if cfg.RateLimit.PerSecond > 0 && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}

	var err error
	if raw.Store.Retention != "" {
		cfg.Store.Retention, err = time.ParseDuration(raw.Store.Retention)
		if err != nil {
			return nil, fmt.Errorf("parse store.retention %q: %w", raw.Store.Retention, err)
		}
	}
	if raw.HTTP.Timeout != "" {
		cfg.HTTP.Timeout, err = time.ParseDuration(raw.HTTP.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse http.timeout %q: %w", raw.HTTP.Timeout, err)
		}
	}
	if raw.HTTP.Retries != nil {
		cfg.HTTP.Retries = *raw.HTTP.Retries
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1, got %d", cfg.MaxWorkers)
	}
	if cfg.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %v", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.Retries < 0 {
		return fmt.Errorf("http.retries must not be negative, got %d", cfg.HTTP.Retries)
	}
	if cfg.RateLimit.PerSecond < 0 {
		return fmt.Errorf("rate_limit.per_second must not be negative, got %v", cfg.RateLimit.PerSecond)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/")
		}
	case "telegram":
		if cfg.Notification.Telegram.Token == "" {
			return fmt.Errorf("notification.telegram.token is required when type is \"telegram\"")
		}
		if cfg.Notification.Telegram.ChatID == 0 {
			return fmt.Errorf("notification.telegram.chat_id is required when type is \"telegram\"")
		}
	default:
		return fmt.Errorf("notification.type must be one of log, slack, telegram, got %q", cfg.Notification.Type)
	}

	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
		}
	}

	return nil
}

// Location returns the configured timezone, or time.Local when unset.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
