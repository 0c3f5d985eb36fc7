package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig  `toml:"logging"`
	Storage     StorageConfig  `toml:"storage"`
	Fetch       FetchConfig    `toml:"fetch"`
	Strapi      StrapiConfig   `toml:"strapi" validate:"required"`
	Runs        RunsConfig     `toml:"runs"`
	Schedule    string         `toml:"schedule"` // Cron expression for daemon mode; empty = run once and exit
	Sources     []SourceConfig `toml:"sources" validate:"min=1,dive"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type FilesystemConfig struct {
	Images string `toml:"images"` // Directory for downloaded cover images
}

// FetchConfig contains settings for the page/image fetch substrate
type FetchConfig struct {
	UserAgent      string  `toml:"user_agent"`
	AcceptLanguage string  `toml:"accept_language"`
	PageTimeout    string  `toml:"page_timeout"`   // e.g. "60s" - schedule page fetch timeout
	DetailTimeout  string  `toml:"detail_timeout"` // e.g. "10s" - movie detail page timeout
	ImageTimeout   string  `toml:"image_timeout"`  // e.g. "15s" - cover image download timeout
	RateLimit      float64 `toml:"rate_limit"`     // Requests per second toward source sites
	MaxBodySize    int64   `toml:"max_body_size"`  // Maximum response body size in bytes
}

// StrapiConfig contains the external content store connection settings
type StrapiConfig struct {
	BaseURL        string  `toml:"base_url" validate:"required,url"`
	Token          string  `toml:"token"`
	Collection     string  `toml:"collection"`      // Collection path segment, e.g. "parties"
	ContentUID     string  `toml:"content_uid"`     // Upload ref, e.g. "api::party.party"
	Locale         string  `toml:"locale"`          // Optional i18n locale applied to all calls
	RequestTimeout string  `toml:"request_timeout"` // e.g. "30s" - find/create/update timeout
	UploadTimeout  string  `toml:"upload_timeout"`  // e.g. "60s" - multipart upload timeout
	RateLimit      float64 `toml:"rate_limit"`      // Requests per second toward the store
}

// RunsConfig controls run-history retention in the local database
type RunsConfig struct {
	RetentionDays int `toml:"retention_days"`
}

// SourceConfig describes one cinema source site and its fixed venue metadata
type SourceConfig struct {
	Name              string `toml:"name" validate:"required"`
	Strategy          string `toml:"strategy" validate:"required"` // Extraction strategy: "almaz" or "kinoteatr"
	URL               string `toml:"url" validate:"required,url"`
	DateParameterized bool   `toml:"date_parameterized"` // One page per day via ?date=YYYY-MM-DD
	DayWindow         int    `toml:"day_window" validate:"min=1"`

	VenueID             int    `toml:"venue_id" validate:"required"`
	VenueName           string `toml:"venue_name"`
	UTCOffsetMinutes    int    `toml:"utc_offset_minutes"`    // Fixed venue offset, no DST arithmetic
	DisplayShiftMinutes int    `toml:"display_shift_minutes"` // Shift applied to showtimes text only

	Discount     string `toml:"discount"`
	DiscountRule string `toml:"discount_rule"` // Markdown, injected verbatim into the write payload
	Categories   []int  `toml:"categories"`
	Cities       []int  `toml:"cities"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in marquee.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
			Filesystem: FilesystemConfig{
				Images: "./data/images",
			},
		},
		Fetch: FetchConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8",
			PageTimeout:    "60s",
			DetailTimeout:  "10s",
			ImageTimeout:   "15s",
			RateLimit:      2,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
		},
		Strapi: StrapiConfig{
			BaseURL:        "http://127.0.0.1:1337",
			Collection:     "parties",
			ContentUID:     "api::party.party",
			RequestTimeout: "30s",
			UploadTimeout:  "60s",
			RateLimit:      5,
		},
		Runs: RunsConfig{
			RetentionDays: 30,
		},
		Schedule: "",
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env.
// Later files override earlier files.
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

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MARQUEE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if url := os.Getenv("STRAPI_URL"); url != "" {
		config.Strapi.BaseURL = url
	}
	if token := os.Getenv("STRAPI_TOKEN"); token != "" {
		config.Strapi.Token = token
	}
	if uid := os.Getenv("STRAPI_CONTENT_UID"); uid != "" {
		config.Strapi.ContentUID = uid
	}
	if locale := os.Getenv("STRAPI_LOCALE"); locale != "" {
		config.Strapi.Locale = locale
	}
	if dir := os.Getenv("MARQUEE_IMAGES_DIR"); dir != "" {
		config.Storage.Filesystem.Images = dir
	}
	if level := os.Getenv("MARQUEE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if days := os.Getenv("MARQUEE_RETENTION_DAYS"); days != "" {
		if d, err := strconv.Atoi(days); err == nil {
			config.Runs.RetentionDays = d
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, schedule string, imagesDir string) {
	if schedule != "" {
		config.Schedule = schedule
	}
	if imagesDir != "" {
		config.Storage.Filesystem.Images = imagesDir
	}
}

// Validate checks the loaded configuration for structural errors
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.Strategy != "almaz" && s.Strategy != "kinoteatr" {
			return fmt.Errorf("invalid configuration: source %q has unknown strategy %q", s.Name, s.Strategy)
		}
	}
	return nil
}

// parseDuration parses a duration string, falling back to a default on error
func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// PageTimeoutDuration returns the parsed schedule page timeout
func (c *FetchConfig) PageTimeoutDuration() time.Duration {
	return parseDuration(c.PageTimeout, 60*time.Second)
}

// DetailTimeoutDuration returns the parsed detail page timeout
func (c *FetchConfig) DetailTimeoutDuration() time.Duration {
	return parseDuration(c.DetailTimeout, 10*time.Second)
}

// ImageTimeoutDuration returns the parsed image download timeout
func (c *FetchConfig) ImageTimeoutDuration() time.Duration {
	return parseDuration(c.ImageTimeout, 15*time.Second)
}

// RequestTimeoutDuration returns the parsed store request timeout
func (c *StrapiConfig) RequestTimeoutDuration() time.Duration {
	return parseDuration(c.RequestTimeout, 30*time.Second)
}

// UploadTimeoutDuration returns the parsed upload timeout
func (c *StrapiConfig) UploadTimeoutDuration() time.Duration {
	return parseDuration(c.UploadTimeout, 60*time.Second)
}
