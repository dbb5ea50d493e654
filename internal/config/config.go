// Package config provides configuration loading and validation for the
// pipeline service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hearstlab/storyshare/internal/stations"
)

// Defaults applied when neither the config file nor the environment provides
// a value.
const (
	DefaultPort            = 8080
	DefaultAgeThresholdMin = 10
	DefaultTopicWindowDays = 7
	DefaultMaxConcurrent   = 5
)

// EnpsConfig holds the newsroom system connection settings.
type EnpsConfig struct {
	BaseURL     string `json:"base_url" validate:"required,url"`
	DevKey      string `json:"dev_key" validate:"required"`
	StaffUserID string `json:"staff_user_id" validate:"required"`
	DomainUser  string `json:"domain_user" validate:"required"`
	Password    string `json:"password" validate:"required"`
	ClientType  string `json:"client_type" validate:"required"`
}

// IndexerConfig holds the video analysis service connection settings.
type IndexerConfig struct {
	BaseURL     string `json:"base_url" validate:"required,url"`
	AccessToken string `json:"access_token" validate:"required"`
	// CallbackURL is attached to every upload so the service notifies us on
	// state changes instead of us polling for completion.
	CallbackURL string `json:"callback_url" validate:"required,url"`
}

// FTPConfig holds the feed delivery endpoint settings.
type FTPConfig struct {
	Host     string `json:"host" validate:"required"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Config represents the service configuration loaded from a JSON file with
// environment variable fallbacks.
type Config struct {
	Port        int    `json:"port,omitempty"`
	DatabaseURL string `json:"database_url,omitempty" validate:"required"`
	APIKey      string `json:"api_key,omitempty" validate:"required"`

	// OriginStation is the station whose uploads this instance watches.
	OriginStation string `json:"origin_station,omitempty" validate:"required"`

	// AgeThresholdMinutes bounds how old an uploaded video may be and still
	// enter the pipeline (force-share bypasses this).
	AgeThresholdMinutes int `json:"age_threshold_minutes,omitempty" validate:"gte=0"`

	// TopicWindowDays bounds the trailing window of the station topic
	// snapshot fed to the interest resolver.
	TopicWindowDays int `json:"topic_window_days,omitempty" validate:"gte=0"`

	// MaxConcurrentResolves caps in-flight reasoning-service calls.
	MaxConcurrentResolves int `json:"max_concurrent_resolves,omitempty" validate:"gte=1"`

	// KeepSourceObjects leaves the uploaded source video in place after
	// analysis, for stations whose proxy storage is purged out of band.
	KeepSourceObjects bool `json:"keep_source_objects,omitempty"`

	Enps     EnpsConfig                  `json:"enps"`
	Indexer  IndexerConfig               `json:"indexer"`
	FTP      FTPConfig                   `json:"ftp"`
	Stations map[string]stations.Station `json:"stations" validate:"required,min=1"`
}

// Load reads configuration from a JSON file, then overlays environment
// variables and defaults. Returns an error if the file cannot be read or
// parsed, or if the result fails validation.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv fills secrets from the environment when the file leaves them out,
// so credentials can stay out of checked-in config.
func (c *Config) applyEnv() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Enps.Password == "" {
		c.Enps.Password = os.Getenv("ENPS_PASSWORD")
	}
	if c.Enps.DevKey == "" {
		c.Enps.DevKey = os.Getenv("ENPS_DEV_KEY")
	}
	if c.Indexer.AccessToken == "" {
		c.Indexer.AccessToken = os.Getenv("INDEXER_ACCESS_TOKEN")
	}
	if c.FTP.Password == "" {
		c.FTP.Password = os.Getenv("FEED_FTP_PASSWORD")
	}
}

// applyDefaults fills zero-valued tunables.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.AgeThresholdMinutes == 0 {
		c.AgeThresholdMinutes = DefaultAgeThresholdMin
	}
	if c.TopicWindowDays == 0 {
		c.TopicWindowDays = DefaultTopicWindowDays
	}
	if c.MaxConcurrentResolves == 0 {
		c.MaxConcurrentResolves = DefaultMaxConcurrent
	}
}

// Validate checks the configuration using struct tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, ok := c.Stations[c.OriginStation]; !ok {
		return fmt.Errorf("config error: origin station %q is not in the stations table", c.OriginStation)
	}
	return nil
}

// AgeThreshold returns the eligibility age bound as a duration.
func (c *Config) AgeThreshold() time.Duration {
	return time.Duration(c.AgeThresholdMinutes) * time.Minute
}

// TopicWindow returns the snapshot trailing window as a duration.
func (c *Config) TopicWindow() time.Duration {
	return time.Duration(c.TopicWindowDays) * 24 * time.Hour
}
