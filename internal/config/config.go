package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Sources  SourcesConfig  `yaml:"sources"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	Notify   NotifyConfig   `yaml:"notify"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SourcesConfig holds per-scraper toggles and matcher tuning.
type SourcesConfig struct {
	Badslava       SourceConfig `yaml:"badslava"`
	Eastville      SourceConfig `yaml:"eastville"`
	Firemics       SourceConfig `yaml:"firemics"`
	ComedyListings SourceConfig `yaml:"comedy_listings"`
}

// SourceConfig for one scraper. The match thresholds differ per source
// on purpose; zero values fall back to the source's shipped tuning.
type SourceConfig struct {
	Enabled bool        `yaml:"enabled"`
	Match   MatchConfig `yaml:"match"`
}

// MatchConfig overrides the matcher thresholds for one source.
type MatchConfig struct {
	VenueTokens      int `yaml:"venue_tokens"`
	NameTokens       int `yaml:"name_tokens"`
	AddressPrefixLen int `yaml:"address_prefix_len"`
}

// IsZero reports whether no override was configured.
func (m MatchConfig) IsZero() bool {
	return m.VenueTokens == 0 && m.NameTokens == 0 && m.AddressPrefixLen == 0
}

// GeocodeConfig configures the Nominatim client.
type GeocodeConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

// NotifyConfig configures optional post-scrape notifications.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook notifications.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook notifications.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./mictrack.db"},
		Sources: SourcesConfig{
			Badslava:       SourceConfig{Enabled: true},
			Eastville:      SourceConfig{Enabled: true},
			Firemics:       SourceConfig{Enabled: true},
			ComedyListings: SourceConfig{Enabled: true},
		},
		Geocode: GeocodeConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "mictrack/1.0",
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MICTRACK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Notify.Slack.WebhookURL = v
		cfg.Notify.Slack.Enabled = true
	}
	if v := os.Getenv("MICTRACK_WEBHOOK_URL"); v != "" {
		cfg.Notify.Webhook.URL = v
		cfg.Notify.Webhook.Enabled = true
	}
}
