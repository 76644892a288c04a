// Package config loads the server configuration. Values are layered: built-in
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the variable that points at an explicit YAML file.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are probed in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config is the complete server configuration.
type Config struct {
	Spotify   SpotifyConfig   `koanf:"spotify"`
	LastFM    LastFMConfig    `koanf:"lastfm"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	Market       string `koanf:"market"`
}

type LastFMConfig struct {
	APIKey string `koanf:"api_key"`
	// RateLimit is the number of requests per second sent to Last.fm.
	RateLimit float64 `koanf:"rate_limit"`
}

type ServerConfig struct {
	ListenAddr string `koanf:"listen_addr"`
	// SigningKey signs the session cookie.
	SigningKey string `koanf:"signing_key"`
	// RateLimitReqs is the number of requests one client may send per minute.
	RateLimitReqs int `koanf:"rate_limit_reqs"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// UpstreamConfig bounds every provider call.
type UpstreamConfig struct {
	CallTimeout   time.Duration `koanf:"call_timeout"`
	RequestBudget time.Duration `koanf:"request_budget"`
	MaxRetries    int           `koanf:"max_retries"`
}

type RecommendConfig struct {
	GenreKeywords []string `koanf:"genre_keywords"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{Market: "US"},
		LastFM:  LastFMConfig{RateLimit: 5},
		Server: ServerConfig{
			ListenAddr:    ":4000",
			RateLimitReqs: 60,
		},
		Database: DatabaseConfig{Path: "smartmusic.db"},
		Upstream: UpstreamConfig{
			CallTimeout:   4 * time.Second,
			RequestBudget: 10 * time.Second,
			MaxRetries:    2,
		},
		Recommend: RecommendConfig{GenreKeywords: []string{"trap", "hip hop", "rap"}},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration and validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{"recommend.genre_keywords"}

// processSliceFields turns comma separated environment values into lists.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"spotify_client_id":     "spotify.client_id",
	"spotify_client_secret": "spotify.client_secret",
	"market":                "spotify.market",

	"lastfm_api_key":    "lastfm.api_key",
	"lastfm_rate_limit": "lastfm.rate_limit",

	"listen_addr":         "server.listen_addr",
	"signing_key":         "server.signing_key",
	"rate_limit_requests": "server.rate_limit_reqs",

	"database_path": "database.path",

	"call_timeout":   "upstream.call_timeout",
	"request_budget": "upstream.request_budget",
	"max_retries":    "upstream.max_retries",

	"genre_keywords": "recommend.genre_keywords",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

// envTransformFunc maps a known environment variable to its config path.
// Unknown variables map to "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Validate reports missing credentials and out-of-range values.
func (c *Config) Validate() error {
	var errs []error
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		errs = append(errs, errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required"))
	}
	if c.LastFM.APIKey == "" {
		errs = append(errs, errors.New("LASTFM_API_KEY is required"))
	}
	if c.Server.SigningKey == "" {
		errs = append(errs, errors.New("SIGNING_KEY is required"))
	}
	if c.Upstream.CallTimeout <= 0 || c.Upstream.RequestBudget <= 0 {
		errs = append(errs, errors.New("CALL_TIMEOUT and REQUEST_BUDGET must be positive"))
	}
	if c.Upstream.MaxRetries < 0 {
		errs = append(errs, errors.New("MAX_RETRIES must not be negative"))
	}
	if c.LastFM.RateLimit <= 0 {
		errs = append(errs, errors.New("LASTFM_RATE_LIMIT must be positive"))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
