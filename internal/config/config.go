// Package config loads application configuration from an optional YAML file
// and the process environment.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrMissingSpotifyCredentials is returned when the Spotify client id, secret
// or redirect URI is not configured.
var ErrMissingSpotifyCredentials = errors.New("missing Spotify credentials: set SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_REDIRECT_URI")

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents the application configuration.
type Config struct {
	Env       string          `yaml:"env" default:"development" validate:"oneof=development production test"`
	Server    ServerConfig    `yaml:"server"`
	Spotify   SpotifyConfig   `yaml:"spotify"`
	Database  DatabaseConfig  `yaml:"database"`
	LastFM    LastFMConfig    `yaml:"lastfm"`
	Log       LogConfig       `yaml:"log"`
	Generator GeneratorConfig `yaml:"generator"`
}

// ServerConfig represents HTTP listener configuration.
type ServerConfig struct {
	Host string `yaml:"host" default:"127.0.0.1"`
	Port int    `yaml:"port" default:"3000" validate:"gte=1,lte=65535"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a reverse proxy that sets those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

// SpotifyConfig holds the OAuth application credentials.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RedirectURI  string `yaml:"redirect_uri" validate:"required,url"`
	Market       string `yaml:"market" validate:"omitempty,len=2"`
}

// DatabaseConfig enables PostgreSQL backed sessions and history when URL is set.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// LastFMConfig enables the Last.fm tag chart strategy when APIKey is set.
type LastFMConfig struct {
	APIKey       string `yaml:"api_key"`
	TracksPerTag int    `yaml:"tracks_per_tag" default:"30" validate:"gte=1,lte=100"`
	Concurrency  int    `yaml:"concurrency" default:"4" validate:"gte=1,lte=16"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `yaml:"output" default:"stdout"`
}

// GeneratorConfig tunes the playlist generator endpoint.
type GeneratorConfig struct {
	DefaultTrackCount int     `yaml:"default_track_count" default:"20" validate:"gte=5,lte=50"`
	RequestsPerSecond float64 `yaml:"requests_per_second" default:"0.2" validate:"gt=0"`
	Burst             int     `yaml:"burst" default:"3" validate:"gte=1"`
}

// Load reads configuration from path (skipped when empty or absent), applies
// environment overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errors.Wrap(err, "failed to parse config file")
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) overrideFromEnv() error {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REDIRECT_URI"); v != "" {
		c.Spotify.RedirectURI = v
	}
	if v := os.Getenv("SPOTIFY_MARKET"); v != "" {
		c.Spotify.Market = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Env = v
	} else if v := os.Getenv("NODE_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid PORT %q", v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid TRUST_PROXY %q", v)
		}
		c.Server.TrustProxy = trust
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("LASTFM_API_KEY"); v != "" {
		c.LastFM.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" || c.Spotify.RedirectURI == "" {
		return ErrMissingSpotifyCredentials
	}
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// HasDatabase reports whether a database URL is configured.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasLastFM reports whether a Last.fm API key is configured.
func (c *Config) HasLastFM() bool {
	return c.LastFM.APIKey != ""
}
