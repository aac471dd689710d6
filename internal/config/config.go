// Package config provides configuration management for hydrotwin.
//
// Config file locations (priority order):
//  1. $HYDROTWIN_CONFIG
//  2. ./hydrotwin.yaml
//  3. ~/.config/hydrotwin/config.yaml
//  4. /etc/hydrotwin/config.yaml
//
// Command-line flags override values from the file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/render"
)

// Defaults
const (
	DefaultAddr          = ":3000"
	DefaultDatabasePath  = "./hydrotwin.db"
	DefaultPollInterval  = 30 * time.Second
	DefaultSourceTimeout = 10 * time.Second
	DefaultNotifyChannel = "edge_changes"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes, defaults and validates YAML config data
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceSQLite
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = Duration(DefaultSourceTimeout)
	}
	if c.Changes.Kind == "" {
		c.Changes.Kind = ChangesBus
	}
	if c.Changes.NotifyChannel == "" {
		c.Changes.NotifyChannel = DefaultNotifyChannel
	}
	if c.Topology.PollInterval == 0 {
		c.Topology.PollInterval = Duration(DefaultPollInterval)
	}
	if c.Map.Center == (LatLng{}) {
		c.Map.Center = LatLng{Lat: render.DefaultCenter.X, Lng: render.DefaultCenter.Y}
	}
	if c.Map.Zoom == 0 {
		c.Map.Zoom = render.DefaultZoom
	}
	if c.Map.TileURL == "" {
		c.Map.TileURL = render.DefaultTileURL
		c.Map.Attribution = render.DefaultAttribution
	}
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Overrides.MaxAge < 0 {
		return fmt.Errorf("invalid config: overrides.max_age must not be negative")
	}
	return nil
}

// Center returns the configured map center as a position
func (c *Config) Center() domain.Position {
	return domain.NewPosition(c.Map.Center.Lat, c.Map.Center.Lng)
}

// RenderOptions returns the map options for the render manager
func (c *Config) RenderOptions() render.Options {
	return render.Options{
		Center: c.Center(),
		Zoom:   c.Map.Zoom,
		Tiles:  render.TileLayer{URL: c.Map.TileURL, Attribution: c.Map.Attribution},
		Style:  c.Style,
	}
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	return fmt.Sprintf("source=%s changes=%s poll=%s override_max_age=%s center=(%.4f, %.4f) zoom=%d",
		c.Source.Kind, c.Changes.Kind, c.Topology.PollInterval.Duration(),
		c.Overrides.MaxAge.Duration(), c.Map.Center.Lat, c.Map.Center.Lng, c.Map.Zoom)
}
