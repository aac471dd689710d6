package config

import (
	"time"

	"hydrotwin/internal/logging"
	"hydrotwin/internal/reconcile"
	"hydrotwin/internal/render"
)

// Config is the root configuration structure
type Config struct {
	Version   int               `yaml:"version"`
	Server    ServerConfig      `yaml:"server"`
	Log       logging.Config    `yaml:"log"`
	Database  DatabaseConfig    `yaml:"database"`
	Source    SourceConfig      `yaml:"source"`
	Changes   ChangesConfig     `yaml:"changes"`
	Topology  TopologyConfig    `yaml:"topology"`
	Overrides OverridesConfig   `yaml:"overrides"`
	Map       MapConfig         `yaml:"map"`
	Palette   reconcile.Palette `yaml:"palette,omitempty"`
	Style     render.Style      `yaml:"style,omitempty"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds local store settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
	Seed string `yaml:"seed,omitempty"` // YAML network imported on startup
}

// Source kinds
const (
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
)

// SourceConfig selects where snapshots are read from
type SourceConfig struct {
	Kind        string   `yaml:"kind" validate:"oneof=sqlite postgres http"`
	PostgresDSN string   `yaml:"postgres_dsn,omitempty" validate:"required_if=Kind postgres"`
	HTTPURL     string   `yaml:"http_url,omitempty" validate:"required_if=Kind http,omitempty,url"`
	Timeout     Duration `yaml:"timeout,omitempty"`
}

// Change channel kinds
const (
	ChangesBus       = "bus"
	ChangesPostgres  = "postgres"
	ChangesWebSocket = "websocket"
)

// ChangesConfig selects the push channel for edge changes
type ChangesConfig struct {
	Kind         string `yaml:"kind" validate:"oneof=bus postgres websocket"`
	WebSocketURL string `yaml:"websocket_url,omitempty" validate:"required_if=Kind websocket"`
	// NotifyChannel is the Postgres LISTEN channel
	NotifyChannel string `yaml:"notify_channel,omitempty"`
}

// TopologyConfig holds snapshot polling settings
type TopologyConfig struct {
	PollInterval Duration `yaml:"poll_interval"`
}

// OverridesConfig holds override ledger settings
type OverridesConfig struct {
	// MaxAge drops unconfirmed overrides after this long; zero keeps them
	// until a snapshot confirms them
	MaxAge Duration `yaml:"max_age,omitempty"`
}

// MapConfig holds the initial map view and base tiles
type MapConfig struct {
	Center      LatLng `yaml:"center"`
	Zoom        int    `yaml:"zoom" validate:"gte=1,lte=22"`
	TileURL     string `yaml:"tile_url,omitempty"`
	Attribution string `yaml:"attribution,omitempty"`
}

// LatLng is a map coordinate
type LatLng struct {
	Lat float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `yaml:"lng" validate:"gte=-180,lte=180"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
