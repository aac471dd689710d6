// Package render manages the drawing surface for the network map.
//
// The Manager owns at most one live map per mount. It initializes the map
// once the drawing host is ready, rebuilds the marker and line layers from
// each reconciled graph, and releases everything it created on unmount.
// The host itself is opaque: anything that can create a map and accept
// layers satisfies Host.
package render

import (
	"errors"

	"hydrotwin/internal/domain"
)

// ErrHostNotReady is returned by a Host that cannot create maps yet
var ErrHostNotReady = errors.New("drawing host not ready")

// LayerID identifies a layer on a map
type LayerID string

// Popup is the content bound to a layer and shown on click
type Popup struct {
	Title string   `json:"title"`
	Badge string   `json:"badge,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

// Marker is a filled circle drawn at a node's position
type Marker struct {
	EntityID    string          `json:"entity_id"`
	Center      domain.Position `json:"center"`
	Radius      float64         `json:"radius"`
	FillColor   string          `json:"fill_color"`
	FillOpacity float64         `json:"fill_opacity"`
	StrokeColor string          `json:"stroke_color"`
	StrokeWidth float64         `json:"stroke_width"`
	Popup       Popup           `json:"popup"`
}

// Polyline is a straight line drawn between two node positions
type Polyline struct {
	EntityID  string            `json:"entity_id"`
	Points    []domain.Position `json:"points"`
	Color     string            `json:"color"`
	Weight    float64           `json:"weight"`
	Opacity   float64           `json:"opacity"`
	DashArray string            `json:"dash_array,omitempty"`
	Popup     Popup             `json:"popup"`
}

// TileLayer is the base map layer
type TileLayer struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

// MapOptions configures a new map
type MapOptions struct {
	Center domain.Position `json:"center"`
	Zoom   int             `json:"zoom"`
	Tiles  TileLayer       `json:"tiles"`
}

// Host is the drawing capability the manager renders into
type Host interface {
	// Ready reports whether the host can create a map now
	Ready() bool
	// NewMap creates a map with its base tile layer
	NewMap(opts MapOptions) (Map, error)
}

// Map is one live map instance on a host
type Map interface {
	AddMarker(m Marker) (LayerID, error)
	AddPolyline(p Polyline) (LayerID, error)
	RemoveLayer(id LayerID) error
	// SetView moves the map to center at the given zoom
	SetView(center domain.Position, zoom int) error
	// Zoom returns the map's current zoom level
	Zoom() int
	// Remove destroys the map and every layer on it
	Remove() error
}
