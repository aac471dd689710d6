package render

import (
	"fmt"
	"strings"

	"hydrotwin/internal/domain"
)

// Default surface settings
const (
	DefaultZoom        = 16
	DefaultTileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a>`
	DashPattern        = "10, 10"
)

// DefaultCenter is the initial map center
var DefaultCenter = domain.Position{X: 37.3365, Y: -121.8815}

// Style holds the geometry used for markers and lines
type Style struct {
	LineWeight       float64 `yaml:"line_weight" json:"line_weight"`
	LineOpacity      float64 `yaml:"line_opacity" json:"line_opacity"`
	NodeRadius       float64 `yaml:"node_radius" json:"node_radius"`
	NodeFillOpacity  float64 `yaml:"node_fill_opacity" json:"node_fill_opacity"`
	NodeStrokeColor  string  `yaml:"node_stroke_color" json:"node_stroke_color"`
	NodeStrokeWeight float64 `yaml:"node_stroke_weight" json:"node_stroke_weight"`
}

// DefaultStyle returns the dashboard's standard geometry
func DefaultStyle() Style {
	return Style{
		LineWeight:       4,
		LineOpacity:      0.8,
		NodeRadius:       20,
		NodeFillOpacity:  0.8,
		NodeStrokeColor:  "#fff",
		NodeStrokeWeight: 2,
	}
}

// withDefaults fills zero fields from DefaultStyle
func (s Style) withDefaults() Style {
	def := DefaultStyle()
	if s.LineWeight == 0 {
		s.LineWeight = def.LineWeight
	}
	if s.LineOpacity == 0 {
		s.LineOpacity = def.LineOpacity
	}
	if s.NodeRadius == 0 {
		s.NodeRadius = def.NodeRadius
	}
	if s.NodeFillOpacity == 0 {
		s.NodeFillOpacity = def.NodeFillOpacity
	}
	if s.NodeStrokeColor == "" {
		s.NodeStrokeColor = def.NodeStrokeColor
	}
	if s.NodeStrokeWeight == 0 {
		s.NodeStrokeWeight = def.NodeStrokeWeight
	}
	return s
}

// MarkerFor builds the marker for a node
func (s Style) MarkerFor(node domain.NodeStyle) Marker {
	return Marker{
		EntityID:    node.ID,
		Center:      node.Position,
		Radius:      s.NodeRadius,
		FillColor:   node.Color,
		FillOpacity: s.NodeFillOpacity,
		StrokeColor: s.NodeStrokeColor,
		StrokeWidth: s.NodeStrokeWeight,
		Popup:       NodePopup(node),
	}
}

// PolylineFor builds the line for an edge
func (s Style) PolylineFor(edge domain.EdgeView) Polyline {
	p := Polyline{
		EntityID: edge.ID,
		Points:   []domain.Position{edge.From, edge.To},
		Color:    edge.Color,
		Weight:   s.LineWeight,
		Opacity:  s.LineOpacity,
		Popup:    EdgePopup(edge),
	}
	if edge.Dashed {
		p.DashArray = DashPattern
	}
	return p
}

// NodePopup shows the node name, its type, and the pressure when known
func NodePopup(node domain.NodeStyle) Popup {
	p := Popup{Title: node.Name, Badge: string(node.Type)}
	if node.Pressure != nil && *node.Pressure != 0 {
		p.Lines = []string{domain.PressureLabel(*node.Pressure)}
	}
	return p
}

// EdgePopup shows the pipe name, its displayed status and whichever
// physical attributes are known
func EdgePopup(edge domain.EdgeView) Popup {
	p := Popup{Title: edge.Name, Badge: string(edge.DisplayStatus())}
	if edge.DiameterMM > 0 {
		p.Lines = append(p.Lines, fmt.Sprintf("Diameter: %.0f mm", edge.DiameterMM))
	}
	if edge.LengthM > 0 {
		p.Lines = append(p.Lines, fmt.Sprintf("Length: %.1f m", edge.LengthM))
	}
	if edge.FlowLPS != nil {
		p.Lines = append(p.Lines, fmt.Sprintf("Flow: %.1f L/s", *edge.FlowLPS))
	}
	return p
}

// Options configures a Manager
type Options struct {
	Center domain.Position
	Zoom   int
	Tiles  TileLayer
	Style  Style
}

func (o Options) withDefaults() Options {
	if o.Center == (domain.Position{}) {
		o.Center = DefaultCenter
	}
	if o.Zoom == 0 {
		o.Zoom = DefaultZoom
	}
	if strings.TrimSpace(o.Tiles.URL) == "" {
		o.Tiles = TileLayer{URL: DefaultTileURL, Attribution: DefaultAttribution}
	}
	o.Style = o.Style.withDefaults()
	return o
}
