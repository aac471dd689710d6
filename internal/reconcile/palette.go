package reconcile

import "hydrotwin/internal/domain"

// Palette holds the display colors used by the reconciler
type Palette struct {
	Normal   string `yaml:"normal" json:"normal"`
	Closed   string `yaml:"closed" json:"closed"`
	Isolated string `yaml:"isolated" json:"isolated"`

	Low      string `yaml:"low" json:"low"`
	Medium   string `yaml:"medium" json:"medium"`
	High     string `yaml:"high" json:"high"`
	Critical string `yaml:"critical" json:"critical"`

	Junction  string `yaml:"junction" json:"junction"`
	Tank      string `yaml:"tank" json:"tank"`
	Reservoir string `yaml:"reservoir" json:"reservoir"`
}

// DefaultPalette returns the dashboard's standard colors
func DefaultPalette() Palette {
	return Palette{
		Normal:   "#0ea5e9",
		Closed:   "#6b7280",
		Isolated: "#ef4444",

		Low:      "#84cc16",
		Medium:   "#eab308",
		High:     "#f97316",
		Critical: "#dc2626",

		Junction:  "#f59e0b",
		Tank:      "#22c55e",
		Reservoir: "#0ea5e9",
	}
}

// Merge fills empty fields of p from def
func (p Palette) Merge(def Palette) Palette {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Palette{
		Normal:    pick(p.Normal, def.Normal),
		Closed:    pick(p.Closed, def.Closed),
		Isolated:  pick(p.Isolated, def.Isolated),
		Low:       pick(p.Low, def.Low),
		Medium:    pick(p.Medium, def.Medium),
		High:      pick(p.High, def.High),
		Critical:  pick(p.Critical, def.Critical),
		Junction:  pick(p.Junction, def.Junction),
		Tank:      pick(p.Tank, def.Tank),
		Reservoir: pick(p.Reservoir, def.Reservoir),
	}
}

// SeverityColor returns the color for an incident severity
func (p Palette) SeverityColor(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return p.Critical
	case domain.SeverityHigh:
		return p.High
	case domain.SeverityMedium:
		return p.Medium
	case domain.SeverityLow:
		return p.Low
	}
	return p.Normal
}

// NodeColor returns the fill color for a node type. Unknown types draw as junctions.
func (p Palette) NodeColor(t domain.NodeType) string {
	switch t {
	case domain.NodeTypeTank:
		return p.Tank
	case domain.NodeTypeReservoir:
		return p.Reservoir
	}
	return p.Junction
}
