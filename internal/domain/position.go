package domain

// Position is a planar map coordinate. X and Y are interpreted by the drawing
// host as latitude and longitude respectively.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// NewPosition creates a new position
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// LatLng returns the position as a [lat, lng] pair for the drawing host
func (p Position) LatLng() [2]float64 {
	return [2]float64{p.X, p.Y}
}
