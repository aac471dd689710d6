package domain

// NodeType represents the kind of network node
type NodeType string

const (
	NodeTypeJunction  NodeType = "junction"
	NodeTypeTank      NodeType = "tank"
	NodeTypeReservoir NodeType = "reservoir"
)

// Valid reports whether t is one of the known node types
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeJunction, NodeTypeTank, NodeTypeReservoir:
		return true
	}
	return false
}

// Node represents a junction, tank or reservoir in the distribution network
type Node struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Type      NodeType `json:"type" yaml:"type"`
	X         float64  `json:"x" yaml:"x"`
	Y         float64  `json:"y" yaml:"y"`
	Pressure  *float64 `json:"pressure,omitempty" yaml:"pressure,omitempty"`
	Elevation float64  `json:"elevation,omitempty" yaml:"elevation,omitempty"`
}

// NewNode creates a node at the given map position
func NewNode(id, name string, nodeType NodeType, x, y float64) *Node {
	return &Node{
		ID:   id,
		Name: name,
		Type: nodeType,
		X:    x,
		Y:    y,
	}
}

// Position returns the node's map coordinate
func (n *Node) Position() Position {
	return Position{X: n.X, Y: n.Y}
}

// HasPressure reports whether the node carries a usable pressure reading.
// A zero reading is treated as absent, matching how the dashboard shows it.
func (n *Node) HasPressure() bool {
	return n.Pressure != nil && *n.Pressure != 0
}

// WithPressure sets the pressure reading and returns the node
func (n *Node) WithPressure(psi float64) *Node {
	n.Pressure = &psi
	return n
}
