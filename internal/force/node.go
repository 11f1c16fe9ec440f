package force

import "math"

// Pin bits for Node.Fixed. Any set bit pins the node to PX,PY.
const (
	PinUser = 1 << iota
	PinDrag
)

// Node is a simulated body. Callers own their nodes; a running simulation
// mutates them in place, so readers must only look at them between ticks.
type Node struct {
	ID string

	X, Y float64
	// PX, PY hold the previous position. For a pinned node they are the pin
	// target.
	PX, PY float64
	// FX, FY collect the repulsion impulse of the current tick.
	FX, FY float64

	Fixed  int
	Weight int
	Index  int

	// Charge overrides the simulation charge when a charge function reads it.
	Charge *float64
}

// NewNode returns a node whose coordinates are unset. Start places it.
func NewNode(id string) *Node {
	nan := math.NaN()
	return &Node{ID: id, X: nan, Y: nan, PX: nan, PY: nan}
}

// Position implements quadtree.Point.
func (n *Node) Position() (float64, float64) {
	return n.X, n.Y
}

// Pinned reports whether any pin bit is set.
func (n *Node) Pinned() bool {
	return n.Fixed != 0
}

// Link is a spring between two nodes. When Source or Target is nil the
// matching index is resolved against the node slice at Start.
type Link struct {
	Source, Target           *Node
	SourceIndex, TargetIndex int
}
