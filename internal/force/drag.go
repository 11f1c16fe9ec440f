package force

// Drag pins a node to a pointer while it is dragged and keeps the
// simulation warm so the rest of the graph follows.
type Drag struct {
	sim  *Simulation
	node *Node
}

// NewDrag returns a drag controller for sim.
func NewDrag(sim *Simulation) *Drag {
	return &Drag{sim: sim}
}

// Start begins dragging n. A drag already in progress is ended first.
func (d *Drag) Start(n *Node) {
	if d.node != nil && d.node != n {
		d.End()
	}
	n.Fixed |= PinDrag
	d.node = n
}

// Move pins the dragged node at (x, y) and reheats the simulation. It is a
// no-op when nothing is being dragged.
func (d *Drag) Move(x, y float64) {
	if d.node == nil {
		return
	}
	d.node.PX, d.node.PY = x, y
	d.sim.Resume()
}

// End releases the dragged node. A user pin set separately is kept.
func (d *Drag) End() {
	if d.node == nil {
		return
	}
	d.node.Fixed &^= PinDrag
	d.node = nil
}

// Node returns the node being dragged, or nil.
func (d *Drag) Node() *Node {
	return d.node
}
