// Package quadtree implements the recursive 2D point index used by the
// force layout. A tree covers an implicit square region; every cell splits
// into four equal quadrants addressed by (bottom<<1)|right.
package quadtree

import "math"

// coincident is the combined |dx|+|dy| below which two points are treated
// as the same location.
const coincident = 0.01

// Point is anything with a 2D position.
type Point interface {
	Position() (x, y float64)
}

// Cell is a quadtree node. Charge, PointCharge, CX and CY are scratch fields
// for Barnes-Hut aggregation; they are only meaningful right after an
// accumulation pass and are not maintained by Insert.
type Cell[P Point] struct {
	Leaf  bool
	Nodes [4]*Cell[P]

	// Point is the directly held point, if any. It can survive at an internal
	// cell when a coincident point was pushed below it.
	Point    P
	HasPoint bool

	Charge      float64
	PointCharge float64
	CX, CY      float64
}

// Children returns the number of non-nil child cells.
func (c *Cell[P]) Children() int {
	n := 0
	for _, child := range c.Nodes {
		if child != nil {
			n++
		}
	}
	return n
}

// Visitor is called for every cell in pre-order with the cell's bounds.
// Returning true skips the cell's children.
type Visitor[P Point] func(c *Cell[P], x1, y1, x2, y2 float64) bool

// Tree is a quadtree rooted at a square region.
type Tree[P Point] struct {
	root           *Cell[P]
	x1, y1, x2, y2 float64
	size           int
}

func newCell[P Point]() *Cell[P] {
	return &Cell[P]{Leaf: true}
}

// New builds a tree over points. The region is the tight bounding box of all
// finite points, squared by extending the shorter axis.
func New[P Point](points []P) *Tree[P] {
	x1, y1 := math.Inf(1), math.Inf(1)
	x2, y2 := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		x, y := p.Position()
		if !finite(x, y) {
			continue
		}
		if x < x1 {
			x1 = x
		}
		if y < y1 {
			y1 = y
		}
		if x > x2 {
			x2 = x
		}
		if y > y2 {
			y2 = y
		}
	}
	if x1 > x2 {
		// nothing finite to bound
		x1, y1, x2, y2 = 0, 0, 0, 0
	}

	dx, dy := x2-x1, y2-y1
	if dx > dy {
		y2 = y1 + dx
	} else {
		x2 = x1 + dy
	}
	if !finite(x2-x1, y2-y1) || !finite(x2, y2) {
		// the squared region overflows; cover every finite coordinate instead
		x1, y1 = -math.MaxFloat64, -math.MaxFloat64
		x2, y2 = math.MaxFloat64, math.MaxFloat64
	}
	return NewWithBounds(points, x1, y1, x2, y2)
}

// NewWithBounds builds a tree over points using the given region as-is.
func NewWithBounds[P Point](points []P, x1, y1, x2, y2 float64) *Tree[P] {
	t := &Tree[P]{root: newCell[P](), x1: x1, y1: y1, x2: x2, y2: y2}
	for _, p := range points {
		t.Insert(p)
	}
	return t
}

// Root returns the root cell.
func (t *Tree[P]) Root() *Cell[P] {
	return t.root
}

// Bounds returns the root region.
func (t *Tree[P]) Bounds() (x1, y1, x2, y2 float64) {
	return t.x1, t.y1, t.x2, t.y2
}

// Len returns the number of points stored in the tree.
func (t *Tree[P]) Len() int {
	return t.size
}

// Insert adds p to the tree. Points with non-finite coordinates are dropped
// and Insert reports false.
func (t *Tree[P]) Insert(p P) bool {
	x, y := p.Position()
	if !finite(x, y) {
		return false
	}
	insert(t.root, p, x, y, t.x1, t.y1, t.x2, t.y2)
	t.size++
	return true
}

func insert[P Point](c *Cell[P], p P, x, y, x1, y1, x2, y2 float64) {
	if !c.Leaf {
		insertChild(c, p, x, y, x1, y1, x2, y2)
		return
	}
	if !c.HasPoint {
		c.Point = p
		c.HasPoint = true
		return
	}

	vx, vy := c.Point.Position()
	if math.Abs(vx-x)+math.Abs(vy-y) < coincident || !separable(vx, vy, x, y, x1, y1, x2, y2) {
		// Keep the occupant here and push the newcomer one level down,
		// otherwise duplicates would split forever.
		insertChild(c, p, x, y, x1, y1, x2, y2)
		return
	}

	v := c.Point
	var zero P
	c.Point = zero
	c.HasPoint = false
	insertChild(c, v, vx, vy, x1, y1, x2, y2)
	insertChild(c, p, x, y, x1, y1, x2, y2)
}

// separable reports whether splitting the cell can ever send the two points
// to different quadrants: they must differ on an axis whose midpoint still
// lies strictly inside the cell.
func separable(vx, vy, x, y, x1, y1, x2, y2 float64) bool {
	return (vx != x && splits(x1, x2)) || (vy != y && splits(y1, y2))
}

func splits(lo, hi float64) bool {
	m := mid(lo, hi)
	return lo < m && m < hi
}

// mid halves before adding so cells spanning most of the float64 range
// do not overflow.
func mid(lo, hi float64) float64 {
	return lo*0.5 + hi*0.5
}

func insertChild[P Point](c *Cell[P], p P, x, y, x1, y1, x2, y2 float64) {
	sx := mid(x1, x2)
	sy := mid(y1, y2)
	right := x >= sx
	bottom := y >= sy

	i := 0
	if bottom {
		i |= 2
	}
	if right {
		i |= 1
	}

	c.Leaf = false
	child := c.Nodes[i]
	if child == nil {
		child = newCell[P]()
		c.Nodes[i] = child
	}

	if right {
		x1 = sx
	} else {
		x2 = sx
	}
	if bottom {
		y1 = sy
	} else {
		y2 = sy
	}
	insert(child, p, x, y, x1, y1, x2, y2)
}

// Visit walks the tree depth-first in pre-order. Children of a cell are
// skipped when fn returns true for it.
func (t *Tree[P]) Visit(fn Visitor[P]) {
	visit(fn, t.root, t.x1, t.y1, t.x2, t.y2)
}

func visit[P Point](fn Visitor[P], c *Cell[P], x1, y1, x2, y2 float64) {
	if fn(c, x1, y1, x2, y2) {
		return
	}
	sx := mid(x1, x2)
	sy := mid(y1, y2)
	if child := c.Nodes[0]; child != nil {
		visit(fn, child, x1, y1, sx, sy)
	}
	if child := c.Nodes[1]; child != nil {
		visit(fn, child, sx, y1, x2, sy)
	}
	if child := c.Nodes[2]; child != nil {
		visit(fn, child, x1, sy, sx, y2)
	}
	if child := c.Nodes[3]; child != nil {
		visit(fn, child, sx, sy, x2, y2)
	}
}

// Depth returns the number of levels below the root, 0 for a lone root.
func (t *Tree[P]) Depth() int {
	return depth(t.root)
}

func depth[P Point](c *Cell[P]) int {
	deepest := 0
	for _, child := range c.Nodes {
		if child == nil {
			continue
		}
		if d := depth(child) + 1; d > deepest {
			deepest = d
		}
	}
	return deepest
}

func finite(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && !math.IsNaN(y) && !math.IsInf(y, 0)
}
