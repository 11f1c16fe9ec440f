package force

import (
	"math"
	"math/rand"

	"github.com/onnwee/forcegraph/internal/quadtree"
)

// accumulate computes charge and center of charge for c and every cell
// below it, children first. A cell with zero total charge ends with NaN
// CX,CY; repulsion prunes such cells without reading them.
func accumulate(c *quadtree.Cell[*Node], alpha float64, charges []float64, rng *rand.Rand) {
	var cx, cy float64
	c.Charge = 0
	c.PointCharge = 0

	if !c.Leaf {
		for _, child := range c.Nodes {
			if child == nil {
				continue
			}
			accumulate(child, alpha, charges, rng)
			if child.Charge == 0 {
				continue
			}
			c.Charge += child.Charge
			cx += child.Charge * child.CX
			cy += child.Charge * child.CY
		}
	}

	if c.HasPoint {
		p := c.Point
		if !c.Leaf {
			// the point shares its cell with a coincident one below it
			p.X += rng.Float64() - 0.5
			p.Y += rng.Float64() - 0.5
		}
		k := alpha * charges[p.Index]
		c.PointCharge = k
		c.Charge += k
		cx += k * p.X
		cy += k * p.Y
	}

	if c.Charge == 0 {
		c.CX, c.CY = math.NaN(), math.NaN()
		return
	}
	c.CX = cx / c.Charge
	c.CY = cy / c.Charge
}

// repulse returns a visitor adding the Barnes-Hut repulsion on n into its
// force accumulator.
func repulse(n *Node, theta float64) quadtree.Visitor[*Node] {
	return func(c *quadtree.Cell[*Node], x1, y1, x2, y2 float64) bool {
		if !c.HasPoint || c.Point != n {
			dx := c.CX - n.X
			dy := c.CY - n.Y
			dn := 1 / math.Sqrt(dx*dx+dy*dy)

			if (x2-x1)*dn < theta {
				k := c.Charge * dn * dn
				n.FX += dx * k
				n.FY += dy * k
				return true
			}

			if c.HasPoint && !math.IsInf(dn, 0) && !math.IsNaN(dn) {
				k := c.PointCharge * dn * dn
				n.FX += dx * k
				n.FY += dy * k
			}
		}
		return c.Charge == 0
	}
}
