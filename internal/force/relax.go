package force

import "math"

// relax runs one Gauss-Seidel pass over links, moving endpoints toward their
// rest distances. Heavier endpoints absorb less of each correction.
func relax(links []*Link, distances, strengths []float64, alpha float64) {
	for i, o := range links {
		s, t := o.Source, o.Target
		dx := t.X - s.X
		dy := t.Y - s.Y
		l2 := dx*dx + dy*dy
		if l2 == 0 {
			continue
		}

		l := math.Sqrt(l2)
		l = alpha * strengths[i] * (l - distances[i]) / l
		dx *= l
		dy *= l

		k := float64(s.Weight) / float64(t.Weight+s.Weight)
		t.X -= dx * k
		t.Y -= dy * k
		k = 1 - k
		s.X += dx * k
		s.Y += dy * k
	}
}

// gravitate pulls every node toward (cx, cy) by factor k.
func gravitate(nodes []*Node, cx, cy, k float64) {
	for _, o := range nodes {
		o.X += (cx - o.X) * k
		o.Y += (cy - o.Y) * k
	}
}

// integrate applies damped Verlet integration. Pinned nodes snap to their
// pin target.
func integrate(nodes []*Node, friction float64) {
	for _, o := range nodes {
		if o.Pinned() {
			o.X, o.Y = o.PX, o.PY
		} else {
			x, y := o.X, o.Y
			o.X += (x - o.PX + o.FX) * friction
			o.Y += (y - o.PY + o.FY) * friction
			o.PX, o.PY = x, y
		}
		o.FX, o.FY = 0, 0
	}
}
