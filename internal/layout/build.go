package layout

import (
	"fmt"
	"math"

	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/force"
	"github.com/onnwee/forcegraph/internal/scheduler"
	"github.com/onnwee/forcegraph/internal/utils"
)

// Limits bound the size of accepted graphs. Zero means unlimited.
type Limits struct {
	MaxNodes int
	MaxLinks int
}

// MaxCoordinate bounds the magnitude of supplied node positions. Layouts are
// measured in display units, and larger inputs only lose precision in the
// force sums.
const MaxCoordinate = 1e9

// Graph is a built simulation together with the nodes and links it owns.
type Graph struct {
	Sim    *force.Simulation
	Nodes  []*force.Node
	Links  []*force.Link
	Params config.LayoutParams
}

// Build validates req and returns an idle simulation scheduled on sched.
// Unknown link endpoints, duplicate IDs, non-finite coordinates and invalid
// parameters are rejected with ErrInvalidGraph; index endpoints outside the
// node list with ErrNodeOutOfRange.
func Build(sched *scheduler.Scheduler, req *GraphRequest, defaults config.LayoutParams, limits Limits) (*Graph, error) {
	if limits.MaxNodes > 0 && len(req.Nodes) > limits.MaxNodes {
		return nil, fmt.Errorf("%w: %d nodes exceeds limit of %d", ErrTooLarge, len(req.Nodes), limits.MaxNodes)
	}
	if limits.MaxLinks > 0 && len(req.Links) > limits.MaxLinks {
		return nil, fmt.Errorf("%w: %d links exceeds limit of %d", ErrTooLarge, len(req.Links), limits.MaxLinks)
	}

	params, err := req.Params.Resolve(defaults)
	if err != nil {
		return nil, err
	}
	if params.Width > MaxCoordinate || params.Height > MaxCoordinate {
		return nil, fmt.Errorf("%w: width and height must not exceed %g", ErrInvalidGraph, MaxCoordinate)
	}

	nodes := make([]*force.Node, len(req.Nodes))
	byID := make(map[string]int, len(req.Nodes))
	ids := make([]string, 0, len(req.Nodes))
	for i, spec := range req.Nodes {
		n := force.NewNode(spec.ID)
		if spec.X != nil {
			if !validCoordinate(*spec.X) {
				return nil, fmt.Errorf("%w: node %d x must be finite and within ±%g", ErrInvalidGraph, i, MaxCoordinate)
			}
			n.X = *spec.X
		}
		if spec.Y != nil {
			if !validCoordinate(*spec.Y) {
				return nil, fmt.Errorf("%w: node %d y must be finite and within ±%g", ErrInvalidGraph, i, MaxCoordinate)
			}
			n.Y = *spec.Y
		}
		if spec.Fixed {
			if spec.X == nil || spec.Y == nil {
				return nil, fmt.Errorf("%w: fixed node %d needs x and y", ErrInvalidGraph, i)
			}
			n.Fixed = force.PinUser
		}
		if spec.Charge != nil {
			if !utils.IsFinite(*spec.Charge) {
				return nil, fmt.Errorf("%w: node %d has a non-finite charge", ErrInvalidGraph, i)
			}
			c := *spec.Charge
			n.Charge = &c
		}
		if spec.ID != "" {
			byID[spec.ID] = i
			ids = append(ids, spec.ID)
		}
		nodes[i] = n
	}
	if dup, ok := utils.FirstDuplicate(ids); ok {
		return nil, fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, dup)
	}

	resolve := func(e Endpoint, link int) (int, error) {
		if e.ByIndex {
			if e.Index < 0 || e.Index >= len(nodes) {
				return 0, fmt.Errorf("%w: link %d references node %d", ErrNodeOutOfRange, link, e.Index)
			}
			return e.Index, nil
		}
		i, ok := byID[e.ID]
		if !ok {
			return 0, fmt.Errorf("%w: link %d references unknown node %q", ErrInvalidGraph, link, e.ID)
		}
		return i, nil
	}

	links := make([]*force.Link, len(req.Links))
	distances := make([]*float64, len(req.Links))
	strengths := make([]*float64, len(req.Links))
	for i, spec := range req.Links {
		s, err := resolve(spec.Source, i)
		if err != nil {
			return nil, err
		}
		t, err := resolve(spec.Target, i)
		if err != nil {
			return nil, err
		}
		if spec.Distance != nil && (!utils.IsFinite(*spec.Distance) || *spec.Distance < 0) {
			return nil, fmt.Errorf("%w: link %d has an invalid distance", ErrInvalidGraph, i)
		}
		if spec.Strength != nil && (math.IsNaN(*spec.Strength) || *spec.Strength < 0 || *spec.Strength > 1) {
			return nil, fmt.Errorf("%w: link %d strength must be in [0,1]", ErrInvalidGraph, i)
		}
		links[i] = &force.Link{Source: nodes[s], Target: nodes[t], SourceIndex: s, TargetIndex: t}
		distances[i] = spec.Distance
		strengths[i] = spec.Strength
	}

	sim := force.New(sched,
		force.WithNodes(nodes),
		force.WithLinks(links),
		force.WithSize(params.Width, params.Height),
		force.WithFriction(params.Friction),
		force.WithGravity(params.Gravity),
		force.WithTheta(params.Theta),
		force.WithCharge(chargeValue(nodes, params.Charge)),
		force.WithLinkDistance(perLink(distances, params.LinkDistance)),
		force.WithLinkStrength(perLink(strengths, params.LinkStrength)),
		force.WithRand(utils.NewRand(req.Params.Seed)),
	)

	return &Graph{Sim: sim, Nodes: nodes, Links: links, Params: params}, nil
}

// chargeValue keeps a constant charge unless some node overrides it.
func chargeValue(nodes []*force.Node, def float64) force.Value[*force.Node] {
	for _, n := range nodes {
		if n.Charge != nil {
			return force.Func(func(n *force.Node, _ int) float64 {
				if n.Charge != nil {
					return *n.Charge
				}
				return def
			})
		}
	}
	return force.Constant[*force.Node](def)
}

func perLink(overrides []*float64, def float64) force.Value[*force.Link] {
	for _, o := range overrides {
		if o != nil {
			return force.Func(func(_ *force.Link, i int) float64 {
				if v := overrides[i]; v != nil {
					return *v
				}
				return def
			})
		}
	}
	return force.Constant[*force.Link](def)
}

// positions copies node coordinates into a snapshot slice.
func positions(nodes []*force.Node) []NodePosition {
	out := make([]NodePosition, len(nodes))
	for i, n := range nodes {
		out[i] = NodePosition{ID: n.ID, X: n.X, Y: n.Y, Fixed: n.Pinned()}
	}
	return out
}

func validCoordinate(v float64) bool {
	return utils.IsFinite(v) && math.Abs(v) <= MaxCoordinate
}
