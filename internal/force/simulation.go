// Package force implements a force-directed graph layout: springs along
// links, Barnes-Hut approximated repulsion between nodes, gravity toward the
// canvas center and damped Verlet integration, all under a cooling schedule
// driven by an injected frame scheduler.
package force

import (
	"math"
	"math/rand"
	"time"

	"github.com/onnwee/forcegraph/internal/quadtree"
	"github.com/onnwee/forcegraph/internal/scheduler"
	"github.com/onnwee/forcegraph/internal/utils"
)

const (
	// ResumeAlpha is the temperature set by Resume.
	ResumeAlpha = 0.1
	// AlphaDecay is applied to alpha once per tick.
	AlphaDecay = 0.99
	// AlphaMin is the temperature below which a run ends.
	AlphaMin = 0.005
)

// Defaults for a new Simulation.
const (
	DefaultFriction     = 0.9
	DefaultCharge       = -30
	DefaultGravity      = 0.1
	DefaultTheta        = 0.8
	DefaultLinkDistance = 20
	DefaultLinkStrength = 1
)

// EventType names a simulation lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventTick  EventType = "tick"
	EventEnd   EventType = "end"
)

// Event is delivered to listeners registered with On.
type Event struct {
	Type  EventType
	Alpha float64
}

// Simulation lays out nodes and links. It is not safe for concurrent use;
// callers sharing it with a running scheduler go through scheduler.Do.
type Simulation struct {
	sched  *scheduler.Scheduler
	handle scheduler.Handle
	// ticking is true while a tick callback is registered, which can outlive
	// alpha reaching zero by one frame after Stop.
	ticking bool

	nodes []*Node
	links []*Link

	width, height float64
	alpha         float64
	friction      float64
	gravity       float64
	theta         float64
	charge        Value[*Node]
	linkDistance  Value[*Link]
	linkStrength  Value[*Link]

	distances []float64
	strengths []float64
	charges   []float64
	// repel is false when every charge is the constant zero
	repel bool

	listeners map[EventType][]func(Event)
	rng       *rand.Rand
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithNodes sets the node slice.
func WithNodes(nodes []*Node) Option { return func(s *Simulation) { s.nodes = nodes } }

// WithLinks sets the link slice.
func WithLinks(links []*Link) Option { return func(s *Simulation) { s.links = links } }

// WithSize sets the canvas size used for gravity and random placement.
func WithSize(w, h float64) Option { return func(s *Simulation) { s.width, s.height = w, h } }

// WithFriction sets the velocity damping factor.
func WithFriction(f float64) Option { return func(s *Simulation) { s.friction = f } }

// WithGravity sets the pull toward the canvas center.
func WithGravity(g float64) Option { return func(s *Simulation) { s.gravity = g } }

// WithTheta sets the Barnes-Hut accuracy parameter.
func WithTheta(t float64) Option { return func(s *Simulation) { s.theta = t } }

// WithCharge sets the node charge.
func WithCharge(v Value[*Node]) Option { return func(s *Simulation) { s.charge = v } }

// WithLinkDistance sets the link rest length.
func WithLinkDistance(v Value[*Link]) Option { return func(s *Simulation) { s.linkDistance = v } }

// WithLinkStrength sets the link spring constant.
func WithLinkStrength(v Value[*Link]) Option { return func(s *Simulation) { s.linkStrength = v } }

// WithRand sets the random source for placement and jitter.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulation) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// New creates an idle simulation that will tick on sched.
func New(sched *scheduler.Scheduler, opts ...Option) *Simulation {
	s := &Simulation{
		sched:        sched,
		width:        1,
		height:       1,
		friction:     DefaultFriction,
		gravity:      DefaultGravity,
		theta:        DefaultTheta,
		charge:       Constant[*Node](DefaultCharge),
		linkDistance: Constant[*Link](DefaultLinkDistance),
		linkStrength: Constant[*Link](DefaultLinkStrength),
		listeners:    make(map[EventType][]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = utils.NewRand(0)
	}
	return s
}

// Nodes returns the node slice.
func (s *Simulation) Nodes() []*Node { return s.nodes }

// SetNodes replaces the node slice. It takes effect at the next Start.
func (s *Simulation) SetNodes(nodes []*Node) { s.nodes = nodes }

// Links returns the link slice.
func (s *Simulation) Links() []*Link { return s.links }

// SetLinks replaces the link slice. It takes effect at the next Start.
func (s *Simulation) SetLinks(links []*Link) { s.links = links }

func (s *Simulation) Size() (w, h float64) { return s.width, s.height }

func (s *Simulation) SetSize(w, h float64) { s.width, s.height = w, h }

func (s *Simulation) Friction() float64 { return s.friction }

func (s *Simulation) SetFriction(f float64) { s.friction = f }

func (s *Simulation) Gravity() float64 { return s.gravity }

func (s *Simulation) SetGravity(g float64) { s.gravity = g }

func (s *Simulation) Theta() float64 { return s.theta }

func (s *Simulation) SetTheta(t float64) { s.theta = t }

func (s *Simulation) Charge() Value[*Node] { return s.charge }

// SetCharge sets the node charge. It takes effect at the next Start.
func (s *Simulation) SetCharge(v Value[*Node]) { s.charge = v }

func (s *Simulation) LinkDistance() Value[*Link] { return s.linkDistance }

// SetLinkDistance sets the rest length. It takes effect at the next Start.
func (s *Simulation) SetLinkDistance(v Value[*Link]) { s.linkDistance = v }

func (s *Simulation) LinkStrength() Value[*Link] { return s.linkStrength }

// SetLinkStrength sets the spring constant. It takes effect at the next Start.
func (s *Simulation) SetLinkStrength(v Value[*Link]) { s.linkStrength = v }

// Distances returns the rest lengths cached by the last Start.
func (s *Simulation) Distances() []float64 { return s.distances }

// Strengths returns the spring constants cached by the last Start.
func (s *Simulation) Strengths() []float64 { return s.strengths }

// Charges returns the node charges cached by the last Start.
func (s *Simulation) Charges() []float64 { return s.charges }

// Alpha returns the current temperature.
func (s *Simulation) Alpha() float64 { return s.alpha }

// Running reports whether a tick is scheduled.
func (s *Simulation) Running() bool { return s.ticking }

// On registers fn for events of type t.
func (s *Simulation) On(t EventType, fn func(Event)) {
	s.listeners[t] = append(s.listeners[t], fn)
}

func (s *Simulation) emit(t EventType) {
	e := Event{Type: t, Alpha: s.alpha}
	for _, fn := range s.listeners[t] {
		fn(e)
	}
}

// Start prepares nodes and links for a run and resumes the simulation.
// Node indices and weights, link endpoints, link distances and strengths,
// missing positions and node charges are all fixed here until the next
// Start.
func (s *Simulation) Start() {
	n, m := len(s.nodes), len(s.links)

	for i, o := range s.nodes {
		o.Index = i
		o.Weight = 1
	}

	s.distances = make([]float64, m)
	s.strengths = make([]float64, m)
	for i, o := range s.links {
		if o.Source == nil {
			o.Source = s.nodes[o.SourceIndex]
		}
		if o.Target == nil {
			o.Target = s.nodes[o.TargetIndex]
		}
		o.SourceIndex, o.TargetIndex = o.Source.Index, o.Target.Index
		s.distances[i] = s.linkDistance.Eval(o, i)
		s.strengths[i] = s.linkStrength.Eval(o, i)
		o.Source.Weight++
		o.Target.Weight++
	}

	var neighbors [][]*Node
	neighbor := func(i int) []*Node {
		if neighbors == nil {
			neighbors = make([][]*Node, n)
			for _, o := range s.links {
				neighbors[o.Source.Index] = append(neighbors[o.Source.Index], o.Target)
				neighbors[o.Target.Index] = append(neighbors[o.Target.Index], o.Source)
			}
		}
		return neighbors[i]
	}
	position := func(i int, coord func(*Node) float64, size float64) float64 {
		for _, o := range neighbor(i) {
			if v := coord(o); !math.IsNaN(v) {
				return v
			}
		}
		return s.rng.Float64() * size
	}

	for i, o := range s.nodes {
		if math.IsNaN(o.X) {
			o.X = position(i, func(o *Node) float64 { return o.X }, s.width)
		}
		if math.IsNaN(o.Y) {
			o.Y = position(i, func(o *Node) float64 { return o.Y }, s.height)
		}
		if math.IsNaN(o.PX) {
			o.PX = o.X
		}
		if math.IsNaN(o.PY) {
			o.PY = o.Y
		}
		o.FX, o.FY = 0, 0
	}

	s.charges = make([]float64, n)
	for i, o := range s.nodes {
		s.charges[i] = s.charge.Eval(o, i)
	}
	c, constant := s.charge.Constant()
	s.repel = !constant || c != 0

	s.Resume()
}

// Resume reheats the simulation to ResumeAlpha.
func (s *Simulation) Resume() {
	s.SetAlpha(ResumeAlpha)
}

// Stop lets the next tick end the run.
func (s *Simulation) Stop() {
	s.SetAlpha(0)
}

// SetAlpha sets the temperature. Raising it on an idle simulation fires
// "start" and schedules ticks; on a running one it only changes alpha.
func (s *Simulation) SetAlpha(x float64) {
	if s.ticking {
		s.alpha = math.Max(x, 0)
		return
	}
	if x > 0 {
		s.alpha = x
		s.ticking = true
		s.emit(EventStart)
		s.handle = s.sched.Register(func(time.Duration) bool {
			return s.Tick()
		})
	}
}

// Detach cancels a scheduled tick without firing "end". The simulation is
// left idle at its current alpha.
func (s *Simulation) Detach() {
	if s.ticking {
		s.sched.Cancel(s.handle)
		s.ticking = false
		s.handle = 0
	}
}

// Tick advances the simulation by one step and reports whether the run is
// over. It is normally called by the scheduler.
func (s *Simulation) Tick() bool {
	s.alpha *= AlphaDecay
	if s.alpha < AlphaMin {
		s.alpha = 0
		s.ticking = false
		s.handle = 0
		s.emit(EventEnd)
		return true
	}

	relax(s.links, s.distances, s.strengths, s.alpha)

	if k := s.alpha * s.gravity; k != 0 {
		gravitate(s.nodes, s.width/2, s.height/2, k)
	}

	if s.repel {
		tree := quadtree.New(s.nodes)
		accumulate(tree.Root(), s.alpha, s.charges, s.rng)
		for _, o := range s.nodes {
			if !o.Pinned() {
				tree.Visit(repulse(o, s.theta))
			}
		}
	}

	integrate(s.nodes, s.friction)

	s.emit(EventTick)
	return false
}
