package layout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/onnwee/forcegraph/internal/config"
)

var (
	// ErrInvalidGraph is returned for malformed graphs and parameters.
	ErrInvalidGraph = errors.New("invalid graph")
	// ErrNodeOutOfRange is returned when a link or drag names a node index
	// that does not exist.
	ErrNodeOutOfRange = errors.New("node index out of range")
	// ErrNotFound is returned for unknown simulation IDs.
	ErrNotFound = errors.New("simulation not found")
	// ErrTooLarge is returned when a graph exceeds the configured limits.
	ErrTooLarge = errors.New("graph too large")
	// ErrCapacity is returned when no more simulations may be created.
	ErrCapacity = errors.New("simulation capacity reached")
)

// NodeSpec describes one node of a request. Missing coordinates are placed
// by the simulation.
type NodeSpec struct {
	ID     string   `json:"id"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Fixed  bool     `json:"fixed,omitempty"`
	Charge *float64 `json:"charge,omitempty"`
}

// Endpoint names a link end either by node ID or by node index.
type Endpoint struct {
	ID      string
	Index   int
	ByIndex bool
}

// IndexEndpoint returns an endpoint referring to node i.
func IndexEndpoint(i int) Endpoint { return Endpoint{Index: i, ByIndex: true} }

// IDEndpoint returns an endpoint referring to the node with the given ID.
func IDEndpoint(id string) Endpoint { return Endpoint{ID: id} }

// UnmarshalJSON accepts a JSON string (node ID) or integer (node index).
func (e *Endpoint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = IDEndpoint(id)
		return nil
	}
	i, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("link endpoint must be a node id or index, got %s", data)
	}
	*e = IndexEndpoint(i)
	return nil
}

func (e Endpoint) MarshalJSON() ([]byte, error) {
	if e.ByIndex {
		return []byte(strconv.Itoa(e.Index)), nil
	}
	return json.Marshal(e.ID)
}

// LinkSpec describes one link. Distance and Strength override the request
// parameters for this link only.
type LinkSpec struct {
	Source   Endpoint `json:"source"`
	Target   Endpoint `json:"target"`
	Distance *float64 `json:"distance,omitempty"`
	Strength *float64 `json:"strength,omitempty"`
}

// Params overrides the configured layout defaults. Nil fields keep the
// default. A non-zero Seed makes placement and jitter reproducible.
type Params struct {
	Width        *float64 `json:"width,omitempty"`
	Height       *float64 `json:"height,omitempty"`
	Friction     *float64 `json:"friction,omitempty"`
	Charge       *float64 `json:"charge,omitempty"`
	Gravity      *float64 `json:"gravity,omitempty"`
	Theta        *float64 `json:"theta,omitempty"`
	LinkDistance *float64 `json:"linkDistance,omitempty"`
	LinkStrength *float64 `json:"linkStrength,omitempty"`
	Alpha        *float64 `json:"alpha,omitempty"`
	Seed         int64    `json:"seed,omitempty"`
}

// Resolve applies p over defaults and validates the result.
func (p Params) Resolve(defaults config.LayoutParams) (config.LayoutParams, error) {
	r := defaults
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&r.Width, p.Width)
	set(&r.Height, p.Height)
	set(&r.Friction, p.Friction)
	set(&r.Charge, p.Charge)
	set(&r.Gravity, p.Gravity)
	set(&r.Theta, p.Theta)
	set(&r.LinkDistance, p.LinkDistance)
	set(&r.LinkStrength, p.LinkStrength)
	set(&r.Alpha, p.Alpha)
	if err := r.Validate(); err != nil {
		return defaults, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}
	return r, nil
}

// GraphRequest is the body of layout and simulation requests.
type GraphRequest struct {
	Nodes  []NodeSpec `json:"nodes"`
	Links  []LinkSpec `json:"links"`
	Params Params     `json:"params"`
}

// NodePosition is a node in a snapshot.
type NodePosition struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Fixed bool    `json:"fixed,omitempty"`
}

// Snapshot is the observable state of a simulation between ticks.
type Snapshot struct {
	ID      string         `json:"id,omitempty"`
	Alpha   float64        `json:"alpha"`
	Running bool           `json:"running"`
	Ticks   int            `json:"ticks"`
	Nodes   []NodePosition `json:"nodes"`
}

// Result is the outcome of a synchronous layout.
type Result struct {
	Ticks     int                 `json:"ticks"`
	Converged bool                `json:"converged"`
	Params    config.LayoutParams `json:"params"`
	Nodes     []NodePosition      `json:"nodes"`
}

// Drag phases accepted by Service.Drag.
const (
	DragStart = "start"
	DragMove  = "move"
	DragEnd   = "end"
)

// DragRequest is a pointer interaction against one node.
type DragRequest struct {
	Phase string  `json:"phase"`
	Node  int     `json:"node"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Frame is a message streamed to simulation subscribers.
type Frame struct {
	Type    string   `json:"type"`
	Payload Snapshot `json:"payload"`
}
