package config

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/BurntSushi/toml"
)

// LayoutParams are the physical parameters of a simulation.
type LayoutParams struct {
	Width        float64 `toml:"width" json:"width"`
	Height       float64 `toml:"height" json:"height"`
	Friction     float64 `toml:"friction" json:"friction"`
	Charge       float64 `toml:"charge" json:"charge"`
	Gravity      float64 `toml:"gravity" json:"gravity"`
	Theta        float64 `toml:"theta" json:"theta"`
	LinkDistance float64 `toml:"link_distance" json:"linkDistance"`
	LinkStrength float64 `toml:"link_strength" json:"linkStrength"`
	Alpha        float64 `toml:"alpha" json:"alpha"`
}

// Validate rejects parameters that would make a run meaningless.
func (p LayoutParams) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"width", p.Width}, {"height", p.Height}, {"friction", p.Friction},
		{"charge", p.Charge}, {"gravity", p.Gravity}, {"theta", p.Theta},
		{"link_distance", p.LinkDistance}, {"link_strength", p.LinkStrength},
		{"alpha", p.Alpha},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be finite", f.name)
		}
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("width and height must be positive")
	}
	if p.Friction <= 0 || p.Friction > 1 {
		return fmt.Errorf("friction must be in (0,1]")
	}
	if p.Theta < 0 {
		return fmt.Errorf("theta must not be negative")
	}
	if p.LinkStrength < 0 || p.LinkStrength > 1 {
		return fmt.Errorf("link_strength must be in [0,1]")
	}
	if p.Alpha < 0 {
		return fmt.Errorf("alpha must not be negative")
	}
	return nil
}

// DecodeParams overlays the keys present in a TOML document onto base.
func DecodeParams(r io.Reader, base LayoutParams) (LayoutParams, error) {
	p := base
	if _, err := toml.NewDecoder(r).Decode(&p); err != nil {
		return base, fmt.Errorf("decode params: %w", err)
	}
	if err := p.Validate(); err != nil {
		return base, fmt.Errorf("invalid params: %w", err)
	}
	return p, nil
}

// LoadParamsFile reads a TOML params file over base.
func LoadParamsFile(path string, base LayoutParams) (LayoutParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("open params file: %w", err)
	}
	defer f.Close()
	return DecodeParams(f, base)
}

// EncodeParams writes p as TOML.
func EncodeParams(w io.Writer, p LayoutParams) error {
	return toml.NewEncoder(w).Encode(p)
}
