package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/layout"
)

func testConfig() *config.Config {
	return &config.Config{
		ServiceVersion: "test",
		Layout: config.LayoutParams{
			Width: 100, Height: 100, Friction: 0.9, Charge: -30, Gravity: 0.1,
			Theta: 0.8, LinkDistance: 20, LinkStrength: 1, Alpha: 0.1,
		},
		LayoutMaxNodes: 100,
		LayoutMaxLinks: 100,
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(testConfig())
	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

const graph = `{"nodes":[{"id":"a"},{"id":"b"},{"id":"c"}],"links":[{"source":"a","target":"b"},{"source":"b","target":"c"}],"params":{"seed":3}}`

func TestLayoutCommandStdio(t *testing.T) {
	out, err := execute(t, graph, "layout", "--max-ticks", "12")
	if err != nil {
		t.Fatal(err)
	}
	var res layout.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if res.Ticks != 12 || len(res.Nodes) != 3 || res.Nodes[2].ID != "c" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestLayoutCommandFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "graph.json")
	out := filepath.Join(dir, "layout.json")
	params := filepath.Join(dir, "params.toml")
	if err := os.WriteFile(in, []byte(graph), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(params, []byte("charge = -60.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "", "layout", "--in", in, "--out", out, "--params", params, "--indent"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var res layout.Result
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Converged || res.Params.Charge != -60 {
		t.Errorf("expected a converged run with charge -60, got converged=%v params=%+v", res.Converged, res.Params)
	}
}

func TestLayoutCommandErrors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"bad json", "{", []string{"layout"}, "decode graph"},
		{"invalid graph", `{"nodes":[{"id":"a"},{"id":"a"}]}`, []string{"layout"}, "compute layout"},
		{"missing input", "", []string{"layout", "--in", "/nonexistent/graph.json"}, "open graph"},
		{"missing params", graph, []string{"layout", "--params", "/nonexistent/params.toml"}, "load params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.stdin, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParamsCommand(t *testing.T) {
	out, err := execute(t, "", "params")
	if err != nil {
		t.Fatal(err)
	}
	p, err := config.DecodeParams(strings.NewReader(out), config.LayoutParams{})
	if err != nil {
		t.Fatalf("params output should be valid TOML: %v\n%s", err, out)
	}
	if p != testConfig().Layout {
		t.Errorf("printed params %+v differ from the configured ones", p)
	}
}
