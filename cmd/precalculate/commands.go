package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/forcegraph/internal/config"
	"github.com/onnwee/forcegraph/internal/layout"
	"github.com/onnwee/forcegraph/internal/logger"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "precalculate",
		Short:        "Compute force-directed layouts offline",
		Version:      cfg.ServiceVersion,
		SilenceUsage: true,
	}
	root.AddCommand(newLayoutCmd(cfg))
	root.AddCommand(newParamsCmd(cfg))
	return root
}

// effectiveParams applies an optional TOML file over the configured defaults.
func effectiveParams(cfg *config.Config, path string) (config.LayoutParams, error) {
	if path == "" {
		return cfg.Layout, nil
	}
	p, err := config.LoadParamsFile(path, cfg.Layout)
	if err != nil {
		return config.LayoutParams{}, fmt.Errorf("load params %s: %w", path, err)
	}
	return p, nil
}

func newLayoutCmd(cfg *config.Config) *cobra.Command {
	var (
		in, out, paramsPath string
		maxTicks            int
		indent              bool
	)
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Run a graph to rest and write the final positions",
		Long: `Run a graph to rest and write the final positions.

The input is the same JSON body accepted by POST /api/layout: nodes, links and
optional params. Parameters the graph leaves unset come from the environment
and, when given, the --params TOML file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := effectiveParams(cfg, paramsPath)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if in != "-" {
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("open graph: %w", err)
				}
				defer f.Close()
				r = f
			}
			var req layout.GraphRequest
			if err := json.NewDecoder(r).Decode(&req); err != nil {
				return fmt.Errorf("decode graph: %w", err)
			}

			start := time.Now()
			res, err := layout.Compute(cmd.Context(), &req, layout.ComputeOptions{
				Defaults: defaults,
				Limits:   layout.Limits{MaxNodes: cfg.LayoutMaxNodes, MaxLinks: cfg.LayoutMaxLinks},
				MaxTicks: maxTicks,
			})
			if err != nil {
				return fmt.Errorf("compute layout: %w", err)
			}
			logger.Info("Layout computed",
				"nodes", len(res.Nodes),
				"ticks", res.Ticks,
				"converged", res.Converged,
				"duration", time.Since(start))

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)
			if indent {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("write layout: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "graph JSON file (- for stdin)")
	cmd.Flags().StringVar(&out, "out", "-", "output file (- for stdout)")
	cmd.Flags().StringVar(&paramsPath, "params", "", "TOML file overriding default parameters")
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "stop after this many ticks (0 runs until the layout cools)")
	cmd.Flags().BoolVar(&indent, "indent", false, "indent the JSON output")
	return cmd
}

func newParamsCmd(cfg *config.Config) *cobra.Command {
	var paramsPath string
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Print the effective default parameters as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := effectiveParams(cfg, paramsPath)
			if err != nil {
				return err
			}
			return config.EncodeParams(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&paramsPath, "params", "", "TOML file overriding default parameters")
	return cmd
}
