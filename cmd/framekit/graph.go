package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"
)

func newGraphCmd(opts *options) *cobra.Command {
	var (
		output string
		dot    bool
		width  int
		height int
	)
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the demo dashboard's layout dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dash := newDashboard(width, height, time.Now())
			dash.eng.SetForceFull(opts.cfg.Layout.ForceFull)
			dash.eng.Recompute()

			var src bytes.Buffer
			if err := dash.eng.WriteDOT(&src); err != nil {
				return err
			}

			data := src.Bytes()
			if !dot {
				svg, err := renderSVG(cmd.Context(), data)
				if err != nil {
					return err
				}
				data = svg
			}
			return writeOutput(cmd.OutOrStdout(), output, data)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&dot, "dot", false, "emit DOT source instead of SVG")
	cmd.Flags().IntVar(&width, "width", 80, "viewport width used for the rectangles")
	cmd.Flags().IntVar(&height, "height", 24, "viewport height used for the rectangles")
	return cmd
}

// renderSVG lays out DOT source with the embedded Graphviz
func renderSVG(ctx context.Context, dot []byte) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes(dot)
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
