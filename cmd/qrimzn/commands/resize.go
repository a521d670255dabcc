package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func resizeCmd(flags *globalFlags) *cobra.Command {
	var (
		widths   []int
		outDir   string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "resize <input|->",
		Short: "Resize an image to one or more widths",
		Long:  "Resize an image file (or stdin with -) to each --width, writing resized_<width>px.png into the output directory.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(widths) == 0 {
				return fmt.Errorf("at least one --width is required")
			}
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1")
			}
			// each width owns one output file
			widths = uniqueWidths(widths)

			payload, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			a, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}

			b := a.bridge()
			outputs := make([]string, len(widths))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i, width := range widths {
				g.Go(func() error {
					out, err := b.Resize(ctx, payload, width)
					if err != nil {
						return fmt.Errorf("resize to %dpx: %w", width, explain(err))
					}
					path := filepath.Join(outDir, fmt.Sprintf("resized_%dpx.png", width))
					if err := os.WriteFile(path, out, 0644); err != nil {
						return fmt.Errorf("writing %s: %w", path, err)
					}
					outputs[i] = path
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, p := range outputs {
				fmt.Fprintf(w, "✓ %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().IntSliceVarP(&widths, "width", "w", nil, "Target width in pixels (repeatable)")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "Output directory")
	cmd.Flags().IntVar(&parallel, "parallel", 2, "Maximum concurrent resize processes")

	return cmd
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

// uniqueWidths drops repeated widths, keeping first occurrences.
func uniqueWidths(widths []int) []int {
	out := make([]int, 0, len(widths))
	for _, w := range widths {
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	return out
}
