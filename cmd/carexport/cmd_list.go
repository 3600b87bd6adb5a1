package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artiocarbon/CAR-ERW/src/composition"
	"github.com/artiocarbon/CAR-ERW/src/results"
)

var listFlags struct {
	dir string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stones and CaR levels found in a results folder",
	RunE:  runList,
}

func init() {
	f := listCmd.Flags()
	f.StringVar(&listFlags.dir, "dir", "", "Results folder (default: the configured folder)")
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, err := exportConfig()
	if err != nil {
		return err
	}
	dir := listFlags.dir
	if dir == "" {
		dir = cfg.ResultsDir
	}
	ds, warnings, err := results.LoadDirectory(dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stones: %d\n", len(ds))
	for _, id := range ds.IDs() {
		rec := ds[id]
		if rec.Name != id {
			fmt.Fprintf(out, "  %s (%s)\n", id, rec.Name)
		} else {
			fmt.Fprintf(out, "  %s\n", id)
		}
		fmt.Fprintf(out, "    CaR levels: %s\n", joinLevels(rec.Levels()))
		if rec.Samples > 0 || rec.HorizonYears > 0 {
			fmt.Fprintf(out, "    N=%d years=%d\n", rec.Samples, rec.HorizonYears)
		}
		fmt.Fprintf(out, "    %s\n", composition.FormatOrdered(rec.Composition, cfg.SpeciesOrder))
		fmt.Fprintf(out, "    file: %s\n", rec.Path)
	}
	if union := ds.UnionLevels(); len(union) > 0 {
		fmt.Fprintf(out, "All CaR levels: %s\n", joinLevels(union))
	}
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return nil
}

func joinLevels(levels []float64) string {
	parts := make([]string, 0, len(levels))
	for _, l := range levels {
		parts = append(parts, results.FormatLevel(l))
	}
	return strings.Join(parts, ", ")
}
