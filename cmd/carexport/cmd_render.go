package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artiocarbon/CAR-ERW/src/carchart"
	"github.com/artiocarbon/CAR-ERW/src/results"
)

var renderFlags struct {
	dir       string
	out       string
	stones    []string
	levels    []string
	mode      string
	width     int
	height    int
	gridLines bool
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render viewer figures to PNG files",
	RunE:  runRender,
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderFlags.dir, "dir", "", "Results folder (default: the configured folder)")
	f.StringVar(&renderFlags.out, "out", "figures", "Output folder for the PNG files")
	f.StringSliceVar(&renderFlags.stones, "stones", nil, "Stone identifiers to draw (default: all)")
	f.StringSliceVar(&renderFlags.levels, "levels", nil, "CaR levels to draw (default: configured levels present in the data)")
	f.StringVar(&renderFlags.mode, "mode", "all", "Figures to render: stones-per-car, cars-per-stone, grid or all")
	f.IntVar(&renderFlags.width, "width", 0, "Overlay figure width in pixels (default: from config)")
	f.IntVar(&renderFlags.height, "height", 0, "Overlay figure height in pixels (default: from config)")
	f.BoolVar(&renderFlags.gridLines, "gridlines", true, "Draw axis grid lines")
}

type figure struct {
	name string
	img  image.Image
}

func runRender(cmd *cobra.Command, _ []string) error {
	mode := strings.ToLower(strings.TrimSpace(renderFlags.mode))
	switch mode {
	case "all", "stones-per-car", "cars-per-stone", "grid":
	default:
		return fmt.Errorf("unknown mode %q (want stones-per-car, cars-per-stone, grid or all)", renderFlags.mode)
	}
	cfg, err := exportConfig()
	if err != nil {
		return err
	}
	dir := renderFlags.dir
	if dir == "" {
		dir = cfg.ResultsDir
	}
	ds, warnings, err := results.LoadDirectory(dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	if len(ds) == 0 {
		return fmt.Errorf("no result files in %s", dir)
	}

	stoneIDs := renderFlags.stones
	if len(stoneIDs) == 0 {
		stoneIDs = ds.IDs()
	}
	var records []*results.CurveRecord
	for _, id := range stoneIDs {
		rec, ok := ds[id]
		if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: unknown stone %q\n", id)
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return fmt.Errorf("none of the requested stones exist in %s", dir)
	}

	levels, err := parseLevelArgs(renderFlags.levels)
	if err != nil {
		return err
	}
	if len(levels) == 0 {
		levels = results.DefaultLevelSelection(cfg.DefaultLevels, ds.UnionLevels())
	}
	if len(levels) == 0 {
		return fmt.Errorf("no CaR levels to draw")
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(levels)))

	if sel, err := ds.Select(idsOf(records), levels); err != nil {
		return err
	} else if len(sel) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: nothing drawable for the requested stones and levels\n")
	}

	showGrid := cfg.Grid()
	if cmd.Flags().Changed("gridlines") {
		showGrid = renderFlags.gridLines
	}
	width, height := renderFlags.width, renderFlags.height
	if width <= 0 {
		width = cfg.ChartWidth
	}
	if height <= 0 {
		height = cfg.ChartHeight
	}
	opt := carchart.Options{
		Width:        width,
		Height:       height,
		ShowGrid:     showGrid,
		SpeciesOrder: cfg.SpeciesOrder,
	}

	var figures []figure
	if mode == "all" || mode == "stones-per-car" {
		for _, level := range levels {
			figures = append(figures, figure{
				name: fmt.Sprintf("stones_per_car_CaR%s.png", results.FormatLevel(level)),
				img:  carchart.RenderLevelOverlay(records, level, opt),
			})
		}
	}
	if mode == "all" || mode == "cars-per-stone" {
		for _, rec := range records {
			figures = append(figures, figure{
				name: fmt.Sprintf("cars_per_stone_%s.png", rec.ID),
				img:  carchart.RenderStoneOverlay(rec, levels, opt),
			})
		}
	}
	if mode == "all" || mode == "grid" {
		figures = append(figures, figure{
			name: fmt.Sprintf("grid_%dx%d.png", len(records), len(levels)),
			img:  carchart.RenderGrid(records, levels, opt),
		})
	}

	if err := os.MkdirAll(renderFlags.out, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}
	for _, fig := range figures {
		data, err := carchart.EncodePNG(fig.img)
		if err != nil {
			return fmt.Errorf("png encode %s: %w", fig.name, err)
		}
		outPath := filepath.Join(renderFlags.out, fig.name)
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", outPath)
	}
	return nil
}

func parseLevelArgs(args []string) ([]float64, error) {
	var out []float64
	for _, s := range args {
		l, err := results.ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("bad CaR level %q", s)
		}
		out = append(out, l)
	}
	return out, nil
}

func idsOf(records []*results.CurveRecord) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids
}
