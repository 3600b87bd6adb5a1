package carchart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/artiocarbon/CAR-ERW/src/composition"
	"github.com/artiocarbon/CAR-ERW/src/results"
)

const (
	// DefaultWidth/DefaultHeight size the overlay figures when the
	// caller passes no explicit dimensions.
	DefaultWidth  = 900
	DefaultHeight = 500

	// Grid panels are fixed-size; the grid figure grows with the
	// number of rows (stones) and columns (CaR levels).
	panelWidth  = 480
	panelHeight = 330
)

// Options controls figure geometry and styling shared by every render
// mode. The zero value is usable.
type Options struct {
	Width, Height int
	ShowGrid      bool
	// SpeciesOrder overrides the canonical composition display order
	// in legend boxes (nil = composition.DefaultOrder).
	SpeciesOrder []string
}

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

func (o Options) formatComposition(comp map[string]float64) string {
	if len(o.SpeciesOrder) == 0 {
		return composition.Format(comp)
	}
	return composition.FormatOrdered(comp, o.SpeciesOrder)
}

// lineStyle returns a plain line stroke in the given color.
func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{StrokeColor: col, StrokeWidth: 2}
}

// gridStyle is the axis grid line style for the grid-lines toggle.
func gridStyle(show bool) chart.Style {
	if !show {
		return chart.Style{Hidden: true}
	}
	return chart.Style{StrokeColor: chart.ColorAlternateGray.WithAlpha(77), StrokeWidth: 1.0}
}

// drawableSeries returns the (time, guarantee) pair for one stone at
// one CaR level, truncated to the shorter of the two sequences. Nothing
// drawable returns empty slices.
func drawableSeries(rec *results.CurveRecord, level float64) ([]float64, []float64) {
	g, ok := rec.Curves[level]
	if !ok {
		return nil, nil
	}
	n := len(rec.Time)
	if len(g) < n {
		n = len(g)
	}
	if n == 0 {
		return nil, nil
	}
	return rec.Time[:n], g[:n]
}

// padSingle duplicates a lone point one x-unit to the right; go-chart
// cannot draw a line through a single value.
func padSingle(xs, ys []float64) ([]float64, []float64) {
	if len(xs) != 1 {
		return xs, ys
	}
	return []float64{xs[0], xs[0] + 1}, []float64{ys[0], ys[0]}
}

func nanMax(vals []float64) float64 {
	m := math.Inf(-1)
	for _, v := range vals {
		if !math.IsNaN(v) && v > m {
			m = v
		}
	}
	return m
}

// RenderLevelOverlay draws one figure for a single CaR level with one
// line per stone. Stones without that level (or with nothing drawable)
// are skipped. The bottom-right box lists one composition line per
// drawn stone.
func RenderLevelOverlay(stones []*results.CurveRecord, level float64, opt Options) image.Image {
	w, h := opt.size()
	var series []chart.Series
	var compLines []string
	ymax := 1.0
	xmin, xmax := math.MaxFloat64, -math.MaxFloat64
	for _, rec := range stones {
		xs, ys := drawableSeries(rec, level)
		if len(ys) == 0 {
			continue
		}
		st := lineStyle(chart.GetDefaultColor(len(series)))
		xs, ys = padSingle(xs, ys)
		series = append(series, chart.ContinuousSeries{Name: rec.Name, XValues: xs, YValues: ys, Style: st})
		ymax = math.Max(ymax, nanMax(ys))
		xmin = math.Min(xmin, xs[0])
		xmax = math.Max(xmax, xs[len(xs)-1])
		compLines = append(compLines, rec.Name+": "+opt.formatComposition(rec.Composition))
	}
	if len(series) == 0 {
		fmt.Printf("[carchart] CaR %s%%: nothing to draw; showing blank\n", results.FormatLevel(level))
		return drawLegendBox(blank(w, h), nil)
	}
	title := fmt.Sprintf("CaR %s%% — selected stones", results.FormatLevel(level))
	ch := overlayChart(title, series, xmin, xmax, ymax*1.05, w, h, opt)
	return drawLegendBox(renderChart(ch), compLines)
}

// RenderStoneOverlay draws one figure for a single stone with one line
// per CaR level, highest level first. The bottom-right box shows the
// stone's composition.
func RenderStoneOverlay(rec *results.CurveRecord, levels []float64, opt Options) image.Image {
	w, h := opt.size()
	ordered := append([]float64(nil), levels...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ordered)))
	var series []chart.Series
	ymax := 1.0
	xmin, xmax := math.MaxFloat64, -math.MaxFloat64
	for _, level := range ordered {
		xs, ys := drawableSeries(rec, level)
		if len(ys) == 0 {
			continue
		}
		st := lineStyle(chart.GetDefaultColor(len(series)))
		xs, ys = padSingle(xs, ys)
		name := "CaR " + results.FormatLevel(level) + "%"
		series = append(series, chart.ContinuousSeries{Name: name, XValues: xs, YValues: ys, Style: st})
		ymax = math.Max(ymax, nanMax(ys))
		xmin = math.Min(xmin, xs[0])
		xmax = math.Max(xmax, xs[len(xs)-1])
	}
	compLine := opt.formatComposition(rec.Composition)
	if len(series) == 0 {
		fmt.Printf("[carchart] %s: nothing to draw; showing blank\n", rec.ID)
		return drawLegendBox(blank(w, h), []string{compLine})
	}
	title := fmt.Sprintf("%s (%s)", rec.Name, rec.ID)
	ch := overlayChart(title, series, xmin, xmax, ymax*1.05, w, h, opt)
	return drawLegendBox(renderChart(ch), []string{compLine})
}

// RenderGrid draws the subplot grid: rows = stones, columns = CaR
// levels, one line per panel. Missing (stone, level) pairs keep their
// panel with axes and title but no line.
func RenderGrid(stones []*results.CurveRecord, levels []float64, opt Options) image.Image {
	if len(stones) == 0 || len(levels) == 0 {
		w, h := opt.size()
		return blank(w, h)
	}
	total := image.NewRGBA(image.Rect(0, 0, len(levels)*panelWidth, len(stones)*panelHeight))
	for r, rec := range stones {
		compLine := opt.formatComposition(rec.Composition)
		for c, level := range levels {
			img := gridPanel(rec, level, compLine, opt)
			dst := image.Rect(c*panelWidth, r*panelHeight, (c+1)*panelWidth, (r+1)*panelHeight)
			draw.Draw(total, dst, img, img.Bounds().Min, draw.Src)
		}
	}
	return total
}

func gridPanel(rec *results.CurveRecord, level float64, compLine string, opt Options) image.Image {
	xs, ys := drawableSeries(rec, level)
	var s chart.ContinuousSeries
	ymax := 1.0
	if len(ys) == 0 {
		// Near-invisible stand-in so the empty panel still renders
		// its axes and title.
		xs, ys = []float64{0, 1}, []float64{0, 0}
		s = chart.ContinuousSeries{XValues: xs, YValues: ys,
			Style: chart.Style{StrokeColor: drawing.Color{R: 255, G: 255, B: 255, A: 1}, StrokeWidth: 1}}
	} else {
		xs, ys = padSingle(xs, ys)
		s = chart.ContinuousSeries{XValues: xs, YValues: ys, Style: lineStyle(chart.GetDefaultColor(0))}
		if m := nanMax(ys); m > 0 {
			ymax = m * 1.05
		}
	}
	xmin, xmax := xs[0], xs[len(xs)-1]
	if xmax <= xmin {
		xmax = xmin + 1
	}
	ch := chart.Chart{
		Title:      fmt.Sprintf("%s — CaR %s%%", rec.Name, results.FormatLevel(level)),
		Width:      panelWidth,
		Height:     panelHeight,
		Background: chart.Style{Padding: chart.Box{Top: 10, Left: 10, Right: 8, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Years",
			Range:          &chart.ContinuousRange{Min: xmin, Max: xmax},
			Ticks:          niceTicks(xmin, xmax, 6),
			GridMajorStyle: gridStyle(opt.ShowGrid),
		},
		YAxis: chart.YAxis{
			Name:           "Guarantee (kg/t)",
			Range:          &chart.ContinuousRange{Min: 0, Max: ymax},
			Ticks:          niceTicks(0, ymax, 5),
			GridMajorStyle: gridStyle(opt.ShowGrid),
		},
		Series: []chart.Series{s},
	}
	return drawLegendBox(renderChart(ch), []string{compLine})
}

func overlayChart(title string, series []chart.Series, xmin, xmax, ymax float64, w, h int, opt Options) chart.Chart {
	if xmax <= xmin {
		xmax = xmin + 1
	}
	ch := chart.Chart{
		Title:      title,
		Width:      w,
		Height:     h,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 28}},
		XAxis: chart.XAxis{
			Name:           "Time (years)",
			Range:          &chart.ContinuousRange{Min: xmin, Max: xmax},
			Ticks:          niceTicks(xmin, xmax, 8),
			GridMajorStyle: gridStyle(opt.ShowGrid),
		},
		YAxis: chart.YAxis{
			Name:           "Guarantee (kg CO2 per tonne promised)",
			Range:          &chart.ContinuousRange{Min: 0, Max: ymax},
			Ticks:          niceTicks(0, ymax, 6),
			GridMajorStyle: gridStyle(opt.ShowGrid),
		},
		Series: series,
	}
	// The series-name legend sits top-left; compositions get their own
	// box stamped onto the image afterwards.
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch
}

func renderChart(ch chart.Chart) image.Image {
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		fmt.Printf("[carchart] render error: %v; showing blank fallback\n", err)
		return blank(ch.Width, ch.Height)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		fmt.Printf("[carchart] decode error: %v; showing blank fallback\n", err)
		return blank(ch.Width, ch.Height)
	}
	return img
}

// niceTicks generates up to n tick marks between [min, max] using nice
// increments (1, 2, 2.5, 5 scaled by powers of ten), bounded to the
// range so ticks never land outside the plot box.
func niceTicks(min, max float64, n int) []chart.Tick {
	if n < 2 || math.IsNaN(min) || math.IsNaN(max) {
		return nil
	}
	if max <= min {
		max = min + 1
	}
	mag := math.Pow(10, math.Floor(math.Log10((max-min)/float64(n-1))))
	candidates := []float64{1, 2, 2.5, 5, 10}
	bestStep := mag
	bestScore := math.MaxFloat64
	for _, c := range candidates {
		step := c * mag
		count := math.Ceil((max - min) / step)
		if count < 2 {
			count = 2
		}
		if score := math.Abs(count - float64(n)); score < bestScore {
			bestScore = score
			bestStep = step
		}
	}
	eps := bestStep * 1e-6
	var ticks []chart.Tick
	for v := math.Floor(min/bestStep) * bestStep; v <= max+eps; v += bestStep {
		if v < min-eps {
			continue
		}
		ticks = append(ticks, chart.Tick{Value: v, Label: formatTick(v)})
		if len(ticks) > n+2 {
			break
		}
	}
	if len(ticks) < 2 {
		return []chart.Tick{{Value: min, Label: formatTick(min)}, {Value: max, Label: formatTick(max)}}
	}
	return ticks
}

func formatTick(v float64) string {
	if v == 0 {
		return "0"
	}
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	if math.Abs(v) >= 10 {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// drawLegendBox stamps a translucent composition box onto the
// bottom-right of the image, one line per entry. Empty input falls
// back to the placeholder so every figure carries the box.
func drawLegendBox(img image.Image, lines []string) image.Image {
	if img == nil {
		return img
	}
	if len(lines) == 0 {
		lines = []string{composition.Placeholder}
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	face := basicfont.Face7x13
	pad := 6
	lineH := face.Metrics().Height.Ceil()
	meas := &font.Drawer{Face: face}
	maxW := 0
	for _, ln := range lines {
		if w := meas.MeasureString(ln).Ceil(); w > maxW {
			maxW = w
		}
	}
	boxW := maxW + pad*2
	boxH := lineH*len(lines) + pad*2
	rect := image.Rect(b.Max.X-10-boxW, b.Max.Y-10-boxH, b.Max.X-10, b.Max.Y-10)
	bg := image.NewUniform(color.RGBA{R: 204, G: 204, B: 204, A: 204})
	draw.Draw(rgba, rect, bg, image.Point{}, draw.Over)
	textCol := image.NewUniform(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	ascent := face.Metrics().Ascent.Ceil()
	for i, ln := range lines {
		dr := &font.Drawer{Dst: rgba, Src: textCol, Face: face,
			Dot: fixed.Point26_6{X: fixed.I(rect.Min.X + pad), Y: fixed.I(rect.Min.Y + pad + ascent + i*lineH)}}
		dr.DrawString(ln)
	}
	return rgba
}

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	// subtle background
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 18, G: 18, B: 18, A: 255})
		}
	}
	return img
}

// EncodePNG returns the PNG byte sequence for an exported figure.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
