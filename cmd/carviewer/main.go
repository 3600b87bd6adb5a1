package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"github.com/artiocarbon/CAR-ERW/cmd/carviewer/uihelpers"
	"github.com/artiocarbon/CAR-ERW/src/carchart"
	"github.com/artiocarbon/CAR-ERW/src/composition"
	"github.com/artiocarbon/CAR-ERW/src/results"
	"github.com/artiocarbon/CAR-ERW/src/viewerconf"
)

const (
	modeStonesPerCaR = "stones_per_car"
	modeCaRPerStone  = "cars_per_stone"
	modeGrid         = "grid"

	sidebarWidth  = 300
	maxRecentDirs = 10
)

var viewModes = []string{
	"Stones per CaR (one figure per CaR)",
	"CaR per stone (one figure per stone)",
	"Grid (subplots)",
}

var summaryHeaders = []string{"ID", "Name", "CaR levels", "N", "Years", "Composition", "File"}

// renderedFigure is one drawn chart plus its suggested export file name.
type renderedFigure struct {
	name string
	img  image.Image
}

// renderRequest snapshots what the user asked to draw so window resizes
// can re-render the same selection at the new size.
type renderRequest struct {
	records []*results.CurveRecord
	levels  []float64 // descending
	mode    string
	grid    bool
}

type uiState struct {
	app    fyne.App
	window fyne.Window
	cfg    *viewerconf.Config

	resultsDir string
	dataset    results.Dataset
	warnings   []string
	labelToID  map[string]string

	viewMode string
	showGrid bool

	lastRender  *renderRequest
	figures     []renderedFigure
	summaryRows [][]string

	dirEntry      *widget.Entry
	stoneChecks   *widget.CheckGroup
	levelChecks   *widget.CheckGroup
	modeSelect    *widget.Select
	gridCheck     *widget.Check
	statusLabel   *widget.Label
	chartsBox     *fyne.Container
	chartsHint    *widget.Label
	table         *widget.Table
	warningsLabel *widget.Label
	tabs          *container.AppTabs
}

func main() {
	dirFlag := flag.String("dir", "", "results directory (overrides saved and configured folders)")
	configFlag := flag.String("config", "carviewer.yaml", "viewer config file (YAML or JSON)")
	logLevel := flag.String("loglevel", "info", "log level: debug, info, warn, error")
	flag.Parse()
	results.SetLogLevel(*logLevel)

	cfg, err := viewerconf.LoadOrDefault(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[viewer] %v\n", err)
		os.Exit(1)
	}

	a := app.NewWithID("com.artiocarbon.carviewer")
	w := a.NewWindow("ERW CaR Viewer")
	w.Resize(fyne.NewSize(1200, 800))

	state := &uiState{
		app:        a,
		window:     w,
		cfg:        cfg,
		resultsDir: cfg.ResultsDir,
		viewMode:   modeStonesPerCaR,
		showGrid:   cfg.Grid(),
		labelToID:  map[string]string{},
	}

	// Controls first with nil callbacks; wiring happens once everything
	// that the callbacks touch exists.
	state.dirEntry = widget.NewEntry()
	state.dirEntry.SetPlaceHolder("results")
	browseBtn := widget.NewButton("Browse…", nil)
	rescanBtn := widget.NewButton("Rescan", nil)
	state.stoneChecks = widget.NewCheckGroup(nil, nil)
	state.levelChecks = widget.NewCheckGroup(nil, nil)
	state.modeSelect = widget.NewSelect(viewModes, nil)
	state.modeSelect.Selected = viewModes[0]
	state.gridCheck = widget.NewCheck("Show grid", nil)
	state.gridCheck.Checked = state.showGrid
	renderBtn := widget.NewButton("Render plots", nil)
	state.statusLabel = widget.NewLabel("")
	state.statusLabel.Wrapping = fyne.TextWrapWord
	state.chartsHint = widget.NewLabel("Choose stones and CaR levels, then press Render plots.")
	state.chartsBox = container.NewVBox(state.chartsHint)
	state.warningsLabel = widget.NewLabel("")
	state.warningsLabel.Wrapping = fyne.TextWrapWord

	state.table = widget.NewTable(
		func() (int, int) { return len(state.summaryRows) + 1, len(summaryHeaders) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, cell fyne.CanvasObject) {
			label := cell.(*widget.Label)
			if id.Row == 0 {
				label.TextStyle = fyne.TextStyle{Bold: true}
				label.SetText(summaryHeaders[id.Col])
				return
			}
			label.TextStyle = fyne.TextStyle{}
			if id.Row-1 < len(state.summaryRows) {
				label.SetText(state.summaryRows[id.Row-1][id.Col])
			} else {
				label.SetText("")
			}
		},
	)
	for i, cw := range []float32{110, 170, 150, 60, 70, 330, 260} {
		state.table.SetColumnWidth(i, cw)
	}

	state.dirEntry.OnSubmitted = func(string) { loadAll(state) }
	browseBtn.OnTapped = func() { openFolderDialog(state) }
	rescanBtn.OnTapped = func() { loadAll(state) }
	state.modeSelect.OnChanged = func(s string) {
		state.viewMode = viewModeKey(s)
		savePrefs(state)
	}
	state.gridCheck.OnChanged = func(v bool) {
		state.showGrid = v
		savePrefs(state)
	}
	renderBtn.OnTapped = func() { renderCurrent(state) }

	stoneScroll := container.NewVScroll(state.stoneChecks)
	stoneScroll.SetMinSize(fyne.NewSize(sidebarWidth-20, 220))
	levelScroll := container.NewVScroll(state.levelChecks)
	levelScroll.SetMinSize(fyne.NewSize(sidebarWidth-20, 140))
	sidebar := container.NewVBox(
		widget.NewLabelWithStyle("Stones", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		stoneScroll,
		widget.NewLabelWithStyle("CaR levels (%)", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		levelScroll,
		widget.NewLabelWithStyle("View mode", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		state.modeSelect,
		state.gridCheck,
		renderBtn,
	)

	topBar := container.NewBorder(nil, nil,
		widget.NewLabel("Results folder:"),
		container.NewHBox(browseBtn, rescanBtn),
		state.dirEntry,
	)

	state.tabs = container.NewAppTabs(
		container.NewTabItem("Charts", container.NewScroll(state.chartsBox)),
		container.NewTabItem("Loaded results", container.NewBorder(nil, state.warningsLabel, nil, nil, state.table)),
	)
	state.tabs.OnSelected = func(*container.TabItem) {
		state.app.Preferences().SetInt("selectedTabIndex", state.tabs.SelectedIndex())
	}

	w.SetContent(container.NewBorder(
		container.NewVBox(topBar, state.statusLabel), nil,
		sidebar, nil,
		state.tabs,
	))

	buildMenus(state)
	loadPrefs(state)
	if *dirFlag != "" {
		state.resultsDir = *dirFlag
		state.dirEntry.SetText(*dirFlag)
	}
	loadAll(state)

	// Re-render the last request when the window width settles on a new
	// value, so overlay figures track the window size.
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(300 * time.Millisecond)
		defer ticker.Stop()
		var lastW float32
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				sz := w.Canvas().Size()
				if sz.Width == lastW {
					continue
				}
				lastW = sz.Width
				if state.lastRender == nil {
					continue
				}
				fyne.Do(func() { redrawFigures(state, state.lastRender) })
			}
		}
	}()
	w.SetOnClosed(func() {
		savePrefs(state)
		close(done)
	})

	fmt.Printf("[viewer] starting, results folder %q\n", state.resultsDir)
	w.ShowAndRun()
}

func viewModeKey(option string) string {
	switch {
	case strings.HasPrefix(option, "Stones per CaR"):
		return modeStonesPerCaR
	case strings.HasPrefix(option, "CaR per stone"):
		return modeCaRPerStone
	default:
		return modeGrid
	}
}

func viewModeOption(key string) string {
	switch key {
	case modeCaRPerStone:
		return viewModes[1]
	case modeGrid:
		return viewModes[2]
	default:
		return viewModes[0]
	}
}

func buildMenus(state *uiState) {
	openItem := fyne.NewMenuItem("Open Folder…", func() { openFolderDialog(state) })
	rescanItem := fyne.NewMenuItem("Rescan", func() { loadAll(state) })
	exportItem := fyne.NewMenuItem("Export All Figures…", func() { exportAllFigures(state) })

	var recentItems []*fyne.MenuItem
	for _, p := range recentDirs(state) {
		p := p
		recentItems = append(recentItems, fyne.NewMenuItem(truncatePath(p, 60), func() {
			state.dirEntry.SetText(p)
			loadAll(state)
		}))
	}
	if len(recentItems) > 0 {
		recentItems = append(recentItems,
			fyne.NewMenuItemSeparator(),
			fyne.NewMenuItem("Clear Recent", func() {
				state.app.Preferences().SetString("recentDirs", "")
				buildMenus(state)
			}))
	} else {
		none := fyne.NewMenuItem("(none)", nil)
		none.Disabled = true
		recentItems = []*fyne.MenuItem{none}
	}
	recentItem := fyne.NewMenuItem("Open Recent", nil)
	recentItem.ChildMenu = fyne.NewMenu("", recentItems...)

	fileMenu := fyne.NewMenu("File",
		openItem,
		recentItem,
		fyne.NewMenuItemSeparator(),
		rescanItem,
		exportItem,
	)
	state.window.SetMainMenu(fyne.NewMainMenu(fileMenu))

	for _, mod := range []fyne.KeyModifier{fyne.KeyModifierSuper, fyne.KeyModifierControl} {
		mod := mod
		state.window.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: mod},
			func(fyne.Shortcut) { openFolderDialog(state) })
		state.window.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: mod},
			func(fyne.Shortcut) { loadAll(state) })
		state.window.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: mod},
			func(fyne.Shortcut) { state.window.Close() })
	}
}

func openFolderDialog(state *uiState) {
	fd := dialog.NewFolderOpen(func(lu fyne.ListableURI, err error) {
		if err != nil || lu == nil {
			return
		}
		state.dirEntry.SetText(lu.Path())
		loadAll(state)
	}, state.window)
	fd.Show()
}

// loadAll rescans the results folder and rebuilds the selection widgets
// and the summary tab. Charts are left alone; rendering stays an
// explicit user action.
func loadAll(state *uiState) {
	dir := strings.TrimSpace(state.dirEntry.Text)
	if dir == "" {
		dir = state.resultsDir
		state.dirEntry.SetText(dir)
	}
	ds, warnings, err := results.LoadDirectory(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			dialog.ShowError(err, state.window)
			return
		}
		// A folder that does not exist yet is the first-run case, not
		// an error worth a dialog.
		ds, warnings = results.Dataset{}, nil
	}
	state.resultsDir = dir
	state.dataset = ds
	state.warnings = warnings

	labels := make([]string, 0, len(ds))
	state.labelToID = make(map[string]string, len(ds))
	for _, id := range ds.IDs() {
		label := uihelpers.StoneLabel(id, ds[id].Name)
		labels = append(labels, label)
		state.labelToID[label] = id
	}
	state.stoneChecks.Options = labels
	state.stoneChecks.Selected = append([]string(nil), labels...)
	state.stoneChecks.Refresh()

	union := ds.UnionLevels()
	state.levelChecks.Options = uihelpers.FormatLevels(union)
	state.levelChecks.Selected = uihelpers.FormatLevels(results.DefaultLevelSelection(state.cfg.DefaultLevels, union))
	state.levelChecks.Refresh()

	rebuildSummary(state)
	updateStatus(state)
	if len(ds) > 0 {
		addRecentDir(state, dir)
	}
	savePrefs(state)
}

func rebuildSummary(state *uiState) {
	rows := make([][]string, 0, len(state.dataset))
	for _, id := range state.dataset.IDs() {
		rec := state.dataset[id]
		n, years := "", ""
		if rec.Samples > 0 {
			n = strconv.Itoa(rec.Samples)
		}
		if rec.HorizonYears > 0 {
			years = strconv.Itoa(rec.HorizonYears)
		}
		rows = append(rows, []string{
			rec.ID,
			rec.Name,
			strings.Join(uihelpers.FormatLevels(rec.Levels()), ", "),
			n,
			years,
			composition.FormatOrdered(rec.Composition, state.cfg.SpeciesOrder),
			truncatePath(rec.Path, 48),
		})
	}
	state.summaryRows = rows
	state.table.Refresh()

	if len(state.warnings) > 0 {
		state.warningsLabel.SetText("Warnings:\n" + strings.Join(state.warnings, "\n"))
		state.warningsLabel.Show()
	} else {
		state.warningsLabel.SetText("")
		state.warningsLabel.Hide()
	}
}

func updateStatus(state *uiState) {
	if len(state.dataset) == 0 {
		state.statusLabel.SetText("No result files loaded. Put precomputed JSON files (e.g. A_CAR.json, B_CAR.json) in the results folder, then Rescan.")
		return
	}
	levels := strings.Join(uihelpers.FormatLevels(state.dataset.UnionLevels()), ", ")
	state.statusLabel.SetText(fmt.Sprintf("Loaded %d stone(s) — CaR levels: %s", len(state.dataset), levels))
}

func selectedStoneIDs(state *uiState) []string {
	ids := make([]string, 0, len(state.stoneChecks.Selected))
	for _, label := range state.stoneChecks.Selected {
		if id, ok := state.labelToID[label]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// renderCurrent reads the live selection, snapshots it and draws.
func renderCurrent(state *uiState) {
	ids := selectedStoneIDs(state)
	levels := uihelpers.ParseLevels(state.levelChecks.Selected)
	sort.Sort(sort.Reverse(sort.Float64Slice(levels)))
	if len(ids) == 0 || len(levels) == 0 {
		dialog.ShowInformation("Render", "Please select at least one stone and one CaR level.", state.window)
		return
	}
	records := make([]*results.CurveRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, state.dataset[id])
	}
	req := &renderRequest{records: records, levels: levels, mode: state.viewMode, grid: state.showGrid}
	state.lastRender = req
	redrawFigures(state, req)
}

func redrawFigures(state *uiState, req *renderRequest) {
	cw, chh := chartSize(state)
	opt := carchart.Options{Width: cw, Height: chh, ShowGrid: req.grid, SpeciesOrder: state.cfg.SpeciesOrder}
	figs := buildFigures(req, opt)
	state.figures = figs

	state.chartsBox.Objects = nil
	for i := range figs {
		f := figs[i]
		imgCanvas := canvas.NewImageFromImage(f.img)
		imgCanvas.FillMode = canvas.ImageFillContain
		b := f.img.Bounds()
		imgCanvas.SetMinSize(fyne.NewSize(float32(b.Dx()), float32(b.Dy())))
		exportBtn := widget.NewButton("Export PNG…", func() { exportFigurePNG(state, f) })
		state.chartsBox.Add(imgCanvas)
		state.chartsBox.Add(container.NewHBox(exportBtn))
		state.chartsBox.Add(widget.NewSeparator())
	}
	state.chartsBox.Refresh()
	fmt.Printf("[viewer] rendered %d figure(s), mode %s\n", len(figs), req.mode)
}

func buildFigures(req *renderRequest, opt carchart.Options) []renderedFigure {
	var figs []renderedFigure
	switch req.mode {
	case modeCaRPerStone:
		for _, rec := range req.records {
			figs = append(figs, renderedFigure{
				name: fmt.Sprintf("cars_per_stone_%s.png", rec.ID),
				img:  carchart.RenderStoneOverlay(rec, req.levels, opt),
			})
		}
	case modeGrid:
		figs = append(figs, renderedFigure{
			name: fmt.Sprintf("grid_%dx%d.png", len(req.records), len(req.levels)),
			img:  carchart.RenderGrid(req.records, req.levels, opt),
		})
	default:
		for _, level := range req.levels {
			figs = append(figs, renderedFigure{
				name: fmt.Sprintf("stones_per_car_CaR%s.png", results.FormatLevel(level)),
				img:  carchart.RenderLevelOverlay(req.records, level, opt),
			})
		}
	}
	return figs
}

func chartSize(state *uiState) (int, int) {
	w := state.window.Canvas().Size().Width
	if w <= 0 {
		w = 1200
	}
	return uihelpers.ComputeChartDimensions(int(w) - sidebarWidth)
}

func exportFigurePNG(state *uiState, fig renderedFigure) {
	if fig.img == nil {
		dialog.ShowInformation("Export", "No chart to export.", state.window)
		return
	}
	fd := dialog.NewFileSave(func(wr fyne.URIWriteCloser, err error) {
		if err != nil || wr == nil {
			return
		}
		defer wr.Close()
		data, err := carchart.EncodePNG(fig.img)
		if err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		if _, err := wr.Write(data); err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		fmt.Printf("[viewer] exported %s\n", wr.URI().Path())
	}, state.window)
	fd.SetFileName(fig.name)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png"}))
	fd.Show()
}

func exportAllFigures(state *uiState) {
	if len(state.figures) == 0 {
		dialog.ShowInformation("Export", "Render plots first.", state.window)
		return
	}
	fd := dialog.NewFolderOpen(func(lu fyne.ListableURI, err error) {
		if err != nil || lu == nil {
			return
		}
		dir := lu.Path()
		var failed []string
		for _, fig := range state.figures {
			data, err := carchart.EncodePNG(fig.img)
			if err == nil {
				err = os.WriteFile(filepath.Join(dir, fig.name), data, 0o644)
			}
			if err != nil {
				fmt.Printf("[viewer] export %s failed: %v\n", fig.name, err)
				failed = append(failed, fig.name)
				continue
			}
			fmt.Printf("[viewer] exported %s\n", filepath.Join(dir, fig.name))
		}
		if len(failed) > 0 {
			dialog.ShowError(fmt.Errorf("failed to export: %s", strings.Join(failed, ", ")), state.window)
			return
		}
		dialog.ShowInformation("Export", fmt.Sprintf("Exported %d figure(s) to %s", len(state.figures), dir), state.window)
	}, state.window)
	fd.Show()
}

func recentDirs(state *uiState) []string {
	raw := state.app.Preferences().StringWithFallback("recentDirs", "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, "\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			out = append(out, p)
		}
	}
	return out
}

func addRecentDir(state *uiState, dir string) {
	if dir == "" {
		return
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	list := []string{dir}
	for _, p := range recentDirs(state) {
		if p != dir {
			list = append(list, p)
		}
	}
	if len(list) > maxRecentDirs {
		list = list[:maxRecentDirs]
	}
	state.app.Preferences().SetString("recentDirs", strings.Join(list, "\n"))
	buildMenus(state)
}

func savePrefs(state *uiState) {
	prefs := state.app.Preferences()
	prefs.SetString("lastDir", state.resultsDir)
	prefs.SetString("viewMode", state.viewMode)
	prefs.SetBool("showGrid", state.showGrid)
	if state.tabs != nil {
		prefs.SetInt("selectedTabIndex", state.tabs.SelectedIndex())
	}
}

func loadPrefs(state *uiState) {
	prefs := state.app.Preferences()
	state.resultsDir = prefs.StringWithFallback("lastDir", state.resultsDir)
	state.viewMode = prefs.StringWithFallback("viewMode", state.viewMode)
	state.showGrid = prefs.BoolWithFallback("showGrid", state.showGrid)
	state.modeSelect.Selected = viewModeOption(state.viewMode)
	state.modeSelect.Refresh()
	state.gridCheck.Checked = state.showGrid
	state.gridCheck.Refresh()
	state.dirEntry.SetText(state.resultsDir)
	if idx := prefs.IntWithFallback("selectedTabIndex", 0); idx >= 0 && idx < len(state.tabs.Items) {
		state.tabs.SelectIndex(idx)
	}
}

func truncatePath(p string, max int) string {
	if len(p) <= max {
		return p
	}
	return "…" + p[len(p)-(max-1):]
}
