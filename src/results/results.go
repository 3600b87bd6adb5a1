package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Selection guards. Callers turn these into a visible prompt asking the
// user to pick at least one stone and one CaR level.
var (
	ErrNoStones = errors.New("no stones selected")
	ErrNoLevels = errors.New("no CaR levels selected")
)

// CurveRecord is one loaded result file: the guarantee time series of a
// single stone at one or more CaR levels.
type CurveRecord struct {
	// ID is the dataset key derived from the filename, unique per scan.
	ID string
	// Name is the display name: composition_name when present, else ID.
	Name string
	// Time is the shared time axis in years.
	Time []float64
	// Curves maps CaR level (percentage) to the guarantee series
	// (kg CO2 per tonne). Series length should match Time; not enforced.
	Curves map[float64][]float64
	// Samples and HorizonYears are upstream simulation metadata
	// (0 = absent, informational only).
	Samples      int
	HorizonYears int
	// Composition maps chemical species to fractional abundance.
	Composition map[string]float64
	// Path is the file the record was loaded from.
	Path string
}

// Dataset maps stone identifier to its record. Rebuilt wholesale on
// each directory scan; records are never mutated after load.
type Dataset map[string]*CurveRecord

// SelectedCurve is one drawable (stone, CaR level) pair.
type SelectedCurve struct {
	Record *CurveRecord
	Level  float64
}

// Series returns the guarantee sequence behind the selection.
func (s SelectedCurve) Series() []float64 { return s.Record.Curves[s.Level] }

// resultFile covers both accepted file shapes. Multi-curve files carry
// a curves array plus a shared top-level time axis; single-curve files
// carry car_level and guarantee_kg_per_t at the top level instead.
type resultFile struct {
	CompositionName string             `json:"composition_name"`
	TimeYears       []float64          `json:"time_years"`
	Curves          []curveEntry       `json:"curves"`
	CARLevel        *float64           `json:"car_level"`
	Guarantee       []float64          `json:"guarantee_kg_per_t"`
	Percentile      float64            `json:"percentile"`
	N               float64            `json:"N"`
	Years           float64            `json:"years"`
	Composition     map[string]float64 `json:"composition"`
}

type curveEntry struct {
	CARLevel   float64   `json:"car_level"`
	Percentile float64   `json:"percentile"`
	Guarantee  []float64 `json:"guarantee_kg_per_t"`
}

// Identifier derives the dataset key from a result file name: the base
// name without the .json extension and without a trailing _CAR marker
// (case-sensitive). "wollastonite_CAR.json" -> "wollastonite",
// "basalt.json" -> "basalt".
func Identifier(path string) string {
	id := strings.TrimSuffix(filepath.Base(path), ".json")
	return strings.TrimSuffix(id, "_CAR")
}

// FormatLevel renders a CaR level for labels and filenames ("95",
// "92.5") without a trailing decimal point for whole percentages.
func FormatLevel(level float64) string {
	return strconv.FormatFloat(level, 'f', -1, 64)
}

// ParseLevel is the inverse of FormatLevel.
func ParseLevel(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// LoadRecord reads one result file and normalizes either schema shape
// into a CurveRecord. Errors do not repeat the path; the caller has it.
func LoadRecord(path string) (*CurveRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rf resultFile
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	rec := &CurveRecord{
		ID:           Identifier(path),
		Time:         rf.TimeYears,
		Curves:       make(map[float64][]float64),
		Samples:      int(rf.N),
		HorizonYears: int(rf.Years),
		Composition:  rf.Composition,
		Path:         path,
	}
	if rec.Time == nil {
		rec.Time = []float64{}
	}
	if len(rf.Curves) > 0 {
		for _, c := range rf.Curves {
			g := c.Guarantee
			if g == nil {
				g = []float64{}
			}
			// Duplicate level within one file: last entry wins.
			rec.Curves[c.CARLevel] = g
		}
	} else {
		if rf.CARLevel == nil && rf.Guarantee == nil {
			return nil, errors.New("no curve data")
		}
		var level float64
		if rf.CARLevel != nil {
			level = *rf.CARLevel
		}
		g := rf.Guarantee
		if g == nil {
			g = []float64{}
		}
		rec.Curves[level] = g
	}
	rec.Name = strings.TrimSpace(rf.CompositionName)
	if rec.Name == "" {
		rec.Name = rec.ID
	}
	return rec, nil
}

// LoadDirectory scans dir for *.json files in lexicographic filename
// order and builds the Dataset. A file that fails to load is skipped:
// the skip is logged and reported in the returned warnings, and the
// scan continues. Identifier collisions keep the later file and record
// a warning. Only an unreadable directory is an error.
func LoadDirectory(dir string) (Dataset, []string, error) {
	defer TimeTrack(time.Now(), "scan "+dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	ds := make(Dataset)
	var warnings []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := LoadRecord(filepath.Join(dir, e.Name()))
		if err != nil {
			w := fmt.Sprintf("could not read %s: %v", e.Name(), err)
			Warnf("%s", w)
			warnings = append(warnings, w)
			continue
		}
		if prev, ok := ds[rec.ID]; ok {
			w := fmt.Sprintf("duplicate identifier %q: %s replaces %s", rec.ID, e.Name(), filepath.Base(prev.Path))
			Warnf("%s", w)
			warnings = append(warnings, w)
		}
		ds[rec.ID] = rec
	}
	Infof("loaded %d result file(s) from %s", len(ds), dir)
	return ds, warnings, nil
}

// IDs returns the stone identifiers in lexicographic order.
func (ds Dataset) IDs() []string {
	ids := make([]string, 0, len(ds))
	for id := range ds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UnionLevels returns every CaR level appearing in any record, sorted
// descending (highest confidence first, the domain convention).
func (ds Dataset) UnionLevels() []float64 {
	seen := make(map[float64]bool)
	var levels []float64
	for _, rec := range ds {
		for l := range rec.Curves {
			if !seen[l] {
				seen[l] = true
				levels = append(levels, l)
			}
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(levels)))
	return levels
}

// DefaultLevelSelection picks the initial CaR level selection: the
// preferred levels that are actually available (kept in preference
// order), or every available level when none of the preferred ones
// exist.
func DefaultLevelSelection(preferred, available []float64) []float64 {
	have := make(map[float64]bool, len(available))
	for _, l := range available {
		have[l] = true
	}
	var out []float64
	for _, l := range preferred {
		if have[l] {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		out = append(out, available...)
	}
	return out
}

// Levels returns the record's own CaR levels, sorted descending.
func (r *CurveRecord) Levels() []float64 {
	levels := make([]float64, 0, len(r.Curves))
	for l := range r.Curves {
		levels = append(levels, l)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(levels)))
	return levels
}

// Select resolves the chosen stones and CaR levels into the exact list
// of drawable pairs, ordered by the given stone order then the given
// level order. Unknown stones, missing levels and empty guarantee
// series yield no pair; that is not an error. Empty selections are
// rejected with ErrNoStones/ErrNoLevels so the UI can prompt instead
// of rendering nothing.
func (ds Dataset) Select(stoneIDs []string, levels []float64) ([]SelectedCurve, error) {
	if len(stoneIDs) == 0 {
		return nil, ErrNoStones
	}
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}
	var sel []SelectedCurve
	for _, id := range stoneIDs {
		rec, ok := ds[id]
		if !ok {
			continue
		}
		for _, level := range levels {
			g, ok := rec.Curves[level]
			if !ok || len(g) == 0 {
				continue
			}
			sel = append(sel, SelectedCurve{Record: rec, Level: level})
		}
	}
	return sel, nil
}
