package results

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeResultFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const multiCurveJSON = `{
	"composition_name": "Wollastonite blend",
	"time_years": [0, 5, 10],
	"curves": [
		{"car_level": 95, "percentile": 5, "guarantee_kg_per_t": [0, 40, 80]},
		{"car_level": 90, "percentile": 10, "guarantee_kg_per_t": [0, 55, 95]}
	],
	"N": 2000,
	"years": 10,
	"composition": {"CaSiO3": 0.8, "MgSiO3": 0.2}
}`

func TestLoadRecordMultiCurve(t *testing.T) {
	path := writeResultFile(t, t.TempDir(), "wollastonite_CAR.json", multiCurveJSON)
	rec, err := LoadRecord(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.ID != "wollastonite" {
		t.Fatalf("id %q want wollastonite", rec.ID)
	}
	if rec.Name != "Wollastonite blend" {
		t.Fatalf("name %q", rec.Name)
	}
	if !reflect.DeepEqual(rec.Time, []float64{0, 5, 10}) {
		t.Fatalf("time %v", rec.Time)
	}
	wantCurves := map[float64][]float64{95: {0, 40, 80}, 90: {0, 55, 95}}
	if !reflect.DeepEqual(rec.Curves, wantCurves) {
		t.Fatalf("curves %v want %v", rec.Curves, wantCurves)
	}
	if rec.Samples != 2000 || rec.HorizonYears != 10 {
		t.Fatalf("meta N=%d years=%d", rec.Samples, rec.HorizonYears)
	}
	if rec.Composition["CaSiO3"] != 0.8 {
		t.Fatalf("composition %v", rec.Composition)
	}
	if rec.Path != path {
		t.Fatalf("path %q want %q", rec.Path, path)
	}
}

func TestLoadRecordSingleCurve(t *testing.T) {
	path := writeResultFile(t, t.TempDir(), "basalt.json",
		`{"car_level": 85, "time_years": [0, 1, 2], "guarantee_kg_per_t": [0, 12.5, 20]}`)
	rec, err := LoadRecord(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec.ID != "basalt" || rec.Name != "basalt" {
		t.Fatalf("id=%q name=%q want basalt fallback", rec.ID, rec.Name)
	}
	if len(rec.Curves) != 1 {
		t.Fatalf("expected exactly one curve got %v", rec.Curves)
	}
	g, ok := rec.Curves[85]
	if !ok {
		t.Fatalf("curve keyed by car_level missing: %v", rec.Curves)
	}
	if !reflect.DeepEqual(g, []float64{0, 12.5, 20}) {
		t.Fatalf("guarantee %v", g)
	}
}

func TestLoadRecordCoercion(t *testing.T) {
	dir := t.TempDir()
	// Missing sequences become empty, never nil; missing car_level
	// coerces to level 0 as long as some curve data exists.
	path := writeResultFile(t, dir, "sparse.json", `{"car_level": 50}`)
	rec, err := LoadRecord(path)
	if err != nil {
		t.Fatalf("load sparse: %v", err)
	}
	if rec.Time == nil || len(rec.Time) != 0 {
		t.Fatalf("time should be empty non-nil: %#v", rec.Time)
	}
	if g := rec.Curves[50]; g == nil || len(g) != 0 {
		t.Fatalf("guarantee should be empty non-nil: %#v", g)
	}

	path = writeResultFile(t, dir, "nolevel.json", `{"guarantee_kg_per_t": [1, 2], "time_years": [0, 1]}`)
	rec, err = LoadRecord(path)
	if err != nil {
		t.Fatalf("load nolevel: %v", err)
	}
	if !reflect.DeepEqual(rec.Curves[0], []float64{1, 2}) {
		t.Fatalf("missing car_level should key level 0: %v", rec.Curves)
	}
}

func TestLoadRecordDuplicateLevelLastWins(t *testing.T) {
	path := writeResultFile(t, t.TempDir(), "dup_CAR.json",
		`{"time_years": [0], "curves": [
			{"car_level": 95, "guarantee_kg_per_t": [1]},
			{"car_level": 95, "guarantee_kg_per_t": [2]}
		]}`)
	rec, err := LoadRecord(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(rec.Curves[95], []float64{2}) {
		t.Fatalf("duplicate level should keep last entry: %v", rec.Curves[95])
	}
}

func TestLoadRecordNoCurveData(t *testing.T) {
	dir := t.TempDir()
	for _, data := range []string{`{}`, `{"composition_name": "empty", "curves": []}`} {
		path := writeResultFile(t, dir, "empty.json", data)
		if _, err := LoadRecord(path); err == nil {
			t.Fatalf("expected error for %s", data)
		}
	}
}

func TestIdentifier(t *testing.T) {
	cases := []struct{ in, want string }{
		{"A_CAR.json", "A"},
		{"B.json", "B"},
		{"/results/wollastonite_CAR.json", "wollastonite"},
		{"mix_CAR_v2.json", "mix_CAR_v2"},
		{"a_car.json", "a_car"}, // marker is case-sensitive
	}
	for _, c := range cases {
		if got := Identifier(c.in); got != c.want {
			t.Fatalf("Identifier(%q) = %q want %q", c.in, got, c.want)
		}
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "a_CAR.json", multiCurveJSON)
	writeResultFile(t, dir, "b.json", `{"car_level": 80, "time_years": [0], "guarantee_kg_per_t": [0]}`)
	writeResultFile(t, dir, "broken.json", `{not json`)
	writeResultFile(t, dir, "notes.txt", "ignored")

	ds, warnings, err := LoadDirectory(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("expected 2 records got %d (%v)", len(ds), ds.IDs())
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "broken.json") {
		t.Fatalf("expected one warning naming broken.json got %v", warnings)
	}
	if got := ds.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("ids %v", got)
	}
}

func TestLoadDirectoryMissing(t *testing.T) {
	if _, _, err := LoadDirectory(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestLoadDirectoryCollision(t *testing.T) {
	dir := t.TempDir()
	// Both derive identifier "mix"; "mix.json" sorts before "mix_CAR.json",
	// so the _CAR file is scanned later and wins.
	writeResultFile(t, dir, "mix.json", `{"composition_name": "first", "car_level": 90, "guarantee_kg_per_t": [1], "time_years": [0]}`)
	writeResultFile(t, dir, "mix_CAR.json", `{"composition_name": "second", "car_level": 90, "guarantee_kg_per_t": [2], "time_years": [0]}`)

	ds, warnings, err := LoadDirectory(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(ds) != 1 {
		t.Fatalf("expected collision to collapse to 1 record got %d", len(ds))
	}
	if ds["mix"].Name != "second" {
		t.Fatalf("later file should win, got %q", ds["mix"].Name)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "mix_CAR.json") || !strings.Contains(warnings[0], "mix.json") {
		t.Fatalf("collision warning should name both files: %v", warnings)
	}
}

func TestUnionLevels(t *testing.T) {
	ds := Dataset{
		"a": &CurveRecord{Curves: map[float64][]float64{95: {1}, 90: {1}}},
		"b": &CurveRecord{Curves: map[float64][]float64{90: {1}, 85: {1}}},
	}
	if got := ds.UnionLevels(); !reflect.DeepEqual(got, []float64{95, 90, 85}) {
		t.Fatalf("union %v want [95 90 85]", got)
	}
	if got := (Dataset{}).UnionLevels(); len(got) != 0 {
		t.Fatalf("empty dataset union %v", got)
	}
}

func TestRecordLevels(t *testing.T) {
	rec := &CurveRecord{Curves: map[float64][]float64{80: {1}, 95: {1}, 92.5: {1}}}
	if got := rec.Levels(); !reflect.DeepEqual(got, []float64{95, 92.5, 80}) {
		t.Fatalf("levels %v", got)
	}
}

func TestDefaultLevelSelection(t *testing.T) {
	preferred := []float64{95, 90, 85, 80}
	cases := []struct {
		available []float64
		want      []float64
	}{
		{[]float64{95, 90, 50}, []float64{95, 90}},
		{[]float64{90}, []float64{90}},
		{[]float64{75, 50}, []float64{75, 50}},
		{nil, nil},
	}
	for i, c := range cases {
		got := DefaultLevelSelection(preferred, c.available)
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("case %d: DefaultLevelSelection = %v want %v", i, got, c.want)
		}
	}
}

func TestSelect(t *testing.T) {
	ds := Dataset{
		"a": &CurveRecord{ID: "a", Curves: map[float64][]float64{95: {1, 2}, 90: {3, 4}}},
		"b": &CurveRecord{ID: "b", Curves: map[float64][]float64{90: {5, 6}, 85: {}}},
	}
	sel, err := ds.Select([]string{"a", "b"}, []float64{95, 90, 85})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	// a@95, a@90, b@90; b@85 has an empty series, b@95 does not exist.
	if len(sel) != 3 {
		t.Fatalf("expected 3 pairs got %d", len(sel))
	}
	if sel[0].Record.ID != "a" || sel[0].Level != 95 {
		t.Fatalf("pair order wrong: %+v", sel[0])
	}
	if sel[2].Record.ID != "b" || sel[2].Level != 90 {
		t.Fatalf("pair order wrong: %+v", sel[2])
	}
	if !reflect.DeepEqual(sel[2].Series(), []float64{5, 6}) {
		t.Fatalf("series %v", sel[2].Series())
	}

	// Unknown stone and absent level give no pairs, not an error.
	sel, err = ds.Select([]string{"zz"}, []float64{95})
	if err != nil || len(sel) != 0 {
		t.Fatalf("unknown stone: sel=%v err=%v", sel, err)
	}
	sel, err = ds.Select([]string{"b"}, []float64{42})
	if err != nil || len(sel) != 0 {
		t.Fatalf("absent level: sel=%v err=%v", sel, err)
	}
}

func TestSelectGuards(t *testing.T) {
	ds := Dataset{"a": &CurveRecord{Curves: map[float64][]float64{95: {1}}}}
	if _, err := ds.Select(nil, []float64{95}); !errors.Is(err, ErrNoStones) {
		t.Fatalf("want ErrNoStones got %v", err)
	}
	if _, err := ds.Select([]string{"a"}, nil); !errors.Is(err, ErrNoLevels) {
		t.Fatalf("want ErrNoLevels got %v", err)
	}
}

func TestFormatLevel(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{95, "95"},
		{92.5, "92.5"},
		{0, "0"},
	}
	for _, c := range cases {
		if got := FormatLevel(c.in); got != c.want {
			t.Fatalf("FormatLevel(%v) = %q want %q", c.in, got, c.want)
		}
	}
	if v, err := ParseLevel(" 85 "); err != nil || v != 85 {
		t.Fatalf("ParseLevel: %v %v", v, err)
	}
	if _, err := ParseLevel("high"); err == nil {
		t.Fatalf("ParseLevel should reject non-numeric input")
	}
}
