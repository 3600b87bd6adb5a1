package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const greenJSON = `{
  "composition_name": "Wollastonite blend",
  "time_years": [0, 5, 10],
  "curves": [
    {"car_level": 95, "guarantee_kg_per_t": [0, 40, 80]},
    {"car_level": 90, "guarantee_kg_per_t": [0, 55, 95]}
  ],
  "N": 2000,
  "years": 10,
  "composition": {"CaSiO3": 0.8, "MgSiO3": 0.2}
}`

func writeResultFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRunList(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "green_CAR.json", greenJSON)
	rootFlags.config = ""
	listFlags.dir = dir
	var out, errOut bytes.Buffer
	listCmd.SetOut(&out)
	listCmd.SetErr(&errOut)
	if err := runList(listCmd, nil); err != nil {
		t.Fatalf("runList: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"Stones: 1",
		"green (Wollastonite blend)",
		"CaR levels: 95, 90",
		"N=2000 years=10",
		"CaSiO3 80%, MgSiO3 20%",
		"All CaR levels: 95, 90",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("list output missing %q:\n%s", want, got)
		}
	}
	// The source file matters when identifier collisions resolve
	// last-wins; the listing names the file that won.
	if want := "file: " + filepath.Join(dir, "green_CAR.json"); !strings.Contains(got, want) {
		t.Fatalf("list output missing %q:\n%s", want, got)
	}
	if errOut.Len() != 0 {
		t.Fatalf("unexpected warnings: %s", errOut.String())
	}
}

func TestRunListReportsWarnings(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "green_CAR.json", greenJSON)
	writeResultFile(t, dir, "broken.json", "{not json")
	rootFlags.config = ""
	listFlags.dir = dir
	var out, errOut bytes.Buffer
	listCmd.SetOut(&out)
	listCmd.SetErr(&errOut)
	if err := runList(listCmd, nil); err != nil {
		t.Fatalf("runList: %v", err)
	}
	if !strings.Contains(errOut.String(), "could not read broken.json") {
		t.Fatalf("expected a skip warning, got: %s", errOut.String())
	}
}

func TestRunRenderAll(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "figs")
	writeResultFile(t, dir, "green_CAR.json", greenJSON)
	rootFlags.config = ""
	renderFlags.dir = dir
	renderFlags.out = outDir
	renderFlags.stones = nil
	renderFlags.levels = nil
	renderFlags.mode = "all"
	renderFlags.width = 420
	renderFlags.height = 280
	renderFlags.gridLines = true
	var out, errOut bytes.Buffer
	renderCmd.SetOut(&out)
	renderCmd.SetErr(&errOut)
	if err := runRender(renderCmd, nil); err != nil {
		t.Fatalf("runRender: %v", err)
	}
	// Default levels intersect to 95 and 90, so "all" yields two level
	// overlays, one stone overlay and the grid.
	for _, name := range []string{
		"stones_per_car_CaR95.png",
		"stones_per_car_CaR90.png",
		"cars_per_stone_green.png",
		"grid_1x2.png",
	} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("expected figure %s: %v", name, err)
		}
		if !bytes.HasPrefix(data, []byte("\x89PNG")) {
			t.Fatalf("%s is not a PNG", name)
		}
	}
	if got := strings.Count(out.String(), "wrote "); got != 4 {
		t.Fatalf("expected 4 wrote lines, got %d:\n%s", got, out.String())
	}
}

func TestRunRenderSingleMode(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "figs")
	writeResultFile(t, dir, "green_CAR.json", greenJSON)
	rootFlags.config = ""
	renderFlags.dir = dir
	renderFlags.out = outDir
	renderFlags.stones = []string{"green"}
	renderFlags.levels = []string{"95"}
	renderFlags.mode = "stones-per-car"
	renderFlags.width = 420
	renderFlags.height = 280
	renderFlags.gridLines = true
	var out bytes.Buffer
	renderCmd.SetOut(&out)
	renderCmd.SetErr(&bytes.Buffer{})
	if err := runRender(renderCmd, nil); err != nil {
		t.Fatalf("runRender: %v", err)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read out dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "stones_per_car_CaR95.png" {
		t.Fatalf("unexpected output files: %v", entries)
	}
}

func TestRunRenderBadInput(t *testing.T) {
	dir := t.TempDir()
	writeResultFile(t, dir, "green_CAR.json", greenJSON)
	rootFlags.config = ""
	renderCmd.SetOut(&bytes.Buffer{})
	renderCmd.SetErr(&bytes.Buffer{})
	renderFlags.dir = dir
	renderFlags.out = filepath.Join(t.TempDir(), "figs")
	renderFlags.stones = nil
	renderFlags.levels = nil
	renderFlags.width = 420
	renderFlags.height = 280

	renderFlags.mode = "sideways"
	if err := runRender(renderCmd, nil); err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("expected unknown mode error, got %v", err)
	}

	renderFlags.mode = "all"
	renderFlags.stones = []string{"granite"}
	if err := runRender(renderCmd, nil); err == nil || !strings.Contains(err.Error(), "none of the requested stones") {
		t.Fatalf("expected missing stone error, got %v", err)
	}

	renderFlags.stones = nil
	renderFlags.levels = []string{"ninety"}
	if err := runRender(renderCmd, nil); err == nil || !strings.Contains(err.Error(), "bad CaR level") {
		t.Fatalf("expected level parse error, got %v", err)
	}

	renderFlags.levels = nil
	renderFlags.dir = filepath.Join(dir, "missing")
	if err := runRender(renderCmd, nil); err == nil {
		t.Fatalf("expected scan error for a missing folder")
	}
}
