package uihelpers

import (
	"strings"

	"github.com/artiocarbon/CAR-ERW/src/results"
)

// ComputeChartDimensions applies the width/height clamp rules used for the
// overlay figures. Input: available raw width (window width minus the sidebar).
// Returns clamped width & height.
func ComputeChartDimensions(rawW int) (int, int) {
	w := rawW
	if w < 640 {
		w = 640
	}
	if w > 1600 {
		w = 1600
	}
	h := int(float32(w) * 0.55)
	if h < 320 {
		h = 320
	}
	if h > 640 {
		h = 640
	}
	return w, h
}

// FormatLevels renders levels as display strings (trailing zeros trimmed).
func FormatLevels(levels []float64) []string {
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		out = append(out, results.FormatLevel(l))
	}
	return out
}

// ParseLevels converts display strings back to numeric levels, skipping
// anything that does not parse.
func ParseLevels(labels []string) []float64 {
	var out []float64
	for _, s := range labels {
		l, err := results.ParseLevel(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		out = append(out, l)
	}
	return out
}

// StoneLabel builds the checkbox label for a stone: "id — name", or just the
// id when the name adds nothing.
func StoneLabel(id, name string) string {
	if name == "" || name == id {
		return id
	}
	return id + " — " + name
}
