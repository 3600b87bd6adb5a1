package composition

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultOrder is the canonical species display order: these come
// first, in this relative order; remaining species follow
// alphabetically.
var DefaultOrder = []string{"CaSiO3", "MgSiO3", "NaAlSi3O8", "KAlSi3O8"}

// Placeholder is shown when a record carries no composition data.
const Placeholder = "composition: n/a"

// Format renders a composition mapping as percentage shares using
// DefaultOrder.
func Format(comp map[string]float64) string {
	return FormatOrdered(comp, DefaultOrder)
}

// FormatOrdered renders each species as "<species> <pct>%" (share of
// the value sum, rounded to the nearest whole number), joined with
// ", ". Species in order come first; the rest follow alphabetically.
// A zero value sum is treated as 1 so degenerate all-zero input yields
// 0% entries instead of a division error.
func FormatOrdered(comp map[string]float64, order []string) string {
	if len(comp) == 0 {
		return Placeholder
	}
	var sum float64
	for _, v := range comp {
		sum += v
	}
	if sum == 0 {
		sum = 1
	}
	parts := make([]string, 0, len(comp))
	emit := func(species string) {
		parts = append(parts, fmt.Sprintf("%s %d%%", species, int(math.Round(comp[species]/sum*100))))
	}
	inOrder := make(map[string]bool, len(order))
	for _, s := range order {
		inOrder[s] = true
		if _, ok := comp[s]; ok {
			emit(s)
		}
	}
	var rest []string
	for s := range comp {
		if !inOrder[s] {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	for _, s := range rest {
		emit(s)
	}
	return strings.Join(parts, ", ")
}
