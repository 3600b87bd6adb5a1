package viewerconf

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artiocarbon/CAR-ERW/src/composition"
)

// Config holds the optional viewer settings file (YAML or JSON). Every
// field has a default, so an absent file or an empty document is fine.
type Config struct {
	// ResultsDir is the directory scanned for result files.
	ResultsDir string `yaml:"results_dir" json:"results_dir"`
	// SpeciesOrder overrides the canonical composition display order.
	SpeciesOrder []string `yaml:"species_order" json:"species_order"`
	// DefaultLevels is the initial CaR selection, intersected with the
	// dataset union at startup.
	DefaultLevels []float64 `yaml:"default_levels" json:"default_levels"`
	ChartWidth    int       `yaml:"chart_width" json:"chart_width"`
	ChartHeight   int       `yaml:"chart_height" json:"chart_height"`
	ShowGrid      *bool     `yaml:"show_grid" json:"show_grid"`
}

// Default returns the built-in settings.
func Default() *Config {
	return (&Config{}).normalize()
}

// Grid reports whether charts draw grid lines (default true).
func (c *Config) Grid() bool {
	if c.ShowGrid == nil {
		return true
	}
	return *c.ShowGrid
}

func (c *Config) normalize() *Config {
	if c.ResultsDir == "" {
		c.ResultsDir = "results"
	}
	if len(c.SpeciesOrder) == 0 {
		c.SpeciesOrder = append([]string(nil), composition.DefaultOrder...)
	}
	if len(c.DefaultLevels) == 0 {
		c.DefaultLevels = []float64{95, 90, 85, 80}
	}
	if c.ChartWidth <= 0 {
		c.ChartWidth = 900
	} else if c.ChartWidth < 320 {
		c.ChartWidth = 320
	}
	if c.ChartHeight <= 0 {
		c.ChartHeight = 500
	} else if c.ChartHeight < 240 {
		c.ChartHeight = 240
	}
	return c
}

// LoadFromPath reads a config file (YAML or JSON) and returns the
// parsed Config. The format is detected by extension (.yaml, .yml,
// .json) or, failing that, by content.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Load(data, filepath.Ext(path))
}

// Load parses config bytes. ext is the file extension for the format
// hint; empty = detect from content.
func Load(data []byte, ext string) (*Config, error) {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}
	var c Config
	if ext == ".json" {
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse config json: %w", err)
		}
		return c.normalize(), nil
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return c.normalize(), nil
}

// LoadOrDefault loads path when it exists and falls back to the
// defaults when it does not. A file that exists but fails to parse is
// still an error.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	c, err := LoadFromPath(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return c, nil
}
