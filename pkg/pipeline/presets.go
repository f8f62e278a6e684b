package pipeline

import (
	"sort"
	"strings"

	"github.com/matzehuels/itchpage/pkg/errors"
)

// Preset is a named one-click configuration applied across all exports.
type Preset struct {
	Name        string
	Background  string
	Color       string
	Font        string
	Bold        bool
	Shadow      bool
	GifTargetMB float64
	GifQuality  int
	Layout      string
	Gutter      int
}

// Presets holds the built-in presets by lower-case name.
var Presets = map[string]Preset{
	"jam": {
		Name:        "jam",
		Background:  "solid",
		Color:       "#111111",
		Font:        "Impact",
		Bold:        true,
		Shadow:      true,
		GifTargetMB: 3,
		GifQuality:  85,
		Layout:      "grid",
		Gutter:      12,
	},
}

// PresetNames returns the preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset finds a preset by name, case-insensitively.
func LookupPreset(name string) (Preset, error) {
	p, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, errors.Validation("unknown preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	return p, nil
}

// ApplyCover copies the preset's cover settings onto c.
func (p Preset) ApplyCover(c *CoverConfig) {
	c.Background = p.Background
	c.Color = p.Color
	c.Font = p.Font
	c.Bold = p.Bold
	c.Shadow = p.Shadow
}

// ApplyCollage copies the preset's collage settings onto c.
func (p Preset) ApplyCollage(c *CollageConfig) {
	c.Layout = p.Layout
	c.Gutter = p.Gutter
}

// ApplyGif copies the preset's GIF settings onto c.
func (p Preset) ApplyGif(c *GifConfig) {
	c.TargetMB = p.GifTargetMB
	c.Quality = p.GifQuality
}
