// Package pipeline runs the export operations shared by the CLI, the batch
// runner and the preview server.
//
// Each operation takes a typed configuration record:
//
//   - [CoverConfig]: a 630x500 cover with title, studio, version and logo
//   - [CollageConfig]: a 920px wide screenshot collage
//   - [GifConfig]: an animated GIF shrunk to a size budget, from a GIF or a video
//
// Records are built with their New* constructor, which applies the defaults,
// so partially decoded descriptors keep sensible values for missing fields.
// Validate clamps numeric parameters silently and rejects only what cannot
// be produced.
//
// # Usage
//
//	runner := pipeline.NewRunner(toolchain, logger)
//	cfg := pipeline.NewCoverConfig()
//	cfg.Title = "Starfall"
//	res, err := runner.Cover(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Paths)
package pipeline

import (
	"strings"
	"time"

	"github.com/matzehuels/itchpage/pkg/compose"
	"github.com/matzehuels/itchpage/pkg/cover"
	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/layout"
	"github.com/matzehuels/itchpage/pkg/reencode"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultOutputDir is used when a config names no output directory.
	DefaultOutputDir = "."

	// DefaultFont is the family requested from the font resolver.
	DefaultFont = "Arial"

	// DefaultGifMB is the default GIF size budget in megabytes.
	DefaultGifMB = 3.0

	// DefaultGifQuality is the default GIF quality (1..100).
	DefaultGifQuality = 80

	// MinGifColors is the smallest palette a GIF may be reduced to.
	MinGifColors = 2
)

// Output file name prefixes.
const (
	CollagePrefix = "screens-inline-920w"
	GifPrefix     = "promo"
)

// Export kinds reported in results and hooks.
const (
	KindCover   = "cover"
	KindCollage = "collage"
	KindGIF     = "gif"
)

// Format constants for cover outputs.
const (
	FormatPNG = "png"
	FormatJPG = "jpg"
)

// ValidFormats is the set of supported cover formats.
var ValidFormats = map[string]bool{
	FormatPNG: true,
	FormatJPG: true,
}

// GifSize is a named size budget.
type GifSize struct {
	Name string
	MB   float64
}

// GifSizes lists the size budgets offered to users.
var GifSizes = []GifSize{
	{"Small", 1},
	{"Medium", 3},
	{"Large", 6},
	{"X-Large", 10},
}

// ParseGifSize looks up a size by name, case-insensitively.
func ParseGifSize(name string) (float64, bool) {
	for _, s := range GifSizes {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s.MB, true
		}
	}
	return 0, false
}

// =============================================================================
// Results
// =============================================================================

// Result is the outcome of one export.
type Result struct {
	Kind  string
	Paths []string
	Stats Stats
}

// Stats contains export statistics.
type Stats struct {
	Inputs      int // inputs that were used
	Skipped     int // inputs dropped as unreadable
	Width       int
	Height      int
	Frames      int
	Bytes       int64
	Passthrough bool // GIF copied unchanged
	Transcoded  bool // GIF produced by the codec toolchain
	Duration    time.Duration
}

// =============================================================================
// Cover
// =============================================================================

// CoverConfig configures a cover export.
type CoverConfig struct {
	Title   string `json:"title" toml:"title" yaml:"title"`
	Studio  string `json:"studio,omitempty" toml:"studio" yaml:"studio,omitempty"`
	Version string `json:"version,omitempty" toml:"version" yaml:"version,omitempty"`

	OutputDir string   `json:"output_dir,omitempty" toml:"output_dir" yaml:"output_dir,omitempty"`
	Stem      string   `json:"filename_stem,omitempty" toml:"filename_stem" yaml:"filename_stem,omitempty"`
	Formats   []string `json:"formats,omitempty" toml:"formats" yaml:"formats,omitempty"`
	Metadata  bool     `json:"metadata" toml:"metadata" yaml:"metadata"`

	Background      string `json:"background,omitempty" toml:"background" yaml:"background,omitempty"`
	Color           string `json:"color,omitempty" toml:"color" yaml:"color,omitempty"`
	BackgroundImage string `json:"background_image,omitempty" toml:"background_image" yaml:"background_image,omitempty"`
	Font            string `json:"font,omitempty" toml:"font" yaml:"font,omitempty"`
	Bold            bool   `json:"bold" toml:"bold" yaml:"bold"`
	Shadow          bool   `json:"shadow" toml:"shadow" yaml:"shadow"`
	Logo            string `json:"logo,omitempty" toml:"logo" yaml:"logo,omitempty"`
}

// NewCoverConfig returns a cover config with all defaults applied.
func NewCoverConfig() CoverConfig {
	return CoverConfig{
		OutputDir:  DefaultOutputDir,
		Formats:    []string{FormatPNG},
		Metadata:   true,
		Background: string(cover.BackgroundSolid),
		Color:      cover.DefaultColor,
		Font:       DefaultFont,
		Bold:       true,
		Shadow:     true,
	}
}

// SetDefaults fills empty fields. Booleans are left as they are.
func (c *CoverConfig) SetDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if len(c.Formats) == 0 {
		c.Formats = []string{FormatPNG}
	}
	if c.Background == "" {
		c.Background = string(cover.BackgroundSolid)
	}
	if c.Color == "" {
		c.Color = cover.DefaultColor
	}
	if c.Font == "" {
		c.Font = DefaultFont
	}
}

// Validate checks fields that cannot be defaulted.
func (c *CoverConfig) Validate() error {
	c.SetDefaults()
	if strings.TrimSpace(c.Title) == "" {
		return errors.Validation("cover title is required")
	}
	if err := ValidateFormats(c.Formats); err != nil {
		return err
	}
	if _, err := cover.ParseBackground(c.Background); err != nil {
		return err
	}
	if _, err := cover.ParseHex(c.Color); err != nil {
		return err
	}
	if c.Stem != "" {
		if err := errors.ValidateFilenameStem(c.Stem); err != nil {
			return err
		}
	}
	return nil
}

// HasFormat reports whether format is selected.
func (c *CoverConfig) HasFormat(format string) bool {
	for _, f := range c.Formats {
		if normalizeFormat(f) == format {
			return true
		}
	}
	return false
}

// Options converts the config into renderer options.
func (c *CoverConfig) Options() cover.Options {
	bg, _ := cover.ParseBackground(c.Background)
	return cover.Options{
		Title:           c.Title,
		Studio:          c.Studio,
		Version:         c.Version,
		Background:      bg,
		Color:           c.Color,
		BackgroundImage: c.BackgroundImage,
		Font:            c.Font,
		Bold:            c.Bold,
		Shadow:          c.Shadow,
		Logo:            c.Logo,
	}
}

func normalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
	if f == "jpeg" {
		return FormatJPG
	}
	return f
}

// ValidateFormat checks that a cover format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[normalizeFormat(format)] {
		return errors.Validation("invalid format: %q (must be one of: png, jpg)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Collage
// =============================================================================

// CollageConfig configures a collage export.
type CollageConfig struct {
	Images    []string `json:"images" toml:"images" yaml:"images"`
	OutputDir string   `json:"output_dir,omitempty" toml:"output_dir" yaml:"output_dir,omitempty"`
	Stem      string   `json:"filename_stem,omitempty" toml:"filename_stem" yaml:"filename_stem,omitempty"`

	Layout        string `json:"layout,omitempty" toml:"layout" yaml:"layout,omitempty"`
	Gutter        int    `json:"gutter,omitempty" toml:"gutter" yaml:"gutter,omitempty"`
	MaxColumns    int    `json:"max_columns,omitempty" toml:"max_columns" yaml:"max_columns,omitempty"`
	Captions      bool   `json:"captions,omitempty" toml:"captions" yaml:"captions,omitempty"`
	CaptionHeight int    `json:"caption_height,omitempty" toml:"caption_height" yaml:"caption_height,omitempty"`
	Font          string `json:"font,omitempty" toml:"font" yaml:"font,omitempty"`
	// Background is a hex color; empty keeps the canvas transparent.
	Background string `json:"background,omitempty" toml:"background" yaml:"background,omitempty"`
}

// NewCollageConfig returns a collage config with all defaults applied.
func NewCollageConfig() CollageConfig {
	return CollageConfig{
		OutputDir:     DefaultOutputDir,
		Layout:        string(layout.Grid),
		Gutter:        layout.DefaultGutter,
		MaxColumns:    layout.DefaultMaxColumns,
		CaptionHeight: compose.DefaultCaptionHeight,
		Font:          DefaultFont,
	}
}

// SetDefaults fills empty fields and clamps the gutter.
func (c *CollageConfig) SetDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	c.Layout = string(layout.ParseStrategy(c.Layout))
	c.Gutter = layout.ClampGutter(c.Gutter)
	if c.MaxColumns <= 0 {
		c.MaxColumns = layout.DefaultMaxColumns
	}
	if c.CaptionHeight <= 0 {
		c.CaptionHeight = compose.DefaultCaptionHeight
	}
	if c.Font == "" {
		c.Font = DefaultFont
	}
}

// Validate checks fields that cannot be defaulted.
func (c *CollageConfig) Validate() error {
	c.SetDefaults()
	if len(c.Images) == 0 {
		return errors.Wrap(errors.ErrCodeValidation, errors.ErrNoImages, "collage needs at least one image")
	}
	if c.Background != "" {
		if _, err := cover.ParseHex(c.Background); err != nil {
			return err
		}
	}
	if c.Stem != "" {
		if err := errors.ValidateFilenameStem(c.Stem); err != nil {
			return err
		}
	}
	return nil
}

// LayoutOptions converts the config into solver options.
func (c *CollageConfig) LayoutOptions() layout.Options {
	return layout.Options{
		Strategy:    layout.ParseStrategy(c.Layout),
		TargetWidth: layout.TargetWidth,
		Gutter:      c.Gutter,
		MaxColumns:  c.MaxColumns,
	}
}

// =============================================================================
// GIF
// =============================================================================

// GifConfig configures a GIF export. Input is either an animated GIF or a
// video file.
type GifConfig struct {
	Input     string `json:"input" toml:"input" yaml:"input"`
	OutputDir string `json:"output_dir,omitempty" toml:"output_dir" yaml:"output_dir,omitempty"`
	Stem      string `json:"filename_stem,omitempty" toml:"filename_stem" yaml:"filename_stem,omitempty"`

	TargetMB  float64 `json:"target_size_mb,omitempty" toml:"target_size_mb" yaml:"target_size_mb,omitempty"`
	Quality   int     `json:"quality,omitempty" toml:"quality" yaml:"quality,omitempty"`
	MaxColors int     `json:"max_colors,omitempty" toml:"max_colors" yaml:"max_colors,omitempty"`

	// Video sampling.
	Start    float64 `json:"start_time,omitempty" toml:"start_time" yaml:"start_time,omitempty"`
	Duration float64 `json:"duration,omitempty" toml:"duration" yaml:"duration,omitempty"`
	FPS      float64 `json:"fps,omitempty" toml:"fps" yaml:"fps,omitempty"`
}

// NewGifConfig returns a GIF config with all defaults applied.
func NewGifConfig() GifConfig {
	return GifConfig{
		OutputDir: DefaultOutputDir,
		TargetMB:  DefaultGifMB,
		Quality:   DefaultGifQuality,
		MaxColors: reencode.NativeColors,
	}
}

// SetDefaults fills empty fields and clamps numeric parameters.
func (c *GifConfig) SetDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.TargetMB <= 0 {
		c.TargetMB = DefaultGifMB
	}
	if c.Quality <= 0 {
		c.Quality = DefaultGifQuality
	}
	c.Quality = min(c.Quality, 100)
	if c.MaxColors <= 0 || c.MaxColors > reencode.NativeColors {
		c.MaxColors = reencode.NativeColors
	}
	c.MaxColors = max(c.MaxColors, MinGifColors)
	c.Start = max(c.Start, 0)
	c.Duration = max(c.Duration, 0)
	c.FPS = max(c.FPS, 0)
}

// Validate checks fields that cannot be defaulted.
func (c *GifConfig) Validate() error {
	c.SetDefaults()
	if strings.TrimSpace(c.Input) == "" {
		return errors.Validation("gif input is required")
	}
	if c.Stem != "" {
		if err := errors.ValidateFilenameStem(c.Stem); err != nil {
			return err
		}
	}
	return nil
}

// Budget converts the config into a re-encoder budget.
func (c *GifConfig) Budget() reencode.Budget {
	return reencode.Budget{MB: c.TargetMB, Quality: c.Quality, MaxColors: c.MaxColors}
}
