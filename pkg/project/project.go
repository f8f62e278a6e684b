// Package project reads batch inputs: project descriptors, CSV files of cover
// rows and folders of screenshots. It also stores the user's preferences.
//
// A descriptor names the project once and lists the assets to build:
//
//	title = "Starfall"
//	studio = "Nebula Works"
//	version = "1.2"
//	output_dir = "out"
//
//	[cover]
//	background = "gradient"
//	color = "#1b2838"
//
//	[collage]
//	images = ["shots/a.png", "shots/b.png"]
//	layout = "masonry"
//
//	[gif]
//	input = "trailer.mp4"
//	target_size_mb = 3
//
// The same document can be written as YAML or JSON. Each section decodes onto
// the operation's defaults, so a descriptor only states what differs.
package project

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/pipeline"
)

// Format is a descriptor encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DefaultOutputDir is used when a descriptor names no output directory.
const DefaultOutputDir = "output"

// Descriptor is a decoded project file. A nil section is not built.
type Descriptor struct {
	Title     string
	Studio    string
	Version   string
	OutputDir string

	Cover   *pipeline.CoverConfig
	Collage *pipeline.CollageConfig
	GIF     *pipeline.GifConfig
}

// document mirrors the file layout. The project and output tables are the
// older nested spelling of the top-level keys.
type document struct {
	Title     string `json:"title" toml:"title" yaml:"title"`
	Studio    string `json:"studio" toml:"studio" yaml:"studio"`
	Version   string `json:"version" toml:"version" yaml:"version"`
	OutputDir string `json:"output_dir" toml:"output_dir" yaml:"output_dir"`

	Project struct {
		Title   string `json:"title" toml:"title" yaml:"title"`
		Studio  string `json:"studio" toml:"studio" yaml:"studio"`
		Version string `json:"version" toml:"version" yaml:"version"`
	} `json:"project" toml:"project" yaml:"project"`
	Output struct {
		Directory string `json:"directory" toml:"directory" yaml:"directory"`
	} `json:"output" toml:"output" yaml:"output"`

	Cover   pipeline.CoverConfig   `json:"cover" toml:"cover" yaml:"cover"`
	Collage pipeline.CollageConfig `json:"collage" toml:"collage" yaml:"collage"`
	GIF     pipeline.GifConfig     `json:"gif" toml:"gif" yaml:"gif"`
}

// FormatFor picks the descriptor format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", errors.Validation("unsupported project file %s (want .toml, .yaml or .json)", filepath.Base(path))
}

// Load reads and decodes the descriptor at path.
func Load(path string) (*Descriptor, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "project file not found: %s", path)
		}
		return nil, errors.Configuration(err, "read project file %s", path)
	}
	d, err := Decode(data, format)
	if err != nil {
		return nil, errors.Configuration(err, "parse project file %s", path)
	}
	return d, nil
}

// Decode parses a descriptor. Sections absent from data stay nil.
func Decode(data []byte, format Format) (*Descriptor, error) {
	present, err := sections(data, format)
	if err != nil {
		return nil, err
	}

	doc := document{
		Cover:   pipeline.NewCoverConfig(),
		Collage: pipeline.NewCollageConfig(),
		GIF:     pipeline.NewGifConfig(),
	}
	switch format {
	case FormatTOML:
		_, err = toml.Decode(string(data), &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		err = errors.Validation("unknown descriptor format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return doc.descriptor(present), nil
}

// sections reports which top-level tables data defines.
func sections(data []byte, format Format) (map[string]bool, error) {
	raw := map[string]any{}
	var err error
	switch format {
	case FormatTOML:
		_, err = toml.Decode(string(data), &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(&raw)
	}
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(raw))
	for k, v := range raw {
		present[k] = v != nil
	}
	return present, nil
}

func (doc *document) descriptor(present map[string]bool) *Descriptor {
	d := &Descriptor{
		Title:     first(doc.Title, doc.Project.Title),
		Studio:    first(doc.Studio, doc.Project.Studio),
		Version:   first(doc.Version, doc.Project.Version),
		OutputDir: first(doc.OutputDir, doc.Output.Directory, DefaultOutputDir),
	}
	if present["cover"] {
		c := doc.Cover
		d.Cover = &c
	}
	if present["collage"] {
		c := doc.Collage
		d.Collage = &c
	}
	if present["gif"] {
		c := doc.GIF
		d.GIF = &c
	}
	return d
}

func first(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// CoverConfig returns the cover section completed with the project text.
// A missing title becomes "Untitled".
func (d *Descriptor) CoverConfig() (pipeline.CoverConfig, bool) {
	if d.Cover == nil {
		return pipeline.CoverConfig{}, false
	}
	cfg := *d.Cover
	cfg.Title = first(cfg.Title, d.Title, "Untitled")
	cfg.Studio = first(cfg.Studio, d.Studio)
	cfg.Version = first(cfg.Version, d.Version)
	cfg.OutputDir = d.outputDir(cfg.OutputDir)
	return cfg, true
}

// CollageConfig returns the collage section when it lists images.
func (d *Descriptor) CollageConfig() (pipeline.CollageConfig, bool) {
	if d.Collage == nil || len(d.Collage.Images) == 0 {
		return pipeline.CollageConfig{}, false
	}
	cfg := *d.Collage
	cfg.Images = append([]string(nil), cfg.Images...)
	cfg.OutputDir = d.outputDir(cfg.OutputDir)
	return cfg, true
}

// GifConfig returns the gif section when it names an input.
func (d *Descriptor) GifConfig() (pipeline.GifConfig, bool) {
	if d.GIF == nil || strings.TrimSpace(d.GIF.Input) == "" {
		return pipeline.GifConfig{}, false
	}
	cfg := *d.GIF
	cfg.OutputDir = d.outputDir(cfg.OutputDir)
	return cfg, true
}

// outputDir lets a section override the project directory. The defaulted
// "." of a section does not count as an override.
func (d *Descriptor) outputDir(section string) string {
	if section == "" || section == pipeline.DefaultOutputDir {
		return d.OutputDir
	}
	return section
}

// Resolve makes relative input paths relative to base, normally the
// directory holding the descriptor.
func (d *Descriptor) Resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	dir := func(p string) string {
		if p == pipeline.DefaultOutputDir {
			return p
		}
		return abs(p)
	}
	d.OutputDir = abs(d.OutputDir)
	if d.Cover != nil {
		d.Cover.OutputDir = dir(d.Cover.OutputDir)
		d.Cover.Logo = abs(d.Cover.Logo)
		d.Cover.BackgroundImage = abs(d.Cover.BackgroundImage)
	}
	if d.Collage != nil {
		d.Collage.OutputDir = dir(d.Collage.OutputDir)
		for i, p := range d.Collage.Images {
			d.Collage.Images[i] = abs(p)
		}
	}
	if d.GIF != nil {
		d.GIF.OutputDir = dir(d.GIF.OutputDir)
		d.GIF.Input = abs(d.GIF.Input)
	}
}
