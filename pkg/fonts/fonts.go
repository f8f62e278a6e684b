// Package fonts resolves text faces through an explicit fallback chain.
//
// A request for a named font walks an ordered list of candidates and returns
// the first one that loads:
//
//  1. a font file path (when the name points at a .ttf/.otf file)
//  2. a system font found by family name
//  3. the bundled Go fonts compiled into the binary
//  4. the fixed 7x13 bitmap face, which never fails
//
// Parsed fonts are cached per resolver; faces are created per call because a
// face is not safe for concurrent use.
package fonts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/flopp/go-findfont"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Source identifies which fallback candidate produced a face.
type Source int

const (
	SourceFile Source = iota
	SourceSystem
	SourceBundled
	SourceBasic
)

func (s Source) String() string {
	switch s {
	case SourceFile:
		return "file"
	case SourceSystem:
		return "system"
	case SourceBundled:
		return "bundled"
	default:
		return "basic"
	}
}

// DefaultFamily is the family requested when callers pass an empty name.
const DefaultFamily = "Arial"

// Loader returns raw font bytes for a family name, or an error when this
// candidate cannot supply it.
type Loader func(name string, bold bool) (key string, data []byte, err error)

// Candidate is one step of the fallback chain.
type Candidate struct {
	Source Source
	Load   Loader
}

// Resolver walks its candidates in order.
type Resolver struct {
	Candidates []Candidate
	Logger     *log.Logger

	mu     sync.Mutex
	parsed map[string]*opentype.Font
}

// NewResolver returns a resolver with the standard chain: file path, system
// font, bundled font.
func NewResolver() *Resolver {
	return &Resolver{
		Candidates: []Candidate{
			{Source: SourceFile, Load: LoadFile},
			{Source: SourceSystem, Load: LoadSystem},
			{Source: SourceBundled, Load: LoadBundled},
		},
	}
}

var (
	defaultResolver     *Resolver
	defaultResolverOnce sync.Once
)

// Default returns a process-wide resolver with the standard chain.
func Default() *Resolver {
	defaultResolverOnce.Do(func() { defaultResolver = NewResolver() })
	return defaultResolver
}

// Face returns a face for name at size points. It never fails: when no
// candidate loads, the basic bitmap face is returned.
func (r *Resolver) Face(name string, size float64, bold bool) (font.Face, Source) {
	if name == "" {
		name = DefaultFamily
	}
	for _, c := range r.Candidates {
		f, err := r.load(c, name, bold)
		if err != nil {
			r.logger().Debug("font candidate failed", "font", name, "source", c.Source, "error", err)
			continue
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			r.logger().Debug("font face failed", "font", name, "source", c.Source, "error", err)
			continue
		}
		return face, c.Source
	}
	return basicfont.Face7x13, SourceBasic
}

func (r *Resolver) load(c Candidate, name string, bold bool) (*opentype.Font, error) {
	key, data, err := c.Load(name, bold)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.parsed[key]; ok {
		return f, nil
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	if r.parsed == nil {
		r.parsed = make(map[string]*opentype.Font)
	}
	r.parsed[key] = f
	return f, nil
}

func (r *Resolver) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return discard
}

var discard = log.New(io.Discard)

// LoadFile treats name as a path to a TrueType or OpenType file.
func LoadFile(name string, _ bool) (string, []byte, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".ttf" && ext != ".otf" {
		return "", nil, fmt.Errorf("%s is not a font file", name)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", nil, err
	}
	return "file:" + name, data, nil
}

// LoadSystem searches the platform font directories for name. Bold requests
// try the common bold file naming schemes before the regular face.
func LoadSystem(name string, bold bool) (string, []byte, error) {
	var tries []string
	if bold {
		tries = append(tries, name+"-Bold", name+" Bold", name+"bd")
	}
	tries = append(tries, name)

	var lastErr error
	for _, t := range tries {
		path, err := findfont.Find(t)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		return "system:" + path, data, nil
	}
	return "", nil, lastErr
}

// LoadBundled returns the Go fonts compiled into the binary.
func LoadBundled(_ string, bold bool) (string, []byte, error) {
	if bold {
		return "bundled:gobold", gobold.TTF, nil
	}
	return "bundled:goregular", goregular.TTF, nil
}

// Measure returns the advance width and the ascent+descent height of text.
func Measure(face font.Face, text string) (w, h int) {
	m := face.Metrics()
	return font.MeasureString(face, text).Ceil(), (m.Ascent + m.Descent).Ceil()
}
