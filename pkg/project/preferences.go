package project

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/pipeline"
	"github.com/matzehuels/itchpage/pkg/sink"
)

// Cache backends a user can choose. Probe results are not kept between runs
// unless the user opts in to the file or redis backend.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Preferences are the settings remembered between runs.
type Preferences struct {
	LastOutputDir  string   `toml:"last_output_dir"`
	PreferredFonts []string `toml:"preferred_fonts"`
	GifQuality     int      `toml:"gif_quality"`
	CacheBackend   string   `toml:"cache_backend"`
	RedisURL       string   `toml:"redis_url,omitempty"`
}

// DefaultPreferences returns the settings used before anything was saved.
func DefaultPreferences() Preferences {
	out := "."
	if home, err := os.UserHomeDir(); err == nil {
		out = filepath.Join(home, "Desktop")
	}
	return Preferences{
		LastOutputDir:  out,
		PreferredFonts: []string{"Arial", "Helvetica", "Times New Roman"},
		GifQuality:     pipeline.DefaultGifQuality,
		CacheBackend:   CacheNone,
	}
}

// PreferencesPath returns $XDG_CONFIG_HOME/itchpage/config.toml.
func PreferencesPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Configuration(err, "locate config directory")
	}
	return filepath.Join(dir, "itchpage", "config.toml"), nil
}

// LoadPreferences reads path over the defaults. A missing file yields the
// defaults; a malformed one is a configuration error.
func LoadPreferences(path string) (Preferences, error) {
	p := DefaultPreferences()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return p, errors.Configuration(err, "read preferences %s", path)
	}
	if _, err := toml.Decode(string(data), &p); err != nil {
		return DefaultPreferences(), errors.Configuration(err, "parse preferences %s", path)
	}
	p.normalize()
	return p, nil
}

// Save writes the preferences to path atomically.
func (p Preferences) Save(path string) error {
	p.normalize()
	err := sink.WriteAtomic(path, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(p)
	})
	if err != nil {
		return errors.Configuration(err, "save preferences %s", path)
	}
	return nil
}

func (p *Preferences) normalize() {
	p.CacheBackend = strings.ToLower(strings.TrimSpace(p.CacheBackend))
	switch p.CacheBackend {
	case CacheFile, CacheRedis, CacheNone:
	default:
		p.CacheBackend = CacheNone
	}
	if p.GifQuality <= 0 || p.GifQuality > 100 {
		p.GifQuality = pipeline.DefaultGifQuality
	}
}

// Font returns the first preferred font, or the pipeline default.
func (p Preferences) Font() string {
	for _, f := range p.PreferredFonts {
		if strings.TrimSpace(f) != "" {
			return f
		}
	}
	return pipeline.DefaultFont
}
