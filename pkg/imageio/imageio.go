// Package imageio is the image validation and loading gate.
//
// Every path that reaches the layout solver, the compositor or the re-encoder
// has passed through [Validate]: the file exists, carries a recognised image
// extension, and its header decodes. Decoders for PNG, JPEG, GIF, BMP and WebP
// are registered on import.
package imageio

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/itchpage/pkg/errors"
)

// Extensions lists the recognised image file extensions.
var Extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp"}

// HasImageExt reports whether path has a recognised image extension.
func HasImageExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Source is a decoded image with its origin.
type Source struct {
	Path     string
	Image    image.Image
	Width    int
	Height   int
	HasAlpha bool
}

// Name returns the file's base name without extension, used for captions.
func (s Source) Name() string {
	base := filepath.Base(s.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Validate checks that path exists, has an image extension and a decodable
// header.
func Validate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotFound, err, "image not found: %s", path)
	}
	if info.IsDir() {
		return errors.Validation("%s is a directory", path)
	}
	if !HasImageExt(path) {
		return errors.Validation("unsupported image type: %s", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotFound, err, "open %s", path)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return errors.Validation("corrupt image %s: %v", path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return errors.Validation("image %s has no pixels", path)
	}
	return nil
}

// Load validates and fully decodes path.
func Load(path string) (Source, error) {
	if err := Validate(path); err != nil {
		return Source{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Source{}, errors.Wrap(errors.ErrCodeNotFound, err, "open %s", path)
	}
	defer f.Close()
	return decode(path, f)
}

func decode(path string, r io.Reader) (Source, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Source{}, errors.Conversion(err, "decode %s", path)
	}
	b := img.Bounds()
	return Source{
		Path:     path,
		Image:    img,
		Width:    b.Dx(),
		Height:   b.Dy(),
		HasAlpha: HasAlpha(img),
	}, nil
}

// LoadAll loads every path, skipping and logging the ones that fail. It
// returns a validation error wrapping ErrNoImages if nothing could be loaded.
func LoadAll(paths []string, logger *log.Logger) ([]Source, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	out := make([]Source, 0, len(paths))
	for _, p := range paths {
		src, err := Load(p)
		if err != nil {
			logger.Warn("skipping image", "path", p, "error", errors.UserMessage(err))
			continue
		}
		out = append(out, src)
	}
	if len(out) == 0 {
		return nil, errors.Wrap(errors.ErrCodeValidation, errors.ErrNoImages, "no valid images")
	}
	return out, nil
}

// ListImages returns the valid images directly inside dir, sorted by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "read %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !HasImageExt(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if Validate(p) == nil {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// HasAlpha reports whether img's color model can carry transparency and at
// least one pixel is not fully opaque.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// DefaultRatioTolerance is the relative aspect-ratio tolerance for covers.
const DefaultRatioTolerance = 0.01

// EnsureAspectRatio checks that w:h matches rw:rh within tol (relative).
// It returns a validation error wrapping ErrAspectRatio on mismatch.
func EnsureAspectRatio(w, h, rw, rh int, tol float64) error {
	if w <= 0 || h <= 0 || rw <= 0 || rh <= 0 {
		return errors.Wrap(errors.ErrCodeValidation, errors.ErrAspectRatio,
			"invalid dimensions %dx%d for ratio %d:%d", w, h, rw, rh)
	}
	want := float64(rw) / float64(rh)
	got := float64(w) / float64(h)
	if math.Abs(got-want)/want > tol {
		return errors.Wrap(errors.ErrCodeValidation, errors.ErrAspectRatio,
			"aspect ratio %.4f does not match %d:%d (%.4f)", got, rw, rh, want)
	}
	return nil
}
