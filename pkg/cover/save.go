package cover

import (
	"image"
	"path/filepath"
	"time"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/imageio"
	"github.com/matzehuels/itchpage/pkg/sink"
)

// DefaultPrefix is the stem prefix for covers saved without an explicit stem.
const DefaultPrefix = "cover-630x500"

// SaveOptions controls which files Save writes.
type SaveOptions struct {
	Dir  string
	Stem string // empty: DefaultPrefix_<timestamp>, suffixed _2, _3 when taken
	PNG  bool
	JPEG bool
	// Metadata is embedded as PNG text chunks. JPEG output carries none.
	Metadata []sink.TextChunk
	Now      time.Time
}

// Metadata returns the text chunks recorded in cover PNGs.
func Metadata(opts Options, tool string, now time.Time) []sink.TextChunk {
	return []sink.TextChunk{
		{Key: "Title", Value: opts.Title},
		{Key: "Studio", Value: opts.Studio},
		{Key: "Version", Value: opts.Version},
		{Key: "Generated", Value: now.Format(sink.TimestampLayout)},
		{Key: "Tool", Value: tool},
	}
}

// Save writes img as PNG and/or JPEG. The aspect ratio is checked before
// anything touches the disk. Paths are returned PNG first.
func Save(img image.Image, opts SaveOptions) ([]string, error) {
	if !opts.PNG && !opts.JPEG {
		return nil, errors.Validation("no cover format selected")
	}
	b := img.Bounds()
	if err := imageio.EnsureAspectRatio(b.Dx(), b.Dy(), RatioW, RatioH, imageio.DefaultRatioTolerance); err != nil {
		return nil, err
	}

	stem := opts.Stem
	if stem == "" {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		var exts []string
		if opts.PNG {
			exts = append(exts, ".png")
		}
		if opts.JPEG {
			exts = append(exts, ".jpg")
		}
		slot, err := sink.Reserve(opts.Dir, DefaultPrefix+"_"+now.Format(sink.TimestampLayout), exts...)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "reserve output name")
		}
		defer slot.Release()
		stem = slot.Stem
	}
	if err := errors.ValidateFilenameStem(stem); err != nil {
		return nil, err
	}

	var paths []string
	if opts.PNG {
		p := filepath.Join(opts.Dir, stem+".png")
		if err := sink.WritePNG(p, img, opts.Metadata...); err != nil {
			return paths, errors.Wrap(errors.ErrCodeInternal, err, "write %s", p)
		}
		paths = append(paths, p)
	}
	if opts.JPEG {
		p := filepath.Join(opts.Dir, stem+".jpg")
		if err := sink.WriteJPEG(p, img, sink.DefaultJPEGQuality); err != nil {
			return paths, errors.Wrap(errors.ErrCodeInternal, err, "write %s", p)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
