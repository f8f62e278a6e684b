package frames

import (
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/itchpage/pkg/errors"
)

// FromGIF decodes every frame of an animated GIF with its delay.
func FromGIF(r io.Reader) (Sequence, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return Sequence{}, errors.Conversion(err, "decode gif")
	}
	return fromDecodedGIF(g, 0)
}

// FromGIFFile opens path and calls FromGIF.
func FromGIFFile(path string) (Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sequence{}, errors.Wrap(errors.ErrCodeNotFound, err, "open %s", filepath.Base(path))
	}
	defer f.Close()
	return FromGIF(f)
}

// fromDecodedGIF composites g's frames. A positive fixed delay replaces the
// embedded delays.
func fromDecodedGIF(g *gif.GIF, fixed time.Duration) (Sequence, error) {
	if len(g.Image) == 0 {
		return Sequence{}, errors.Validation("gif has no frames")
	}

	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() {
		for _, p := range g.Image {
			screen = screen.Union(p.Bounds())
		}
	}

	canvas := image.NewRGBA(screen)
	frames := make([]Frame, 0, len(g.Image))
	for i, p := range g.Image {
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var saved *image.RGBA
		if disposal == gif.DisposalPrevious {
			saved = cloneRGBA(canvas)
		}

		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
		frames = append(frames, Frame{Image: cloneRGBA(canvas), Delay: gifDelay(g, i, fixed)})

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return NewSequence(frames)
}

func gifDelay(g *gif.GIF, i int, fixed time.Duration) time.Duration {
	if fixed > 0 {
		return fixed
	}
	if i >= len(g.Delay) || g.Delay[i] <= 0 {
		return DefaultDelay
	}
	return time.Duration(g.Delay[i]) * 10 * time.Millisecond
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
