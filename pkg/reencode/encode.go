package reencode

import (
	"context"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/itchpage/pkg/frames"
)

// EncodeOptions controls GIF serialization.
type EncodeOptions struct {
	Colors int // palette size per frame, capped at 256
	Dither bool
}

// EncodeGIF writes seq as an infinitely looping GIF. Each frame gets its own
// median-cut palette and keeps its delay, rounded to GIF centiseconds.
func EncodeGIF(ctx context.Context, w io.Writer, seq frames.Sequence, opts EncodeOptions) error {
	if opts.Colors <= 0 || opts.Colors > NativeColors {
		opts.Colors = NativeColors
	}

	n := len(seq.Frames)
	out := &gif.GIF{
		Image:     make([]*image.Paletted, n),
		Delay:     make([]int, n),
		Disposal:  make([]byte, n),
		LoopCount: 0,
		Config:    image.Config{Width: seq.Width, Height: seq.Height},
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range seq.Frames {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out.Image[i] = palettize(f.Image, opts)
			out.Delay[i] = centiseconds(f.Delay)
			out.Disposal[i] = gif.DisposalNone
			if hasTransparency(f.Image) {
				out.Disposal[i] = gif.DisposalBackground
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return gif.EncodeAll(w, out)
}

func palettize(img image.Image, opts EncodeOptions) *image.Paletted {
	b := img.Bounds()
	pm := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), paletteFor(img, opts.Colors))
	drawer := draw.Drawer(draw.Src)
	if opts.Dither {
		drawer = draw.FloydSteinberg
	}
	drawer.Draw(pm, pm.Bounds(), img, b.Min)
	return pm
}

// centiseconds converts d to GIF delay units, rounding and keeping at least
// one unit so no frame degrades to the viewer's default.
func centiseconds(d time.Duration) int {
	cs := int((d + 5*time.Millisecond) / (10 * time.Millisecond))
	if cs < 1 {
		cs = 1
	}
	return cs
}
