package reencode

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"runtime"

	"github.com/disintegration/imaging"
	"github.com/soniakeys/quant/median"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/itchpage/pkg/frames"
)

// Decimate keeps frames 0, stride, 2*stride... with their delays, and at
// most limit of them. Order is preserved.
func Decimate(seq frames.Sequence, stride, limit int) frames.Sequence {
	if stride < 1 {
		stride = 1
	}
	kept := make([]frames.Frame, 0, len(seq.Frames)/stride+1)
	for i := 0; i < len(seq.Frames); i += stride {
		if limit > 0 && len(kept) == limit {
			break
		}
		kept = append(kept, seq.Frames[i])
	}
	return frames.Sequence{Frames: kept, Width: seq.Width, Height: seq.Height}
}

// Quantize reduces img to at most colors colors with median cut and returns
// it as a full-color image.
func Quantize(img image.Image, colors int, dither bool) *image.NRGBA {
	p := paletteFor(img, colors)
	b := img.Bounds()
	pm := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), p)
	drawer := draw.Drawer(draw.Src)
	if dither {
		drawer = draw.FloydSteinberg
	}
	drawer.Draw(pm, pm.Bounds(), img, b.Min)

	out := image.NewNRGBA(pm.Bounds())
	draw.Draw(out, out.Bounds(), pm, image.Point{}, draw.Src)
	return out
}

// paletteFor builds a median-cut palette of at most colors entries. Images
// with transparent pixels reserve one entry for full transparency.
func paletteFor(img image.Image, colors int) color.Palette {
	if colors > NativeColors {
		colors = NativeColors
	}
	if colors < 2 {
		colors = 2
	}
	if hasTransparency(img) {
		p := median.Quantizer(colors-1).Quantize(make(color.Palette, 0, colors), img)
		return append(color.Palette{color.Transparent}, p...)
	}
	return median.Quantizer(colors).Quantize(make(color.Palette, 0, colors), img)
}

func hasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return false
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0x8000 {
				return true
			}
		}
	}
	return false
}

// Reduce applies p to every frame of seq. Decimation runs first so only
// retained frames are resampled; the plan itself is derived from the full
// sequence, so the result matches applying the steps in order.
func Reduce(ctx context.Context, seq frames.Sequence, p Plan, dither bool) (frames.Sequence, error) {
	seq = Decimate(seq, p.Stride, MaxFrames)
	resize := p.Resizes(seq.Width, seq.Height)
	quantize := p.Quantizes()
	if !resize && !quantize {
		return seq, nil
	}

	out := make([]frames.Frame, len(seq.Frames))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range seq.Frames {
		i, f := i, f
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img := f.Image
			if resize {
				img = imaging.Resize(img, p.Width, p.Height, imaging.Lanczos)
			}
			if quantize {
				img = Quantize(img, p.MaxColors, dither)
			}
			out[i] = frames.Frame{Image: img, Delay: f.Delay}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return frames.Sequence{}, err
	}
	return frames.Sequence{Frames: out, Width: p.Width, Height: p.Height}, nil
}
