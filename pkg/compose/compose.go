// Package compose paints source images into the rectangles produced by the
// layout solver.
//
// Every source is hard-resized with a Lanczos filter to exactly its
// rectangle. Sources with transparency are blended over the canvas using
// their own alpha; opaque sources overwrite it. The canvas is transparent
// unless a background color is set, and its width always equals the layout
// width.
//
// With captions enabled the canvas grows by one caption band per image. Each
// band is a translucent dark bar under its image carrying a centered label.
package compose

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"runtime"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/fonts"
	"github.com/matzehuels/itchpage/pkg/layout"
)

const (
	DefaultCaptionHeight   = 30
	DefaultCaptionFontSize = 12
)

// CaptionBar is the fill of a caption band.
var CaptionBar = color.NRGBA{0, 0, 0, 128}

// Options configures a composition.
type Options struct {
	Captions      bool
	CaptionHeight int
	Labels        []string // index-aligned with the images; missing labels render empty
	Background    color.Color
	Font          string
	FontSize      float64
	Fonts         *fonts.Resolver
}

func (o *Options) setDefaults() {
	if o.CaptionHeight <= 0 {
		o.CaptionHeight = DefaultCaptionHeight
	}
	if o.FontSize <= 0 {
		o.FontSize = DefaultCaptionFontSize
	}
	if o.Fonts == nil {
		o.Fonts = fonts.Default()
	}
}

// Compose resizes and pastes images into res and returns the canvas.
func Compose(ctx context.Context, images []image.Image, res layout.Result, opts Options) (*image.RGBA, error) {
	if len(images) == 0 {
		return nil, errors.Wrap(errors.ErrCodeValidation, errors.ErrNoImages, "no images to compose")
	}
	if len(images) != len(res.Rects) {
		return nil, errors.Validation("layout has %d rectangles for %d images", len(res.Rects), len(images))
	}
	opts.setDefaults()

	rects := res.Rects
	height := res.Height
	if opts.Captions {
		rects = CaptionRects(res.Rects, opts.CaptionHeight)
		height += len(images) * opts.CaptionHeight
	}

	resized, err := resizeAll(ctx, images, rects)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, res.Width, height))
	if opts.Background != nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	}

	var dc *gg.Context
	if opts.Captions {
		dc = gg.NewContextForRGBA(canvas)
		face, _ := opts.Fonts.Face(opts.Font, opts.FontSize, false)
		dc.SetFontFace(face)
	}

	for i, img := range resized {
		r := rects[i]
		Paste(canvas, img, r.X, r.Y)
		if dc != nil {
			label := ""
			if i < len(opts.Labels) {
				label = opts.Labels[i]
			}
			drawCaption(dc, label, r.X, r.Bottom(), r.W, opts.CaptionHeight)
		}
	}
	return canvas, nil
}

func resizeAll(ctx context.Context, images []image.Image, rects []layout.Rect) ([]*image.NRGBA, error) {
	out := make([]*image.NRGBA, len(images))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := rects[i]
			out[i] = imaging.Resize(img, r.W, r.H, imaging.Lanczos)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Paste draws src onto dst at (x, y), blending when src has transparency.
func Paste(dst draw.Image, src *image.NRGBA, x, y int) {
	op := draw.Src
	if !src.Opaque() {
		op = draw.Over
	}
	b := src.Bounds()
	draw.Draw(dst, image.Rect(x, y, x+b.Dx(), y+b.Dy()), src, b.Min, op)
}

func drawCaption(dc *gg.Context, text string, x, y, w, h int) {
	dc.SetColor(CaptionBar)
	dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	dc.Fill()
	if text == "" {
		return
	}
	dc.SetColor(color.White)
	dc.DrawStringAnchored(text, float64(x)+float64(w)/2, float64(y)+float64(h)/2, 0.5, 0.5)
}

// CaptionRects shifts each rectangle down by the caption bands of the
// rectangles stacked above it in the same columns, so every band fits
// between its image and the next one. The added height never exceeds
// len(rects)*captionHeight.
func CaptionRects(rects []layout.Rect, captionHeight int) []layout.Rect {
	out := make([]layout.Rect, len(rects))
	for i, r := range rects {
		shift := 0
		for j := 0; j < len(rects); j++ {
			above := rects[j]
			if j == i || above.Bottom() > r.Y {
				continue
			}
			if above.X < r.Right() && r.X < above.Right() {
				shift += captionHeight
			}
		}
		r.Y += shift
		out[i] = r
	}
	return out
}
