package cover

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/imageio"
)

// Background selects how the cover canvas is filled.
type Background string

const (
	BackgroundSolid    Background = "solid"
	BackgroundGradient Background = "gradient"
	BackgroundBlur     Background = "blur"
)

const (
	DefaultColor     = "#2c3e50"
	GradientEndColor = "#34495e"

	BlurSigma      = 8
	BlurBrightness = 0.6
)

// ParseBackground accepts the canonical names as well as the labels
// "Solid Color", "Gradient" and "Image Blur". Empty means solid.
func ParseBackground(s string) (Background, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "solid", "solid color", "color":
		return BackgroundSolid, nil
	case "gradient":
		return BackgroundGradient, nil
	case "blur", "image blur", "image":
		return BackgroundBlur, nil
	}
	return "", errors.Validation("unknown background %q (want solid, gradient or blur)", s)
}

// ParseHex parses "#rgb" or "#rrggbb", with or without the leading '#'.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, errors.Validation("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, errors.Validation("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// Hex formats c as "#rrggbb".
func Hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

func (r *Renderer) background(opts Options) (*image.RGBA, error) {
	hex := opts.Color
	if hex == "" {
		hex = DefaultColor
	}
	base, err := ParseHex(hex)
	if err != nil {
		return nil, err
	}

	switch opts.Background {
	case BackgroundGradient:
		end, _ := ParseHex(GradientEndColor)
		return gradient(base, end), nil
	case BackgroundBlur:
		path := opts.BackgroundImage
		if path == "" {
			path = opts.Logo
		}
		if path != "" {
			canvas, err := blurred(path)
			if err == nil {
				return canvas, nil
			}
			r.logger().Warn("blur background failed, using solid", "path", path, "error", err)
		}
		fallback, _ := ParseHex(DefaultColor)
		return newCanvas(fallback), nil
	}
	return newCanvas(base), nil
}

// gradient blends from top to bottom.
func gradient(top, bottom color.Color) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	dc := gg.NewContextForRGBA(canvas)
	grad := gg.NewLinearGradient(0, 0, 0, Height)
	grad.AddColorStop(0, top)
	grad.AddColorStop(1, bottom)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, Width, Height)
	dc.Fill()
	return canvas
}

// blurred fills the canvas with the image at path, blurred and darkened.
func blurred(path string) (*image.RGBA, error) {
	src, err := imageio.Load(path)
	if err != nil {
		return nil, err
	}
	img := imaging.Fill(src.Image, Width, Height, imaging.Center, imaging.Lanczos)
	img = imaging.Blur(img, BlurSigma)
	img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		c.R = uint8(float64(c.R) * BlurBrightness)
		c.G = uint8(float64(c.G) * BlurBrightness)
		c.B = uint8(float64(c.B) * BlurBrightness)
		return c
	})
	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), img, image.Point{}, draw.Over)
	return canvas, nil
}
