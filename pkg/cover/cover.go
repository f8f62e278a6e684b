// Package cover renders store-page cover images.
//
// A cover is always 630x500 (315:250). Text is kept inside a safe zone 40
// pixels in from every edge: the title is auto-fitted into the title band
// near the top, the studio line sits under it, the version string is
// anchored bottom-right and an optional logo bottom-left.
package cover

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/matzehuels/itchpage/pkg/compose"
	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/fonts"
	"github.com/matzehuels/itchpage/pkg/imageio"
)

const (
	Width  = 630
	Height = 500

	RatioW = 315
	RatioH = 250

	SafeMargin      = 40
	TitleAreaTop    = 60
	TitleAreaHeight = 120

	TitleMaxSize  = 72
	TitleMinSize  = 32
	TitleSizeStep = 2
	StudioSize    = 28
	VersionSize   = 20

	// LogoMax bounds both logo sides; smaller logos are not enlarged.
	LogoMax = 120

	studioGap = 20
)

// Text colors.
var (
	TitleColor   = color.White
	StudioColor  = color.RGBA{0xec, 0xf0, 0xf1, 0xff}
	VersionColor = color.RGBA{0xbd, 0xc3, 0xc7, 0xff}
	StrokeColor  = color.Black
	ShadowColor  = color.Black
)

// SafeWidth is the horizontal room available to text.
const SafeWidth = Width - 2*SafeMargin

// Options describes one cover.
type Options struct {
	Title   string
	Studio  string
	Version string

	Background Background
	// Color is the solid color or the gradient's start color.
	Color string
	// BackgroundImage is blurred for BackgroundBlur. When empty, Logo is used.
	BackgroundImage string

	Font   string
	Bold   bool
	Shadow bool

	Logo string

	// Guides draws the safe-zone overlay. Only previews set it.
	Guides bool
}

// Renderer draws covers with a font resolver.
type Renderer struct {
	Fonts  *fonts.Resolver
	Logger *log.Logger
}

// New returns a renderer using the shared font resolver.
func New(logger *log.Logger) *Renderer {
	return &Renderer{Fonts: fonts.Default(), Logger: logger}
}

// Render draws a cover. Only an invalid title, an unparsable color or a
// failed aspect check are errors; unreadable background and logo images
// are logged and skipped.
func (r *Renderer) Render(opts Options) (*image.RGBA, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return nil, errors.Validation("cover title cannot be empty")
	}
	canvas, err := r.background(opts)
	if err != nil {
		return nil, err
	}
	dc := gg.NewContextForRGBA(canvas)

	title, _ := r.fitTitle(opts.Title, opts.Font, opts.Bold)
	dc.SetFontFace(title)
	tw, th := dc.MeasureString(opts.Title)
	tx := (Width - tw) / 2
	ty := TitleAreaTop + (TitleAreaHeight-th)/2
	drawText(dc, opts.Title, tx, ty, textStyle{
		fill: TitleColor, stroke: 2, shadow: opts.Shadow, offset: 3,
	})

	if opts.Studio != "" {
		face, _ := r.resolver().Face(opts.Font, StudioSize, false)
		dc.SetFontFace(face)
		sw, _ := dc.MeasureString(opts.Studio)
		drawText(dc, opts.Studio, (Width-sw)/2, ty+th+studioGap, textStyle{
			fill: StudioColor, stroke: 2, shadow: opts.Shadow, offset: 2,
		})
	}

	if v := VersionLabel(opts.Version); v != "" {
		face, _ := r.resolver().Face(opts.Font, VersionSize, false)
		dc.SetFontFace(face)
		vw, vh := dc.MeasureString(v)
		drawText(dc, v, Width-vw-SafeMargin, Height-vh-SafeMargin, textStyle{
			fill: VersionColor, stroke: 1,
		})
	}

	if opts.Logo != "" {
		r.drawLogo(canvas, opts.Logo)
	}
	if opts.Guides {
		drawGuides(dc)
	}

	b := canvas.Bounds()
	if err := imageio.EnsureAspectRatio(b.Dx(), b.Dy(), RatioW, RatioH, imageio.DefaultRatioTolerance); err != nil {
		return nil, err
	}
	return canvas, nil
}

// VersionLabel formats a version string as "vX". Empty stays empty.
func VersionLabel(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return ""
	}
	return "v" + strings.TrimPrefix(strings.TrimPrefix(version, "v"), "V")
}

// fitTitle returns the largest face, from TitleMaxSize down to TitleMinSize,
// whose rendering of title fits SafeWidth, with its point size.
func (r *Renderer) fitTitle(title, name string, bold bool) (font.Face, int) {
	for size := TitleMaxSize; size >= TitleMinSize; size -= TitleSizeStep {
		face, _ := r.resolver().Face(name, float64(size), bold)
		if w, _ := fonts.Measure(face, title); w <= SafeWidth {
			return face, size
		}
	}
	face, _ := r.resolver().Face(name, TitleMinSize, bold)
	return face, TitleMinSize
}

// TitleSize reports the point size the title is rendered at.
func (r *Renderer) TitleSize(title, name string, bold bool) int {
	_, size := r.fitTitle(title, name, bold)
	return size
}

func (r *Renderer) drawLogo(canvas *image.RGBA, path string) {
	src, err := imageio.Load(path)
	if err != nil {
		r.logger().Warn("logo skipped", "path", path, "error", err)
		return
	}
	logo := imaging.Fit(src.Image, LogoMax, LogoMax, imaging.Lanczos)
	compose.Paste(canvas, logo, SafeMargin, Height-logo.Bounds().Dy()-SafeMargin)
}

type textStyle struct {
	fill   color.Color
	stroke int
	shadow bool
	offset float64
}

// drawText draws s with its top-left corner at (x, y). The stroke is drawn
// by stamping the text in a disc of the stroke radius before the fill.
func drawText(dc *gg.Context, s string, x, y float64, st textStyle) {
	if st.shadow {
		dc.SetColor(ShadowColor)
		dc.DrawStringAnchored(s, x+st.offset, y+st.offset, 0, 1)
	}
	if n := st.stroke; n > 0 {
		dc.SetColor(StrokeColor)
		for dy := -n; dy <= n; dy++ {
			for dx := -n; dx <= n; dx++ {
				if dx*dx+dy*dy > n*n || (dx == 0 && dy == 0) {
					continue
				}
				dc.DrawStringAnchored(s, x+float64(dx), y+float64(dy), 0, 1)
			}
		}
	}
	dc.SetColor(st.fill)
	dc.DrawStringAnchored(s, x, y, 0, 1)
}

func drawGuides(dc *gg.Context) {
	dc.SetColor(color.RGBA{0xff, 0, 0, 0xff})
	dc.SetLineWidth(2)
	dc.DrawRectangle(SafeMargin, SafeMargin, Width-2*SafeMargin, Height-2*SafeMargin)
	dc.Stroke()

	dc.SetColor(color.RGBA{0xff, 0xff, 0, 0xff})
	dc.SetLineWidth(1)
	dc.DrawRectangle(SafeMargin, TitleAreaTop, Width-2*SafeMargin, TitleAreaHeight)
	dc.Stroke()
}

// Preview scales a rendered cover to fit within w x h, keeping its ratio.
func Preview(img image.Image, w, h int) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return imaging.Clone(img)
	}
	scale := min(float64(w)/Width, float64(h)/Height)
	return imaging.Resize(img, int(Width*scale), int(Height*scale), imaging.Lanczos)
}

func (r *Renderer) resolver() *fonts.Resolver {
	if r.Fonts == nil {
		return fonts.Default()
	}
	return r.Fonts
}

func (r *Renderer) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

func newCanvas(c color.Color) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return canvas
}
