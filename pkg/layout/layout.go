package layout

import (
	"math"
	"strings"

	"github.com/matzehuels/itchpage/pkg/errors"
)

// Canvas and spacing limits for the inline-image presentation surface.
const (
	// TargetWidth is the maximum inline image width of the store page.
	TargetWidth = 920

	MinGutter     = 4
	MaxGutter     = 32
	DefaultGutter = 12

	// DefaultMaxColumns caps the masonry column count.
	DefaultMaxColumns = 3
)

// Strategy selects a layout algorithm.
type Strategy string

// Supported strategies.
const (
	Grid    Strategy = "grid"
	Masonry Strategy = "masonry"
	Linear  Strategy = "linear"
)

// Strategies lists the supported strategies in display order.
var Strategies = []Strategy{Grid, Masonry, Linear}

// ParseStrategy maps a user-supplied name ("Grid", "masonry", ...) to a
// Strategy. Unknown names fall back to Grid.
func ParseStrategy(s string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case Masonry:
		return Masonry
	case Linear:
		return Linear
	default:
		return Grid
	}
}

// Title returns the display name of the strategy ("Grid", "Masonry", "Linear").
func (s Strategy) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Size is the pixel size of a source image.
type Size struct {
	W, H int
}

// Rect is a placement rectangle in canvas coordinates, origin top-left.
type Rect struct {
	X, Y, W, H int
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.W }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.H }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Overlaps reports whether r and o share any pixel.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Result is the output of Solve. Rects is index-aligned with the input sizes.
type Result struct {
	Rects   []Rect
	Width   int
	Height  int
	Columns int
}

// Options configures Solve. Zero values select the defaults.
type Options struct {
	Strategy    Strategy
	TargetWidth int
	Gutter      int
	MaxColumns  int
}

func (o Options) normalized() Options {
	if o.Strategy == "" {
		o.Strategy = Grid
	}
	if o.TargetWidth <= 0 {
		o.TargetWidth = TargetWidth
	}
	o.Gutter = ClampGutter(o.Gutter)
	if o.MaxColumns <= 0 {
		o.MaxColumns = DefaultMaxColumns
	}
	return o
}

// ClampGutter returns g when it lies within [MinGutter, MaxGutter] and
// DefaultGutter otherwise.
func ClampGutter(g int) int {
	if g < MinGutter || g > MaxGutter {
		return DefaultGutter
	}
	return g
}

// GridShape returns the column and row count used for n grid cells.
func GridShape(n int) (cols, rows int) {
	switch {
	case n <= 2:
		return n, 1
	case n <= 4:
		return 2, 2
	case n <= 6:
		return 3, 2
	case n <= 9:
		return 3, 3
	default:
		return 4, int(math.Ceil(float64(n) / 4))
	}
}

// Solve computes placement rectangles for images of the given sizes.
func Solve(sizes []Size, opts Options) (Result, error) {
	if len(sizes) == 0 {
		return Result{}, errors.Wrap(errors.ErrCodeValidation, errors.ErrNoImages, "no images provided")
	}
	for i, s := range sizes {
		if s.W <= 0 || s.H <= 0 {
			return Result{}, errors.Validation("image %d has invalid size %dx%d", i, s.W, s.H)
		}
	}

	opts = opts.normalized()
	switch opts.Strategy {
	case Masonry:
		return solveMasonry(sizes, opts), nil
	case Linear:
		return solveLinear(sizes, opts), nil
	default:
		return solveGrid(len(sizes), opts), nil
	}
}

// columnWidth splits width into cols equal columns separated by gutter.
func columnWidth(width, cols, gutter int) int {
	w := (width - (cols-1)*gutter) / cols
	if w < 1 {
		return 1
	}
	return w
}

// scaledHeight returns the floor of width * h / w, never less than one pixel.
func scaledHeight(width int, s Size) int {
	h := width * s.H / s.W
	if h < 1 {
		return 1
	}
	return h
}

func solveGrid(n int, opts Options) Result {
	cols, rows := GridShape(n)
	cell := columnWidth(opts.TargetWidth, cols, opts.Gutter)

	rects := make([]Rect, n)
	for i := range rects {
		row, col := i/cols, i%cols
		rects[i] = Rect{
			X: col * (cell + opts.Gutter),
			Y: row * (cell + opts.Gutter),
			W: cell,
			H: cell,
		}
	}

	return Result{
		Rects:   rects,
		Width:   opts.TargetWidth,
		Height:  rows*cell + (rows-1)*opts.Gutter,
		Columns: cols,
	}
}

func solveMasonry(sizes []Size, opts Options) Result {
	cols := min(len(sizes), opts.MaxColumns)
	colW := columnWidth(opts.TargetWidth, cols, opts.Gutter)

	heights := make([]int, cols)
	rects := make([]Rect, len(sizes))
	for i, s := range sizes {
		c := shortestColumn(heights)
		h := scaledHeight(colW, s)
		rects[i] = Rect{X: c * (colW + opts.Gutter), Y: heights[c], W: colW, H: h}
		heights[c] += h + opts.Gutter
	}

	return Result{
		Rects:   rects,
		Width:   opts.TargetWidth,
		Height:  maxOf(heights) - opts.Gutter,
		Columns: cols,
	}
}

// shortestColumn returns the index of the first column with the minimum height.
func shortestColumn(heights []int) int {
	best := 0
	for i, h := range heights {
		if h < heights[best] {
			best = i
		}
	}
	return best
}

func maxOf(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func solveLinear(sizes []Size, opts Options) Result {
	rects := make([]Rect, len(sizes))
	y := 0
	for i, s := range sizes {
		h := scaledHeight(opts.TargetWidth, s)
		rects[i] = Rect{X: 0, Y: y, W: opts.TargetWidth, H: h}
		y += h + opts.Gutter
	}

	return Result{
		Rects:   rects,
		Width:   opts.TargetWidth,
		Height:  y - opts.Gutter,
		Columns: 1,
	}
}

// Fit scales the result down so it fits within width x maxHeight, as used for
// preview thumbnails. Rectangles are never scaled below one pixel. A result
// that already fits is returned unchanged.
func (r Result) Fit(width, maxHeight int) Result {
	if r.Width <= 0 || r.Height <= 0 {
		return r
	}
	f := math.Min(float64(width)/float64(r.Width), float64(maxHeight)/float64(r.Height))
	if f >= 1 {
		return r
	}

	scale := func(v int) int { return int(float64(v) * f) }
	out := Result{
		Rects:   make([]Rect, len(r.Rects)),
		Width:   max(1, scale(r.Width)),
		Height:  max(1, scale(r.Height)),
		Columns: r.Columns,
	}
	for i, rc := range r.Rects {
		out.Rects[i] = Rect{X: scale(rc.X), Y: scale(rc.Y), W: max(1, scale(rc.W)), H: max(1, scale(rc.H))}
	}
	return out
}
