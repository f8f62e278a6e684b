package reencode

import (
	"math"
)

const (
	// BytesPerPixel is the empirical size of one palette-encoded pixel.
	BytesPerPixel = 1.5
	MinWidth      = 160
	MinHeight     = 120
	// MaxFrames is the hard cap on frames in an encoded animation.
	MaxFrames = 50
	// NativeColors is the GIF palette capacity.
	NativeColors = 256

	MiB = 1 << 20
)

// Budget is the caller's size target.
type Budget struct {
	MB        float64 // target size in megabytes
	Quality   int     // 1..100; 90 and above enables dithering
	MaxColors int     // 0 or >= 256 keeps the native palette size
}

// Bytes is the exact budget used for the short-circuit comparison.
func (b Budget) Bytes() int64 {
	return int64(b.MB * MiB)
}

// PlanBytes is the budget used for dimension planning: whole megabytes,
// truncated, never below 1MB.
func (b Budget) PlanBytes() int64 {
	mb := int64(b.MB)
	if mb < 1 {
		mb = 1
	}
	return mb * MiB
}

// Dither reports whether quantization should diffuse errors.
func (b Budget) Dither() bool {
	return b.Quality >= 90
}

// Plan is the reduction applied uniformly to every frame.
type Plan struct {
	Width     int
	Height    int
	MaxColors int
	Stride    int
}

// Resizes reports whether the plan changes dimensions of a w x h source.
func (p Plan) Resizes(w, h int) bool {
	return p.Width != w || p.Height != h
}

// Quantizes reports whether the plan reduces the palette below native.
func (p Plan) Quantizes() bool {
	return p.MaxColors < NativeColors
}

// PlanFor derives the plan for frames of w x h.
func PlanFor(w, h, frames int, b Budget) Plan {
	tw, th := TargetDimensions(w, h, b.PlanBytes(), frames)
	colors := NativeColors
	if b.MaxColors > 0 && b.MaxColors < NativeColors {
		colors = b.MaxColors
	}
	return Plan{
		Width:     tw,
		Height:    th,
		MaxColors: colors,
		Stride:    Stride(frames, MaxFrames),
	}
}

// TargetPixels returns the per-frame pixel count that fits budget bytes.
func TargetPixels(budget int64, frames int) float64 {
	if frames < 1 {
		frames = 1
	}
	return float64(budget) / (float64(frames) * BytesPerPixel)
}

// TargetDimensions scales w x h down so one frame fits its share of the
// budget. Sources that already fit are returned unchanged.
func TargetDimensions(w, h int, budget int64, frames int) (int, int) {
	target := TargetPixels(budget, frames)
	current := float64(w) * float64(h)
	if current <= target {
		return w, h
	}
	scale := math.Sqrt(target / current)
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	return max(MinWidth, nw), max(MinHeight, nh)
}

// Stride returns floor(n/limit), or 1 when n fits the limit.
func Stride(n, limit int) int {
	if limit <= 0 || n <= limit {
		return 1
	}
	return n / limit
}
