package frames

import (
	"image"
	"time"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/itchpage/pkg/errors"
)

const (
	// DefaultDelay applies to GIF frames without an embedded delay.
	DefaultDelay = 100 * time.Millisecond
	// FallbackDelay is the nominal delay of frames read by bundled decoders.
	FallbackDelay = 200 * time.Millisecond
	// FallbackMaxFrames caps bundled decoders.
	FallbackMaxFrames = 100
	// MinDelay is the shortest representable frame delay.
	MinDelay = time.Millisecond
)

// Frame is one image and how long it stays on screen.
type Frame struct {
	Image image.Image
	Delay time.Duration
}

// Sequence is an ordered animation whose frames share Width x Height.
type Sequence struct {
	Frames []Frame
	Width  int
	Height int
}

// Len returns the frame count.
func (s Sequence) Len() int { return len(s.Frames) }

// Duration returns the sum of all frame delays.
func (s Sequence) Duration() time.Duration {
	var d time.Duration
	for _, f := range s.Frames {
		d += f.Delay
	}
	return d
}

// NewSequence builds a sequence from frames, clamping delays to MinDelay
// and resampling any frame whose size differs from the first.
func NewSequence(frames []Frame) (Sequence, error) {
	if len(frames) == 0 {
		return Sequence{}, errors.Validation("animation has no frames")
	}
	b := frames[0].Image.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return Sequence{}, errors.Validation("first frame has no pixels")
	}

	out := make([]Frame, len(frames))
	for i, f := range frames {
		img := f.Image
		if fb := img.Bounds(); fb.Dx() != w || fb.Dy() != h {
			img = imaging.Resize(img, w, h, imaging.Lanczos)
		}
		out[i] = Frame{Image: img, Delay: ClampDelay(f.Delay)}
	}
	return Sequence{Frames: out, Width: w, Height: h}, nil
}

// ClampDelay raises delays below MinDelay to MinDelay.
func ClampDelay(d time.Duration) time.Duration {
	if d < MinDelay {
		return MinDelay
	}
	return d
}

// Uniform returns frames that all share delay d.
func Uniform(images []image.Image, d time.Duration) []Frame {
	out := make([]Frame, len(images))
	for i, img := range images {
		out[i] = Frame{Image: img, Delay: d}
	}
	return out
}
