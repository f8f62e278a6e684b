package frames

import (
	"context"
	"image"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/ffmpeg"
)

const (
	// MaxSampleFPS caps the sampling rate for video input.
	MaxSampleFPS = 15.0
	// MaxSampledFrames caps how many frames are sampled from video input.
	MaxSampledFrames = 100
)

// Toolchain is the part of the codec toolchain used for sampling video.
type Toolchain interface {
	Detect(ctx context.Context) bool
	Probe(ctx context.Context, path string) (ffmpeg.VideoInfo, error)
	ExtractFrames(ctx context.Context, path string, opts ffmpeg.ExtractOptions) ([]image.Image, error)
}

// SamplingRate returns min(native, 15) frames per second, lowered to
// 100/duration when more than 100 frames would be sampled. A non-positive
// native rate samples at 15.
func SamplingRate(nativeFPS, duration float64) float64 {
	fps := MaxSampleFPS
	if nativeFPS > 0 && nativeFPS < fps {
		fps = nativeFPS
	}
	if duration > 0 && int(duration*fps) > MaxSampledFrames {
		fps = MaxSampledFrames / duration
	}
	return fps
}

// VideoOptions selects the part of a video to sample.
type VideoOptions struct {
	Start    float64 // seconds
	Duration float64 // seconds; zero samples to the end
	FPS      float64 // explicit rate; zero derives it with SamplingRate
	Width    int     // decode width hint; zero keeps the source width
	Logger   *log.Logger
}

// FromVideo samples path through tc, falling back to the bundled decoders
// when tc is nil, unavailable, or fails.
func FromVideo(ctx context.Context, path string, tc Toolchain, opts VideoOptions) (Sequence, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var toolErr error
	if tc != nil && tc.Detect(ctx) {
		seq, err := sampleWithToolchain(ctx, path, tc, opts)
		if err == nil {
			return seq, nil
		}
		toolErr = err
		logger.Warn("codec toolchain failed, using bundled decoder", "path", path, "error", errors.UserMessage(err))
	} else {
		logger.Debug("codec toolchain unavailable, using bundled decoder", "path", path)
	}

	seq, err := Decode(path)
	if err != nil {
		if toolErr != nil {
			return Sequence{}, errors.Conversion(err, "decode %s (toolchain: %s)", path, errors.UserMessage(toolErr))
		}
		return Sequence{}, err
	}
	return seq, nil
}

func sampleWithToolchain(ctx context.Context, path string, tc Toolchain, opts VideoOptions) (Sequence, error) {
	info, err := tc.Probe(ctx, path)
	if err != nil {
		return Sequence{}, err
	}

	duration := opts.Duration
	if duration <= 0 {
		duration = info.Duration - opts.Start
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = SamplingRate(info.FPS, duration)
	}

	imgs, err := tc.ExtractFrames(ctx, path, ffmpeg.ExtractOptions{
		FPS:       fps,
		Start:     opts.Start,
		Duration:  opts.Duration,
		MaxFrames: MaxSampledFrames,
		Width:     opts.Width,
	})
	if err != nil {
		return Sequence{}, err
	}
	return NewSequence(Uniform(imgs, FrameDelay(fps)))
}

// FrameDelay converts a sampling rate into a per-frame delay.
func FrameDelay(fps float64) time.Duration {
	if fps <= 0 {
		return DefaultDelay
	}
	ms := math.Round(1000 / fps)
	return ClampDelay(time.Duration(ms) * time.Millisecond)
}
