package pipeline

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/itchpage/pkg/cover"
	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/ffmpeg"
	"github.com/matzehuels/itchpage/pkg/frames"
)

// Preview box used when callers pass a non-positive size.
const (
	DefaultPreviewWidth  = 460
	DefaultPreviewHeight = 400
)

func previewBox(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return DefaultPreviewWidth, DefaultPreviewHeight
	}
	return w, h
}

// PreviewCover renders the cover with safe-zone guides and scales it into
// a w x h box. Nothing is written.
func (r *Runner) PreviewCover(ctx context.Context, cfg CoverConfig, w, h int) (image.Image, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := cfg.Options()
	opts.Guides = true
	img, err := (&cover.Renderer{Fonts: r.resolver(), Logger: r.logger()}).Render(opts)
	if err != nil {
		return nil, err
	}
	w, h = previewBox(w, h)
	return cover.Preview(img, w, h), nil
}

// PreviewCollage composes the collage with its layout scaled down into a
// w x h box. Nothing is written.
func (r *Runner) PreviewCollage(ctx context.Context, cfg CollageConfig, w, h int) (image.Image, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w, h = previewBox(w, h)
	canvas, _, err := r.composeCollage(ctx, cfg, w, h)
	if err != nil {
		return nil, err
	}
	return canvas, nil
}

// PreviewGIF returns the first frame of the configured input scaled into a
// w x h box.
func (r *Runner) PreviewGIF(ctx context.Context, cfg GifConfig, w, h int) (image.Image, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	first, err := r.firstFrame(ctx, cfg)
	if err != nil {
		return nil, err
	}
	w, h = previewBox(w, h)
	return imaging.Fit(first, w, h, imaging.Lanczos), nil
}

func (r *Runner) firstFrame(ctx context.Context, cfg GifConfig) (image.Image, error) {
	if frames.IsGIF(cfg.Input) {
		seq, err := frames.FromGIFFile(cfg.Input)
		if err != nil {
			return nil, err
		}
		return seq.Frames[0].Image, nil
	}
	if r.Toolchain != nil && r.Toolchain.Detect(ctx) {
		imgs, err := r.Toolchain.ExtractFrames(ctx, cfg.Input, ffmpeg.ExtractOptions{
			FPS:       1,
			Start:     cfg.Start,
			MaxFrames: 1,
		})
		if err == nil && len(imgs) > 0 {
			return imgs[0], nil
		}
		r.logger().Debug("preview frame extraction failed", "input", cfg.Input, "error", err)
	}
	seq, err := frames.Decode(cfg.Input)
	if err != nil {
		return nil, err
	}
	if seq.Len() == 0 {
		return nil, errors.Conversion(nil, "no frames in %s", cfg.Input)
	}
	return seq.Frames[0].Image, nil
}
