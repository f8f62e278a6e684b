package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/itchpage/pkg/buildinfo"
	"github.com/matzehuels/itchpage/pkg/compose"
	"github.com/matzehuels/itchpage/pkg/cover"
	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/ffmpeg"
	"github.com/matzehuels/itchpage/pkg/fonts"
	"github.com/matzehuels/itchpage/pkg/frames"
	"github.com/matzehuels/itchpage/pkg/imageio"
	"github.com/matzehuels/itchpage/pkg/layout"
	"github.com/matzehuels/itchpage/pkg/observability"
	"github.com/matzehuels/itchpage/pkg/reencode"
	"github.com/matzehuels/itchpage/pkg/sink"
)

// Toolchain is the codec toolchain used for video input. *ffmpeg.Toolchain
// implements it.
type Toolchain interface {
	frames.Toolchain
	Transcode(ctx context.Context, in, out string, opts ffmpeg.TranscodeOptions) error
}

// Runner executes exports. It holds no per-export state, so one Runner can
// serve concurrent exports as long as their destinations differ.
type Runner struct {
	Fonts     *fonts.Resolver
	Toolchain Toolchain // nil disables the codec toolchain
	Logger    *log.Logger
	// Tool is recorded in cover metadata.
	Tool string
	// Now stamps default file names.
	Now func() time.Time
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(tc Toolchain, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		Fonts:     fonts.Default(),
		Toolchain: tc,
		Logger:    logger,
		Tool:      buildinfo.Tool(),
		Now:       time.Now,
	}
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard)
	}
	return r.Logger
}

func (r *Runner) resolver() *fonts.Resolver {
	if r.Fonts == nil {
		return fonts.Default()
	}
	return r.Fonts
}

// track reports the export to the observability hooks.
func (r *Runner) track(ctx context.Context, kind string, inputs int) func(*Result, error) {
	start := time.Now()
	observability.Export().OnExportStart(ctx, kind, inputs)
	return func(res *Result, err error) {
		var paths []string
		if res != nil {
			paths = res.Paths
			res.Stats.Duration = time.Since(start)
		}
		observability.Export().OnExportComplete(ctx, kind, paths, time.Since(start), err)
	}
}

// =============================================================================
// Cover
// =============================================================================

// Cover renders and writes a cover. The aspect ratio is verified before any
// file is written.
func (r *Runner) Cover(ctx context.Context, cfg CoverConfig) (res *Result, err error) {
	done := r.track(ctx, KindCover, 1)
	defer func() { done(res, err) }()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	renderer := &cover.Renderer{Fonts: r.resolver(), Logger: r.logger()}
	img, err := renderer.Render(cfg.Options())
	if err != nil {
		return nil, err
	}

	now := r.now()
	save := cover.SaveOptions{
		Dir:  cfg.OutputDir,
		Stem: cfg.Stem,
		PNG:  cfg.HasFormat(FormatPNG),
		JPEG: cfg.HasFormat(FormatJPG),
		Now:  now,
	}
	if cfg.Metadata {
		save.Metadata = cover.Metadata(cfg.Options(), r.Tool, now)
	}
	paths, err := cover.Save(img, save)
	if err != nil {
		return nil, err
	}

	r.logger().Info("cover exported", "title", cfg.Title, "paths", paths)
	return &Result{
		Kind:  KindCover,
		Paths: paths,
		Stats: Stats{Inputs: 1, Width: cover.Width, Height: cover.Height, Bytes: sizeOf(paths[0])},
	}, nil
}

// =============================================================================
// Collage
// =============================================================================

// Collage lays out and composes the configured images into one PNG.
// Unreadable images are skipped as long as at least one remains.
func (r *Runner) Collage(ctx context.Context, cfg CollageConfig) (res *Result, err error) {
	done := r.track(ctx, KindCollage, len(cfg.Images))
	defer func() { done(res, err) }()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	canvas, sources, err := r.composeCollage(ctx, cfg, 0, 0)
	if err != nil {
		return nil, err
	}

	stem := cfg.Stem
	if stem == "" {
		slot, err := sink.Reserve(cfg.OutputDir, CollagePrefix+"_"+r.now().Format(sink.TimestampLayout), ".png")
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "reserve output name")
		}
		defer slot.Release()
		stem = slot.Stem
	}
	path := filepath.Join(cfg.OutputDir, stem+".png")
	if err := sink.WritePNG(path, canvas); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "write %s", path)
	}

	b := canvas.Bounds()
	r.logger().Info("collage exported",
		"layout", cfg.Layout,
		"images", len(sources),
		"size", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"path", path)
	return &Result{
		Kind:  KindCollage,
		Paths: []string{path},
		Stats: Stats{
			Inputs:  len(sources),
			Skipped: len(cfg.Images) - len(sources),
			Width:   b.Dx(),
			Height:  b.Dy(),
			Bytes:   sizeOf(path),
		},
	}, nil
}

// composeCollage loads, solves and composes. A positive preview box scales
// the layout down to fit before composing.
func (r *Runner) composeCollage(ctx context.Context, cfg CollageConfig, boxW, boxH int) (*image.RGBA, []imageio.Source, error) {
	sources, err := imageio.LoadAll(cfg.Images, r.logger())
	if err != nil {
		return nil, nil, err
	}

	sizes := make([]layout.Size, len(sources))
	images := make([]image.Image, len(sources))
	labels := make([]string, len(sources))
	for i, s := range sources {
		sizes[i] = layout.Size{W: s.Width, H: s.Height}
		images[i] = s.Image
		labels[i] = s.Name()
	}

	res, err := layout.Solve(sizes, cfg.LayoutOptions())
	if err != nil {
		return nil, nil, err
	}
	if boxW > 0 && boxH > 0 {
		res = res.Fit(boxW, boxH)
	}

	opts := compose.Options{
		Captions:      cfg.Captions,
		CaptionHeight: cfg.CaptionHeight,
		Labels:        labels,
		Font:          cfg.Font,
		Fonts:         r.resolver(),
	}
	if cfg.Background != "" {
		opts.Background, _ = cover.ParseHex(cfg.Background)
	}
	canvas, err := compose.Compose(ctx, images, res, opts)
	if err != nil {
		return nil, nil, err
	}
	return canvas, sources, nil
}

// =============================================================================
// GIF
// =============================================================================

// GIF produces an animated GIF within the configured budget. GIF input is
// re-encoded directly. Video input is transcoded by the codec toolchain
// when it is available, otherwise sampled into frames and re-encoded.
func (r *Runner) GIF(ctx context.Context, cfg GifConfig) (res *Result, err error) {
	done := r.track(ctx, KindGIF, 1)
	defer func() { done(res, err) }()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.Input); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "gif input %s", cfg.Input)
	}

	stem := cfg.Stem
	if stem == "" {
		slot, err := sink.Reserve(cfg.OutputDir, GifPrefix+"_"+r.now().Format(sink.TimestampLayout), ".gif")
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "reserve output name")
		}
		defer slot.Release()
		stem = slot.Stem
	}
	out := filepath.Join(cfg.OutputDir, stem+".gif")
	budget := cfg.Budget()

	if frames.IsGIF(cfg.Input) {
		rr, err := reencode.OptimizeFile(ctx, cfg.Input, out, budget, r.logger())
		if err != nil {
			return nil, err
		}
		return r.gifResult(rr, budget), nil
	}

	if r.Toolchain != nil && r.Toolchain.Detect(ctx) {
		tr, err := r.transcode(ctx, cfg, out, budget)
		if err == nil {
			return tr, nil
		}
		if !errors.IsRecoverable(err) {
			return nil, err
		}
		r.logger().Warn("transcode failed, sampling frames instead", "input", cfg.Input, "error", errors.UserMessage(err))
	}

	seq, err := frames.FromVideo(ctx, cfg.Input, r.Toolchain, frames.VideoOptions{
		Start:    cfg.Start,
		Duration: cfg.Duration,
		FPS:      cfg.FPS,
		Logger:   r.logger(),
	})
	if err != nil {
		return nil, err
	}
	rr, err := reencode.Encode(ctx, seq, out, budget, r.logger())
	if err != nil {
		return nil, err
	}
	return r.gifResult(rr, budget), nil
}

// transcode plans the output size from the probed video and hands the whole
// conversion to the toolchain.
func (r *Runner) transcode(ctx context.Context, cfg GifConfig, out string, budget reencode.Budget) (*Result, error) {
	info, err := r.Toolchain.Probe(ctx, cfg.Input)
	if err != nil {
		return nil, err
	}
	duration := cfg.Duration
	if duration <= 0 {
		duration = info.Duration - cfg.Start
	}
	if duration <= 0 {
		duration = 10
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = frames.SamplingRate(info.FPS, duration)
	}
	count := max(1, int(duration*fps))
	w, h := reencode.TargetDimensions(info.Width, info.Height, budget.PlanBytes(), count)

	err = r.Toolchain.Transcode(ctx, cfg.Input, out, ffmpeg.TranscodeOptions{
		FPS:      fps,
		Width:    w,
		Height:   h,
		Start:    cfg.Start,
		Duration: duration,
		Quality:  cfg.Quality,
	})
	if err != nil {
		return nil, err
	}

	bytes := sizeOf(out)
	r.logger().Info("gif transcoded", "input", cfg.Input, "size", fmt.Sprintf("%dx%d", w, h), "fps", fps, "bytes", bytes)
	if bytes > budget.Bytes() {
		r.logger().Warn("output exceeds budget", "path", out, "bytes", bytes, "budget", budget.Bytes())
	}
	return &Result{
		Kind:  KindGIF,
		Paths: []string{out},
		Stats: Stats{Inputs: 1, Width: w, Height: h, Frames: count, Bytes: bytes, Transcoded: true},
	}, nil
}

func (r *Runner) gifResult(rr reencode.Result, b reencode.Budget) *Result {
	r.logger().Info("gif exported",
		"path", rr.Path,
		"bytes", rr.OutputBytes,
		"budget", b.Bytes(),
		"frames", rr.Frames,
		"passthrough", rr.Passthrough)
	return &Result{
		Kind:  KindGIF,
		Paths: []string{rr.Path},
		Stats: Stats{
			Inputs:      1,
			Width:       rr.Plan.Width,
			Height:      rr.Plan.Height,
			Frames:      rr.Frames,
			Bytes:       rr.OutputBytes,
			Passthrough: rr.Passthrough,
		},
	}
}

func sizeOf(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
