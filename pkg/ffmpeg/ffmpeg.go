package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/matzehuels/itchpage/pkg/cache"
	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/observability"
)

const (
	DetectTimeout    = 5 * time.Second
	ProbeTimeout     = 30 * time.Second
	ExtractTimeout   = 60 * time.Second
	TranscodeTimeout = 120 * time.Second
)

// Environment overrides for the executables.
const (
	EnvBinary      = "ITCHPAGE_FFMPEG"
	EnvProbeBinary = "ITCHPAGE_FFPROBE"
)

// RunFunc executes bin with args, streaming stdout and stderr.
type RunFunc func(ctx context.Context, bin string, args []string, stdout, stderr io.Writer) error

// ProbeFunc returns ffprobe's JSON description of path. It must stop when
// ctx is done.
type ProbeFunc func(ctx context.Context, path string) (string, error)

// Toolchain runs ffmpeg and ffprobe.
type Toolchain struct {
	bin      string
	probeBin string
	cache    cache.Cache
	logger   *log.Logger
	run      RunFunc
	probe    ProbeFunc // nil: run probeBin through run

	mu        sync.Mutex
	detected  bool
	available bool
}

// Option configures a Toolchain.
type Option func(*Toolchain)

// WithBinary sets the ffmpeg executable path.
func WithBinary(path string) Option {
	return func(t *Toolchain) { t.bin = path }
}

// WithCache caches probe results.
func WithCache(c cache.Cache) Option {
	return func(t *Toolchain) { t.cache = c }
}

func WithLogger(l *log.Logger) Option {
	return func(t *Toolchain) { t.logger = l }
}

// WithRunner replaces process execution.
func WithRunner(fn RunFunc) Option {
	return func(t *Toolchain) { t.run = fn }
}

// WithProber replaces ffprobe execution. Without it ffprobe runs through the
// same RunFunc as ffmpeg.
func WithProber(fn ProbeFunc) Option {
	return func(t *Toolchain) { t.probe = fn }
}

// New returns a toolchain using $ITCHPAGE_FFMPEG and $ITCHPAGE_FFPROBE, or
// "ffmpeg" and "ffprobe" from PATH.
func New(opts ...Option) *Toolchain {
	t := &Toolchain{
		bin:      "ffmpeg",
		probeBin: "ffprobe",
		cache:    cache.NewNullCache(),
		logger:   log.New(io.Discard),
		run:      execRun,
	}
	if env := os.Getenv(EnvBinary); env != "" {
		t.bin = env
	}
	if env := os.Getenv(EnvProbeBinary); env != "" {
		t.probeBin = env
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func execRun(ctx context.Context, bin string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// ffprobe runs the probe binary and returns its JSON output.
func (t *Toolchain) ffprobe(ctx context.Context, path string, stderr io.Writer) (string, error) {
	if t.probe != nil {
		return t.probe(ctx, path)
	}
	var out bytes.Buffer
	args := []string{"-v", "error", "-show_format", "-show_streams", "-of", "json", path}
	if err := t.run(ctx, t.probeBin, args, &out, stderr); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Detect reports whether ffmpeg runs. The first answer is kept for the life
// of the Toolchain, unless ctx ended before the check could finish, in which
// case it reports false and the next call checks again.
func (t *Toolchain) Detect(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detected {
		return t.available
	}
	if ctx.Err() != nil {
		return false
	}

	dctx, cancel := context.WithTimeout(ctx, DetectTimeout)
	defer cancel()
	err := t.run(dctx, t.bin, []string{"-version"}, io.Discard, io.Discard)
	if ctx.Err() != nil {
		return false
	}
	t.available = err == nil
	t.detected = true
	t.logger.Debug("codec toolchain probed", "binary", t.bin, "available", t.available)
	return t.available
}

// Available reports the result of Detect, false if Detect never finished.
func (t *Toolchain) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.available
}

// ExtractOptions selects which frames to decode.
type ExtractOptions struct {
	FPS       float64 // sampling rate; zero keeps the native rate
	Start     float64 // seconds
	Duration  float64 // seconds; zero reads to the end
	MaxFrames int     // zero is unlimited
	Width     int     // scale to this width keeping aspect; zero keeps size
}

// ExtractFrames decodes frames of path as PNGs streamed over a pipe.
func (t *Toolchain) ExtractFrames(ctx context.Context, path string, opts ExtractOptions) ([]image.Image, error) {
	if !t.Detect(ctx) {
		return nil, errors.ExternalTool(errors.ErrToolUnavailable, "extract frames from %s", filepath.Base(path))
	}

	out := ffmpeggo.KwArgs{"format": "image2pipe", "vcodec": "png"}
	var filters []string
	if opts.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%s", formatFloat(opts.FPS)))
	}
	if opts.Width > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:-2:flags=lanczos", opts.Width))
	}
	if len(filters) > 0 {
		out["vf"] = strings.Join(filters, ",")
	}
	if opts.MaxFrames > 0 {
		out["frames:v"] = opts.MaxFrames
	}
	args := ffmpeggo.Input(path, inputArgs(opts.Start, opts.Duration)).Output("pipe:1", out).GetArgs()

	ctx, cancel := context.WithTimeout(ctx, ExtractTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	stderr := &tailBuffer{max: 2048}
	done := make(chan error, 1)
	start := time.Now()
	observability.Tool().OnToolStart(ctx, "ffmpeg", "extract")
	go func() {
		err := t.run(ctx, t.bin, args, pw, stderr)
		pw.CloseWithError(err)
		done <- err
	}()

	frames, decodeErr := decodePNGStream(pr, opts.MaxFrames)
	io.Copy(io.Discard, pr)
	runErr := <-done

	err := t.classify(ctx, "ffmpeg", "extract", runErr, stderr)
	observability.Tool().OnToolComplete(ctx, "ffmpeg", "extract", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, errors.Conversion(decodeErr, "decode frame %d of %s", len(frames), filepath.Base(path))
	}
	if len(frames) == 0 {
		return nil, errors.ExternalTool(nil, "no frames extracted from %s", filepath.Base(path))
	}
	return frames, nil
}

func decodePNGStream(r io.Reader, max int) ([]image.Image, error) {
	br := bufio.NewReader(r)
	var frames []image.Image
	for max <= 0 || len(frames) < max {
		if _, err := br.Peek(1); err != nil {
			// EOF or a broken pipe; a failed run is reported by the caller.
			return frames, nil
		}
		img, err := png.Decode(br)
		if err != nil {
			return frames, err
		}
		frames = append(frames, img)
	}
	return frames, nil
}

// TranscodeOptions configures a direct video-to-GIF conversion.
type TranscodeOptions struct {
	FPS      float64
	Width    int
	Height   int
	Start    float64
	Duration float64
	Quality  int // 1..100; mapped to ffmpeg's -q:v as 100-quality
}

// Transcode converts in to an animated GIF at out. The output is written to
// a temporary sibling and renamed on success.
func (t *Toolchain) Transcode(ctx context.Context, in, out string, opts TranscodeOptions) error {
	if !t.Detect(ctx) {
		return errors.ExternalTool(errors.ErrToolUnavailable, "transcode %s", filepath.Base(in))
	}

	var filters []string
	if opts.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%s", formatFloat(opts.FPS)))
	}
	if opts.Width > 0 && opts.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d:flags=lanczos", opts.Width, opts.Height))
	}
	outArgs := ffmpeggo.KwArgs{"f": "gif"}
	if len(filters) > 0 {
		outArgs["vf"] = strings.Join(filters, ",")
	}
	if opts.Quality > 0 && opts.Quality <= 100 {
		outArgs["q:v"] = 100 - opts.Quality
	}

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create output dir")
	}
	tmp := filepath.Join(filepath.Dir(out), "."+filepath.Base(out)+".tmp-"+uuid.NewString()+".gif")
	args := ffmpeggo.Input(in, inputArgs(opts.Start, opts.Duration)).Output(tmp, outArgs).GetArgs()

	ctx, cancel := context.WithTimeout(ctx, TranscodeTimeout)
	defer cancel()

	stderr := &tailBuffer{max: 2048}
	start := time.Now()
	observability.Tool().OnToolStart(ctx, "ffmpeg", "transcode")
	runErr := t.run(ctx, t.bin, args, io.Discard, stderr)
	err := t.classify(ctx, "ffmpeg", "transcode", runErr, stderr)
	observability.Tool().OnToolComplete(ctx, "ffmpeg", "transcode", time.Since(start), err)
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if info, statErr := os.Stat(tmp); statErr != nil || info.Size() == 0 {
		os.Remove(tmp)
		return errors.ExternalTool(statErr, "ffmpeg produced no output for %s", filepath.Base(in))
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeInternal, err, "rename %s", out)
	}
	return nil
}

func inputArgs(start, duration float64) ffmpeggo.KwArgs {
	in := ffmpeggo.KwArgs{}
	if start > 0 {
		in["ss"] = formatFloat(start)
	}
	if duration > 0 {
		in["t"] = formatFloat(duration)
	}
	return in
}

// classify maps a process failure onto TIMEOUT or EXTERNAL_TOOL. A caller
// that cancelled gets its context error back.
func (t *Toolchain) classify(ctx context.Context, tool, op string, err error, stderr *tailBuffer) error {
	if err == nil {
		return nil
	}
	switch cerr := ctx.Err(); {
	case stderrors.Is(cerr, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeTimeout, cerr, "%s %s timed out", tool, op)
	case cerr != nil:
		return cerr
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		t.logger.Debug(tool+" stderr", "op", op, "output", msg)
		return errors.ExternalTool(err, "%s %s failed: %s", tool, op, lastLine(msg))
	}
	return errors.ExternalTool(err, "%s %s failed", tool, op)
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%.3f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
