package ffmpeg

import (
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/itchpage/pkg/cache"
	"github.com/matzehuels/itchpage/pkg/errors"
)

// fakeFFmpeg answers -version and otherwise delegates to fn.
func fakeFFmpeg(fn RunFunc) RunFunc {
	return func(ctx context.Context, bin string, args []string, stdout, stderr io.Writer) error {
		if len(args) == 1 && args[0] == "-version" {
			return nil
		}
		return fn(ctx, bin, args, stdout, stderr)
	}
}

func writeFrames(w io.Writer, n int) error {
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 6))
		img.Set(0, 0, color.RGBA{uint8(i), 0, 0, 255})
		if err := png.Encode(w, img); err != nil {
			return err
		}
	}
	return nil
}

func TestDetect(t *testing.T) {
	var calls atomic.Int32
	tc := New(WithRunner(func(context.Context, string, []string, io.Writer, io.Writer) error {
		calls.Add(1)
		return nil
	}))
	assert.False(t, tc.Available())
	assert.True(t, tc.Detect(context.Background()))
	assert.True(t, tc.Detect(context.Background()))
	assert.True(t, tc.Available())
	assert.Equal(t, int32(1), calls.Load(), "detection runs once")

	missing := New(WithRunner(func(context.Context, string, []string, io.Writer, io.Writer) error {
		return stderrors.New("exec: not found")
	}))
	assert.False(t, missing.Detect(context.Background()))
}

func TestExtractFrames(t *testing.T) {
	var gotArgs []string
	tc := New(WithRunner(fakeFFmpeg(func(_ context.Context, _ string, args []string, stdout, _ io.Writer) error {
		gotArgs = args
		return writeFrames(stdout, 4)
	})))

	frames, err := tc.ExtractFrames(context.Background(), "clip.mp4", ExtractOptions{FPS: 12.5, Start: 2, Duration: 3, Width: 320})
	require.NoError(t, err)
	assert.Len(t, frames, 4)
	assert.Equal(t, 8, frames[0].Bounds().Dx())

	joined := strings.Join(gotArgs, " ")
	assert.Contains(t, joined, "-i clip.mp4")
	assert.Contains(t, joined, "image2pipe")
	assert.Contains(t, joined, "fps=12.5,scale=320:-2:flags=lanczos")
	assert.Contains(t, joined, "-ss 2")
	assert.Contains(t, joined, "-t 3")
	assert.Equal(t, "pipe:1", gotArgs[len(gotArgs)-1])
}

func TestExtractFramesMaxFrames(t *testing.T) {
	tc := New(WithRunner(fakeFFmpeg(func(_ context.Context, _ string, _ []string, stdout, _ io.Writer) error {
		return writeFrames(stdout, 5)
	})))
	frames, err := tc.ExtractFrames(context.Background(), "clip.mp4", ExtractOptions{MaxFrames: 2})
	require.NoError(t, err)
	assert.Len(t, frames, 2)
}

func TestExtractFramesUnavailable(t *testing.T) {
	tc := New(WithRunner(func(context.Context, string, []string, io.Writer, io.Writer) error {
		return stderrors.New("missing")
	}))
	_, err := tc.ExtractFrames(context.Background(), "clip.mp4", ExtractOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeExternalTool))
	assert.True(t, stderrors.Is(err, errors.ErrToolUnavailable))
}

func TestExtractFramesFailureAndTimeout(t *testing.T) {
	failing := New(WithRunner(fakeFFmpeg(func(_ context.Context, _ string, _ []string, _, stderr io.Writer) error {
		io.WriteString(stderr, "header\nInvalid data found when processing input\n")
		return stderrors.New("exit status 1")
	})))
	_, err := failing.ExtractFrames(context.Background(), "bad.mp4", ExtractOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeExternalTool))
	assert.Contains(t, err.Error(), "Invalid data found")
	assert.True(t, errors.IsRecoverable(err))

	hanging := New(WithRunner(fakeFFmpeg(func(ctx context.Context, _ string, _ []string, _, _ io.Writer) error {
		<-ctx.Done()
		return ctx.Err()
	})))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = hanging.ExtractFrames(ctx, "slow.mp4", ExtractOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTimeout))
	assert.True(t, errors.IsRecoverable(err))
}

func TestTranscode(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "promo.gif")

	var gotArgs []string
	tc := New(WithRunner(fakeFFmpeg(func(_ context.Context, _ string, args []string, _, _ io.Writer) error {
		gotArgs = args
		return os.WriteFile(args[len(args)-1], []byte("GIF89a"), 0644)
	})))

	err := tc.Transcode(context.Background(), "clip.mp4", out, TranscodeOptions{FPS: 10, Width: 320, Height: 180, Quality: 80})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(data))

	joined := strings.Join(gotArgs, " ")
	assert.Contains(t, joined, "fps=10,scale=320:180:flags=lanczos")
	assert.Contains(t, joined, "-q:v 20")

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1, "temporary file should be renamed away")
}

func TestTranscodeFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "promo.gif")
	tc := New(WithRunner(fakeFFmpeg(func(_ context.Context, _ string, args []string, _, _ io.Writer) error {
		os.WriteFile(args[len(args)-1], []byte("partial"), 0644)
		return stderrors.New("exit status 1")
	})))

	err := tc.Transcode(context.Background(), "clip.mp4", out, TranscodeOptions{})
	require.Error(t, err)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

const sampleProbe = `{
  "streams": [
    {"codec_type": "audio", "duration": "9.0"},
    {"codec_type": "video", "width": 1920, "height": 1080, "duration": "12.5", "r_frame_rate": "30000/1001"}
  ],
  "format": {"duration": "12.6"}
}`

func TestParseProbe(t *testing.T) {
	info, err := ParseProbe([]byte(sampleProbe))
	require.NoError(t, err)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 12.5, info.Duration, 1e-9)
	assert.InDelta(t, 29.97, info.FPS, 0.01)

	info, err = ParseProbe([]byte(`{"streams":[{"codec_type":"video","width":640,"height":480,"r_frame_rate":"25/1"}],"format":{"duration":"4.0"}}`))
	require.NoError(t, err)
	assert.InDelta(t, 4.0, info.Duration, 1e-9, "falls back to container duration")

	_, err = ParseProbe([]byte(`{"streams":[{"codec_type":"audio"}]}`))
	assert.True(t, errors.Is(err, errors.ErrCodeExternalTool))

	_, err = ParseProbe([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseRate(t *testing.T) {
	tests := map[string]float64{
		"30/1":       30,
		"30000/1001": 30000.0 / 1001.0,
		"25":         25,
		"0/0":        0,
		"":           0,
		"x/1":        0,
	}
	for in, want := range tests {
		assert.InDelta(t, want, ParseRate(in), 1e-9, in)
	}
}

func TestProbeUsesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))

	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	var calls int
	tc := New(WithCache(fc), WithProber(func(context.Context, string) (string, error) {
		calls++
		return sampleProbe, nil
	}))

	first, err := tc.Probe(context.Background(), path)
	require.NoError(t, err)
	second, err := tc.Probe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "second probe should be served from cache")
}

func TestProbeFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))

	tc := New(WithProber(func(context.Context, string) (string, error) {
		return "", stderrors.New("exit status 1")
	}))
	_, err := tc.Probe(context.Background(), path)
	assert.True(t, errors.Is(err, errors.ErrCodeExternalTool))

	_, err = tc.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestProbeRunsFFprobeThroughRunner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	t.Setenv(EnvProbeBinary, "/opt/ffmpeg/ffprobe")

	var gotBin string
	var gotArgs []string
	tc := New(WithRunner(func(_ context.Context, bin string, args []string, stdout, _ io.Writer) error {
		gotBin, gotArgs = bin, args
		_, err := io.WriteString(stdout, sampleProbe)
		return err
	}))

	info, err := tc.Probe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/ffmpeg/ffprobe", gotBin)
	assert.Equal(t, path, gotArgs[len(gotArgs)-1])
	assert.Contains(t, gotArgs, "-show_streams")
	assert.Positive(t, info.Width)
}

func TestProbeStopsWhenCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))

	started := make(chan struct{})
	tc := New(WithRunner(func(ctx context.Context, _ string, _ []string, _, _ io.Writer) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := tc.Probe(ctx, path)
		done <- err
	}()
	select {
	case err := <-done:
		assert.True(t, stderrors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Probe ignored cancellation")
	}
}

func TestDetectRetriesAfterCancelledContext(t *testing.T) {
	var calls atomic.Int32
	tc := New(WithRunner(func(context.Context, string, []string, io.Writer, io.Writer) error {
		calls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, tc.Detect(ctx))
	assert.False(t, tc.Available())

	assert.True(t, tc.Detect(context.Background()), "a cancelled caller must not decide for later ones")
	assert.True(t, tc.Available())
	assert.Equal(t, int32(1), calls.Load())
}

func TestVideoInfoFrameCount(t *testing.T) {
	assert.Equal(t, 150, VideoInfo{Duration: 10}.FrameCount(15))
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{max: 4}
	b.Write([]byte("abc"))
	b.Write([]byte("defg"))
	assert.Equal(t, "defg", b.String())
}
