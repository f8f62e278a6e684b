package frames

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/ffmpeg"
)

var palette = color.Palette{color.Transparent, color.Black, color.White, color.RGBA{255, 0, 0, 255}}

func paletted(r image.Rectangle, idx uint8) *image.Paletted {
	p := image.NewPaletted(r, palette)
	for i := range p.Pix {
		p.Pix[i] = idx
	}
	return p
}

func encodeGIF(t *testing.T, g *gif.GIF) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, g))
	return buf.Bytes()
}

func solidRGBA(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestFromGIFDelays(t *testing.T) {
	full := image.Rect(0, 0, 10, 8)
	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{paletted(full, 1), paletted(full, 2), paletted(full, 3)},
		Delay: []int{5, 0, 12},
	})

	seq, err := FromGIF(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 3, seq.Len())
	assert.Equal(t, 10, seq.Width)
	assert.Equal(t, 8, seq.Height)
	assert.Equal(t, 50*time.Millisecond, seq.Frames[0].Delay)
	assert.Equal(t, DefaultDelay, seq.Frames[1].Delay, "zero delay defaults to 100ms")
	assert.Equal(t, 120*time.Millisecond, seq.Frames[2].Delay)
	assert.Equal(t, 270*time.Millisecond, seq.Duration())
}

func TestFromGIFCompositesPartialFrames(t *testing.T) {
	full := image.Rect(0, 0, 10, 10)
	patch := image.Rect(2, 2, 4, 4)
	data := encodeGIF(t, &gif.GIF{
		Image:    []*image.Paletted{paletted(full, 1), paletted(patch, 3)},
		Delay:    []int{10, 10},
		Disposal: []byte{gif.DisposalNone, gif.DisposalNone},
		Config:   image.Config{ColorModel: palette, Width: 10, Height: 10},
	})

	seq, err := FromGIF(bytes.NewReader(data))
	require.NoError(t, err)
	second := seq.Frames[1].Image
	assert.Equal(t, 10, second.Bounds().Dx(), "partial frame expands to the logical screen")

	r, g, b, _ := second.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b}, "previous frame shows through")
	r, _, _, _ = second.At(3, 3).RGBA()
	assert.Equal(t, uint32(0xffff), r, "patch is drawn")
}

func TestFromGIFCorrupt(t *testing.T) {
	_, err := FromGIF(bytes.NewReader([]byte("GIF89a garbage")))
	assert.True(t, errors.Is(err, errors.ErrCodeConversion))
}

func TestNewSequenceNormalizes(t *testing.T) {
	seq, err := NewSequence([]Frame{
		{Image: solidRGBA(20, 10, color.RGBA{A: 255}), Delay: 0},
		{Image: solidRGBA(40, 40, color.RGBA{A: 255}), Delay: 30 * time.Millisecond},
	})
	require.NoError(t, err)
	assert.Equal(t, MinDelay, seq.Frames[0].Delay)
	assert.Equal(t, 20, seq.Frames[1].Image.Bounds().Dx())
	assert.Equal(t, 10, seq.Frames[1].Image.Bounds().Dy())

	_, err = NewSequence(nil)
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}

func TestSamplingRate(t *testing.T) {
	tests := []struct {
		name     string
		native   float64
		duration float64
		want     float64
	}{
		{"capped at 15", 30, 5, 15},
		{"slow source kept", 10, 5, 10},
		{"long clip lowered", 30, 20, 5},
		{"exactly 100 frames", 30, 100.0 / 15, 15},
		{"unknown native rate", 0, 4, 15},
		{"unknown duration", 24, 0, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SamplingRate(tt.native, tt.duration), 1e-9)
		})
	}
}

func TestFrameDelay(t *testing.T) {
	assert.Equal(t, 67*time.Millisecond, FrameDelay(15))
	assert.Equal(t, 200*time.Millisecond, FrameDelay(5))
	assert.Equal(t, DefaultDelay, FrameDelay(0))
	assert.Equal(t, MinDelay, FrameDelay(5000))
}

type fakeToolchain struct {
	available bool
	info      ffmpeg.VideoInfo
	probeErr  error
	extract   func(opts ffmpeg.ExtractOptions) ([]image.Image, error)
	lastOpts  ffmpeg.ExtractOptions
}

func (f *fakeToolchain) Detect(context.Context) bool { return f.available }

func (f *fakeToolchain) Probe(context.Context, string) (ffmpeg.VideoInfo, error) {
	return f.info, f.probeErr
}

func (f *fakeToolchain) ExtractFrames(_ context.Context, _ string, opts ffmpeg.ExtractOptions) ([]image.Image, error) {
	f.lastOpts = opts
	return f.extract(opts)
}

func TestFromVideoWithToolchain(t *testing.T) {
	tc := &fakeToolchain{
		available: true,
		info:      ffmpeg.VideoInfo{Duration: 20, Width: 64, Height: 36, FPS: 30},
		extract: func(opts ffmpeg.ExtractOptions) ([]image.Image, error) {
			out := make([]image.Image, 3)
			for i := range out {
				out[i] = solidRGBA(64, 36, color.RGBA{uint8(i), 0, 0, 255})
			}
			return out, nil
		},
	}

	seq, err := FromVideo(context.Background(), "clip.mp4", tc, VideoOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, seq.Len())
	assert.InDelta(t, 5.0, tc.lastOpts.FPS, 1e-9, "20s at 15fps exceeds 100 frames")
	assert.Equal(t, MaxSampledFrames, tc.lastOpts.MaxFrames)
	assert.Equal(t, 200*time.Millisecond, seq.Frames[0].Delay)
}

func writeFrameDir(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		f, err := os.Create(filepath.Join(dir, "frame_"+string(rune('a'+i))+".png"))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, solidRGBA(12, 9, color.RGBA{uint8(i * 20), 0, 0, 255})))
		f.Close()
	}
	return dir
}

func TestFromVideoFallsBackOnFailure(t *testing.T) {
	dir := writeFrameDir(t, 3)
	tc := &fakeToolchain{available: true, probeErr: errors.ExternalTool(stderrors.New("exit 1"), "ffprobe")}

	seq, err := FromVideo(context.Background(), dir, tc, VideoOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, seq.Len())
	for _, f := range seq.Frames {
		assert.Equal(t, FallbackDelay, f.Delay)
	}
	r, _, _, _ := seq.Frames[2].Image.At(0, 0).RGBA()
	assert.Equal(t, uint32(40*0x101), r, "source order preserved")
}

func TestFromVideoWithoutToolchain(t *testing.T) {
	dir := writeFrameDir(t, 2)
	seq, err := FromVideo(context.Background(), dir, nil, VideoOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, seq.Len())

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p'}, 0644))
	_, err = FromVideo(context.Background(), path, &fakeToolchain{}, VideoOptions{})
	assert.True(t, errors.Is(err, errors.ErrCodeConversion))
}

func TestDecodeMJPEG(t *testing.T) {
	var stream bytes.Buffer
	for i := 0; i < 4; i++ {
		require.NoError(t, jpeg.Encode(&stream, solidRGBA(16, 16, color.RGBA{uint8(60 * i), 0, 0, 255}), nil))
	}
	path := filepath.Join(t.TempDir(), "capture.mjpeg")
	require.NoError(t, os.WriteFile(path, stream.Bytes(), 0644))

	seq, err := Decode(path)
	require.NoError(t, err)
	assert.Equal(t, 4, seq.Len())
	assert.Equal(t, 16, seq.Width)
}

func TestDecodeGIFFallbackUsesFixedDelay(t *testing.T) {
	full := image.Rect(0, 0, 4, 4)
	data := encodeGIF(t, &gif.GIF{
		Image: []*image.Paletted{paletted(full, 1), paletted(full, 2)},
		Delay: []int{3, 3},
	})
	path := filepath.Join(t.TempDir(), "clip.gif")
	require.NoError(t, os.WriteFile(path, data, 0644))

	seq, err := Decode(path)
	require.NoError(t, err)
	assert.Equal(t, FallbackDelay, seq.Frames[0].Delay)
}

func TestDecodeDirCapsFrames(t *testing.T) {
	dir := t.TempDir()
	img := solidRGBA(2, 2, color.RGBA{A: 255})
	for i := 0; i < FallbackMaxFrames+5; i++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("%03d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		f.Close()
	}
	seq, err := Decode(dir)
	require.NoError(t, err)
	assert.Equal(t, FallbackMaxFrames, seq.Len())
}

func TestIsGIF(t *testing.T) {
	assert.True(t, IsGIF("a.GIF"))
	assert.False(t, IsGIF("a.mp4"))
}
