package ffmpeg

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/itchpage/pkg/cache"
	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/observability"
)

// VideoInfo describes the first video stream of a file.
type VideoInfo struct {
	Duration float64 `json:"duration"` // seconds
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
}

// FrameCount estimates how many frames the stream holds at fps.
func (v VideoInfo) FrameCount(fps float64) int {
	return int(v.Duration * fps)
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Duration   string `json:"duration"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns stream information for path, consulting the cache first.
func (t *Toolchain) Probe(ctx context.Context, path string) (VideoInfo, error) {
	key, keyErr := cache.ProbeKey(path)
	if keyErr != nil {
		return VideoInfo{}, errors.Wrap(errors.ErrCodeNotFound, keyErr, "probe %s", filepath.Base(path))
	}

	var info VideoInfo
	if ok, _ := cache.GetJSON(ctx, t.cache, key, &info); ok {
		observability.Cache().OnCacheHit(ctx, "probe")
		return info, nil
	}
	observability.Cache().OnCacheMiss(ctx, "probe")

	pctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	stderr := &tailBuffer{max: 2048}
	start := time.Now()
	observability.Tool().OnToolStart(ctx, "ffprobe", "probe")
	raw, runErr := t.ffprobe(pctx, path, stderr)
	err := t.classify(pctx, "ffprobe", filepath.Base(path), runErr, stderr)
	observability.Tool().OnToolComplete(ctx, "ffprobe", "probe", time.Since(start), err)
	if err != nil {
		return VideoInfo{}, err
	}

	info, err = ParseProbe([]byte(raw))
	if err != nil {
		return VideoInfo{}, err
	}
	if err := cache.SetJSON(ctx, t.cache, key, info, cache.ProbeTTL); err == nil {
		observability.Cache().OnCacheSet(ctx, "probe", 0)
	} else {
		t.logger.Debug("probe cache write failed", "error", err)
	}
	return info, nil
}

// ParseProbe extracts VideoInfo from ffprobe JSON output. The stream
// duration is preferred over the container duration.
func ParseProbe(data []byte) (VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return VideoInfo{}, errors.ExternalTool(err, "parse ffprobe output")
	}
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		dur, _ := strconv.ParseFloat(s.Duration, 64)
		if dur <= 0 {
			dur, _ = strconv.ParseFloat(out.Format.Duration, 64)
		}
		return VideoInfo{
			Duration: dur,
			Width:    s.Width,
			Height:   s.Height,
			FPS:      ParseRate(s.RFrameRate),
		}, nil
	}
	return VideoInfo{}, errors.ExternalTool(nil, "no video stream found")
}

// ParseRate parses an ffprobe rate such as "30000/1001" or "25". Malformed
// or zero-denominator rates yield 0.
func ParseRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
