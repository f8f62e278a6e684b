package frames

import (
	"bufio"
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/imageio"
)

// maxStreamBytes bounds how much of a Motion-JPEG stream is read.
const maxStreamBytes = 256 << 20

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)

// Decode reads up to FallbackMaxFrames frames without the codec toolchain.
// Supported inputs are a directory of images, an animated GIF and a
// Motion-JPEG stream. Every frame gets FallbackDelay.
func Decode(path string) (Sequence, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Sequence{}, errors.Wrap(errors.ErrCodeNotFound, err, "open %s", filepath.Base(path))
	}
	if info.IsDir() {
		return decodeDir(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return Sequence{}, errors.Wrap(errors.ErrCodeNotFound, err, "open %s", filepath.Base(path))
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, _ := br.Peek(6)
	switch {
	case bytes.HasPrefix(head, []byte("GIF8")):
		g, err := gif.DecodeAll(br)
		if err != nil {
			return Sequence{}, errors.Conversion(err, "decode %s", filepath.Base(path))
		}
		if len(g.Image) > FallbackMaxFrames {
			g.Image = g.Image[:FallbackMaxFrames]
		}
		return fromDecodedGIF(g, FallbackDelay)
	case bytes.HasPrefix(head, jpegSOI):
		return decodeMJPEG(br)
	}
	return Sequence{}, errors.Conversion(nil, "no bundled decoder for %s; install ffmpeg or set ITCHPAGE_FFMPEG", filepath.Ext(path))
}

func decodeDir(dir string) (Sequence, error) {
	paths, err := imageio.ListImages(dir)
	if err != nil {
		return Sequence{}, err
	}
	if len(paths) > FallbackMaxFrames {
		paths = paths[:FallbackMaxFrames]
	}

	imgs := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		src, err := imageio.Load(p)
		if err != nil {
			continue
		}
		imgs = append(imgs, src.Image)
	}
	if len(imgs) == 0 {
		return Sequence{}, errors.Wrap(errors.ErrCodeValidation, errors.ErrNoImages, "no frames in %s", filepath.Base(dir))
	}
	return NewSequence(Uniform(imgs, FallbackDelay))
}

// decodeMJPEG splits a stream of concatenated JPEG images.
func decodeMJPEG(r io.Reader) (Sequence, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxStreamBytes))
	if err != nil {
		return Sequence{}, errors.Conversion(err, "read motion-jpeg stream")
	}

	var imgs []image.Image
	for len(data) > 0 && len(imgs) < FallbackMaxFrames {
		end := nextFrameEnd(data)
		img, err := jpeg.Decode(bytes.NewReader(data[:end]))
		if err != nil {
			if len(imgs) > 0 {
				break
			}
			return Sequence{}, errors.Conversion(err, "decode motion-jpeg frame")
		}
		imgs = append(imgs, img)
		data = data[end:]
	}
	return NewSequence(Uniform(imgs, FallbackDelay))
}

// nextFrameEnd returns the offset just past the EOI marker that is followed
// by another SOI, or len(data) for the last frame.
func nextFrameEnd(data []byte) int {
	off := 0
	for {
		i := bytes.Index(data[off:], jpegEOI)
		if i < 0 {
			return len(data)
		}
		end := off + i + len(jpegEOI)
		if end == len(data) || bytes.HasPrefix(data[end:], jpegSOI) {
			return end
		}
		off = end
	}
}

// IsGIF reports whether path has a .gif extension.
func IsGIF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gif")
}
