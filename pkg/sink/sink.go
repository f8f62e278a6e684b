package sink

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout is the timestamp format embedded in output file names.
const TimestampLayout = "20060102_150405"

// DefaultJPEGQuality is used when WriteJPEG receives a non-positive quality.
const DefaultJPEGQuality = 95

// TimestampedName returns "<prefix>_<timestamp>.<ext>".
func TimestampedName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format(TimestampLayout), ext)
}

// WriteAtomic creates path by streaming fn's output into a temporary file in
// the same directory and renaming it on success. On any error the temporary
// file is removed and path is left untouched.
func WriteAtomic(path string, fn func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = fn(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// EncodePNG losslessly encodes img with optional tEXt metadata.
func EncodePNG(w io.Writer, img image.Image, meta []TextChunk) error {
	if len(meta) == 0 {
		return png.Encode(w, img)
	}
	tw := newTextWriter(w, meta)
	if err := png.Encode(tw, img); err != nil {
		return err
	}
	return tw.err
}

// WritePNG atomically writes img as PNG.
func WritePNG(path string, img image.Image, meta ...TextChunk) error {
	return WriteAtomic(path, func(w io.Writer) error {
		if err := EncodePNG(w, img, meta); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		return nil
	})
}

// WriteJPEG atomically writes img as JPEG. Transparent pixels are flattened
// onto white first.
func WriteJPEG(path string, img image.Image, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	flat := Flatten(img, color.White)
	return WriteAtomic(path, func(w io.Writer) error {
		if err := jpeg.Encode(w, flat, &jpeg.Options{Quality: quality}); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
		return nil
	})
}

// Flatten composites img over an opaque background color.
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

// CopyFile copies src to dst byte for byte.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
