package pack

import (
	"archive/zip"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/itchpage/pkg/errors"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeGIF(t *testing.T, path string) {
	t.Helper()
	pal := color.Palette{color.Black, color.White}
	frame := image.NewPaletted(image.Rect(0, 0, 64, 64), pal)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gif.EncodeAll(f, &gif.GIF{Image: []*image.Paletted{frame}, Delay: []int{10}}))
}

func assets(t *testing.T) (dir string, in Inputs) {
	dir = t.TempDir()
	in = Inputs{
		Title:   "Game",
		Studio:  "Studio",
		Version: "1.0.0",
		Cover:   filepath.Join(dir, "cover.png"),
		Screens: filepath.Join(dir, "screens.png"),
		GIF:     filepath.Join(dir, "promo.gif"),
		DestDir: dir,
		Tool:    "itchpage test",
		Now:     fixedNow,
	}
	writePNG(t, in.Cover, 630, 500)
	writePNG(t, in.Screens, 920, 300)
	writeGIF(t, in.GIF)
	return dir, in
}

func readZip(t *testing.T, path string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = data
	}
	return out
}

func TestPackageAll(t *testing.T) {
	dir, in := assets(t)

	path, err := Package(in)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Game_itch-assets_20240102_030405.zip"), path)

	files := readZip(t, path)
	for _, name := range []string{CoverName, ScreensName, PromoName, ManifestName, ReadmeName} {
		assert.Contains(t, files, Folder+"/"+name)
	}
	assert.Len(t, files, 5)

	cover, err := os.ReadFile(in.Cover)
	require.NoError(t, err)
	assert.Equal(t, cover, files[Folder+"/"+CoverName])

	var m Manifest
	require.NoError(t, json.Unmarshal(files[Folder+"/"+ManifestName], &m))
	assert.Equal(t, "Game", m.Title)
	assert.Equal(t, "itchpage test", m.Tool)
	assert.Equal(t, "2024-01-02T03:04:05Z", m.Generated)
	require.Len(t, m.Assets, 3)
	assert.Equal(t, 630, m.Assets[0].Width)
	assert.Equal(t, 500, m.Assets[0].Height)
	assert.Equal(t, "screens.png", m.Assets[1].Source)
	assert.Len(t, m.Assets[2].SHA256, 64)

	readme := string(files[Folder+"/"+ReadmeName])
	assert.Contains(t, readme, "# Game 1.0.0")
	assert.Contains(t, readme, "by Studio")
	assert.Contains(t, readme, "| promo.gif | Promo GIF | 64x64")
}

func TestPackagePartial(t *testing.T) {
	_, in := assets(t)
	in.Screens = ""
	in.GIF = ""

	path, err := Package(in)
	require.NoError(t, err)
	files := readZip(t, path)
	assert.Len(t, files, 3)
	assert.NotContains(t, files, Folder+"/"+PromoName)
}

func TestPackageRejects(t *testing.T) {
	dir, in := assets(t)

	_, err := Package(Inputs{DestDir: dir})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))

	missing := in
	missing.GIF = filepath.Join(dir, "nope.gif")
	_, err = Package(missing)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	writePNG(t, in.Cover, 600, 600)
	_, err = Package(in)
	assert.ErrorIs(t, err, errors.ErrAspectRatio)

	matches, _ := filepath.Glob(filepath.Join(dir, "*.zip"))
	assert.Empty(t, matches)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "cover-630x500_20240101_000000.png"), 630, 500)
	writePNG(t, filepath.Join(dir, "cover-630x500_20240301_000000.png"), 630, 500)
	writePNG(t, filepath.Join(dir, "screens-inline-920w_20240101_000000.png"), 920, 100)

	in, err := Discover(dir, Inputs{Title: "Game"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cover-630x500_20240301_000000.png"), in.Cover)
	assert.Equal(t, filepath.Join(dir, "screens-inline-920w_20240101_000000.png"), in.Screens)
	assert.Empty(t, in.GIF)
	assert.Equal(t, dir, in.DestDir)

	explicit, err := Discover(dir, Inputs{Cover: "mine.png"})
	require.NoError(t, err)
	assert.Equal(t, "mine.png", explicit.Cover)

	_, err = Discover(t.TempDir(), Inputs{})
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}
