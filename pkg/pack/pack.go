// Package pack bundles the generated page assets into a ZIP ready for upload.
//
// The archive holds a single itch-assets/ folder:
//
//	itch-assets/cover-630x500.png
//	itch-assets/screens-inline-920w.png
//	itch-assets/promo.gif
//	itch-assets/manifest.json
//	itch-assets/README.md
//
// Any asset may be missing, but at least one must be given.
package pack

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/template"
	"time"

	"github.com/matzehuels/itchpage/pkg/buildinfo"
	"github.com/matzehuels/itchpage/pkg/cache"
	"github.com/matzehuels/itchpage/pkg/cover"
	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/imageio"
	"github.com/matzehuels/itchpage/pkg/pipeline"
	"github.com/matzehuels/itchpage/pkg/sink"
)

// Folder is the top-level directory inside the archive.
const Folder = "itch-assets"

// Archive member names.
const (
	CoverName    = "cover-630x500.png"
	ScreensName  = "screens-inline-920w.png"
	PromoName    = "promo.gif"
	ManifestName = "manifest.json"
	ReadmeName   = "README.md"
)

// Inputs names the assets to bundle.
type Inputs struct {
	Title   string
	Studio  string
	Version string

	Cover   string
	Screens string
	GIF     string

	DestDir string
	Tool    string
	Now     time.Time
}

// Manifest describes the archive contents.
type Manifest struct {
	Title     string  `json:"title"`
	Studio    string  `json:"studio,omitempty"`
	Version   string  `json:"version,omitempty"`
	Generated string  `json:"generated"`
	Tool      string  `json:"tool"`
	Assets    []Asset `json:"assets"`
}

// Asset is one bundled file.
type Asset struct {
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	Source string `json:"source"`
	Bytes  int64  `json:"bytes"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	SHA256 string `json:"sha256"`
}

type member struct {
	kind, name, src string
}

func (in *Inputs) members() []member {
	var out []member
	for _, m := range []member{
		{pipeline.KindCover, CoverName, in.Cover},
		{pipeline.KindCollage, ScreensName, in.Screens},
		{pipeline.KindGIF, PromoName, in.GIF},
	} {
		if m.src != "" {
			out = append(out, m)
		}
	}
	return out
}

// ArchiveName returns the file name Package writes for in.
func ArchiveName(in Inputs) string {
	stem := errors.SanitizeTitle(in.Title)
	if stem == "" {
		stem = "game"
	}
	return sink.TimestampedName(stem+"_"+Folder, "zip", in.now())
}

func (in *Inputs) now() time.Time {
	if in.Now.IsZero() {
		return time.Now()
	}
	return in.Now
}

// Package writes the archive into in.DestDir and returns its path. A cover
// that is not 315:250 is rejected before anything is written.
func Package(in Inputs) (string, error) {
	members := in.members()
	if len(members) == 0 {
		return "", errors.Validation("nothing to package: give a cover, screenshots or a GIF")
	}
	if in.DestDir == "" {
		in.DestDir = pipeline.DefaultOutputDir
	}
	if in.Tool == "" {
		in.Tool = buildinfo.Tool()
	}

	manifest := Manifest{
		Title:     in.Title,
		Studio:    in.Studio,
		Version:   in.Version,
		Generated: in.now().UTC().Format(time.RFC3339),
		Tool:      in.Tool,
	}
	contents := make(map[string][]byte, len(members))
	for _, m := range members {
		data, asset, err := inspect(m)
		if err != nil {
			return "", err
		}
		contents[m.name] = data
		manifest.Assets = append(manifest.Assets, asset)
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "encode manifest")
	}
	readme, err := Readme(manifest)
	if err != nil {
		return "", err
	}
	contents[ManifestName] = manifestJSON
	contents[ReadmeName] = readme

	path := filepath.Join(in.DestDir, ArchiveName(in))
	err = sink.WriteAtomic(path, func(w io.Writer) error {
		return writeZip(w, contents, in.now())
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeConversion, err, "write %s", path)
	}
	return path, nil
}

func inspect(m member) ([]byte, Asset, error) {
	data, err := os.ReadFile(m.src)
	if err != nil {
		return nil, Asset{}, errors.Wrap(errors.ErrCodeNotFound, err, "%s asset not found: %s", m.kind, m.src)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, Asset{}, errors.Validation("%s asset %s is not an image: %v", m.kind, m.src, err)
	}
	if m.kind == pipeline.KindCover {
		if err := imageio.EnsureAspectRatio(cfg.Width, cfg.Height, cover.RatioW, cover.RatioH, imageio.DefaultRatioTolerance); err != nil {
			return nil, Asset{}, err
		}
	}
	return data, Asset{
		Kind:   m.kind,
		Name:   m.name,
		Source: filepath.Base(m.src),
		Bytes:  int64(len(data)),
		Width:  cfg.Width,
		Height: cfg.Height,
		SHA256: cache.Hash(data),
	}, nil
}

func writeZip(w io.Writer, contents map[string][]byte, modified time.Time) error {
	names := make([]string, 0, len(contents))
	for name := range contents {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(w)
	for _, name := range names {
		method := zip.Deflate
		if ext := filepath.Ext(name); ext == ".png" || ext == ".gif" {
			method = zip.Store
		}
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     Folder + "/" + name,
			Method:   method,
			Modified: modified,
		})
		if err != nil {
			return err
		}
		if _, err := f.Write(contents[name]); err != nil {
			return err
		}
	}
	return zw.Close()
}

var readmeTemplate = template.Must(template.New("readme").Funcs(template.FuncMap{
	"use":  use,
	"size": size,
}).Parse(`# {{.Title}}{{if .Version}} {{.Version}}{{end}}
{{if .Studio}}
by {{.Studio}}
{{end}}
Page assets generated by {{.Tool}} on {{.Generated}}.

| File | Use | Size |
|---|---|---|
{{range .Assets}}| {{.Name}} | {{use .Kind}} | {{.Width}}x{{.Height}}, {{size .Bytes}} |
{{end}}
Upload the cover under "Cover image" in the project settings. Screenshots and
the promo GIF go in the page description or the screenshot gallery.
`))

// Readme renders the README bundled with the assets.
func Readme(m Manifest) ([]byte, error) {
	var buf bytes.Buffer
	if err := readmeTemplate.Execute(&buf, m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render readme")
	}
	return buf.Bytes(), nil
}

func use(kind string) string {
	switch kind {
	case pipeline.KindCover:
		return "Cover image (630x500)"
	case pipeline.KindCollage:
		return "Inline screenshots (920 wide)"
	case pipeline.KindGIF:
		return "Promo GIF"
	}
	return kind
}

func size(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	if n < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}

// Discover fills the asset paths with the newest generated files in dir.
// Generated names end in a sortable timestamp, so the last match wins.
func Discover(dir string, in Inputs) (Inputs, error) {
	find := func(prefix, ext string) (string, error) {
		matches, err := filepath.Glob(filepath.Join(dir, prefix+"*."+ext))
		if err != nil || len(matches) == 0 {
			return "", err
		}
		sort.Strings(matches)
		return matches[len(matches)-1], nil
	}
	var err error
	if in.Cover == "" {
		if in.Cover, err = find(cover.DefaultPrefix, pipeline.FormatPNG); err != nil {
			return in, err
		}
	}
	if in.Screens == "" {
		if in.Screens, err = find(pipeline.CollagePrefix, "png"); err != nil {
			return in, err
		}
	}
	if in.GIF == "" {
		if in.GIF, err = find(pipeline.GifPrefix, "gif"); err != nil {
			return in, err
		}
	}
	if in.DestDir == "" {
		in.DestDir = dir
	}
	if len(in.members()) == 0 {
		return in, errors.Wrap(errors.ErrCodeNotFound, errors.ErrNoImages, "no generated assets in %s", dir)
	}
	return in, nil
}
