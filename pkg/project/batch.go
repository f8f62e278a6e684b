package project

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/imageio"
	"github.com/matzehuels/itchpage/pkg/layout"
	"github.com/matzehuels/itchpage/pkg/pipeline"
	"github.com/matzehuels/itchpage/pkg/sink"
)

// CollageDir receives collages built from a folder of screenshots.
const CollageDir = "collage_output"

// Runner builds assets. *pipeline.Runner implements it.
type Runner interface {
	Cover(ctx context.Context, cfg pipeline.CoverConfig) (*pipeline.Result, error)
	Collage(ctx context.Context, cfg pipeline.CollageConfig) (*pipeline.Result, error)
	GIF(ctx context.Context, cfg pipeline.GifConfig) (*pipeline.Result, error)
}

// Item is the outcome of one batch entry. A failed item does not stop the
// batch.
type Item struct {
	Name   string
	Kind   string
	Result *pipeline.Result
	Err    error
}

// OK reports whether the item succeeded.
func (it Item) OK() bool { return it.Err == nil }

// Failed counts failed items.
func Failed(items []Item) int {
	n := 0
	for _, it := range items {
		if !it.OK() {
			n++
		}
	}
	return n
}

// Batch runs descriptors, CSV sheets and folders through a Runner.
type Batch struct {
	Runner Runner
	Logger *log.Logger
	Now    func() time.Time
}

func (b *Batch) logger() *log.Logger {
	if b.Logger == nil {
		return log.New(io.Discard)
	}
	return b.Logger
}

func (b *Batch) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// RunDescriptor builds the cover, collage and GIF the descriptor defines, in
// that order. The output directory is created up front.
func (b *Batch) RunDescriptor(ctx context.Context, d *Descriptor) ([]Item, error) {
	if err := os.MkdirAll(d.OutputDir, 0755); err != nil {
		return nil, errors.Configuration(err, "create output directory %s", d.OutputDir)
	}
	b.logger().Info("batch started", "output", d.OutputDir)

	var items []Item
	if cfg, ok := d.CoverConfig(); ok {
		res, err := b.Runner.Cover(ctx, cfg)
		items = append(items, b.record(Item{Name: "cover", Kind: pipeline.KindCover, Result: res, Err: err}))
	}
	if cfg, ok := d.CollageConfig(); ok {
		res, err := b.Runner.Collage(ctx, cfg)
		items = append(items, b.record(Item{Name: "collage", Kind: pipeline.KindCollage, Result: res, Err: err}))
	}
	if cfg, ok := d.GifConfig(); ok {
		res, err := b.Runner.GIF(ctx, cfg)
		items = append(items, b.record(Item{Name: "gif", Kind: pipeline.KindGIF, Result: res, Err: err}))
	}
	if len(items) == 0 {
		b.logger().Warn("project defines no assets")
	}
	return items, ctx.Err()
}

// RunCovers builds one cover per row. Rows that failed to parse are reported
// without running.
func (b *Batch) RunCovers(ctx context.Context, rows []CoverRow) ([]Item, error) {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		name := fmt.Sprintf("row %d: %s", row.Line-1, row.Config.Title)
		if row.Err != nil {
			items = append(items, b.record(Item{Name: name, Kind: pipeline.KindCover, Err: row.Err}))
			continue
		}
		res, err := b.Runner.Cover(ctx, row.Config)
		items = append(items, b.record(Item{Name: name, Kind: pipeline.KindCover, Result: res, Err: err}))
	}
	return items, nil
}

// CollageFolder builds the config for a collage of every valid image in
// folder, written to folder/collage_output/collage_<layout>_<timestamp>.png.
func (b *Batch) CollageFolder(folder string, base pipeline.CollageConfig) (pipeline.CollageConfig, error) {
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return base, errors.New(errors.ErrCodeNotFound, "folder not found: %s", folder)
	}
	images, err := imageio.ListImages(folder)
	if err != nil {
		return base, err
	}
	if len(images) == 0 {
		return base, errors.Wrap(errors.ErrCodeValidation, errors.ErrNoImages, "no valid images found in %s", folder)
	}
	base.Images = images
	base.OutputDir = filepath.Join(folder, CollageDir)
	strategy := layout.ParseStrategy(base.Layout)
	base.Stem = fmt.Sprintf("collage_%s_%s", strategy, b.now().Format(sink.TimestampLayout))
	b.logger().Info("collage folder", "images", len(images), "layout", strategy, "gutter", layout.ClampGutter(base.Gutter))
	return base, nil
}

// RunCollageFolder builds and runs the collage for folder.
func (b *Batch) RunCollageFolder(ctx context.Context, folder string, base pipeline.CollageConfig) Item {
	cfg, err := b.CollageFolder(folder, base)
	if err != nil {
		return b.record(Item{Name: folder, Kind: pipeline.KindCollage, Err: err})
	}
	res, err := b.Runner.Collage(ctx, cfg)
	return b.record(Item{Name: folder, Kind: pipeline.KindCollage, Result: res, Err: err})
}

func (b *Batch) record(it Item) Item {
	if it.Err != nil {
		b.logger().Error("batch item failed", "item", it.Name, "error", errors.UserMessage(it.Err))
	} else if it.Result != nil {
		b.logger().Info("batch item done", "item", it.Name, "paths", it.Result.Paths)
	}
	return it
}
