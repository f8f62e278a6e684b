package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/imageio"
	"github.com/matzehuels/itchpage/pkg/pipeline"
)

// collageCommand creates the collage command.
func (c *CLI) collageCommand() *cobra.Command {
	cfg := pipeline.NewCollageConfig()
	cfg.Font = c.Prefs.Font()
	var preset string

	cmd := &cobra.Command{
		Use:   "collage <image|dir>...",
		Short: "Lay screenshots out in a 920px wide collage",
		Long: `Lay screenshots out in a single PNG no wider than 920 pixels.

Layouts:
  grid     equal cells in a near-square grid
  masonry  up to --columns columns, each image placed in the shortest one
  linear   images stacked vertically at full width

Directories are expanded to the images they contain, sorted by name.
Unreadable images are skipped with a warning.`,
		Example: `  itchpage collage shots/
  itchpage collage a.png b.png c.png --layout masonry --gutter 8
  itchpage collage shots/ --captions --background "#101010"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := expandImages(args)
			if err != nil {
				return err
			}
			cfg.Images = images
			if preset != "" {
				p, err := pipeline.LookupPreset(preset)
				if err != nil {
					return err
				}
				base := cfg
				p.ApplyCollage(&base)
				applyUnset(cmd, map[string]func(){
					"layout": func() { cfg.Layout = base.Layout },
					"gutter": func() { cfg.Gutter = base.Gutter },
				})
			}
			return c.runCollage(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Layout, "layout", cfg.Layout, "layout: grid, masonry, linear")
	f.IntVar(&cfg.Gutter, "gutter", cfg.Gutter, "spacing between images in pixels (4-32)")
	f.IntVar(&cfg.MaxColumns, "columns", cfg.MaxColumns, "maximum masonry columns")
	f.BoolVar(&cfg.Captions, "captions", false, "draw the file name under each image")
	f.IntVar(&cfg.CaptionHeight, "caption-height", cfg.CaptionHeight, "caption band height in pixels")
	f.StringVar(&cfg.Font, "font", cfg.Font, "caption font family")
	f.StringVar(&cfg.Background, "background", "", "canvas color as #RRGGBB (default transparent)")
	f.StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "output directory")
	f.StringVar(&cfg.Stem, "name", "", "file name without extension (default: timestamped)")
	f.StringVar(&preset, "preset", "", "apply a named preset before the flags")

	return cmd
}

func (c *CLI) runCollage(cmd *cobra.Command, cfg pipeline.CollageConfig) error {
	ctx := cmd.Context()
	runner, release := c.newRunner(ctx, false)
	defer release()

	prog := newProgress(loggerFromContext(ctx))
	res, err := runner.Collage(ctx, cfg)
	if err != nil {
		return err
	}
	prog.done("Collage composed", "layout", cfg.Layout, "images", res.Stats.Inputs)

	printSuccess("Collage %s", StyleHighlight.Render(cfg.Layout))
	printResult(res)
	c.remember(cfg.OutputDir)
	return nil
}

// expandImages replaces directory arguments with the images inside them.
func expandImages(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "image %s", arg)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		found, err := imageio.ListImages(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	if len(out) == 0 {
		return nil, errors.Wrap(errors.ErrCodeValidation, errors.ErrNoImages, "no images in %v", args)
	}
	return out, nil
}
