package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/layout"
	"github.com/matzehuels/itchpage/pkg/pipeline"
	"github.com/matzehuels/itchpage/pkg/project"
)

type batchOptions struct {
	project string
	covers  string
	folder  string
	layout  string
	gutter  int
	font    string
}

// batchCommand creates the batch command.
func (c *CLI) batchCommand() *cobra.Command {
	opts := batchOptions{
		layout: string(layout.Grid),
		gutter: layout.DefaultGutter,
		font:   c.Prefs.Font(),
	}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Build many assets in one run",
		Long: `Build assets in bulk. Exactly one source is required:

  --project         a project file (TOML, YAML or JSON) with cover, collage
                    and gif sections; relative paths resolve against it
  --csv-covers      a CSV sheet with one cover per row; a "title" column is
                    required, covers go to covers_output/ next to the sheet
  --collage-folder  every image in a folder becomes one collage written to
                    collage_output/ inside it

A failing entry is reported and the batch continues with the next one.`,
		Example: `  itchpage batch --project game.toml
  itchpage batch --csv-covers covers.csv
  itchpage batch --collage-folder shots --layout masonry --gutter 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBatch(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.project, "project", "", "project file to build")
	f.StringVar(&opts.covers, "csv-covers", "", "CSV sheet of covers")
	f.StringVar(&opts.folder, "collage-folder", "", "folder of screenshots to lay out")
	f.StringVar(&opts.layout, "layout", opts.layout, "collage layout for --collage-folder")
	f.IntVar(&opts.gutter, "gutter", opts.gutter, "collage gutter for --collage-folder")
	f.StringVar(&opts.font, "font", opts.font, "default font for CSV covers")
	cmd.MarkFlagsMutuallyExclusive("project", "csv-covers", "collage-folder")
	cmd.MarkFlagsOneRequired("project", "csv-covers", "collage-folder")

	return cmd
}

func (c *CLI) runBatch(cmd *cobra.Command, opts batchOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	runner, release := c.newRunner(ctx, false)
	defer release()

	b := &project.Batch{Runner: runner, Logger: logger}
	prog := newProgress(logger)

	var (
		items []project.Item
		err   error
		out   string
	)
	switch {
	case opts.project != "":
		var d *project.Descriptor
		d, err = project.Load(opts.project)
		if err != nil {
			return err
		}
		d.Resolve(filepath.Dir(opts.project))
		printInfo("Project %s", StyleHighlight.Render(d.Title))
		items, err = b.RunDescriptor(ctx, d)
		out = d.OutputDir

	case opts.covers != "":
		base := pipeline.NewCoverConfig()
		base.Font = opts.font
		var rows []project.CoverRow
		rows, err = project.LoadCoverCSV(opts.covers, base)
		if err != nil {
			return err
		}
		printInfo("%d covers from %s", len(rows), opts.covers)
		items, err = b.RunCovers(ctx, rows)
		out = filepath.Join(filepath.Dir(opts.covers), project.CoversDir)

	default:
		base := pipeline.NewCollageConfig()
		base.Layout = opts.layout
		base.Gutter = opts.gutter
		items = []project.Item{b.RunCollageFolder(ctx, opts.folder, base)}
		out = filepath.Join(opts.folder, project.CollageDir)
	}
	if err != nil {
		return err
	}

	for _, it := range items {
		printItem(it)
	}
	printSummary(items)
	prog.done("Batch finished", "items", len(items), "failed", project.Failed(items))

	if n := project.Failed(items); n > 0 {
		return errors.New(errors.ErrCodeConversion, "%d of %d batch items failed", n, len(items))
	}
	c.remember(out)
	return nil
}
