package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/pipeline"
)

// coverCommand creates the cover command.
func (c *CLI) coverCommand() *cobra.Command {
	cfg := pipeline.NewCoverConfig()
	cfg.Font = c.Prefs.Font()
	var (
		formats    string
		noMetadata bool
		preset     string
	)

	cmd := &cobra.Command{
		Use:   "cover <title>",
		Short: "Render a 630x500 cover image",
		Long: `Render a 630x500 cover with the game title, an optional studio line and
version badge, and an optional logo in the top-left corner.

The background is a solid color, a vertical gradient or a blurred image.`,
		Example: `  itchpage cover "Starfall" --studio "Night Owl" --game-version 1.2
  itchpage cover "Starfall" --background gradient --color "#223355" -o out
  itchpage cover "Starfall" --background image --bg-image shot.png --format png,jpg
  itchpage cover "Starfall" --preset jam`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Title = args[0]
			cfg.Formats = splitList(formats)
			cfg.Metadata = !noMetadata
			if preset != "" {
				p, err := pipeline.LookupPreset(preset)
				if err != nil {
					return err
				}
				base := cfg
				p.ApplyCover(&base)
				applyUnset(cmd, map[string]func(){
					"background": func() { cfg.Background = base.Background },
					"color":      func() { cfg.Color = base.Color },
					"font":       func() { cfg.Font = base.Font },
					"bold":       func() { cfg.Bold = base.Bold },
					"shadow":     func() { cfg.Shadow = base.Shadow },
				})
			}
			return c.runCover(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Studio, "studio", "", "studio name shown under the title")
	f.StringVar(&cfg.Version, "game-version", "", "version badge, e.g. 1.2 (rendered as v1.2)")
	f.StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "output directory")
	f.StringVar(&cfg.Stem, "name", "", "file name without extension (default: timestamped)")
	f.StringVar(&formats, "format", pipeline.FormatPNG, "comma-separated formats: png, jpg")
	f.BoolVar(&noMetadata, "no-metadata", false, "omit title and tool text chunks from PNG output")
	f.StringVar(&cfg.Background, "background", cfg.Background, "background: solid, gradient, image")
	f.StringVar(&cfg.Color, "color", cfg.Color, "background color as #RRGGBB")
	f.StringVar(&cfg.BackgroundImage, "bg-image", "", "image for the blurred background")
	f.StringVar(&cfg.Font, "font", cfg.Font, "font family")
	f.BoolVar(&cfg.Bold, "bold", cfg.Bold, "use the bold font face")
	f.BoolVar(&cfg.Shadow, "shadow", cfg.Shadow, "draw a drop shadow behind text")
	f.StringVar(&cfg.Logo, "logo", "", "logo image placed in the top-left corner")
	f.StringVar(&preset, "preset", "", "apply a named preset before the flags")

	return cmd
}

func (c *CLI) runCover(cmd *cobra.Command, cfg pipeline.CoverConfig) error {
	ctx := cmd.Context()
	runner, release := c.newRunner(ctx, false)
	defer release()

	prog := newProgress(loggerFromContext(ctx))
	res, err := runner.Cover(ctx, cfg)
	if err != nil {
		return err
	}
	prog.done("Cover rendered", "title", cfg.Title)

	printSuccess("Cover %s", StyleHighlight.Render(cfg.Title))
	printResult(res)
	c.remember(cfg.OutputDir)
	return nil
}

// applyUnset runs each setter whose flag the user did not set, so preset
// values apply only where no explicit flag overrides them.
func applyUnset(cmd *cobra.Command, setters map[string]func()) {
	for name, set := range setters {
		if !cmd.Flags().Changed(name) {
			set()
		}
	}
}
