package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/pipeline"
)

// gifCommand creates the gif command.
func (c *CLI) gifCommand() *cobra.Command {
	cfg := pipeline.NewGifConfig()
	cfg.Quality = c.Prefs.GifQuality
	var (
		size    string
		preset  string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "gif <input>",
		Short: "Shrink a GIF or video into a size budget",
		Long: fmt.Sprintf(`Produce an animated GIF that fits a size budget.

An animated GIF input is re-encoded: first at its own size, then with
fewer frames, fewer colors and a smaller canvas until it fits. A GIF that
already fits is copied unchanged.

A video input is converted by ffmpeg when it is installed and sampled
frame by frame otherwise. Set ITCHPAGE_FFMPEG to use a specific ffmpeg binary.

Sizes: %s`, sizeNames()),
		Example: `  itchpage gif gameplay.gif --size medium
  itchpage gif trailer.mp4 --target-mb 2.5 --start 4 --duration 6 --fps 12
  itchpage gif gameplay.gif --quality 60 --colors 128`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Input = args[0]
			if size != "" && !cmd.Flags().Changed("target-mb") {
				mb, err := parseSize(size)
				if err != nil {
					return err
				}
				cfg.TargetMB = mb
			}
			if preset != "" {
				p, err := pipeline.LookupPreset(preset)
				if err != nil {
					return err
				}
				base := cfg
				p.ApplyGif(&base)
				applyUnset(cmd, map[string]func(){
					"target-mb": func() {
						if !cmd.Flags().Changed("size") {
							cfg.TargetMB = base.TargetMB
						}
					},
					"quality": func() { cfg.Quality = base.Quality },
				})
			}
			return c.runGIF(cmd, cfg, noCache)
		},
	}

	f := cmd.Flags()
	f.StringVar(&size, "size", "", "named budget: "+sizeNames())
	f.Float64Var(&cfg.TargetMB, "target-mb", cfg.TargetMB, "size budget in megabytes")
	f.IntVar(&cfg.Quality, "quality", cfg.Quality, "quality 1-100; lower trades detail for size")
	f.IntVar(&cfg.MaxColors, "colors", cfg.MaxColors, "palette size ceiling (2-256)")
	f.Float64Var(&cfg.Start, "start", 0, "video start offset in seconds")
	f.Float64Var(&cfg.Duration, "duration", 0, "video clip length in seconds (default: to the end)")
	f.Float64Var(&cfg.FPS, "fps", 0, "video sampling rate (default: derived from the clip)")
	f.StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "output directory")
	f.StringVar(&cfg.Stem, "name", "", "file name without extension (default: timestamped)")
	f.StringVar(&preset, "preset", "", "apply a named preset before the flags")
	f.BoolVar(&noCache, "no-cache", false, "do not read or write the probe cache")

	return cmd
}

func (c *CLI) runGIF(cmd *cobra.Command, cfg pipeline.GifConfig, noCache bool) error {
	ctx := cmd.Context()
	runner, release := c.newRunner(ctx, noCache)
	defer release()

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Encoding %s...", cfg.Input))
	spinner.Start()
	prog := newProgress(loggerFromContext(ctx))
	res, err := runner.GIF(ctx, cfg)
	spinner.Stop()
	if err != nil {
		if spinner.Cancelled() {
			printWarning("Cancelled")
		}
		return err
	}
	prog.done("GIF encoded", "input", cfg.Input, "budget_mb", cfg.TargetMB)

	printSuccess("GIF within %s", StyleHighlight.Render(strconv.FormatFloat(cfg.TargetMB, 'f', -1, 64)+" MB"))
	printResult(res)
	c.remember(cfg.OutputDir)
	return nil
}

// parseSize accepts a named size or a plain number of megabytes.
func parseSize(s string) (float64, error) {
	if mb, ok := pipeline.ParseGifSize(s); ok {
		return mb, nil
	}
	mb, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "mb"), 64)
	if err != nil || mb <= 0 {
		return 0, errors.Validation("invalid size %q (use %s or megabytes)", s, sizeNames())
	}
	return mb, nil
}

func sizeNames() string {
	names := make([]string, len(pipeline.GifSizes))
	for i, s := range pipeline.GifSizes {
		names[i] = fmt.Sprintf("%s (%g MB)", strings.ToLower(s.Name), s.MB)
	}
	return strings.Join(names, ", ")
}
