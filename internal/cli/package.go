package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/pack"
)

// packageCommand creates the package command.
func (c *CLI) packageCommand() *cobra.Command {
	var (
		in  pack.Inputs
		dir string
	)

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Zip the page assets for upload",
		Long: `Bundle a cover, a screenshot collage and a promo GIF into one ZIP with a
manifest and a short README describing where each file goes on the page.

With --dir the newest generated file of each kind in that directory is
used; explicit --cover, --screens and --gif paths take precedence.`,
		Example: `  itchpage package --dir out --title "Starfall"
  itchpage package --cover cover.png --gif promo.gif -o dist`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if dir != "" {
				if in, err = pack.Discover(dir, in); err != nil {
					return err
				}
			}
			path, err := pack.Package(in)
			if err != nil {
				return err
			}
			printSuccess("Packaged %s", StyleHighlight.Render(path))
			for _, p := range []string{in.Cover, in.Screens, in.GIF} {
				if p != "" {
					printDetail("%s", p)
				}
			}
			c.remember(in.DestDir)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dir, "dir", "", "pick the newest generated assets from this directory")
	f.StringVar(&in.Cover, "cover", "", "cover image (630x500)")
	f.StringVar(&in.Screens, "screens", "", "screenshot collage")
	f.StringVar(&in.GIF, "gif", "", "promo GIF")
	f.StringVar(&in.Title, "title", "", "game title for the archive name and manifest")
	f.StringVar(&in.Studio, "studio", "", "studio name for the manifest")
	f.StringVar(&in.Version, "game-version", "", "game version for the manifest")
	f.StringVarP(&in.DestDir, "output", "o", "", "directory for the ZIP (default: --dir or .)")

	return cmd
}
