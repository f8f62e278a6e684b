package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/buildinfo"
)

// versionCommand creates the version command.
func (c *CLI) versionCommand() *cobra.Command {
	var short bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if short {
				fmt.Fprintln(stdout, buildinfo.Version)
				return nil
			}
			printKeyValue("Version", buildinfo.Version)
			printKeyValue("Commit", buildinfo.Commit)
			printKeyValue("Built", buildinfo.Date)
			printKeyValue("Go", runtime.Version())
			printKeyValue("Platform", runtime.GOOS+"/"+runtime.GOARCH)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")
	return cmd
}
