package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/cache"
	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/project"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the video probe cache",
		Long: `Video metadata read by ffprobe is cached per file content, so repeated GIF
exports of the same clip skip the probe. The backend is chosen by the
cache_backend preference: none (default), file or redis. With none every
run probes again.`,
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached probe results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.Prefs.CacheBackend == project.CacheRedis {
				printWarning("Redis entries expire on their own; only the file cache is cleared")
			}
			dir, err := cacheDir()
			if err != nil {
				return errors.Configuration(err, "locate cache directory")
			}
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}

			fc, err := cache.NewFileCache(dir)
			if err != nil {
				return errors.Configuration(err, "open cache %s", dir)
			}
			count, err := fc.Clear()
			if err != nil {
				return err
			}

			printSuccess("Cleared %d cached entries", count)
			printDetail("Directory: %s", fc.Dir())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return errors.Configuration(err, "locate cache directory")
			}
			fmt.Fprintln(stdout, dir)
			return nil
		},
	}
}
