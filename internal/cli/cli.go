// Package cli implements the itchpage command-line interface.
//
// # Commands
//
//   - cover: render a 630x500 cover
//   - collage: lay screenshots out in a 920px wide strip
//   - gif: fit an animation or video into a size budget
//   - batch: run a project file, a CSV of covers or a folder of screenshots
//   - package: zip the generated assets for upload
//   - serve: preview server backed by a saved session
//   - watch: run exports in the background and follow their progress
//   - cache: inspect or clear the probe cache
//
// All commands accept --verbose (-v) for debug logging. The logger travels
// through the command context.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/buildinfo"
	"github.com/matzehuels/itchpage/pkg/cache"
	"github.com/matzehuels/itchpage/pkg/ffmpeg"
	"github.com/matzehuels/itchpage/pkg/observability"
	"github.com/matzehuels/itchpage/pkg/pipeline"
	"github.com/matzehuels/itchpage/pkg/project"
)

const (
	appName = "itchpage"

	// envRedisURL selects the redis probe cache when the preferences ask for it.
	envRedisURL = "ITCHPAGE_REDIS_URL"

	redisPrefix = "itchpage:"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds state shared by all commands.
type CLI struct {
	Logger *log.Logger
	Prefs  project.Preferences

	prefsPath string
}

// New creates a CLI logging to w and loads the saved preferences.
func New(w io.Writer, level log.Level) *CLI {
	c := &CLI{
		Logger: newLogger(w, level),
		Prefs:  project.DefaultPreferences(),
	}
	path, err := project.PreferencesPath()
	if err != nil {
		c.Logger.Debug("preferences unavailable", "error", err)
		return c
	}
	c.prefsPath = path
	prefs, err := project.LoadPreferences(path)
	if err != nil {
		c.Logger.Warn("ignoring preferences", "error", err)
	}
	c.Prefs = prefs
	return c
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root command with every subcommand registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "itchpage builds store-page assets for indie games",
		Long: `itchpage renders the images a game page needs: a 630x500 cover, an
inline screenshot collage 920 pixels wide and a promo GIF that fits a size
budget. Assets can be built one at a time, in batches from a project file,
or interactively through the preview server.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			hooks := observability.NewLogHooks(c.Logger)
			observability.SetExportHooks(hooks)
			observability.SetCacheHooks(hooks)
			observability.SetToolHooks(hooks)
			return nil
		},
	}
	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.coverCommand())
	root.AddCommand(c.collageCommand())
	root.AddCommand(c.gifCommand())
	root.AddCommand(c.batchCommand())
	root.AddCommand(c.packageCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner wires the pipeline to the codec toolchain and the probe cache.
// The returned func releases the cache.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, func()) {
	logger := loggerFromContext(ctx)
	store := c.newCache(ctx, noCache)
	tc := ffmpeg.New(
		ffmpeg.WithCache(cache.Scoped{Inner: store, Prefix: "ffprobe:"}),
		ffmpeg.WithLogger(logger),
	)
	r := pipeline.NewRunner(tc, logger)
	return r, func() { store.Close() }
}

// newCache picks the backend named in the preferences. Without an explicit
// file or redis preference nothing is cached between runs, and a redis
// server that cannot be reached disables caching for the run.
func (c *CLI) newCache(ctx context.Context, noCache bool) cache.Cache {
	logger := loggerFromContext(ctx)
	switch {
	case noCache:
		return cache.NewNullCache()
	case c.Prefs.CacheBackend == project.CacheRedis:
		url := os.Getenv(envRedisURL)
		if url == "" {
			url = c.Prefs.RedisURL
		}
		rc, err := cache.NewRedisCache(ctx, url, redisPrefix)
		if err != nil {
			logger.Warn("redis cache unavailable, probing without a cache", "error", err)
			return cache.NewNullCache()
		}
		return rc
	case c.Prefs.CacheBackend != project.CacheFile:
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		logger.Warn("file cache unavailable", "dir", dir, "error", err)
		return cache.NewNullCache()
	}
	return fc
}

// remember stores dir as the last output directory.
func (c *CLI) remember(dir string) {
	if c.prefsPath == "" || dir == "" {
		return
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if c.Prefs.LastOutputDir == dir {
		return
	}
	c.Prefs.LastOutputDir = dir
	if err := c.Prefs.Save(c.prefsPath); err != nil {
		c.Logger.Debug("preferences not saved", "error", err)
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the probe cache directory (~/.cache/itchpage by default).
func cacheDir() (string, error) {
	return cache.DefaultDir()
}

// =============================================================================
// Flag Helpers
// =============================================================================

// splitList parses a comma-separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
