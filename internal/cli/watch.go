package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/pipeline"
	"github.com/matzehuels/itchpage/pkg/project"
	"github.com/matzehuels/itchpage/pkg/session"
)

type watchOptions struct {
	all        bool
	plain      bool
	noCache    bool
	sessionDir string
}

// pendingJob is a job waiting to be submitted.
type pendingJob struct {
	name string
	job  session.Job
}

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch [project-file]",
		Short: "Run exports concurrently and follow their progress",
		Long: `Run every export of a project file at the same time and show a live table
of their progress. Without a project file the most recent saved session
is exported: its active tool, or every tool with --all.

Press q to cancel the remaining exports.`,
		Example: `  itchpage watch game.toml
  itchpage watch --all
  itchpage watch game.toml --plain`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := c.watchJobs(cmd.Context(), args, opts)
			if err != nil {
				return err
			}
			return c.runWatch(cmd.Context(), jobs, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.all, "all", false, "export every tool of the saved session")
	f.BoolVar(&opts.plain, "plain", false, "print events as lines instead of a live table")
	f.BoolVar(&opts.noCache, "no-cache", false, "do not read or write the probe cache")
	f.StringVar(&opts.sessionDir, "session-dir", "", "where sessions are saved (default: user config dir)")

	return cmd
}

// watchJobs collects the jobs from a project file or the latest session.
func (c *CLI) watchJobs(ctx context.Context, args []string, opts watchOptions) ([]pendingJob, error) {
	if len(args) == 1 {
		d, err := project.Load(args[0])
		if err != nil {
			return nil, err
		}
		d.Resolve(filepath.Dir(args[0]))
		if err := os.MkdirAll(d.OutputDir, 0755); err != nil {
			return nil, errors.Configuration(err, "create output directory %s", d.OutputDir)
		}
		return descriptorJobs(d), nil
	}

	store, err := session.NewFileStore(opts.sessionDir)
	if err != nil {
		return nil, err
	}
	sess, err := store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "no saved session; give a project file or run serve first")
	}
	if err := os.MkdirAll(sess.OutputDir, 0755); err != nil {
		return nil, errors.Configuration(err, "create output directory %s", sess.OutputDir)
	}
	return c.sessionJobs(sess, opts.all), nil
}

func descriptorJobs(d *project.Descriptor) []pendingJob {
	var jobs []pendingJob
	if cfg, ok := d.CoverConfig(); ok {
		jobs = append(jobs, pendingJob{"cover", session.Job{Kind: pipeline.KindCover, Cover: cfg}})
	}
	if cfg, ok := d.CollageConfig(); ok {
		jobs = append(jobs, pendingJob{"collage", session.Job{Kind: pipeline.KindCollage, Collage: cfg}})
	}
	if cfg, ok := d.GifConfig(); ok {
		jobs = append(jobs, pendingJob{"gif", session.Job{Kind: pipeline.KindGIF, GIF: cfg}})
	}
	return jobs
}

func (c *CLI) sessionJobs(sess *session.Session, all bool) []pendingJob {
	cover := pipeline.NewCoverConfig()
	cover.Font = c.Prefs.Font()
	collage := pipeline.NewCollageConfig()
	collage.Font = c.Prefs.Font()
	gif := pipeline.NewGifConfig()
	gif.Quality = c.Prefs.GifQuality

	byTool := map[string]pendingJob{
		session.ToolCover:   {"cover", sess.CoverJob(cover)},
		session.ToolCollage: {"collage", sess.CollageJob(collage)},
		session.ToolGIF:     {"gif", sess.GIFJob(gif)},
	}
	if !all {
		return []pendingJob{byTool[sess.Tool]}
	}
	return []pendingJob{byTool[session.ToolCover], byTool[session.ToolCollage], byTool[session.ToolGIF]}
}

func (c *CLI) runWatch(parent context.Context, jobs []pendingJob, opts watchOptions) error {
	if len(jobs) == 0 {
		printWarning("Nothing to export")
		return nil
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Log lines would tear the live table.
	logger := loggerFromContext(ctx)
	if !opts.plain {
		logger = log.New(io.Discard)
		ctx = withLogger(ctx, logger)
	}

	runner, release := c.newRunner(ctx, opts.noCache)
	defer release()

	exp := session.NewExporter(runner, logger)
	named := make([]namedJob, 0, len(jobs))
	for _, j := range jobs {
		named = append(named, namedJob{ID: exp.Submit(ctx, j.job), Name: j.name})
	}
	go exp.Close()

	model := newExportModel(exp.Events(), named, cancel)
	if opts.plain {
		for ev := range exp.Events() {
			model.apply(ev)
			printEvent(model, ev)
		}
	} else {
		final, err := tea.NewProgram(model, tea.WithOutput(os.Stderr)).Run()
		if err != nil {
			cancel()
			for range exp.Events() {
			}
			return err
		}
		model = final.(ExportModel)
		fmt.Fprint(stdout, model.summary())
	}

	if n := model.Failed(); n > 0 {
		return errors.New(errors.ErrCodeConversion, "%d of %d exports failed", n, len(jobs))
	}
	return parent.Err()
}

func printEvent(m ExportModel, ev session.Event) {
	row := m.rows[m.index[ev.JobID]]
	switch ev.Status {
	case session.StatusRunning:
		printInfo("%s started", row.name)
	case session.StatusDone:
		printSuccess("%s %s", row.name, StyleDim.Render(m.detail(row)))
	case session.StatusFailed:
		printError("%s %s", row.name, StyleError.Render(errors.UserMessage(ev.Err)))
	}
}
