package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/internal/server"
	"github.com/matzehuels/itchpage/pkg/session"
)

const (
	defaultAddr = "127.0.0.1:8765"

	// sessionMaxAge is how long saved sessions are kept.
	sessionMaxAge = 30 * 24 * time.Hour

	shutdownTimeout = 10 * time.Second
)

type serveOptions struct {
	addr       string
	outputDir  string
	sessionDir string
	fresh      bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOptions{
		addr:      defaultAddr,
		outputDir: c.Prefs.LastOutputDir,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live previews and exports for a saved session",
		Long: `Start an HTTP server that holds an editing session: the project text,
the selected images and the active tool. Clients request scaled previews
and submit exports, which run in the background.

The most recent session is resumed unless --new is given. Sessions are
saved after every change.`,
		Example: `  itchpage serve
  itchpage serve --addr :9000 --output-dir out --new`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", opts.addr, "listen address")
	f.StringVar(&opts.outputDir, "output-dir", opts.outputDir, "output directory for a new session")
	f.StringVar(&opts.sessionDir, "session-dir", "", "where sessions are saved (default: user config dir)")
	f.BoolVar(&opts.fresh, "new", false, "start a new session instead of resuming")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOptions) error {
	logger := loggerFromContext(ctx)

	store, err := session.NewFileStore(opts.sessionDir)
	if err != nil {
		return err
	}
	if err := store.Cleanup(ctx, sessionMaxAge); err != nil {
		logger.Debug("session cleanup", "error", err)
	}
	sess, err := c.openSession(ctx, store, opts)
	if err != nil {
		return err
	}

	runner, release := c.newRunner(ctx, false)
	defer release()

	srv := server.New(server.Config{
		Runner:     runner,
		Store:      store,
		Session:    sess,
		Logger:     logger,
		Font:       c.Prefs.Font(),
		GifQuality: c.Prefs.GifQuality,
	})
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              opts.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", opts.addr, "session", sess.ID, "output", sess.OutputDir)
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	c.remember(sess.OutputDir)
	return nil
}

// openSession resumes the latest saved session unless a fresh one is asked for.
func (c *CLI) openSession(ctx context.Context, store *session.FileStore, opts serveOptions) (*session.Session, error) {
	logger := loggerFromContext(ctx)
	if !opts.fresh {
		latest, err := store.Latest(ctx)
		if err != nil {
			logger.Warn("saved sessions unreadable", "error", err)
		}
		if latest != nil {
			logger.Debug("resuming session", "id", latest.ID, "images", len(latest.Images))
			return latest, nil
		}
	}
	sess := session.New(opts.outputDir)
	if err := store.Set(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}
