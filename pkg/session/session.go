// Package session holds the interactive editing state and runs exports in
// the background.
//
// A [Session] is the explicit replacement for window-level state: the
// selected images, the project text and the active tool. Export jobs are
// built from a snapshot of the session, so workers never share mutable
// state with the caller.
//
// # Usage
//
//	sess := session.New("out")
//	sess.Title = "Starfall"
//	sess.AddImages(logger, paths...)
//
//	exp := session.NewExporter(runner, logger)
//	defer exp.Close()
//	id := exp.Submit(ctx, sess.CoverJob(pipeline.NewCoverConfig()))
//	for ev := range exp.Events() {
//	    // ev.JobID == id ...
//	}
package session

import (
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/imageio"
	"github.com/matzehuels/itchpage/pkg/pipeline"
)

// Tools a session can have selected.
const (
	ToolCover   = pipeline.KindCover
	ToolCollage = pipeline.KindCollage
	ToolGIF     = pipeline.KindGIF
)

// Session is the editing state shared by the interactive front ends.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Studio    string    `json:"studio,omitempty"`
	Version   string    `json:"version,omitempty"`
	Tool      string    `json:"tool"`
	Images    []string  `json:"images,omitempty"`
	OutputDir string    `json:"output_dir"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an empty session writing to outputDir.
func New(outputDir string) *Session {
	if outputDir == "" {
		outputDir = pipeline.DefaultOutputDir
	}
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Tool:      ToolCover,
		OutputDir: outputDir,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SelectTool switches the active tool.
func (s *Session) SelectTool(tool string) error {
	switch tool {
	case ToolCover, ToolCollage, ToolGIF:
		s.Tool = tool
		s.touch()
		return nil
	}
	return errors.Validation("unknown tool %q", tool)
}

// AddImages appends the valid, not yet selected paths and returns how many
// were added. Invalid files are logged and skipped.
func (s *Session) AddImages(logger *log.Logger, paths ...string) int {
	added := 0
	for _, p := range paths {
		if slices.Contains(s.Images, p) {
			continue
		}
		if err := imageio.Validate(p); err != nil {
			if logger != nil {
				logger.Warn("image skipped", "path", p, "error", errors.UserMessage(err))
			}
			continue
		}
		s.Images = append(s.Images, p)
		added++
	}
	if added > 0 {
		s.touch()
	}
	return added
}

// RemoveImage drops path from the selection.
func (s *Session) RemoveImage(path string) bool {
	i := slices.Index(s.Images, path)
	if i < 0 {
		return false
	}
	s.Images = slices.Delete(s.Images, i, i+1)
	s.touch()
	return true
}

// ClearImages empties the selection.
func (s *Session) ClearImages() {
	s.Images = nil
	s.touch()
}

// Snapshot returns a deep copy safe to hand to another goroutine.
func (s *Session) Snapshot() Session {
	c := *s
	c.Images = slices.Clone(s.Images)
	return c
}

func (s *Session) touch() { s.UpdatedAt = time.Now() }

// CoverJob fills base with the session's project text and output directory.
func (s *Session) CoverJob(base pipeline.CoverConfig) Job {
	base.Title = s.Title
	base.Studio = s.Studio
	base.Version = s.Version
	base.OutputDir = s.OutputDir
	return Job{Kind: ToolCover, Cover: base}
}

// CollageJob uses the selected images.
func (s *Session) CollageJob(base pipeline.CollageConfig) Job {
	base.Images = slices.Clone(s.Images)
	base.OutputDir = s.OutputDir
	return Job{Kind: ToolCollage, Collage: base}
}

// GIFJob uses the first selected file as input.
func (s *Session) GIFJob(base pipeline.GifConfig) Job {
	if len(s.Images) > 0 {
		base.Input = s.Images[0]
	}
	base.OutputDir = s.OutputDir
	return Job{Kind: ToolGIF, GIF: base}
}

// Job builds the job for the active tool.
func (s *Session) Job() Job {
	switch s.Tool {
	case ToolCollage:
		return s.CollageJob(pipeline.NewCollageConfig())
	case ToolGIF:
		return s.GIFJob(pipeline.NewGifConfig())
	default:
		return s.CoverJob(pipeline.NewCoverConfig())
	}
}
