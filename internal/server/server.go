// Package server exposes a session over HTTP for interactive front ends.
//
// The server owns one [session.Session]. Clients edit it, request scaled
// previews of the active tool and submit exports, which run in the
// background and are polled by job ID.
//
// # Routes
//
//	GET    /healthz
//	GET    /api/session
//	PUT    /api/session             partial update of title, studio, version, tool, output_dir
//	POST   /api/session/images      {"paths": [...]}
//	DELETE /api/session/images      ?path=... removes one, no path clears all
//	GET    /preview/{tool}.png      ?w=&h= scales into a box
//	POST   /api/export              {"tool": "..."} defaults to the active tool
//	GET    /api/jobs
//	GET    /api/jobs/{id}
package server

import (
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/pipeline"
	"github.com/matzehuels/itchpage/pkg/session"
	"github.com/matzehuels/itchpage/pkg/sink"
)

// Runner exports and previews. *pipeline.Runner implements it.
type Runner interface {
	session.Runner
	PreviewCover(ctx context.Context, cfg pipeline.CoverConfig, w, h int) (image.Image, error)
	PreviewCollage(ctx context.Context, cfg pipeline.CollageConfig, w, h int) (image.Image, error)
	PreviewGIF(ctx context.Context, cfg pipeline.GifConfig, w, h int) (image.Image, error)
}

// Store persists the session after every change. *session.FileStore
// implements it.
type Store interface {
	Set(ctx context.Context, sess *session.Session) error
}

// Config configures a Server.
type Config struct {
	Runner  Runner
	Store   Store // optional
	Session *session.Session
	Logger  *log.Logger

	// Defaults applied to every job built from the session.
	Font       string
	GifQuality int
}

// Job is the state of one submitted export.
type Job struct {
	ID        uuid.UUID      `json:"id"`
	Kind      string         `json:"kind"`
	Status    session.Status `json:"status"`
	Paths     []string       `json:"paths,omitempty"`
	Bytes     int64          `json:"bytes,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Server serves one session.
type Server struct {
	cfg      Config
	exporter *session.Exporter
	drained  chan struct{}

	mu   sync.Mutex
	sess *session.Session
	jobs map[uuid.UUID]*Job
}

// New creates a server and starts tracking export events.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	if cfg.Session == nil {
		cfg.Session = session.New(pipeline.DefaultOutputDir)
	}
	s := &Server{
		cfg:      cfg,
		exporter: session.NewExporter(cfg.Runner, cfg.Logger),
		drained:  make(chan struct{}),
		sess:     cfg.Session,
		jobs:     make(map[uuid.UUID]*Job),
	}
	go s.drain()
	return s
}

// Close waits for running exports and stops tracking.
func (s *Server) Close() {
	s.exporter.Close()
	<-s.drained
}

func (s *Server) drain() {
	defer close(s.drained)
	for ev := range s.exporter.Events() {
		s.mu.Lock()
		job, ok := s.jobs[ev.JobID]
		if !ok {
			job = &Job{ID: ev.JobID, Kind: ev.Kind}
			s.jobs[ev.JobID] = job
		}
		job.Status = ev.Status
		job.Paths = ev.Paths
		job.Bytes = ev.Stats.Bytes
		job.UpdatedAt = ev.Time
		if ev.Err != nil {
			job.Error = errors.UserMessage(ev.Err)
		}
		s.mu.Unlock()
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.getSession)
		r.Put("/session", s.updateSession)
		r.Post("/session/images", s.addImages)
		r.Delete("/session/images", s.removeImages)
		r.Post("/export", s.export)
		r.Get("/jobs", s.listJobs)
		r.Get("/jobs/{id}", s.getJob)
	})
	r.Get("/preview/{tool}", s.preview)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.cfg.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start).Round(time.Millisecond))
	})
}

// =============================================================================
// Session
// =============================================================================

func (s *Server) snapshot() session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess.Snapshot()
}

// update applies fn under the lock and persists the result.
func (s *Server) update(ctx context.Context, fn func(*session.Session) error) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.sess); err != nil {
		return session.Session{}, err
	}
	if s.cfg.Store != nil {
		if err := s.cfg.Store.Set(ctx, s.sess); err != nil {
			s.cfg.Logger.Warn("session not saved", "error", err)
		}
	}
	return s.sess.Snapshot(), nil
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

type sessionUpdate struct {
	Title     *string `json:"title"`
	Studio    *string `json:"studio"`
	Version   *string `json:"version"`
	Tool      *string `json:"tool"`
	OutputDir *string `json:"output_dir"`
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionUpdate
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.OutputDir != nil && strings.TrimSpace(*req.OutputDir) == "" {
		writeError(w, errors.Validation("output_dir must not be empty"))
		return
	}
	snap, err := s.update(r.Context(), func(sess *session.Session) error {
		if req.Tool != nil {
			if err := sess.SelectTool(*req.Tool); err != nil {
				return err
			}
		}
		if req.OutputDir != nil {
			sess.OutputDir = *req.OutputDir
		}
		if req.Title != nil {
			sess.Title = *req.Title
		}
		if req.Studio != nil {
			sess.Studio = *req.Studio
		}
		if req.Version != nil {
			sess.Version = *req.Version
		}
		sess.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type imagesRequest struct {
	Paths []string `json:"paths"`
}

type imagesResponse struct {
	Added  int      `json:"added"`
	Images []string `json:"images"`
}

func (s *Server) addImages(w http.ResponseWriter, r *http.Request) {
	var req imagesRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, errors.Validation("paths must not be empty"))
		return
	}
	added := 0
	snap, _ := s.update(r.Context(), func(sess *session.Session) error {
		added = sess.AddImages(s.cfg.Logger, req.Paths...)
		return nil
	})
	writeJSON(w, http.StatusOK, imagesResponse{Added: added, Images: snap.Images})
}

func (s *Server) removeImages(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	snap, err := s.update(r.Context(), func(sess *session.Session) error {
		if path == "" {
			sess.ClearImages()
			return nil
		}
		if !sess.RemoveImage(path) {
			return errors.New(errors.ErrCodeNotFound, "image %s is not selected", path)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imagesResponse{Images: snap.Images})
}

// =============================================================================
// Preview and Export
// =============================================================================

// job builds the export for tool from a session snapshot.
func (s *Server) job(snap session.Session, tool string) (session.Job, error) {
	switch tool {
	case session.ToolCover:
		base := pipeline.NewCoverConfig()
		if s.cfg.Font != "" {
			base.Font = s.cfg.Font
		}
		return snap.CoverJob(base), nil
	case session.ToolCollage:
		base := pipeline.NewCollageConfig()
		if s.cfg.Font != "" {
			base.Font = s.cfg.Font
		}
		return snap.CollageJob(base), nil
	case session.ToolGIF:
		base := pipeline.NewGifConfig()
		if s.cfg.GifQuality > 0 {
			base.Quality = s.cfg.GifQuality
		}
		return snap.GIFJob(base), nil
	}
	return session.Job{}, errors.New(errors.ErrCodeNotFound, "unknown tool %q", tool)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	tool := strings.TrimSuffix(chi.URLParam(r, "tool"), ".png")
	job, err := s.job(s.snapshot(), tool)
	if err != nil {
		writeError(w, err)
		return
	}
	width, _ := strconv.Atoi(r.URL.Query().Get("w"))
	height, _ := strconv.Atoi(r.URL.Query().Get("h"))

	ctx := r.Context()
	var img image.Image
	switch job.Kind {
	case session.ToolCover:
		img, err = s.cfg.Runner.PreviewCover(ctx, job.Cover, width, height)
	case session.ToolCollage:
		img, err = s.cfg.Runner.PreviewCollage(ctx, job.Collage, width, height)
	case session.ToolGIF:
		img, err = s.cfg.Runner.PreviewGIF(ctx, job.GIF, width, height)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := sink.EncodePNG(w, img, nil); err != nil {
		s.cfg.Logger.Warn("preview not sent", "tool", tool, "error", err)
	}
}

type exportRequest struct {
	Tool string `json:"tool"`
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	snap := s.snapshot()
	tool := req.Tool
	if tool == "" {
		tool = snap.Tool
	}
	job, err := s.job(snap, tool)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := os.MkdirAll(snap.OutputDir, 0755); err != nil {
		writeError(w, errors.Configuration(err, "create output directory %s", snap.OutputDir))
		return
	}

	// Exports outlive the request; Close waits for them.
	id := s.exporter.Submit(context.WithoutCancel(r.Context()), job)
	if id == uuid.Nil {
		writeError(w, errors.New(errors.ErrCodeInternal, "server is shutting down"))
		return
	}
	s.mu.Lock()
	if _, ok := s.jobs[id]; !ok {
		s.jobs[id] = &Job{ID: id, Kind: job.Kind, Status: session.StatusRunning, UpdatedAt: time.Now()}
	}
	view := *s.jobs[id]
	s.mu.Unlock()
	writeJSON(w, http.StatusAccepted, view)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, k int) bool { return out[i].UpdatedAt.After(out[k].UpdatedAt) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.Validation("invalid job id %q", chi.URLParam(r, "id")))
		return
	}
	s.mu.Lock()
	job, ok := s.jobs[id]
	var view Job
	if ok {
		view = *job
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, errors.New(errors.ErrCodeNotFound, "job %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// =============================================================================
// Encoding
// =============================================================================

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConversion:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeExternalTool:
		return http.StatusBadGateway
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, StatusFor(err), ErrorResponse{Error: string(code), Message: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

const maxBody = 1 << 20

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeValidation, err, "invalid request body")
	}
	return nil
}
