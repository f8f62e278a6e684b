package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/pipeline"
)

// Runner performs exports. *pipeline.Runner implements it.
type Runner interface {
	Cover(ctx context.Context, cfg pipeline.CoverConfig) (*pipeline.Result, error)
	Collage(ctx context.Context, cfg pipeline.CollageConfig) (*pipeline.Result, error)
	GIF(ctx context.Context, cfg pipeline.GifConfig) (*pipeline.Result, error)
}

// Job is one export request. Only the config matching Kind is used.
type Job struct {
	Kind    string
	Cover   pipeline.CoverConfig
	Collage pipeline.CollageConfig
	GIF     pipeline.GifConfig
}

// Status is a job's lifecycle stage.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Event reports a job's progress. Each job emits StatusRunning followed by
// exactly one of StatusDone or StatusFailed.
type Event struct {
	JobID  uuid.UUID
	Kind   string
	Status Status
	Paths  []string
	Stats  pipeline.Stats
	Err    error
	Time   time.Time
}

// Exporter runs every submitted job in its own goroutine and reports on a
// channel. Events must be drained; Close waits for running jobs and then
// closes the channel.
type Exporter struct {
	runner Runner
	logger *log.Logger
	events chan Event

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// DefaultEventBuffer is the event channel capacity.
const DefaultEventBuffer = 64

// NewExporter creates an exporter around runner.
func NewExporter(runner Runner, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Exporter{
		runner: runner,
		logger: logger,
		events: make(chan Event, DefaultEventBuffer),
	}
}

// Events returns the channel jobs report on.
func (e *Exporter) Events() <-chan Event {
	return e.events
}

// Submit starts job in the background and returns its ID. After Close it
// runs nothing and returns uuid.Nil.
func (e *Exporter) Submit(ctx context.Context, job Job) uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		e.logger.Warn("export submitted after close", "kind", job.Kind)
		return uuid.Nil
	}

	id := uuid.New()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, id, job)
	}()
	return id
}

func (e *Exporter) run(ctx context.Context, id uuid.UUID, job Job) {
	e.emit(Event{JobID: id, Kind: job.Kind, Status: StatusRunning})
	e.logger.Debug("export started", "job", id, "kind", job.Kind)

	res, err := e.dispatch(ctx, job)
	ev := Event{JobID: id, Kind: job.Kind, Status: StatusDone}
	if err != nil {
		ev.Status = StatusFailed
		ev.Err = err
		e.logger.Error("export failed", "job", id, "kind", job.Kind, "error", errors.UserMessage(err))
	} else {
		ev.Paths = res.Paths
		ev.Stats = res.Stats
		e.logger.Debug("export finished", "job", id, "kind", job.Kind, "paths", res.Paths)
	}
	e.emit(ev)
}

func (e *Exporter) dispatch(ctx context.Context, job Job) (*pipeline.Result, error) {
	switch job.Kind {
	case pipeline.KindCover:
		return e.runner.Cover(ctx, job.Cover)
	case pipeline.KindCollage:
		return e.runner.Collage(ctx, job.Collage)
	case pipeline.KindGIF:
		return e.runner.GIF(ctx, job.GIF)
	}
	return nil, errors.Validation("unknown export kind %q", job.Kind)
}

func (e *Exporter) emit(ev Event) {
	ev.Time = time.Now()
	e.events <- ev
}

// Wait blocks until every submitted job has reported.
func (e *Exporter) Wait() {
	e.wg.Wait()
}

// Close rejects further jobs, waits for running ones and closes Events.
func (e *Exporter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
	close(e.events)
}
