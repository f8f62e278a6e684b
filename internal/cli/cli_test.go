package cli

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/itchpage/pkg/cache"
	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/observability"
	"github.com/matzehuels/itchpage/pkg/pipeline"
	"github.com/matzehuels/itchpage/pkg/project"
	"github.com/matzehuels/itchpage/pkg/session"
)

// captureStdout redirects command output for the duration of the test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

func newTestCLI(t *testing.T) *CLI {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Cleanup(observability.Reset)
	return New(io.Discard, LogInfo)
}

func TestCacheDirXDG(t *testing.T) {
	custom := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", custom)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join(custom, appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestNewCacheIsOptIn(t *testing.T) {
	c := newTestCLI(t)
	ctx := withLogger(context.Background(), c.Logger)

	store := c.newCache(ctx, false)
	if _, ok := store.(cache.NullCache); !ok {
		t.Errorf("default backend = %T, want cache.NullCache", store)
	}

	c.Prefs.CacheBackend = project.CacheFile
	store = c.newCache(ctx, false)
	defer store.Close()
	if _, ok := store.(*cache.FileCache); !ok {
		t.Errorf("file preference = %T, want *cache.FileCache", store)
	}
	if _, ok := c.newCache(ctx, true).(cache.NullCache); !ok {
		t.Error("--no-cache should override the file preference")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"png", []string{"png"}},
		{"png, jpg", []string{"png", "jpg"}},
		{" ,png,,", []string{"png"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"small", 1, false},
		{"Medium", 3, false},
		{"x-large", 10, false},
		{"2.5", 2.5, false},
		{"4MB", 4, false},
		{"huge", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
}

func TestExpandImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "a.png"))
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)
	single := filepath.Join(t.TempDir(), "c.png")
	writePNG(t, single)

	got, err := expandImages([]string{dir, single})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.png"), single}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expandImages = %v, want %v", got, want)
	}

	if _, err := expandImages([]string{filepath.Join(dir, "missing.png")}); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing file: got %v, want NOT_FOUND", err)
	}
	if _, err := expandImages([]string{t.TempDir()}); !errors.Is(err, errors.ErrCodeValidation) {
		t.Errorf("empty dir: got %v, want VALIDATION", err)
	}
}

func TestRootCommandRegistersCommands(t *testing.T) {
	root := newTestCLI(t).RootCommand()
	for _, name := range []string{"cover", "collage", "gif", "batch", "package", "serve", "watch", "cache", "version", "completion"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestCompletionAndVersion(t *testing.T) {
	out := captureStdout(t)
	root := newTestCLI(t).RootCommand()

	root.SetArgs([]string{"completion", "bash"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "itchpage") {
		t.Error("bash completion should mention itchpage")
	}

	out.Reset()
	root.SetArgs([]string{"version", "--short"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != "dev" {
		t.Errorf("version --short = %q, want dev", got)
	}
}

func TestApplyUnset(t *testing.T) {
	var color, font string
	cmd := &cobra.Command{Use: "x", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().StringVar(&color, "color", "#000000", "")
	cmd.Flags().StringVar(&font, "font", "Arial", "")
	if err := cmd.ParseFlags([]string{"--color", "#ffffff"}); err != nil {
		t.Fatal(err)
	}

	applyUnset(cmd, map[string]func(){
		"color": func() { color = "#111111" },
		"font":  func() { font = "Impact" },
	})
	if color != "#ffffff" {
		t.Errorf("color = %q, explicit flag should win", color)
	}
	if font != "Impact" {
		t.Errorf("font = %q, preset should fill unset flag", font)
	}
}

func TestStatsLine(t *testing.T) {
	res := &pipeline.Result{
		Kind: pipeline.KindGIF,
		Stats: pipeline.Stats{
			Width:       480,
			Height:      270,
			Frames:      24,
			Bytes:       3 << 19,
			Passthrough: true,
		},
	}
	line := statsLine(res)
	for _, want := range []string{"480x270", "24 frames", "1.50 MB", "already within budget"} {
		if !strings.Contains(line, want) {
			t.Errorf("statsLine = %q, missing %q", line, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 << 20, "5.00 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestExportModel(t *testing.T) {
	events := make(chan session.Event)
	cover, gif := uuid.New(), uuid.New()
	cancelled := false
	m := newExportModel(events, []namedJob{{cover, "cover"}, {gif, "gif"}}, func() { cancelled = true })

	start := time.Now()
	steps := []session.Event{
		{JobID: cover, Kind: pipeline.KindCover, Status: session.StatusRunning, Time: start},
		{JobID: gif, Kind: pipeline.KindGIF, Status: session.StatusRunning, Time: start},
		{JobID: cover, Kind: pipeline.KindCover, Status: session.StatusDone, Paths: []string{"cover.png"}, Time: start.Add(time.Second)},
		{JobID: gif, Kind: pipeline.KindGIF, Status: session.StatusFailed, Err: errors.Validation("gif input is required"), Time: start.Add(time.Second)},
	}
	var model tea.Model = m
	for _, ev := range steps {
		var cmd tea.Cmd
		model, cmd = model.Update(eventMsg(ev))
		if cmd == nil {
			t.Fatal("event should schedule the next wait")
		}
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Error("q should cancel the exports")
	}

	model, cmd := model.Update(closedMsg{})
	if cmd == nil {
		t.Fatal("closed channel should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("closed channel should return tea.Quit")
	}

	final := model.(ExportModel)
	if final.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", final.Failed())
	}
	if final.rows[0].took != time.Second || final.rows[0].paths[0] != "cover.png" {
		t.Errorf("cover row = %+v", final.rows[0])
	}
	view := final.View()
	for _, want := range []string{"cover.png", "gif input is required", "finished"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if sum := final.summary(); !strings.Contains(sum, "cover") || !strings.Contains(sum, "gif input is required") {
		t.Errorf("summary = %q", sum)
	}
}

func TestDescriptorJobs(t *testing.T) {
	d, err := project.Decode([]byte(`
title = "Starfall"

[cover]
color = "#1b2838"

[gif]
input = "trailer.mp4"
`), project.FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	jobs := descriptorJobs(d)
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].job.Kind != pipeline.KindCover || jobs[0].job.Cover.Title != "Starfall" {
		t.Errorf("first job = %+v", jobs[0].job)
	}
	if jobs[1].job.Kind != pipeline.KindGIF || jobs[1].job.GIF.Input != "trailer.mp4" {
		t.Errorf("second job = %+v", jobs[1].job)
	}
}

func TestSessionJobs(t *testing.T) {
	c := newTestCLI(t)
	sess := session.New(t.TempDir())
	sess.Title = "Starfall"
	sess.Tool = session.ToolGIF
	sess.Images = []string{"clip.gif"}

	jobs := c.sessionJobs(sess, false)
	if len(jobs) != 1 || jobs[0].job.Kind != pipeline.KindGIF || jobs[0].job.GIF.Input != "clip.gif" {
		t.Errorf("active tool jobs = %+v", jobs)
	}
	if jobs[0].job.GIF.Quality != c.Prefs.GifQuality {
		t.Errorf("gif quality = %d, want preference %d", jobs[0].job.GIF.Quality, c.Prefs.GifQuality)
	}

	all := c.sessionJobs(sess, true)
	var kinds []string
	for _, j := range all {
		kinds = append(kinds, j.job.Kind)
	}
	if want := []string{pipeline.KindCover, pipeline.KindCollage, pipeline.KindGIF}; !reflect.DeepEqual(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
}
