package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/itchpage/pkg/errors"
	"github.com/matzehuels/itchpage/pkg/pipeline"
	"github.com/matzehuels/itchpage/pkg/project"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // primary
	colorGreen  = lipgloss.Color("35")  // success
	colorYellow = lipgloss.Color("220") // warnings
	colorRed    = lipgloss.Color("167") // errors
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)
	StyleDim       = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue     = lipgloss.NewStyle().Foreground(colorWhite)
	StyleSuccess   = lipgloss.NewStyle().Foreground(colorGreen)
	StyleWarning   = lipgloss.NewStyle().Foreground(colorYellow)
	StyleError     = lipgloss.NewStyle().Foreground(colorRed)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconRunning = "…"
)

// stdout is where command output goes. Tests swap it.
var stdout io.Writer = os.Stdout

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Fprintln(stdout, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleKey.Render(key)+" "+StyleValue.Render(value))
}

// =============================================================================
// Results
// =============================================================================

// printResult lists the written files and a one-line summary.
func printResult(res *pipeline.Result) {
	for _, p := range res.Paths {
		printFile(p)
	}
	if line := statsLine(res); line != "" {
		fmt.Fprintln(stdout, "  "+line)
	}
}

// statsLine joins the interesting stats with dim separators.
func statsLine(res *pipeline.Result) string {
	s := res.Stats
	var parts []string
	if s.Width > 0 && s.Height > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", s.Width, s.Height))
	}
	if s.Inputs > 0 && res.Kind == pipeline.KindCollage {
		parts = append(parts, fmt.Sprintf("%d images", s.Inputs))
	}
	if s.Skipped > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d skipped", s.Skipped)))
	}
	if s.Frames > 0 {
		parts = append(parts, fmt.Sprintf("%d frames", s.Frames))
	}
	if s.Bytes > 0 {
		parts = append(parts, formatBytes(s.Bytes))
	}
	switch {
	case s.Passthrough:
		parts = append(parts, StyleSuccess.Render("already within budget"))
	case s.Transcoded:
		parts = append(parts, "transcoded")
	}
	if s.Duration > 0 {
		parts = append(parts, s.Duration.Round(time.Millisecond).String())
	}
	for i, p := range parts {
		parts[i] = StyleDim.Render(p)
	}
	return strings.Join(parts, StyleDim.Render(" · "))
}

// printItem prints one batch entry with its success or failure icon.
func printItem(it project.Item) {
	if !it.OK() {
		printError("%s %s", it.Name, StyleError.Render(errors.UserMessage(it.Err)))
		return
	}
	printSuccess("%s", it.Name)
	if it.Result != nil {
		printResult(it.Result)
	}
}

// printSummary closes a batch run.
func printSummary(items []project.Item) {
	failed := project.Failed(items)
	switch {
	case len(items) == 0:
		printWarning("Nothing to do")
	case failed == 0:
		printSuccess("%d of %d done", len(items), len(items))
	default:
		printWarning("%d of %d failed", failed, len(items))
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
