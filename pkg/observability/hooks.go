// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through the registered hooks; the defaults do
// nothing. Applications register implementations once at startup:
//
//	func main() {
//	    observability.SetExportHooks(observability.NewLogHooks(logger))
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Export().OnExportStart(ctx, "collage", len(images))
//	// ... compose and write ...
//	observability.Export().OnExportComplete(ctx, "collage", paths, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// =============================================================================
// Export Hooks
// =============================================================================

// ExportHooks receives events from the cover, collage and GIF pipelines.
type ExportHooks interface {
	OnExportStart(ctx context.Context, kind string, inputs int)
	OnExportComplete(ctx context.Context, kind string, paths []string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// Tool Hooks
// =============================================================================

// ToolHooks receives events from external codec toolchain invocations.
type ToolHooks interface {
	OnToolStart(ctx context.Context, tool, op string)
	OnToolComplete(ctx context.Context, tool, op string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

type NoopExportHooks struct{}

func (NoopExportHooks) OnExportStart(context.Context, string, int) {}
func (NoopExportHooks) OnExportComplete(context.Context, string, []string, time.Duration, error) {
}

type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

type NoopToolHooks struct{}

func (NoopToolHooks) OnToolStart(context.Context, string, string)                          {}
func (NoopToolHooks) OnToolComplete(context.Context, string, string, time.Duration, error) {}

// =============================================================================
// Log Implementation
// =============================================================================

// LogHooks writes every event to a logger at debug level. Failures are
// logged at warn level.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns hooks that log through logger.
func NewLogHooks(logger *log.Logger) *LogHooks {
	return &LogHooks{Logger: logger}
}

func (h *LogHooks) OnExportStart(_ context.Context, kind string, inputs int) {
	h.Logger.Debug("export started", "kind", kind, "inputs", inputs)
}

func (h *LogHooks) OnExportComplete(_ context.Context, kind string, paths []string, d time.Duration, err error) {
	if err != nil {
		h.Logger.Warn("export failed", "kind", kind, "duration", d, "error", err)
		return
	}
	h.Logger.Debug("export finished", "kind", kind, "files", len(paths), "duration", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnToolStart(_ context.Context, tool, op string) {
	h.Logger.Debug("tool started", "tool", tool, "op", op)
}

func (h *LogHooks) OnToolComplete(_ context.Context, tool, op string, d time.Duration, err error) {
	if err != nil {
		h.Logger.Warn("tool failed", "tool", tool, "op", op, "duration", d, "error", err)
		return
	}
	h.Logger.Debug("tool finished", "tool", tool, "op", op, "duration", d)
}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	exportHooks ExportHooks = NoopExportHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	toolHooks   ToolHooks   = NoopToolHooks{}
	hooksMu     sync.RWMutex
)

// SetExportHooks registers export hooks. Nil is ignored.
func SetExportHooks(h ExportHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		exportHooks = h
	}
}

// SetCacheHooks registers cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetToolHooks registers toolchain hooks. Nil is ignored.
func SetToolHooks(h ToolHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		toolHooks = h
	}
}

func Export() ExportHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return exportHooks
}

func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

func Tool() ToolHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return toolHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	exportHooks = NoopExportHooks{}
	cacheHooks = NoopCacheHooks{}
	toolHooks = NoopToolHooks{}
}
