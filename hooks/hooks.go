// Package hooks provides Hook, Logger and MetricsCollector implementations.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps the standard library slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.
func NewSlogLogger(l *slog.Logger) *SlogLogger { return &SlogLogger{log: l} }

func (s *SlogLogger) Debug(msg string, fields ...interface{}) {
	s.log.Debug(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Info(msg string, fields ...interface{}) {
	s.log.Info(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Warn(msg string, fields ...interface{}) {
	s.log.Warn(msg, toAttrs(fields)...)
}
func (s *SlogLogger) Error(msg string, fields ...interface{}) {
	s.log.Error(msg, toAttrs(fields)...)
}

func toAttrs(fields []interface{}) []any { return fields }

// ParseLevel maps a config log level onto slog.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs before/after each pipeline operation.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeOperation(_ context.Context, name string, img *core.Image) {
	h.logger.Debug("pipeline.op.start",
		"op", name,
		"input", describe(img),
	)
}

func (h *LoggingHook) AfterOperation(_ context.Context, name string, img *core.Image, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("pipeline.op.error",
			"op", name,
			"duration_ms", d.Milliseconds(),
			"category", string(apperrors.CategoryOf(err)),
			"error", err.Error(),
		)
		return
	}
	h.logger.Debug("pipeline.op.done",
		"op", name,
		"duration_ms", d.Milliseconds(),
		"output", describe(img),
	)
}

func describe(img *core.Image) string {
	if img == nil {
		return "nil"
	}
	return fmt.Sprintf("%dx%d %s", img.Width(), img.Height(), img.Model())
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates metrics; safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	opDurationsMs map[string]int64 // cumulative ms per operation
	opCalls       map[string]int64 // call count per operation
	opErrors      map[string]int64
	errCategories map[string]int64

	totalPixels int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		opDurationsMs: make(map[string]int64),
		opCalls:       make(map[string]int64),
		opErrors:      make(map[string]int64),
		errCategories: make(map[string]int64),
	}
}

func (m *InMemoryMetrics) RecordOperationTime(name string, d time.Duration) {
	m.mu.Lock()
	m.opDurationsMs[name] += d.Milliseconds()
	m.opCalls[name]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordPixels(n int64) {
	atomic.AddInt64(&m.totalPixels, n)
}

func (m *InMemoryMetrics) RecordError(name string, category string) {
	m.mu.Lock()
	m.opErrors[name]++
	m.errCategories[category]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		OpDurationsMs:   maps.Clone(m.opDurationsMs),
		OpCalls:         maps.Clone(m.opCalls),
		OpErrors:        maps.Clone(m.opErrors),
		ErrorCategories: maps.Clone(m.errCategories),
		TotalPixels:     atomic.LoadInt64(&m.totalPixels),
	}
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	OpDurationsMs   map[string]int64
	OpCalls         map[string]int64
	OpErrors        map[string]int64
	ErrorCategories map[string]int64
	TotalPixels     int64
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds pipeline events into a MetricsCollector.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeOperation(context.Context, string, *core.Image) {}

func (h *MetricsHook) AfterOperation(_ context.Context, name string, img *core.Image, d time.Duration, err error) {
	h.collector.RecordOperationTime(name, d)
	if err != nil {
		cat := string(apperrors.CategoryOf(err))
		if cat == "" {
			cat = string(apperrors.CategoryPipeline)
		}
		h.collector.RecordError(name, cat)
	}
	if img != nil {
		h.collector.RecordPixels(int64(img.Width()) * int64(img.Height()))
	}
}

var (
	_ core.Logger           = (*SlogLogger)(nil)
	_ core.Hook             = (*LoggingHook)(nil)
	_ core.Hook             = (*MetricsHook)(nil)
	_ core.MetricsCollector = (*InMemoryMetrics)(nil)
)
