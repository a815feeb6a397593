package hooks_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/hooks"
)

func TestLoggingHook_WritesEvents(t *testing.T) {
	var buf bytes.Buffer
	l := hooks.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	h := hooks.NewLoggingHook(l)
	img := core.MustImage(core.ModelGray, 4, 3, make([]byte, 12), nil)

	h.BeforeOperation(context.Background(), "blur", img)
	h.AfterOperation(context.Background(), "blur", img, 3*time.Millisecond, nil)
	h.AfterOperation(context.Background(), "crop", nil, 0, apperrors.OutOfBounds("crop", apperrors.ErrEmptyRegion))

	out := buf.String()
	assert.Contains(t, out, "pipeline.op.start")
	assert.Contains(t, out, "input=\"4x3 grayscale\"")
	assert.Contains(t, out, "pipeline.op.done")
	assert.Contains(t, out, "pipeline.op.error")
	assert.Contains(t, out, "category=out_of_bounds")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestMetricsHook_FeedsCollector(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	h := hooks.NewMetricsHook(m)
	img := core.MustImage(core.ModelRGB, 10, 20, make([]byte, 600), nil)

	h.AfterOperation(context.Background(), "rotate", img, 2*time.Millisecond, nil)
	h.AfterOperation(context.Background(), "rotate", img, 3*time.Millisecond, nil)
	h.AfterOperation(context.Background(), "clip", nil, 0, apperrors.OutOfBounds("clip", apperrors.ErrEmptyRegion))
	h.AfterOperation(context.Background(), "custom", nil, 0, errors.New("plain"))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.OpCalls["rotate"])
	assert.Equal(t, int64(5), snap.OpDurationsMs["rotate"])
	assert.Equal(t, int64(400), snap.TotalPixels)
	assert.Equal(t, int64(1), snap.OpErrors["clip"])
	assert.Equal(t, int64(1), snap.ErrorCategories["out_of_bounds"])
	assert.Equal(t, int64(1), snap.ErrorCategories["pipeline"])
}

func TestSnapshot_IsACopy(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	m.RecordOperationTime("blur", time.Millisecond)
	snap := m.Snapshot()
	snap.OpCalls["blur"] = 99
	require.Equal(t, int64(1), m.Snapshot().OpCalls["blur"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, hooks.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, hooks.ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, hooks.ParseLevel("bogus"))
}
