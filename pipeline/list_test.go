package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/ops"
	"github.com/Skryldev/imageviewer/pipeline"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func source(t *testing.T, w, h int) *core.Image {
	t.Helper()
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = byte(i * 7)
	}
	img, err := core.NewImage(core.ModelRGB, w, h, pix, nil)
	require.NoError(t, err)
	return img
}

func names(list []core.Operation) []string {
	out := make([]string, len(list))
	for i, op := range list {
		out[i] = op.Name()
	}
	return out
}

// fixed is a boundary that always yields img.
type fixed struct {
	ops.Crop
	img *core.Image
}

func (f *fixed) Result() *core.Image { return f.img }

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) BeforeOperation(_ context.Context, name string, _ *core.Image) {
	r.mu.Lock()
	r.events = append(r.events, "before:"+name)
	r.mu.Unlock()
}

func (r *recorder) AfterOperation(_ context.Context, name string, _ *core.Image, _ time.Duration, err error) {
	r.mu.Lock()
	if err != nil {
		r.events = append(r.events, "error:"+name)
	} else {
		r.events = append(r.events, "after:"+name)
	}
	r.mu.Unlock()
}

type failing struct{}

func (failing) Name() string    { return "failing" }
func (failing) Validate() error { return nil }
func (failing) Apply(context.Context, *core.Image) (*core.Image, error) {
	return nil, errors.New("boom")
}

// ── Cursor ────────────────────────────────────────────────────────────────────

func TestList_PushUndoRedo(t *testing.T) {
	l := pipeline.New()
	require.NoError(t, l.Push(&ops.Blur{}))
	require.NoError(t, l.Push(&ops.Sharpen{}))
	assert.Equal(t, 2, l.Applied())

	assert.Equal(t, ops.NameSharpen, l.Undo().Name())
	assert.Equal(t, 1, l.Applied())
	assert.Equal(t, 2, l.Len())
	assert.True(t, l.CanRedo())
	assert.Equal(t, []string{ops.NameBlur}, names(l.Operations()))
	assert.Equal(t, []string{ops.NameBlur, ops.NameSharpen}, names(l.All()))

	assert.Equal(t, ops.NameSharpen, l.Redo().Name())
	assert.Nil(t, l.Redo())
	assert.Equal(t, 2, l.Applied())

	l.Undo()
	l.Undo()
	assert.Nil(t, l.Undo())
	assert.Equal(t, 0, l.Applied())
	assert.False(t, l.CanUndo())
}

func TestList_PushTruncatesRedoTail(t *testing.T) {
	l := pipeline.New()
	require.NoError(t, l.Push(&ops.Blur{}))
	l.Undo()
	require.NoError(t, l.Push(&ops.Sharpen{}))
	assert.Nil(t, l.Redo())

	assert.Equal(t, []string{ops.NameSharpen}, names(l.Operations()))
	assert.Equal(t, 1, l.Len())
}

func TestList_InvalidPushDoesNotMutate(t *testing.T) {
	l := pipeline.New()
	require.NoError(t, l.Push(&ops.Blur{}))
	l.Undo()

	err := l.Push(&ops.Rotate{Degrees: 45})
	require.Error(t, err)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 0, l.Applied())
	assert.NotNil(t, l.Redo(), "redo tail survives a rejected push")

	assert.Error(t, l.Push(nil))
}

func TestList_ClearAndClone(t *testing.T) {
	l := pipeline.New()
	require.NoError(t, l.Push(&ops.Blur{}))
	c := l.Clone()
	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Push(&ops.Emboss{}))
	assert.Equal(t, 0, l.Len())
}

// ── Apply ─────────────────────────────────────────────────────────────────────

func TestList_ApplyFoldsAppliedPrefix(t *testing.T) {
	src := source(t, 12, 8)
	l := pipeline.New()
	chain := []core.Operation{&ops.Rotate{Degrees: 90}, &ops.Brighten{Delta: 20}, &ops.Mirror{Axis: ops.Vertical}}
	for _, op := range chain {
		require.NoError(t, l.Push(op))
	}
	l.Undo()

	got, err := l.Apply(context.Background(), src)
	require.NoError(t, err)

	want := src
	for _, op := range chain[:2] {
		want, err = op.Apply(context.Background(), want)
		require.NoError(t, err)
	}
	assert.True(t, want.Equal(got))

	again, err := l.Apply(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, got.Equal(again))
}

func TestList_ApplyEmptyReturnsSource(t *testing.T) {
	src := source(t, 3, 3)
	got, err := pipeline.New().Apply(context.Background(), src)
	require.NoError(t, err)
	assert.Same(t, src, got)

	_, err = pipeline.New().Apply(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
}

func TestList_ApplyStartsAtLastBoundary(t *testing.T) {
	src := source(t, 10, 10)
	cut := source(t, 4, 2)

	l := pipeline.New()
	require.NoError(t, l.Push(&ops.Rotate{Degrees: 90}))
	require.NoError(t, l.Push(&fixed{Crop: ops.Crop{Rect: ops.Rect{W: 4, H: 2}}, img: cut}))
	require.NoError(t, l.Push(&ops.Rotate{Degrees: 90}))

	b, i := l.LastBoundary()
	require.NotNil(t, b)
	assert.Equal(t, 1, i)
	assert.True(t, l.HasBoundary())

	got, err := l.Apply(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 2, Height: 4}, got.Size())

	// undoing past the boundary goes back to the source
	l.Undo()
	l.Undo()
	b, _ = l.LastBoundary()
	assert.Nil(t, b)
	got, err = l.Apply(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 10, Height: 10}, got.Size())
}

func TestList_ApplyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := pipeline.New()
	require.NoError(t, l.Push(&ops.Blur{}))
	got, err := l.Apply(ctx, source(t, 4, 4))
	assert.Nil(t, got)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryCanceled))
}

func TestList_HooksAndErrors(t *testing.T) {
	rec := &recorder{}
	l := pipeline.New().AddHook(rec)
	require.NoError(t, l.Push(&ops.InvertColors{}))
	require.NoError(t, l.Push(failing{}))

	_, err := l.Apply(context.Background(), source(t, 2, 2))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryPipeline))
	assert.Equal(t, []string{
		"before:invertColors", "after:invertColors",
		"before:failing", "error:failing",
	}, rec.events)
	assert.Equal(t, 2, l.Applied(), "a failing op stays in the list")
}
