package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/internal/testimages"
	"github.com/Skryldev/imageviewer/ops"
	"github.com/Skryldev/imageviewer/session"
	"github.com/Skryldev/imageviewer/view"
)

const waitFor = 5 * time.Second

// blockingOp waits for cancellation the first time it is applied.
type blockingOp struct {
	started chan struct{}
	once    sync.Once
}

func newBlockingOp() *blockingOp { return &blockingOp{started: make(chan struct{})} }

func (o *blockingOp) Name() string    { return "blocking" }
func (o *blockingOp) Validate() error { return nil }
func (o *blockingOp) Apply(ctx context.Context, img *core.Image) (*core.Image, error) {
	first := false
	o.once.Do(func() {
		first = true
		close(o.started)
	})
	if !first {
		return img, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func startDispatcher(t *testing.T, d *session.Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(waitFor):
			t.Error("dispatcher did not stop")
		}
	})
}

func nextFrame(t *testing.T, d *session.Dispatcher) session.Frame {
	t.Helper()
	select {
	case f := <-d.Frames():
		return f
	case <-time.After(waitFor):
		t.Fatal("no frame delivered")
	}
	return session.Frame{}
}

func TestDispatcher_DoReturnsValues(t *testing.T) {
	f := newFixture(t)
	d := session.NewDispatcher(f.s, session.DispatcherOptions{})
	startDispatcher(t, d)
	ctx := context.Background()

	path := testimages.WriteFile(t, "a.png", testimages.GradientPNG(t, 100, 50))
	_, err := d.Do(ctx, session.Open{Path: path})
	require.NoError(t, err)

	v, err := d.Do(ctx, session.Dimensions{})
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 100, Height: 50}, v)

	v, err = d.Do(ctx, session.FormatTag{})
	require.NoError(t, err)
	assert.Equal(t, core.FormatPNG, v)

	frame := nextFrame(t, d)
	assert.Equal(t, core.Size{Width: 800, Height: 400}, frame.Size)
}

func TestDispatcher_CoalescesRedraws(t *testing.T) {
	f := newFixture(t)
	d := session.NewDispatcher(f.s, session.DispatcherOptions{})
	ctx := context.Background()
	path := testimages.WriteFile(t, "a.png", testimages.GradientPNG(t, 100, 50))

	cmds := []session.Command{
		session.Open{Path: path},
		session.SetZoomMode{Zoom: view.At(50)},
		session.ZoomIn{},
		session.PushOperation{Op: &ops.Rotate{Degrees: 90}},
	}
	tickets := make([]session.Ticket, len(cmds))
	for i, c := range cmds {
		tk, err := d.Submit(ctx, c)
		require.NoError(t, err)
		tickets[i] = tk
	}
	startDispatcher(t, d)

	for i, tk := range tickets {
		r, err := tk.Wait(ctx)
		require.NoError(t, err)
		require.NoError(t, r.Err, cmds[i].Name())
		assert.Equal(t, tk.ID, r.ID)
		assert.Equal(t, cmds[i].Name(), r.Command)
	}

	frame := nextFrame(t, d)
	assert.Equal(t, core.Size{Width: 30, Height: 60}, frame.Size)
	assert.Equal(t, uint64(1), d.Renders())
}

func TestDispatcher_FailedCommandDoesNotRedraw(t *testing.T) {
	f := newFixture(t)
	d := session.NewDispatcher(f.s, session.DispatcherOptions{})
	startDispatcher(t, d)

	_, err := d.Do(context.Background(), session.ZoomIn{})
	require.Error(t, err)
	assert.Equal(t, "No image to zoom", apperrors.Prompt(err))
	assert.Equal(t, uint64(0), d.Renders())
}

func TestDispatcher_NewRedrawSupersedesRender(t *testing.T) {
	f := newFixture(t)
	var failures atomic.Int32
	d := session.NewDispatcher(f.s, session.DispatcherOptions{
		OnRenderError: func(uint64, error) { failures.Add(1) },
	})
	startDispatcher(t, d)
	ctx := context.Background()

	path := testimages.WriteFile(t, "a.png", testimages.GradientPNG(t, 100, 50))
	_, err := d.Do(ctx, session.Open{Path: path})
	require.NoError(t, err)
	first := nextFrame(t, d)

	op := newBlockingOp()
	_, err = d.Do(ctx, session.PushOperation{Op: op})
	require.NoError(t, err)
	select {
	case <-op.started:
	case <-time.After(waitFor):
		t.Fatal("blocking render did not start")
	}

	_, err = d.Do(ctx, session.SetZoomMode{Zoom: view.At(100)})
	require.NoError(t, err)

	frame := nextFrame(t, d)
	assert.Greater(t, frame.Generation, first.Generation)
	assert.Equal(t, core.Size{Width: 100, Height: 50}, frame.Size)
	assert.Equal(t, uint64(3), d.Renders())
	assert.Zero(t, failures.Load())
}

func TestDispatcher_SubmitHonoursContext(t *testing.T) {
	f := newFixture(t)
	d := session.NewDispatcher(f.s, session.DispatcherOptions{QueueSize: 1})
	ctx := context.Background()

	_, err := d.Submit(ctx, session.Reset{})
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = d.Submit(canceled, session.Reset{})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryCanceled))
}
