package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
)

// Result is the outcome of one command.
type Result struct {
	ID      uuid.UUID
	Command string
	Value   any
	Err     error
}

// Ticket tracks a submitted command.
type Ticket struct {
	ID   uuid.UUID
	done <-chan Result
}

// Wait blocks until the command has run or ctx is done.
func (t Ticket) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-t.done:
		return r, nil
	case <-ctx.Done():
		return Result{ID: t.ID}, apperrors.Canceled("wait", ctx.Err())
	}
}

type request struct {
	id    uuid.UUID
	cmd   Command
	reply chan Result
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Logger    core.Logger
	QueueSize int // 0 = 64
	// OnRenderError receives render failures other than supersession.
	OnRenderError func(generation uint64, err error)
}

// Dispatcher serialises commands onto one goroutine and renders in the
// background.  Commands queued between two turns share a single redraw, and a
// new redraw cancels the one in flight; only the latest frame is delivered.
type Dispatcher struct {
	session *Session
	log     core.Logger
	onError func(uint64, error)
	queue   chan request
	frames  chan Frame

	mu      sync.Mutex
	gen     uint64
	renders uint64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewDispatcher(s *Session, opts DispatcherOptions) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	return &Dispatcher{
		session: s,
		log:     opts.Logger,
		onError: opts.OnRenderError,
		queue:   make(chan request, opts.QueueSize),
		frames:  make(chan Frame, 1),
	}
}

// Frames delivers completed redraws.  The channel holds at most one frame;
// an unread frame is replaced by a newer one.
func (d *Dispatcher) Frames() <-chan Frame { return d.frames }

// Renders returns how many redraws have been started.
func (d *Dispatcher) Renders() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.renders
}

// Submit queues cmd.  It blocks while the queue is full.
func (d *Dispatcher) Submit(ctx context.Context, cmd Command) (Ticket, error) {
	req := request{id: uuid.New(), cmd: cmd, reply: make(chan Result, 1)}
	select {
	case d.queue <- req:
		return Ticket{ID: req.id, done: req.reply}, nil
	case <-ctx.Done():
		return Ticket{}, apperrors.Canceled("submit", ctx.Err())
	}
}

// Do submits cmd and waits for its result.
func (d *Dispatcher) Do(ctx context.Context, cmd Command) (any, error) {
	t, err := d.Submit(ctx, cmd)
	if err != nil {
		return nil, err
	}
	r, err := t.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return r.Value, r.Err
}

// Run consumes commands until ctx is done, then cancels any render in flight
// and waits for it.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer func() {
		d.supersede()
		d.wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-d.queue:
			redraw := d.execute(ctx, req)
			for drained := false; !drained; {
				select {
				case next := <-d.queue:
					redraw = d.execute(ctx, next) || redraw
				default:
					drained = true
				}
			}
			if redraw {
				d.render(ctx)
			}
		}
	}
}

// execute runs one command and reports whether it asks for a redraw.
func (d *Dispatcher) execute(ctx context.Context, req request) bool {
	if req.cmd.Redraws() {
		d.supersede()
	}
	start := time.Now()
	value, err := req.cmd.Execute(ctx, d.session)
	fields := []interface{}{
		"id", req.id.String(),
		"command", req.cmd.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		d.log.Warn("session.command", append(fields, "category", string(apperrors.CategoryOf(err)), "error", err)...)
	} else {
		d.log.Debug("session.command", fields...)
	}
	req.reply <- Result{ID: req.id, Command: req.cmd.Name(), Value: value, Err: err}
	return err == nil && req.cmd.Redraws()
}

// supersede cancels the render in flight and invalidates its generation.
func (d *Dispatcher) supersede() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.gen++
}

func (d *Dispatcher) render(parent context.Context) {
	if d.session.State() == Empty {
		return
	}
	snap := d.session.snapshot()

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.gen++
	d.renders++
	gen := d.gen
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		frame, err := snap.render(ctx)
		d.deliver(gen, frame, err)
	}()
}

func (d *Dispatcher) deliver(gen uint64, frame Frame, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || apperrors.IsCategory(err, apperrors.CategoryCanceled) || errors.Is(err, context.Canceled) {
		d.log.Debug("session.render.superseded", "generation", gen)
		return
	}
	if err != nil {
		d.log.Error("session.render.error", "generation", gen, "error", err)
		if d.onError != nil {
			d.onError(gen, err)
		}
		return
	}
	frame.Generation = gen
	select {
	case d.frames <- frame:
	default:
		select {
		case <-d.frames:
		default:
		}
		d.frames <- frame
	}
}
