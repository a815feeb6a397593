// Package pipeline holds the undoable operation list and folds it over a
// source image, running hooks around every operation.
package pipeline

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
)

// Boundary is an operation whose result replaces the effective source.  Apply
// starts folding from the Result of the last applied Boundary instead of
// re-running everything before it.
type Boundary interface {
	core.Operation
	Result() *core.Image
}

// List is an ordered sequence of operations with a cursor.  Entries before the
// cursor form the current pipeline, entries after it can be redone.  A List is
// not safe for concurrent mutation; use Clone to hand a snapshot to another
// goroutine.
type List struct {
	ops     []core.Operation
	applied int
	hooks   []core.Hook
}

// New returns an empty List.
func New() *List { return &List{} }

// AddHook registers an observer.  Returns the same List for chaining.
func (l *List) AddHook(h core.Hook) *List {
	l.hooks = append(l.hooks, h)
	return l
}

// Push validates op, drops the redo tail and appends op.  The list is left
// untouched when validation fails.
func (l *List) Push(op core.Operation) error {
	if op == nil {
		return apperrors.New(apperrors.CategoryInput, "push", errors.New("nil operation"))
	}
	if err := op.Validate(); err != nil {
		return err
	}
	l.ops = append(l.ops[:l.applied:l.applied], op)
	l.applied++
	return nil
}

// Undo moves the cursor back one entry and returns the operation it passed
// over, or nil when there is nothing to undo.
func (l *List) Undo() core.Operation {
	if l.applied == 0 {
		return nil
	}
	l.applied--
	return l.ops[l.applied]
}

// Redo moves the cursor forward one entry and returns the re-applied
// operation, or nil when the redo tail is empty.
func (l *List) Redo() core.Operation {
	if l.applied == len(l.ops) {
		return nil
	}
	l.applied++
	return l.ops[l.applied-1]
}

// Clear removes every entry.
func (l *List) Clear() {
	l.ops = nil
	l.applied = 0
}

func (l *List) Len() int     { return len(l.ops) }
func (l *List) Applied() int { return l.applied }

func (l *List) CanUndo() bool { return l.applied > 0 }
func (l *List) CanRedo() bool { return l.applied < len(l.ops) }

// Operations returns the applied entries in order.
func (l *List) Operations() []core.Operation { return slices.Clone(l.ops[:l.applied]) }

// All returns every entry, including the redo tail.
func (l *List) All() []core.Operation { return slices.Clone(l.ops) }

// LastBoundary returns the last applied Boundary and its index, or nil and -1.
func (l *List) LastBoundary() (Boundary, int) {
	for i := l.applied - 1; i >= 0; i-- {
		if b, ok := l.ops[i].(Boundary); ok {
			return b, i
		}
	}
	return nil, -1
}

// HasBoundary reports whether any entry, applied or not, is a Boundary.
func (l *List) HasBoundary() bool {
	return slices.ContainsFunc(l.ops, func(op core.Operation) bool {
		_, ok := op.(Boundary)
		return ok
	})
}

// Clone returns a copy that shares operations and hooks but not the cursor.
func (l *List) Clone() *List {
	return &List{
		ops:     slices.Clone(l.ops),
		applied: l.applied,
		hooks:   slices.Clone(l.hooks),
	}
}

// Apply folds the applied entries over src in order.  The context is checked
// between operations; on cancellation no image is returned.
func (l *List) Apply(ctx context.Context, src *core.Image) (*core.Image, error) {
	current, start := src, 0
	if b, i := l.LastBoundary(); b != nil {
		current, start = b.Result(), i+1
	}
	if current == nil {
		return nil, apperrors.New(apperrors.CategoryPipeline, "apply", apperrors.ErrEmptyInput)
	}
	return Run(ctx, current, l.ops[start:l.applied], l.hooks...)
}

// Run applies ops to img in order, calling hooks around each one.
func Run(ctx context.Context, img *core.Image, ops []core.Operation, hooks ...core.Hook) (*core.Image, error) {
	current := img
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Canceled(op.Name(), err)
		}
		next, err := runOp(ctx, op, current, hooks)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func runOp(ctx context.Context, op core.Operation, img *core.Image, hooks []core.Hook) (*core.Image, error) {
	for _, h := range hooks {
		h.BeforeOperation(ctx, op.Name(), img)
	}
	start := time.Now()
	out, err := op.Apply(ctx, img)
	elapsed := time.Since(start)

	var pe *apperrors.ProcessingError
	if err != nil && !errors.As(err, &pe) {
		err = apperrors.Wrap(apperrors.CategoryPipeline, op.Name(), err)
	}
	if err != nil {
		out = nil
	}
	for _, h := range hooks {
		h.AfterOperation(ctx, op.Name(), out, elapsed, err)
	}
	return out, err
}
