package session

import (
	"context"

	"github.com/Skryldev/imageviewer/core"
	"github.com/Skryldev/imageviewer/ops"
	"github.com/Skryldev/imageviewer/view"
)

// Command is a typed request from the UI.  Execute runs on the dispatcher
// goroutine and may return a value for the caller.
type Command interface {
	Name() string
	Execute(ctx context.Context, s *Session) (any, error)
	// Redraws reports whether a successful Execute changes the frame.
	Redraws() bool
}

// Stable command names.
const (
	CmdOpen          = "open"
	CmdClose         = "close"
	CmdSave          = "save"
	CmdSelectPage    = "selectPage"
	CmdNextPage      = "nextPage"
	CmdPrevPage      = "prevPage"
	CmdPushOperation = "pushOperation"
	CmdUndo          = "undo"
	CmdRedo          = "redo"
	CmdReset         = "reset"
	CmdSetZoomMode   = "setZoomMode"
	CmdZoomIn        = "zoomIn"
	CmdZoomOut       = "zoomOut"
	CmdMetadata      = "metadata"
	CmdDimensions    = "dimensions"
	CmdFormatTag     = "formatTag"
	CmdSetWindowSize = "setWindowSize"
	CmdCommitCrop    = "commitCrop"
	CmdCommitClip    = "commitClip"
	CmdRender        = "render"
)

type Open struct{ Path string }

func (Open) Name() string  { return CmdOpen }
func (Open) Redraws() bool { return true }
func (c Open) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.Open(ctx, c.Path)
}

type Close struct{}

func (Close) Name() string  { return CmdClose }
func (Close) Redraws() bool { return false }
func (Close) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.Close(ctx)
}

// Save returns the path written.
type Save struct {
	Path   string
	Format core.Format
}

func (Save) Name() string  { return CmdSave }
func (Save) Redraws() bool { return false }
func (c Save) Execute(ctx context.Context, s *Session) (any, error) {
	return s.Save(ctx, c.Path, c.Format)
}

type SelectPage struct{ Index int }

func (SelectPage) Name() string  { return CmdSelectPage }
func (SelectPage) Redraws() bool { return true }
func (c SelectPage) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.SelectPage(ctx, c.Index)
}

type NextPage struct{}

func (NextPage) Name() string  { return CmdNextPage }
func (NextPage) Redraws() bool { return true }
func (NextPage) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.NextPage(ctx)
}

type PrevPage struct{}

func (PrevPage) Name() string  { return CmdPrevPage }
func (PrevPage) Redraws() bool { return true }
func (PrevPage) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.PrevPage(ctx)
}

type PushOperation struct{ Op core.Operation }

func (PushOperation) Name() string  { return CmdPushOperation }
func (PushOperation) Redraws() bool { return true }
func (c PushOperation) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.PushOperation(ctx, c.Op)
}

type Undo struct{}

func (Undo) Name() string  { return CmdUndo }
func (Undo) Redraws() bool { return true }
func (Undo) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.Undo(ctx)
}

type Redo struct{}

func (Redo) Name() string  { return CmdRedo }
func (Redo) Redraws() bool { return true }
func (Redo) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.Redo(ctx)
}

type Reset struct{}

func (Reset) Name() string  { return CmdReset }
func (Reset) Redraws() bool { return true }
func (Reset) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.Reset(ctx)
}

type SetZoomMode struct{ Zoom view.Zoom }

func (SetZoomMode) Name() string  { return CmdSetZoomMode }
func (SetZoomMode) Redraws() bool { return true }
func (c SetZoomMode) Execute(_ context.Context, s *Session) (any, error) {
	return nil, s.SetZoomMode(c.Zoom)
}

type ZoomIn struct{}

func (ZoomIn) Name() string  { return CmdZoomIn }
func (ZoomIn) Redraws() bool { return true }
func (ZoomIn) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.ZoomIn(ctx)
}

type ZoomOut struct{}

func (ZoomOut) Name() string  { return CmdZoomOut }
func (ZoomOut) Redraws() bool { return true }
func (ZoomOut) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.ZoomOut(ctx)
}

// Metadata returns a core.Metadata.
type Metadata struct{}

func (Metadata) Name() string  { return CmdMetadata }
func (Metadata) Redraws() bool { return false }
func (Metadata) Execute(ctx context.Context, s *Session) (any, error) {
	return s.Metadata(ctx)
}

// Dimensions returns a core.Size.
type Dimensions struct{}

func (Dimensions) Name() string  { return CmdDimensions }
func (Dimensions) Redraws() bool { return false }
func (Dimensions) Execute(ctx context.Context, s *Session) (any, error) {
	return s.Dimensions(ctx)
}

// FormatTag returns a core.Format.
type FormatTag struct{}

func (FormatTag) Name() string  { return CmdFormatTag }
func (FormatTag) Redraws() bool { return false }
func (FormatTag) Execute(ctx context.Context, s *Session) (any, error) {
	return s.FormatTag(ctx)
}

type SetWindowSize struct{ Width, Height int }

func (SetWindowSize) Name() string  { return CmdSetWindowSize }
func (SetWindowSize) Redraws() bool { return true }
func (c SetWindowSize) Execute(_ context.Context, s *Session) (any, error) {
	return nil, s.SetWindowSize(c.Width, c.Height)
}

// CommitCrop takes a rectangle in view coordinates.
type CommitCrop struct{ Rect ops.Rect }

func (CommitCrop) Name() string  { return CmdCommitCrop }
func (CommitCrop) Redraws() bool { return true }
func (c CommitCrop) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.CommitCrop(ctx, c.Rect)
}

// CommitClip takes a shape in view coordinates.
type CommitClip struct {
	Shape      ops.Shape
	KeepInside bool
}

func (CommitClip) Name() string  { return CmdCommitClip }
func (CommitClip) Redraws() bool { return true }
func (c CommitClip) Execute(ctx context.Context, s *Session) (any, error) {
	return nil, s.CommitClip(ctx, c.Shape, c.KeepInside)
}

// Render draws synchronously on the dispatcher goroutine and returns a Frame.
type Render struct{}

func (Render) Name() string  { return CmdRender }
func (Render) Redraws() bool { return false }
func (Render) Execute(ctx context.Context, s *Session) (any, error) {
	return s.Render(ctx)
}
