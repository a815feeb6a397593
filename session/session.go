// Package session owns the viewer state: the open file, the current page, the
// operation list, the zoom and the materialized file left by crop and clip.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"

	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/ops"
	"github.com/Skryldev/imageviewer/pipeline"
	"github.com/Skryldev/imageviewer/utils"
	"github.com/Skryldev/imageviewer/view"
)

// State is the lifecycle state of the source.
type State int

const (
	Empty State = iota
	Loaded
	Materialized
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Materialized:
		return "materialized"
	}
	return "empty"
}

// Options wires a Session to its ports.
type Options struct {
	Codec    core.Codec
	Metadata core.MetadataReader
	Storage  core.TempStorage
	Logger   core.Logger
	Hooks    []core.Hook

	Window           core.Size // 0 = 800x600
	PolygonMaxPoints int       // 0 = ops.DefaultPolygonMaxPoints
	ThumbnailSize    int       // 0 = 100
}

// Session is not safe for concurrent use.  Drive it from a single goroutine,
// or through a Dispatcher.
type Session struct {
	codec core.Codec
	meta  core.MetadataReader
	store core.TempStorage
	log   core.Logger
	hooks []core.Hook
	opts  Options

	file         string
	pageCount    int
	pageIndex    int
	source       *core.Image
	materialized string

	list   *pipeline.List
	zoom   view.Zoom
	window core.Size

	// output caches list.Apply(source); nil when stale.
	output *core.Image
}

// New returns an empty Session.
func New(opts Options) (*Session, error) {
	if opts.Codec == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "session.new", errors.New("codec is required"))
	}
	if opts.Metadata == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "session.new", errors.New("metadata reader is required"))
	}
	if opts.Storage == nil {
		return nil, apperrors.New(apperrors.CategoryConfig, "session.new", errors.New("temp storage is required"))
	}
	if opts.Logger == nil {
		opts.Logger = core.NopLogger{}
	}
	if opts.Window.Width <= 0 || opts.Window.Height <= 0 {
		opts.Window = core.Size{Width: 800, Height: 600}
	}
	if opts.PolygonMaxPoints <= 0 {
		opts.PolygonMaxPoints = ops.DefaultPolygonMaxPoints
	}
	if opts.ThumbnailSize <= 0 {
		opts.ThumbnailSize = 100
	}

	list := pipeline.New()
	for _, h := range opts.Hooks {
		list.AddHook(h)
	}
	return &Session{
		codec:  opts.Codec,
		meta:   opts.Metadata,
		store:  opts.Storage,
		log:    opts.Logger,
		hooks:  slices.Clone(opts.Hooks),
		opts:   opts,
		list:   list,
		zoom:   view.Fit(view.FitPage),
		window: opts.Window,
	}, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *Session) State() State {
	switch {
	case s.source == nil:
		return Empty
	case s.materialized != "":
		return Materialized
	}
	return Loaded
}

func (s *Session) File() string { return s.file }
func (s *Session) MaterializedPath() string { return s.materialized }
func (s *Session) PageCount() int { return s.pageCount }
func (s *Session) PageIndex() int { return s.pageIndex }
func (s *Session) Zoom() view.Zoom { return s.zoom }
func (s *Session) Window() core.Size { return s.window }
func (s *Session) Source() *core.Image { return s.source }
func (s *Session) CanUndo() bool { return s.list.CanUndo() }
func (s *Session) CanRedo() bool { return s.list.CanRedo() }
func (s *Session) SupportedInputs() []core.Format { return s.codec.SupportedInputs() }
func (s *Session) SupportedOutputs() []core.Format { return s.codec.SupportedOutputs() }

// Operations returns the names of the applied operations in order.
func (s *Session) Operations() []string {
	applied := s.list.Operations()
	names := make([]string, len(applied))
	for i, op := range applied {
		names[i] = op.Name()
	}
	return names
}

// effectivePath is the file commands read back from: the materialized file
// when present, otherwise the opened file.
func (s *Session) effectivePath() string {
	if s.materialized != "" {
		return s.materialized
	}
	return s.file
}

func (s *Session) require(action string) error {
	if s.source == nil {
		return apperrors.NoSource(action)
	}
	return nil
}

// Metadata returns the metadata of the effective file.
func (s *Session) Metadata(ctx context.Context) (core.Metadata, error) {
	if err := s.require("show metadata"); err != nil {
		return core.Metadata{}, err
	}
	return s.meta.ReadMetadata(ctx, s.effectivePath())
}

// Dimensions returns the size of the pipeline output for the current page.
func (s *Session) Dimensions(ctx context.Context) (core.Size, error) {
	if err := s.require("show dimensions"); err != nil {
		return core.Size{}, err
	}
	out, err := s.current(ctx)
	if err != nil {
		return core.Size{}, err
	}
	return out.Size(), nil
}

// FormatTag probes the effective file.
func (s *Session) FormatTag(ctx context.Context) (core.Format, error) {
	if err := s.require("show format"); err != nil {
		return core.FormatUnknown, err
	}
	return s.codec.ProbeFormat(ctx, s.effectivePath())
}

// Properties summarises the current pipeline output.
type Properties struct {
	File         string
	Format       core.Format
	Width        int
	Height       int
	Model        core.ColorModel
	Page         int // 1-based
	Pages        int
	Operations   int
	Materialized bool
	// Format and Stored describe the effective file.
	Stored core.Size
}

func (s *Session) Properties(ctx context.Context) (Properties, error) {
	if err := s.require("show properties"); err != nil {
		return Properties{}, err
	}
	out, err := s.current(ctx)
	if err != nil {
		return Properties{}, err
	}
	stored, err := s.codec.ProbeDimensions(ctx, s.effectivePath())
	if err != nil {
		return Properties{}, err
	}
	format, err := s.codec.ProbeFormat(ctx, s.effectivePath())
	if err != nil {
		return Properties{}, err
	}
	return Properties{
		File:         s.file,
		Format:       format,
		Width:        out.Width(),
		Height:       out.Height(),
		Model:        out.Model(),
		Page:         s.pageIndex + 1,
		Pages:        s.pageCount,
		Operations:   s.list.Applied(),
		Materialized: s.materialized != "",
		Stored:       stored,
	}, nil
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

// Open loads the first page of path, replacing any open file.  The session is
// unchanged when Open fails.
func (s *Session) Open(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryIO, "open", err)
	}
	if !info.Mode().IsRegular() {
		return apperrors.New(apperrors.CategoryIO, "open", fmt.Errorf("%s is not a regular file", path))
	}
	if f := utils.FormatFromExt(path); !slices.Contains(s.codec.SupportedInputs(), f) {
		return apperrors.New(apperrors.CategoryUnsupported, "open",
			fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, filepath.Ext(path)))
	}

	pages, err := s.codec.PageCount(ctx, path)
	if err != nil {
		return err
	}
	img, err := s.codec.ReadPage(ctx, path, 0)
	if err != nil {
		return err
	}

	if err := s.dematerialize(ctx); err != nil {
		return err
	}
	s.file = path
	s.pageCount = max(pages, 1)
	s.pageIndex = 0
	s.source = img
	s.list.Clear()
	s.zoom = view.Fit(view.FitPage)
	s.invalidate()
	s.log.Info("session.open", "file", path, "pages", s.pageCount, "size", fmt.Sprintf("%dx%d", img.Width(), img.Height()))
	return nil
}

// Close drops the open file and deletes the materialized file.  The file stays
// open when the materialized file cannot be removed.
func (s *Session) Close(ctx context.Context) error {
	if err := s.require("close"); err != nil {
		return err
	}
	if err := s.dematerialize(ctx); err != nil {
		return err
	}
	s.file = ""
	s.pageCount = 0
	s.pageIndex = 0
	s.source = nil
	s.list.Clear()
	s.zoom = view.Fit(view.FitPage)
	s.invalidate()
	return nil
}

// Shutdown removes the materialized file if any.  Safe on an empty session.
func (s *Session) Shutdown(ctx context.Context) error {
	return s.dematerialize(ctx)
}

// Save encodes the pipeline output to path.  ".<format>" is appended when
// path has no extension.  Returns the path written.
func (s *Session) Save(ctx context.Context, path string, format core.Format) (string, error) {
	if err := s.require("save"); err != nil {
		return "", err
	}
	if !slices.Contains(s.codec.SupportedOutputs(), format) {
		return "", apperrors.New(apperrors.CategoryUnsupported, "save",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}
	if filepath.Ext(path) == "" {
		path += "." + format.Ext()
	}
	out, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	if err := s.codec.Encode(ctx, out, format, path); err != nil {
		return "", err
	}
	s.log.Info("session.save", "path", path, "format", string(format))
	return path, nil
}

// ── Pages ─────────────────────────────────────────────────────────────────────

// SelectPage decodes page i.  The operation list is kept and re-applied to the
// new page.
func (s *Session) SelectPage(ctx context.Context, i int) error {
	if err := s.require("select a page"); err != nil {
		return err
	}
	if i < 0 || i >= s.pageCount {
		return apperrors.OutOfBounds("selectPage", fmt.Errorf("%w: %d of %d", apperrors.ErrPageRange, i, s.pageCount))
	}
	if i == s.pageIndex {
		return nil
	}
	img, err := s.codec.ReadPage(ctx, s.file, i)
	if err != nil {
		return err
	}
	s.source = img
	s.pageIndex = i
	s.invalidate()
	return nil
}

// NextPage advances one page; it does nothing on the last page.
func (s *Session) NextPage(ctx context.Context) error {
	if err := s.require("change page"); err != nil {
		return err
	}
	if s.pageIndex+1 >= s.pageCount {
		return nil
	}
	return s.SelectPage(ctx, s.pageIndex+1)
}

// PrevPage goes back one page; it does nothing on the first page.
func (s *Session) PrevPage(ctx context.Context) error {
	if err := s.require("change page"); err != nil {
		return err
	}
	if s.pageIndex == 0 {
		return nil
	}
	return s.SelectPage(ctx, s.pageIndex-1)
}

// ── Operations ────────────────────────────────────────────────────────────────

// PushOperation appends op.  Crop and clip given in image coordinates are
// committed as destructive boundaries.
func (s *Session) PushOperation(ctx context.Context, op core.Operation) error {
	if op == nil {
		return apperrors.Input("pushOperation", "nil operation")
	}
	if err := s.require(op.Name()); err != nil {
		return err
	}
	if ops.IsDestructive(op) {
		return s.commit(ctx, op)
	}
	if err := s.list.Push(op); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Undo steps back one operation, rewriting or deleting the materialized file
// when a boundary is crossed.  The cursor does not move when the file cannot
// be updated.
func (s *Session) Undo(ctx context.Context) error {
	if err := s.require("undo"); err != nil {
		return err
	}
	return s.move(ctx, s.list.Undo, s.list.Redo)
}

// Redo re-applies the next undone operation.
func (s *Session) Redo(ctx context.Context) error {
	if err := s.require("redo"); err != nil {
		return err
	}
	return s.move(ctx, s.list.Redo, s.list.Undo)
}

func (s *Session) move(ctx context.Context, step, back func() core.Operation) error {
	op := step()
	if op == nil {
		return nil
	}
	s.invalidate()
	if _, ok := op.(*boundary); !ok {
		return nil
	}
	if err := s.syncMaterialized(ctx); err != nil {
		back()
		return err
	}
	return nil
}

// Reset clears the operation list, deletes the materialized file and returns
// to fit-page.  Nothing changes when the materialized file cannot be removed.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.require("reset"); err != nil {
		return err
	}
	if err := s.dematerialize(ctx); err != nil {
		return err
	}
	s.list.Clear()
	s.zoom = view.Fit(view.FitPage)
	s.invalidate()
	return nil
}

// ── Zoom ──────────────────────────────────────────────────────────────────────

func (s *Session) SetZoomMode(z view.Zoom) error {
	if err := s.require("zoom"); err != nil {
		return err
	}
	if err := z.Validate(); err != nil {
		return apperrors.New(apperrors.CategoryInput, "setZoomMode", err)
	}
	s.zoom = z
	return nil
}

func (s *Session) ZoomIn(ctx context.Context) error {
	return s.step(ctx, view.ZoomIn)
}

func (s *Session) ZoomOut(ctx context.Context) error {
	return s.step(ctx, view.ZoomOut)
}

func (s *Session) step(ctx context.Context, fn func(z view.Zoom, img, win core.Size) view.Zoom) error {
	if err := s.require("zoom"); err != nil {
		return err
	}
	out, err := s.current(ctx)
	if err != nil {
		return err
	}
	s.zoom = fn(s.zoom, out.Size(), s.window)
	return nil
}

// SetWindowSize records the viewport used by the fit modes and view mapping.
func (s *Session) SetWindowSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return apperrors.Input("setWindowSize", "window %dx%d must be positive", w, h)
	}
	s.window = core.Size{Width: w, Height: h}
	return nil
}

// ── Destructive commits ───────────────────────────────────────────────────────

// CommitCrop crops to a rectangle given in view coordinates.
func (s *Session) CommitCrop(ctx context.Context, viewRect ops.Rect) error {
	if err := s.require("crop"); err != nil {
		return err
	}
	m, err := s.mapping(ctx)
	if err != nil {
		return err
	}
	return s.commit(ctx, &ops.Crop{Rect: m.RectToImage(viewRect)})
}

// CommitClip clips to a shape given in view coordinates.  keepInside selects
// "clip to shape" over "clip shape".
func (s *Session) CommitClip(ctx context.Context, viewShape ops.Shape, keepInside bool) error {
	if err := s.require("clip"); err != nil {
		return err
	}
	if viewShape == nil {
		return apperrors.Input("clip", "missing shape")
	}
	viewShape = s.capped(viewShape)
	// Reject the polygon cap before mapping so the prompt speaks about the
	// shape the user drew.
	if err := viewShape.Validate(); err != nil {
		return err
	}
	m, err := s.mapping(ctx)
	if err != nil {
		return err
	}
	return s.commit(ctx, &ops.Clip{Shape: m.ShapeToImage(viewShape), KeepInside: keepInside})
}

func (s *Session) mapping(ctx context.Context) (*view.Mapping, error) {
	out, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	m, err := view.NewMapping(s.zoom, out.Size(), s.window)
	if err != nil {
		return nil, apperrors.OutOfBounds("mapping", err)
	}
	return m, nil
}

// capped applies the configured vertex limit to polygons that carry none.
func (s *Session) capped(shape ops.Shape) ops.Shape {
	if p, ok := shape.(ops.Polygon); ok && p.MaxPoints == 0 {
		p.MaxPoints = s.opts.PolygonMaxPoints
		return p
	}
	return shape
}

// commit applies op to the pipeline output, writes the result to the
// materialized file and records a boundary.  Nothing changes on failure.
func (s *Session) commit(ctx context.Context, op core.Operation) error {
	if c, ok := op.(*ops.Clip); ok {
		op = &ops.Clip{Shape: s.capped(c.Shape), KeepInside: c.KeepInside}
	}
	if err := op.Validate(); err != nil {
		return err
	}
	cur, err := s.current(ctx)
	if err != nil {
		return err
	}
	result, err := pipeline.Run(ctx, cur, []core.Operation{op}, s.hooks...)
	if err != nil {
		return err
	}
	format, _ := s.materialFormat()
	encoded, err := s.codec.EncodeBytes(ctx, result, format)
	if err != nil {
		return err
	}
	if err := s.materialize(ctx, encoded); err != nil {
		return err
	}
	b := &boundary{Operation: op, result: result, encoded: encoded}
	if err := s.list.Push(b); err != nil {
		return err
	}
	s.output = result
	return nil
}

// materialFormat picks the encoding of the materialized file: the source
// format when it can be written, PNG otherwise.
func (s *Session) materialFormat() (core.Format, string) {
	f := utils.FormatFromExt(s.file)
	if slices.Contains(s.codec.SupportedOutputs(), f) {
		return f, utils.Extension(s.file)
	}
	return core.FormatPNG, core.FormatPNG.Ext()
}

func (s *Session) materialize(ctx context.Context, data []byte) error {
	if s.materialized != "" {
		if err := s.store.Replace(ctx, s.materialized, data); err != nil {
			return err
		}
		s.log.Debug("session.materialize", "path", s.materialized, "bytes", len(data), "replaced", true)
		return nil
	}
	_, ext := s.materialFormat()
	path, err := s.store.Create(ctx, ext, data)
	if err != nil {
		return err
	}
	s.materialized = path
	s.log.Info("session.materialize", "path", path, "bytes", len(data))
	return nil
}

func (s *Session) dematerialize(ctx context.Context) error {
	if s.materialized == "" {
		return nil
	}
	if err := s.store.Remove(ctx, s.materialized); err != nil {
		return err
	}
	s.log.Info("session.materialize.remove", "path", s.materialized)
	s.materialized = ""
	return nil
}

// syncMaterialized makes the materialized file match the last applied
// boundary, or removes it when none is applied.
func (s *Session) syncMaterialized(ctx context.Context) error {
	b, _ := s.list.LastBoundary()
	if b == nil {
		return s.dematerialize(ctx)
	}
	return s.materialize(ctx, b.(*boundary).encoded)
}

// ── Rendering ─────────────────────────────────────────────────────────────────

func (s *Session) invalidate() { s.output = nil }

// current returns the pipeline output for the current page.
func (s *Session) current(ctx context.Context) (*core.Image, error) {
	if s.output != nil {
		return s.output, nil
	}
	out, err := s.list.Apply(ctx, s.source)
	if err != nil {
		return nil, err
	}
	s.output = out
	return out, nil
}

// Output returns the pipeline output for the current page, before the view
// transform.
func (s *Session) Output(ctx context.Context) (*core.Image, error) {
	if err := s.require("draw"); err != nil {
		return nil, err
	}
	return s.current(ctx)
}

// Frame is one composed redraw.
type Frame struct {
	Image *image.RGBA
	// Size is the displayed size after the view transform.
	Size core.Size
	// Generation increases with every render request of a Dispatcher.
	Generation uint64
}

// snapshot captures everything a render needs so it can run while the
// session keeps changing.
type snapshot struct {
	list   *pipeline.List
	source *core.Image
	zoom   view.Zoom
	window core.Size
	hooks  []core.Hook
}

func (s *Session) snapshot() snapshot {
	return snapshot{
		list:   s.list.Clone(),
		source: s.source,
		zoom:   s.zoom,
		window: s.window,
		hooks:  s.hooks,
	}
}

func (sn snapshot) render(ctx context.Context) (Frame, error) {
	if sn.source == nil {
		return Frame{}, apperrors.NoSource("draw")
	}
	out, err := sn.list.Apply(ctx, sn.source)
	if err != nil {
		return Frame{}, err
	}
	shown, err := pipeline.Run(ctx, out, []core.Operation{view.Transform(sn.zoom, sn.window)}, sn.hooks...)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Image: shown.RGBA(), Size: shown.Size()}, nil
}

// Render composes the pipeline output with the view transform.
func (s *Session) Render(ctx context.Context) (Frame, error) {
	if err := s.require("draw"); err != nil {
		return Frame{}, err
	}
	return s.snapshot().render(ctx)
}
