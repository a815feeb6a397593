package session_test

import (
	"context"
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/imageviewer/adapters/codec"
	"github.com/Skryldev/imageviewer/adapters/storage"
	"github.com/Skryldev/imageviewer/core"
	apperrors "github.com/Skryldev/imageviewer/errors"
	"github.com/Skryldev/imageviewer/internal/testimages"
	"github.com/Skryldev/imageviewer/ops"
	"github.com/Skryldev/imageviewer/session"
	"github.com/Skryldev/imageviewer/view"
)

type fixture struct {
	s     *session.Session
	codec *codec.Codec
	store *storage.Temp
}

func newFixture(t *testing.T, mutate ...func(*session.Options)) fixture {
	t.Helper()
	c := codec.New(codec.Options{})
	store, err := storage.NewTemp(t.TempDir(), 0)
	require.NoError(t, err)
	opts := session.Options{Codec: c, Metadata: codec.NewMetadataReader(c), Storage: store}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := session.New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return fixture{s: s, codec: c, store: store}
}

func openPNG(t *testing.T, f fixture, w, h int) string {
	t.Helper()
	path := testimages.WriteFile(t, "photo.png", testimages.GradientPNG(t, w, h))
	require.NoError(t, f.s.Open(context.Background(), path))
	return path
}

func dims(t *testing.T, s *session.Session) core.Size {
	t.Helper()
	d, err := s.Dimensions(context.Background())
	require.NoError(t, err)
	return d
}

func tempEntries(t *testing.T, store *storage.Temp) int {
	t.Helper()
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	return len(entries)
}

func TestNew_RequiresPorts(t *testing.T) {
	_, err := session.New(session.Options{})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfig))
}

func TestOpen_LoadsFirstPage(t *testing.T) {
	f := newFixture(t)
	path := openPNG(t, f, 100, 50)

	assert.Equal(t, session.Loaded, f.s.State())
	assert.Equal(t, path, f.s.File())
	assert.Equal(t, 1, f.s.PageCount())
	assert.Equal(t, view.Fit(view.FitPage), f.s.Zoom())
	assert.Equal(t, core.Size{Width: 100, Height: 50}, dims(t, f.s))
	assert.Empty(t, f.s.Operations())

	tag, err := f.s.FormatTag(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.FormatPNG, tag)
}

func TestOpen_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	good := openPNG(t, f, 10, 10)

	txt := testimages.WriteFile(t, "notes.txt", []byte("hello"))
	corrupt := testimages.WriteFile(t, "broken.png", []byte("\x89PNG\r\n\x1a\nnope"))

	tests := []struct {
		name string
		path string
		cat  apperrors.Category
	}{
		{"missing", filepath.Join(t.TempDir(), "nope.png"), apperrors.CategoryIO},
		{"directory", t.TempDir(), apperrors.CategoryIO},
		{"extension", txt, apperrors.CategoryUnsupported},
		{"corrupt", corrupt, apperrors.CategoryDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.s.Open(ctx, tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.cat, apperrors.CategoryOf(err))
			assert.Equal(t, good, f.s.File(), "failed open keeps the previous file")
			assert.Equal(t, session.Loaded, f.s.State())
		})
	}
}

func TestRotateSwapsDimensions(t *testing.T) {
	f := newFixture(t)
	openPNG(t, f, 100, 50)

	require.NoError(t, f.s.PushOperation(context.Background(), &ops.Rotate{Degrees: 90}))
	assert.Equal(t, core.Size{Width: 50, Height: 100}, dims(t, f.s))
	assert.Equal(t, []string{ops.NameRotate}, f.s.Operations())
}

func TestBrightenThenInvertIsBlack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 8, 4)

	require.NoError(t, f.s.PushOperation(ctx, &ops.Brighten{Delta: 255}))
	require.NoError(t, f.s.PushOperation(ctx, &ops.InvertColors{}))

	out, err := f.s.Output(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ModelRGB, out.Model())
	for i, v := range out.Pix() {
		if v != 0 {
			t.Fatalf("pix[%d] = %d, want 0", i, v)
		}
	}
}

func TestPushAfterUndoTruncatesRedo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 16, 16)

	require.NoError(t, f.s.PushOperation(ctx, &ops.Blur{}))
	require.NoError(t, f.s.Undo(ctx))
	require.NoError(t, f.s.PushOperation(ctx, &ops.Sharpen{}))
	require.NoError(t, f.s.Redo(ctx))

	assert.Equal(t, []string{ops.NameSharpen}, f.s.Operations())
	assert.False(t, f.s.CanRedo())
	assert.True(t, f.s.CanUndo())
}

func TestUndoRedoAtEndsAreNoOps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 8, 8)

	require.NoError(t, f.s.Undo(ctx))
	require.NoError(t, f.s.Redo(ctx))
	assert.Empty(t, f.s.Operations())
}

func TestInvalidOperationLeavesListUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 8, 8)

	err := f.s.PushOperation(ctx, &ops.Brighten{Delta: 300})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
	err = f.s.PushOperation(ctx, nil)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))
	assert.Empty(t, f.s.Operations())
}

func openTIFF(t *testing.T, f fixture) {
	t.Helper()
	data := testimages.GrayTIFFPages(
		testimages.TIFFPage{W: 10, H: 10, Fill: 10},
		testimages.TIFFPage{W: 20, H: 5, Fill: 120},
		testimages.TIFFPage{W: 7, H: 3, Fill: 250},
	)
	path := testimages.WriteFile(t, "scan.tif", data)
	require.NoError(t, f.s.Open(context.Background(), path))
}

func TestSelectPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openTIFF(t, f)
	require.Equal(t, 3, f.s.PageCount())

	require.NoError(t, f.s.SelectPage(ctx, 2))
	assert.Equal(t, 2, f.s.PageIndex())
	assert.Equal(t, core.Size{Width: 7, Height: 3}, dims(t, f.s))
	out, err := f.s.Output(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint8(250), out.At(0, 0).R)

	err = f.s.SelectPage(ctx, 3)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryOutOfBounds))
	assert.ErrorIs(t, err, apperrors.ErrPageRange)
	assert.Equal(t, 2, f.s.PageIndex())
	assert.Equal(t, core.Size{Width: 7, Height: 3}, dims(t, f.s))

	assert.Error(t, f.s.SelectPage(ctx, -1))
}

func TestSelectPageKeepsOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openTIFF(t, f)

	require.NoError(t, f.s.PushOperation(ctx, &ops.Rotate{Degrees: 90}))
	require.NoError(t, f.s.SelectPage(ctx, 1))
	assert.Equal(t, []string{ops.NameRotate}, f.s.Operations())
	assert.Equal(t, core.Size{Width: 5, Height: 20}, dims(t, f.s))
}

func TestNextPrevPageStopAtEnds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openTIFF(t, f)

	require.NoError(t, f.s.PrevPage(ctx))
	assert.Equal(t, 0, f.s.PageIndex())
	for range 5 {
		require.NoError(t, f.s.NextPage(ctx))
	}
	assert.Equal(t, 2, f.s.PageIndex())
	require.NoError(t, f.s.PrevPage(ctx))
	assert.Equal(t, 1, f.s.PageIndex())
}

func TestCropMaterializes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)

	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{X: 10, Y: 10, W: 20, H: 20}}))
	assert.Equal(t, session.Materialized, f.s.State())

	path := f.s.MaterializedPath()
	require.FileExists(t, path)
	assert.Regexp(t, regexp.MustCompile(`^tmp\d+\.png$`), filepath.Base(path))
	stored, err := f.codec.ProbeDimensions(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 20, Height: 20}, stored)
	assert.Equal(t, core.Size{Width: 20, Height: 20}, dims(t, f.s))

	require.NoError(t, f.s.Reset(ctx))
	assert.NoFileExists(t, path)
	assert.Empty(t, f.s.Operations())
	assert.Equal(t, session.Loaded, f.s.State())
	assert.Equal(t, core.Size{Width: 100, Height: 50}, dims(t, f.s))
}

func TestBoundaryUndoRedo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)

	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{X: 0, Y: 0, W: 40, H: 40}}))
	first := f.s.MaterializedPath()
	firstBytes, err := os.ReadFile(first)
	require.NoError(t, err)

	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{X: 5, Y: 5, W: 10, H: 10}}))
	assert.Equal(t, first, f.s.MaterializedPath(), "second commit rewrites the same file")
	assert.Equal(t, 1, tempEntries(t, f.store))
	stored, err := f.codec.ProbeDimensions(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 10, Height: 10}, stored)

	require.NoError(t, f.s.Undo(ctx))
	got, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, firstBytes, got)
	assert.Equal(t, core.Size{Width: 40, Height: 40}, dims(t, f.s))

	require.NoError(t, f.s.Undo(ctx))
	assert.Equal(t, session.Loaded, f.s.State())
	assert.Equal(t, 0, tempEntries(t, f.store))

	require.NoError(t, f.s.Redo(ctx))
	assert.Equal(t, session.Materialized, f.s.State())
	got, err = os.ReadFile(f.s.MaterializedPath())
	require.NoError(t, err)
	assert.Equal(t, firstBytes, got)
}

func TestCropOutsideImageFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 20, 20)

	err := f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{X: 50, Y: 50, W: 5, H: 5}})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryOutOfBounds))
	assert.Equal(t, session.Loaded, f.s.State())
	assert.Equal(t, 0, tempEntries(t, f.store))
	assert.Empty(t, f.s.Operations())
}

func TestCommitCropMapsViewCoordinates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)

	// fit-page in 800x600 scales by 8 and centres vertically at y=100.
	require.NoError(t, f.s.CommitCrop(ctx, ops.Rect{X: 80, Y: 180, W: 160, H: 80}))
	assert.Equal(t, core.Size{Width: 20, Height: 10}, dims(t, f.s))

	out, err := f.s.Output(ctx)
	require.NoError(t, err)
	want := testimages.Gradient(100, 50).NRGBAAt(10, 10)
	assert.Equal(t, want, out.At(0, 0))
}

func TestCommitClip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)
	require.NoError(t, f.s.SetZoomMode(view.At(100)))

	// 100% in 800x600 centres the image at (350, 275).
	ellipse := ops.Ellipse{X: 350, Y: 275, W: 100, H: 50}
	require.NoError(t, f.s.CommitClip(ctx, ellipse, true))

	out, err := f.s.Output(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ModelARGB, out.Model())
	assert.Equal(t, core.Size{Width: 100, Height: 50}, out.Size())
	assert.Equal(t, uint8(0), out.At(0, 0).A)
	assert.Equal(t, uint8(255), out.At(50, 25).A)
	assert.Equal(t, session.Materialized, f.s.State())
}

func TestCommitClipPolygonLimit(t *testing.T) {
	f := newFixture(t, func(o *session.Options) { o.PolygonMaxPoints = 4 })
	ctx := context.Background()
	openPNG(t, f, 100, 50)

	pts := []ops.Point{{X: 300, Y: 250}, {X: 500, Y: 250}, {X: 500, Y: 350}, {X: 400, Y: 380}, {X: 300, Y: 350}}
	err := f.s.CommitClip(ctx, ops.Polygon{Points: pts}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPolygonLimit)
	assert.Equal(t, "Polygon sides limit reached", apperrors.Prompt(err))
	assert.Equal(t, session.Loaded, f.s.State())

	require.NoError(t, f.s.CommitClip(ctx, ops.Polygon{Points: pts[:4]}, false))
	assert.Equal(t, []string{ops.NameClip}, f.s.Operations())
}

func TestNoSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.s.ZoomIn(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNoSource))
	assert.Equal(t, "No image to zoom", apperrors.Prompt(err))
	assert.Equal(t, session.Empty, f.s.State())
	assert.Equal(t, view.Fit(view.FitPage), f.s.Zoom())

	_, err = f.s.Dimensions(ctx)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNoSource))
	assert.True(t, apperrors.IsCategory(f.s.PushOperation(ctx, &ops.Blur{}), apperrors.CategoryNoSource))
	assert.True(t, apperrors.IsCategory(f.s.Undo(ctx), apperrors.CategoryNoSource))
	assert.True(t, apperrors.IsCategory(f.s.Close(ctx), apperrors.CategoryNoSource))
	_, err = f.s.Render(ctx)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNoSource))
}

func TestZoomSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)

	err := f.s.SetZoomMode(view.At(5))
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInput))

	require.NoError(t, f.s.SetZoomMode(view.At(100)))
	require.NoError(t, f.s.ZoomIn(ctx))
	assert.Equal(t, view.At(110), f.s.Zoom())
	require.NoError(t, f.s.ZoomOut(ctx))
	require.NoError(t, f.s.ZoomOut(ctx))
	assert.Equal(t, view.At(90), f.s.Zoom())

	require.NoError(t, f.s.SetZoomMode(view.At(view.MaxPercent)))
	require.NoError(t, f.s.ZoomIn(ctx))
	assert.Equal(t, view.At(view.MaxPercent), f.s.Zoom())
}

func TestRender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)

	frame, err := f.s.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 800, Height: 400}, frame.Size)
	assert.Equal(t, 800, frame.Image.Bounds().Dx())

	require.NoError(t, f.s.SetZoomMode(view.At(50)))
	frame, err = f.s.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 50, Height: 25}, frame.Size)

	require.NoError(t, f.s.SetWindowSize(200, 200))
	require.NoError(t, f.s.SetZoomMode(view.Fit(view.FitWidth)))
	frame, err = f.s.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 200, Height: 100}, frame.Size)

	assert.Error(t, f.s.SetWindowSize(0, 10))
}

func TestSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)
	require.NoError(t, f.s.PushOperation(ctx, &ops.Rotate{Degrees: 90}))

	dir := t.TempDir()
	path, err := f.s.Save(ctx, filepath.Join(dir, "out"), core.FormatJPEG)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.jpg"), path)
	size, err := f.codec.ProbeDimensions(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 50, Height: 100}, size)

	path, err = f.s.Save(ctx, filepath.Join(dir, "keep.bin"), core.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "keep.bin"), path)

	_, err = f.s.Save(ctx, filepath.Join(dir, "x"), core.FormatWebP)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryUnsupported))
}

func TestMetadataFollowsMaterializedFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)

	md, err := f.s.Metadata(ctx)
	require.NoError(t, err)
	name, _ := md.Get(codec.KeyFileName)
	assert.Equal(t, "photo.png", name)
	width, _ := md.Get(codec.KeyWidth)
	assert.Equal(t, "100", width)

	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{W: 30, H: 30}}))
	md, err = f.s.Metadata(ctx)
	require.NoError(t, err)
	name, _ = md.Get(codec.KeyFileName)
	assert.Regexp(t, `^tmp\d+\.png$`, name)
	width, _ = md.Get(codec.KeyWidth)
	assert.Equal(t, "30", width)
}

func TestProperties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := openPNG(t, f, 100, 50)
	require.NoError(t, f.s.PushOperation(ctx, &ops.Rotate{Degrees: 90}))

	p, err := f.s.Properties(ctx)
	require.NoError(t, err)
	want := session.Properties{
		File:       path,
		Format:     core.FormatPNG,
		Width:      50,
		Height:     100,
		Model:      core.ModelRGB,
		Page:       1,
		Pages:      1,
		Operations: 1,
		Stored:     core.Size{Width: 100, Height: 50},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Properties mismatch (-want +got):\n%s", diff)
	}
}

func TestThumbnails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openTIFF(t, f)

	thumbs, err := f.s.Thumbnails(ctx, 4)
	require.NoError(t, err)
	require.Len(t, thumbs, 3)
	for i, th := range thumbs {
		assert.Equal(t, i, th.Page())
		assert.LessOrEqual(t, th.Width(), 4)
		assert.LessOrEqual(t, th.Height(), 4)
		assert.Equal(t, 4, max(th.Width(), th.Height()))
	}
}

func TestCloseRemovesMaterializedFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 40, 40)
	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{W: 10, H: 10}}))
	path := f.s.MaterializedPath()

	require.NoError(t, f.s.Close(ctx))
	assert.NoFileExists(t, path)
	assert.Equal(t, session.Empty, f.s.State())
	assert.Empty(t, f.s.File())
	assert.Empty(t, f.s.Operations())
}

func TestOpenReplacesMaterializedFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	openPNG(t, f, 40, 40)
	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{W: 10, H: 10}}))
	path := f.s.MaterializedPath()

	other := testimages.WriteFile(t, "other.jpg", testimages.GradientJPEG(t, 30, 20))
	require.NoError(t, f.s.Open(ctx, other))
	assert.NoFileExists(t, path)
	assert.Equal(t, session.Loaded, f.s.State())
	assert.Equal(t, core.Size{Width: 30, Height: 20}, dims(t, f.s))
}

func TestPropertiesFollowMaterializedFormat(t *testing.T) {
	reg := core.NewRegistry()
	png, gif := codec.NewPNG(), codec.NewGIF()
	reg.RegisterDecoder(core.FormatPNG, png)
	reg.RegisterEncoder(core.FormatPNG, png)
	reg.RegisterDecoder(core.FormatGIF, gif)
	c := codec.NewWithRegistry(reg, codec.Options{})
	f := newFixture(t, func(o *session.Options) {
		o.Codec = c
		o.Metadata = codec.NewMetadataReader(c)
	})
	ctx := context.Background()
	path := testimages.WriteFile(t, "anim.gif", testimages.AnimatedGIF(t, 16, 8, color.White))
	require.NoError(t, f.s.Open(ctx, path))

	p, err := f.s.Properties(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.FormatGIF, p.Format)

	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{W: 8, H: 8}}))
	assert.Equal(t, ".png", filepath.Ext(f.s.MaterializedPath()))

	p, err = f.s.Properties(ctx)
	require.NoError(t, err)
	tag, err := f.s.FormatTag(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.FormatPNG, p.Format)
	assert.Equal(t, tag, p.Format)
	assert.Equal(t, core.Size{Width: 8, Height: 8}, p.Stored)
	assert.Equal(t, path, p.File)
}

func TestPushClipUsesConfiguredPolygonLimit(t *testing.T) {
	f := newFixture(t, func(o *session.Options) { o.PolygonMaxPoints = 30 })
	ctx := context.Background()
	openPNG(t, f, 100, 50)

	ring := func(n int) []ops.Point {
		pts := make([]ops.Point, n)
		for i := range pts {
			a := 2 * math.Pi * float64(i) / float64(n)
			pts[i] = ops.Point{X: 50 + 20*math.Cos(a), Y: 25 + 20*math.Sin(a)}
		}
		return pts
	}

	err := f.s.PushOperation(ctx, &ops.Clip{Shape: ops.Polygon{Points: ring(31)}, KeepInside: true})
	assert.ErrorIs(t, err, apperrors.ErrPolygonLimit)
	assert.Empty(t, f.s.Operations())

	require.NoError(t, f.s.PushOperation(ctx, &ops.Clip{Shape: ops.Polygon{Points: ring(25)}, KeepInside: true}))
	assert.Equal(t, []string{ops.NameClip}, f.s.Operations())
	assert.Equal(t, session.Materialized, f.s.State())
}

// ── Storage failures ──────────────────────────────────────────────────────────

var errDisk = errors.New("disk failure")

// flakyStorage fails Remove or Replace on demand.
type flakyStorage struct {
	*storage.Temp
	failRemove  bool
	failReplace bool
}

func (s *flakyStorage) Remove(ctx context.Context, path string) error {
	if s.failRemove {
		return apperrors.Wrap(apperrors.CategoryIO, "temp.remove", errDisk)
	}
	return s.Temp.Remove(ctx, path)
}

func (s *flakyStorage) Replace(ctx context.Context, path string, data []byte) error {
	if s.failReplace {
		return apperrors.Wrap(apperrors.CategoryIO, "temp.replace", errDisk)
	}
	return s.Temp.Replace(ctx, path, data)
}

func newFlakyFixture(t *testing.T) (fixture, *flakyStorage) {
	t.Helper()
	var fs *flakyStorage
	f := newFixture(t, func(o *session.Options) {
		fs = &flakyStorage{Temp: o.Storage.(*storage.Temp)}
		o.Storage = fs
	})
	t.Cleanup(func() { fs.failRemove, fs.failReplace = false, false })
	return f, fs
}

func TestUndoKeepsCursorWhenRemoveFails(t *testing.T) {
	f, fs := newFlakyFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)
	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{X: 10, Y: 10, W: 20, H: 20}}))
	path := f.s.MaterializedPath()

	fs.failRemove = true
	err := f.s.Undo(ctx)
	require.ErrorIs(t, err, errDisk)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryIO))
	assert.Equal(t, []string{ops.NameCrop}, f.s.Operations())
	assert.False(t, f.s.CanRedo())
	assert.Equal(t, session.Materialized, f.s.State())
	assert.Equal(t, core.Size{Width: 20, Height: 20}, dims(t, f.s))
	assert.FileExists(t, path)

	fs.failRemove = false
	require.NoError(t, f.s.Undo(ctx))
	assert.Equal(t, session.Loaded, f.s.State())
	assert.Equal(t, core.Size{Width: 100, Height: 50}, dims(t, f.s))
	assert.NoFileExists(t, path)
}

func TestRedoKeepsCursorWhenRewriteFails(t *testing.T) {
	f, fs := newFlakyFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)
	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{W: 40, H: 30}}))
	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{W: 10, H: 10}}))
	require.NoError(t, f.s.Undo(ctx))

	fs.failReplace = true
	require.ErrorIs(t, f.s.Redo(ctx), errDisk)
	assert.Len(t, f.s.Operations(), 1)
	assert.True(t, f.s.CanRedo())
	assert.Equal(t, core.Size{Width: 40, Height: 30}, dims(t, f.s))
	stored, err := f.codec.ProbeDimensions(ctx, f.s.MaterializedPath())
	require.NoError(t, err)
	assert.Equal(t, core.Size{Width: 40, Height: 30}, stored)

	fs.failReplace = false
	require.NoError(t, f.s.Redo(ctx))
	assert.Equal(t, core.Size{Width: 10, Height: 10}, dims(t, f.s))
}

func TestResetKeepsStateWhenRemoveFails(t *testing.T) {
	f, fs := newFlakyFixture(t)
	ctx := context.Background()
	openPNG(t, f, 100, 50)
	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{X: 10, Y: 10, W: 20, H: 20}}))
	require.NoError(t, f.s.SetZoomMode(view.At(50)))
	path := f.s.MaterializedPath()

	fs.failRemove = true
	require.ErrorIs(t, f.s.Reset(ctx), errDisk)
	assert.Equal(t, []string{ops.NameCrop}, f.s.Operations())
	assert.Equal(t, session.Materialized, f.s.State())
	assert.Equal(t, view.At(50), f.s.Zoom())
	assert.FileExists(t, path)
}

func TestOpenAndCloseFailWhenMaterializedFileStays(t *testing.T) {
	f, fs := newFlakyFixture(t)
	ctx := context.Background()
	first := openPNG(t, f, 100, 50)
	require.NoError(t, f.s.PushOperation(ctx, &ops.Crop{Rect: ops.Rect{W: 20, H: 20}}))
	path := f.s.MaterializedPath()
	next := testimages.WriteFile(t, "next.png", testimages.GradientPNG(t, 30, 30))

	fs.failRemove = true
	err := f.s.Open(ctx, next)
	require.ErrorIs(t, err, errDisk)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryIO))
	assert.Equal(t, first, f.s.File())
	assert.Equal(t, path, f.s.MaterializedPath())
	assert.Equal(t, []string{ops.NameCrop}, f.s.Operations())

	require.ErrorIs(t, f.s.Close(ctx), errDisk)
	assert.Equal(t, session.Materialized, f.s.State())
	assert.FileExists(t, path)

	fs.failRemove = false
	require.NoError(t, f.s.Open(ctx, next))
	assert.Equal(t, next, f.s.File())
	assert.Empty(t, f.s.MaterializedPath())
	assert.NoFileExists(t, path)
}
