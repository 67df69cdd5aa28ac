package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"labelsense/internal/annotation"
	lcanvas "labelsense/internal/canvas"
	"labelsense/pkg/colorutil"
	"labelsense/pkg/geometry"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCanvas returns an 800x600 canvas showing a blank 1000x800 image at
// the initial zoom of 0.5.
func newTestCanvas(t *testing.T) *AnnotationCanvas {
	t.Helper()
	test.NewTempApp(t)
	ac := NewAnnotationCanvas(lcanvas.DefaultOptions())
	ac.Resize(fyne.NewSize(800, 600))
	require.NoError(t, ac.SetImage(image.NewRGBA(image.Rect(0, 0, 1000, 800)), nil))
	return ac
}

func mouse(x, y float32, b desktop.MouseButton) *desktop.MouseEvent {
	return &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Button: b}
}

func dragTo(x, y float32) *fyne.DragEvent {
	return &fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}}
}

func TestDrawReportsBoxCreated(t *testing.T) {
	ac := newTestCanvas(t)
	ac.SetCurrentClass(1)

	var got []annotation.Annotation
	ac.OnBoxCreated(func(bbox annotation.BBox, classID int) {
		got = append(got, annotation.Annotation{Class: classID, BBox: bbox})
	})

	ac.MouseDown(mouse(100, 100, desktop.MouseButtonPrimary))
	ac.Dragged(dragTo(300, 250))
	ac.MouseUp(mouse(300, 250, desktop.MouseButtonPrimary))
	ac.DragEnd()

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Class)
	assert.True(t, got[0].BBox.ApproxEqual(annotation.NewBBox(0.4, 0.4375, 0.4, 0.375), 1e-9), got[0].BBox)
	assert.Len(t, ac.Annotations(), 1)
}

func TestDragEndFinishesWithoutMouseUp(t *testing.T) {
	ac := newTestCanvas(t)
	created := 0
	ac.OnBoxCreated(func(annotation.BBox, int) { created++ })

	ac.MouseDown(mouse(100, 100, desktop.MouseButtonPrimary))
	ac.Dragged(dragTo(200, 200))
	ac.DragEnd()
	assert.Equal(t, 1, created)

	// A late release must not produce a second box.
	ac.MouseUp(mouse(200, 200, desktop.MouseButtonPrimary))
	assert.Equal(t, 1, created)
}

func TestEditMoveReportsBoxUpdated(t *testing.T) {
	ac := newTestCanvas(t)
	require.NoError(t, ac.SetMode(lcanvas.ModeEdit))
	ac.SetAnnotations([]annotation.Annotation{{Class: 2, BBox: annotation.NewBBox(0.5, 0.5, 0.2, 0.25)}})

	var selections []int
	ac.OnSelectionChanged(func(i int) { selections = append(selections, i) })
	var updated []int
	ac.OnBoxUpdated(func(i int, bbox annotation.BBox) {
		updated = append(updated, i)
		assert.True(t, bbox.ApproxEqual(annotation.NewBBox(0.6, 0.45, 0.2, 0.25), 1e-9), bbox)
	})

	ac.MouseDown(mouse(250, 200, desktop.MouseButtonPrimary))
	ac.Dragged(dragTo(300, 180))
	ac.MouseUp(mouse(300, 180, desktop.MouseButtonPrimary))

	assert.Equal(t, []int{0}, updated)
	assert.Equal(t, 0, ac.Selected())

	ac.MouseDown(mouse(5, 5, desktop.MouseButtonPrimary))
	assert.Equal(t, []int{0, -1}, selections)
}

func TestScrollZoomNotifiesView(t *testing.T) {
	ac := newTestCanvas(t)
	var views []lcanvas.Viewport
	ac.OnViewChange(func(v lcanvas.Viewport) { views = append(views, v) })

	ac.Scrolled(&fyne.ScrollEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(0, 0)}, Scrolled: fyne.Delta{DY: 1}})
	require.Len(t, views, 1)
	assert.InDelta(t, 0.55, views[0].Zoom, 1e-9)

	ac.ZoomOut()
	require.Len(t, views, 2)
	assert.InDelta(t, 0.5, views[1].Zoom, 1e-9)
}

func TestFitToViewUsesWidgetSize(t *testing.T) {
	ac := newTestCanvas(t)
	ac.FitToView()

	v := ac.Viewport()
	assert.InDelta(t, 0.7125, v.Zoom, 1e-9)
	assert.InDelta(t, 43.75, v.Pan.X, 1e-9)
	assert.InDelta(t, 15, v.Pan.Y, 1e-9)
}

func TestSetImageNilClears(t *testing.T) {
	ac := newTestCanvas(t)
	require.NoError(t, ac.SetImage(nil, nil))
	assert.Empty(t, ac.Annotations())

	created := 0
	ac.OnBoxCreated(func(annotation.BBox, int) { created++ })
	ac.MouseDown(mouse(10, 10, desktop.MouseButtonPrimary))
	ac.MouseUp(mouse(200, 200, desktop.MouseButtonPrimary))
	assert.Zero(t, created)
}

func TestSetModeRefusedMidGesture(t *testing.T) {
	ac := newTestCanvas(t)
	ac.MouseDown(mouse(10, 10, desktop.MouseButtonPrimary))
	assert.ErrorIs(t, ac.SetMode(lcanvas.ModePan), lcanvas.ErrGestureActive)

	ac.Cancel()
	assert.NoError(t, ac.SetMode(lcanvas.ModePan))
	assert.Equal(t, lcanvas.ModePan, ac.Mode())
}

func TestRenderFrame(t *testing.T) {
	e := lcanvas.New(lcanvas.DefaultOptions())
	require.NoError(t, e.SetImageSize(100, 80))
	e.SetAnnotations([]annotation.Annotation{{Class: 0, BBox: annotation.NewBBox(0.5, 0.5, 0.5, 0.5)}})
	e.PointerMove(geometry.NewPoint2D(10, 30))

	img := image.NewRGBA(image.Rect(0, 0, 50, 40))
	gray := color.RGBA{R: 9, G: 9, B: 9, A: 255}
	draw.Draw(img, img.Bounds(), image.NewUniform(gray), image.Point{}, draw.Src)

	out := newOutput(100, 100)
	renderFrame(out, e.RenderList(), img, false)
	assert.Equal(t, background, out.RGBAAt(75, 75), "background outside the image")
	assert.Equal(t, gray, out.RGBAAt(2, 2), "image pixel")
	// Box covers scaled (12.5,10)-(37.5,30), rounded to start at (13,10).
	assert.Equal(t, colorutil.ClassColor(0), out.RGBAAt(13, 20))
	assert.Equal(t, gray, out.RGBAAt(40, 30), "crosshair hidden")

	renderFrame(out, e.RenderList(), img, true)
	assert.Equal(t, colorutil.Crosshair, out.RGBAAt(40, 30), "crosshair shown")
}

func TestFyneCursor(t *testing.T) {
	assert.Equal(t, desktop.CrosshairCursor, fyneCursor(lcanvas.CursorCross))
	assert.Equal(t, desktop.PointerCursor, fyneCursor(lcanvas.CursorOpenHand))
	assert.Equal(t, desktop.PointerCursor, fyneCursor(lcanvas.CursorMove))
	assert.Equal(t, desktop.VResizeCursor, fyneCursor(lcanvas.CursorResizeFDiag))
	assert.Equal(t, desktop.HResizeCursor, fyneCursor(lcanvas.CursorResizeBDiag))
}

func TestEngineButton(t *testing.T) {
	b, ok := engineButton(desktop.MouseButtonTertiary)
	assert.True(t, ok)
	assert.Equal(t, lcanvas.ButtonTertiary, b)

	_, ok = engineButton(desktop.MouseButton(64))
	assert.False(t, ok)
}
