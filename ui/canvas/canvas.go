// Package canvas provides the annotation canvas widget: it feeds pointer
// input to the canvas engine and rasterizes the engine's render list.
package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"labelsense/internal/annotation"
	lcanvas "labelsense/internal/canvas"
	limage "labelsense/internal/image"
	"labelsense/pkg/geometry"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

const (
	crosshairDash = 4
	previewDash   = 6
	badgeFontSize = 2
)

var background = color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xFF}

// AnnotationCanvas displays one image with its boxes and turns mouse input
// into engine gestures.
type AnnotationCanvas struct {
	widget.BaseWidget

	mu     sync.Mutex // engine is touched by both the event and paint goroutines
	engine *lcanvas.Engine

	raster *fynecanvas.Raster

	source     image.Image
	scaled     *image.NRGBA
	scaledZoom float64

	showCrosshair bool
	showRulers    bool

	// Press tracking so DragEnd can finish a gesture whose release landed
	// outside the widget.
	down     lcanvas.Button
	downHeld bool
	last     geometry.Point2D

	// Callbacks
	onBoxCreated       func(bbox annotation.BBox, classID int)
	onBoxUpdated       func(index int, bbox annotation.BBox)
	onViewChange       func(view lcanvas.Viewport)
	onSelectionChanged func(index int)
}

// NewAnnotationCanvas creates a canvas with no image.
func NewAnnotationCanvas(opts lcanvas.Options) *AnnotationCanvas {
	ac := &AnnotationCanvas{
		engine:        lcanvas.New(opts),
		showCrosshair: true,
	}
	ac.raster = fynecanvas.NewRaster(ac.draw)
	ac.ExtendBaseWidget(ac)
	return ac
}

var (
	_ fyne.Widget        = (*AnnotationCanvas)(nil)
	_ desktop.Mouseable  = (*AnnotationCanvas)(nil)
	_ desktop.Hoverable  = (*AnnotationCanvas)(nil)
	_ desktop.Cursorable = (*AnnotationCanvas)(nil)
	_ fyne.Draggable     = (*AnnotationCanvas)(nil)
	_ fyne.Scrollable    = (*AnnotationCanvas)(nil)
)

// SetImage shows img with the given annotations. The view is reset to the
// initial zoom. A nil image clears the canvas.
func (ac *AnnotationCanvas) SetImage(img image.Image, anns []annotation.Annotation) error {
	ac.mu.Lock()
	if img == nil {
		ac.engine.Clear()
		ac.source, ac.scaled = nil, nil
	} else {
		b := img.Bounds()
		if err := ac.engine.SetImageSize(b.Dx(), b.Dy()); err != nil {
			ac.mu.Unlock()
			return err
		}
		ac.engine.SetAnnotations(anns)
		ac.source, ac.scaled = img, nil
	}
	view := ac.engine.Viewport()
	ac.mu.Unlock()

	ac.notifyView(view)
	ac.notifySelection(-1)
	ac.Refresh()
	return nil
}

// SetAnnotations replaces the boxes of the displayed image.
func (ac *AnnotationCanvas) SetAnnotations(anns []annotation.Annotation) {
	ac.mu.Lock()
	before := ac.engine.Selected()
	ac.engine.SetAnnotations(anns)
	after := ac.engine.Selected()
	ac.mu.Unlock()

	if before != after {
		ac.notifySelection(after)
	}
	ac.Refresh()
}

// Annotations returns the boxes as the canvas currently shows them.
func (ac *AnnotationCanvas) Annotations() []annotation.Annotation {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.engine.Annotations()
}

// SetMode switches the interaction mode. It fails while a gesture is active.
func (ac *AnnotationCanvas) SetMode(m lcanvas.Mode) error {
	ac.mu.Lock()
	err := ac.engine.SetMode(m)
	ac.mu.Unlock()
	if err != nil {
		return err
	}
	ac.notifySelection(-1)
	ac.Refresh()
	return nil
}

// Mode returns the interaction mode.
func (ac *AnnotationCanvas) Mode() lcanvas.Mode {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.engine.Mode()
}

// SetCurrentClass sets the class used for new boxes.
func (ac *AnnotationCanvas) SetCurrentClass(id int) {
	ac.mu.Lock()
	ac.engine.SetCurrentClass(id)
	ac.mu.Unlock()
	ac.Refresh()
}

// Selected returns the selected box index or -1.
func (ac *AnnotationCanvas) Selected() int {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.engine.Selected()
}

// Viewport returns the current zoom and pan.
func (ac *AnnotationCanvas) Viewport() lcanvas.Viewport {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	return ac.engine.Viewport()
}

// SetShowCrosshair toggles the guide lines under the pointer.
func (ac *AnnotationCanvas) SetShowCrosshair(show bool) {
	ac.showCrosshair = show
	ac.Refresh()
}

// ShowCrosshair reports whether guide lines are drawn.
func (ac *AnnotationCanvas) ShowCrosshair() bool {
	return ac.showCrosshair
}

// SetShowRulers toggles the pixel rulers along the top and left edges.
func (ac *AnnotationCanvas) SetShowRulers(show bool) {
	ac.showRulers = show
	ac.Refresh()
}

// ShowRulers reports whether rulers are drawn.
func (ac *AnnotationCanvas) ShowRulers() bool {
	return ac.showRulers
}

// ZoomIn zooms one step about the view center.
func (ac *AnnotationCanvas) ZoomIn() {
	ac.zoomBy(true)
}

// ZoomOut zooms out one step about the view center.
func (ac *AnnotationCanvas) ZoomOut() {
	ac.zoomBy(false)
}

func (ac *AnnotationCanvas) zoomBy(in bool) {
	size := ac.Size()
	center := geometry.NewPoint2D(float64(size.Width)/2, float64(size.Height)/2)
	delta := -1.0
	if in {
		delta = 1
	}
	ac.mu.Lock()
	changed := ac.engine.Scroll(center, delta)
	view := ac.engine.Viewport()
	ac.mu.Unlock()
	if changed {
		ac.notifyView(view)
		ac.Refresh()
	}
}

// FitToView zooms so the whole image is visible and centers it.
func (ac *AnnotationCanvas) FitToView() {
	size := ac.Size()
	ac.mu.Lock()
	changed := ac.engine.FitToView(float64(size.Width), float64(size.Height))
	view := ac.engine.Viewport()
	ac.mu.Unlock()
	if changed {
		ac.notifyView(view)
		ac.Refresh()
	}
}

// Cancel aborts the active gesture, rolling back a move.
func (ac *AnnotationCanvas) Cancel() {
	ac.mu.Lock()
	ac.engine.Cancel()
	ac.downHeld = false
	ac.mu.Unlock()
	ac.Refresh()
}

// OnBoxCreated sets the callback for a newly drawn box.
func (ac *AnnotationCanvas) OnBoxCreated(callback func(bbox annotation.BBox, classID int)) {
	ac.onBoxCreated = callback
}

// OnBoxUpdated sets the callback for a resized or moved box.
func (ac *AnnotationCanvas) OnBoxUpdated(callback func(index int, bbox annotation.BBox)) {
	ac.onBoxUpdated = callback
}

// OnViewChange sets a callback for zoom and fit changes.
func (ac *AnnotationCanvas) OnViewChange(callback func(view lcanvas.Viewport)) {
	ac.onViewChange = callback
}

// OnSelectionChanged sets a callback for selection changes. The index is
// -1 when nothing is selected.
func (ac *AnnotationCanvas) OnSelectionChanged(callback func(index int)) {
	ac.onSelectionChanged = callback
}

// MouseDown implements desktop.Mouseable.
func (ac *AnnotationCanvas) MouseDown(ev *desktop.MouseEvent) {
	b, ok := engineButton(ev.Button)
	if !ok {
		return
	}
	p := toPoint(ev.Position)

	ac.mu.Lock()
	before := ac.engine.Selected()
	events := ac.engine.PointerDown(p, b)
	after := ac.engine.Selected()
	if ac.engine.Gesture() != lcanvas.GestureNone {
		ac.down, ac.downHeld = b, true
	}
	ac.last = p
	ac.mu.Unlock()

	ac.dispatch(events)
	if before != after {
		ac.notifySelection(after)
	}
	ac.Refresh()
}

// MouseUp implements desktop.Mouseable.
func (ac *AnnotationCanvas) MouseUp(ev *desktop.MouseEvent) {
	b, ok := engineButton(ev.Button)
	if !ok {
		return
	}
	ac.release(toPoint(ev.Position), b)
}

// release finishes the gesture started by b at p.
func (ac *AnnotationCanvas) release(p geometry.Point2D, b lcanvas.Button) {
	ac.mu.Lock()
	before := ac.engine.Selected()
	view := ac.engine.Viewport()
	events := ac.engine.PointerUp(p, b)
	if ac.downHeld && ac.down == b {
		ac.downHeld = false
	}
	after := ac.engine.Selected()
	panned := ac.engine.Viewport() != view
	view = ac.engine.Viewport()
	ac.mu.Unlock()

	ac.dispatch(events)
	if before != after {
		ac.notifySelection(after)
	}
	if panned {
		ac.notifyView(view)
	}
	ac.Refresh()
}

// Dragged implements fyne.Draggable.
func (ac *AnnotationCanvas) Dragged(ev *fyne.DragEvent) {
	ac.move(toPoint(ev.Position))
}

// DragEnd implements fyne.Draggable. Fyne may deliver it instead of MouseUp
// when the button is released outside the widget.
func (ac *AnnotationCanvas) DragEnd() {
	ac.mu.Lock()
	held, b, p := ac.downHeld, ac.down, ac.last
	ac.mu.Unlock()
	if held {
		ac.release(p, b)
	}
}

// MouseIn implements desktop.Hoverable.
func (ac *AnnotationCanvas) MouseIn(ev *desktop.MouseEvent) {
	ac.move(toPoint(ev.Position))
}

// MouseMoved implements desktop.Hoverable.
func (ac *AnnotationCanvas) MouseMoved(ev *desktop.MouseEvent) {
	ac.move(toPoint(ev.Position))
}

// MouseOut implements desktop.Hoverable.
func (ac *AnnotationCanvas) MouseOut() {
	ac.mu.Lock()
	ac.engine.PointerLeave()
	ac.mu.Unlock()
	ac.Refresh()
}

func (ac *AnnotationCanvas) move(p geometry.Point2D) {
	ac.mu.Lock()
	ac.engine.PointerMove(p)
	ac.last = p
	ac.mu.Unlock()
	ac.Refresh()
}

// Scrolled implements fyne.Scrollable: the wheel zooms about the pointer.
func (ac *AnnotationCanvas) Scrolled(ev *fyne.ScrollEvent) {
	ac.mu.Lock()
	changed := ac.engine.Scroll(toPoint(ev.Position), float64(ev.Scrolled.DY))
	view := ac.engine.Viewport()
	ac.mu.Unlock()
	if changed {
		ac.notifyView(view)
		ac.Refresh()
	}
}

// Cursor implements desktop.Cursorable.
func (ac *AnnotationCanvas) Cursor() desktop.Cursor {
	ac.mu.Lock()
	c := ac.engine.CursorAt(ac.last)
	ac.mu.Unlock()
	return fyneCursor(c)
}

func (ac *AnnotationCanvas) dispatch(events []lcanvas.Event) {
	for _, ev := range events {
		switch ev := ev.(type) {
		case lcanvas.BoxCreated:
			if ac.onBoxCreated != nil {
				ac.onBoxCreated(ev.BBox, ev.ClassID)
			}
		case lcanvas.BoxUpdated:
			if ac.onBoxUpdated != nil {
				ac.onBoxUpdated(ev.Index, ev.BBox)
			}
		}
	}
}

func (ac *AnnotationCanvas) notifyView(view lcanvas.Viewport) {
	if ac.onViewChange != nil {
		ac.onViewChange(view)
	}
}

func (ac *AnnotationCanvas) notifySelection(index int) {
	if ac.onSelectionChanged != nil {
		ac.onSelectionChanged(index)
	}
}

// draw is the raster drawing function. The frame is rendered at the
// widget's logical size and the raster scales it to device pixels, so
// engine coordinates and fyne positions share one unit.
func (ac *AnnotationCanvas) draw(w, h int) image.Image {
	size := ac.Size()
	fw, fh := int(size.Width), int(size.Height)
	if fw <= 0 || fh <= 0 {
		fw, fh = w, h
	}
	output := image.NewRGBA(image.Rect(0, 0, max(fw, 1), max(fh, 1)))

	ac.mu.Lock()
	list := ac.engine.RenderList()
	view := ac.engine.Viewport()
	imgW, imgH := ac.engine.ImageSize()
	scaled := ac.scaledImage(view.Zoom)
	ac.mu.Unlock()

	renderFrame(output, list, scaled, ac.showCrosshair)
	if ac.showRulers && len(list) > 0 {
		drawRulers(output, view.Zoom, view.Pan.X, view.Pan.Y, imgW, imgH)
	}
	return output
}

// scaledImage returns the display copy of the source for zoom, rescaling
// only when the zoom changed. Callers hold mu.
func (ac *AnnotationCanvas) scaledImage(zoom float64) image.Image {
	if ac.source == nil {
		return nil
	}
	if ac.scaled == nil || ac.scaledZoom != zoom {
		ac.scaled = limage.Scale(ac.source, zoom)
		ac.scaledZoom = zoom
	}
	return ac.scaled
}

// renderFrame paints a render list, back to front, over a dark background.
func renderFrame(output *image.RGBA, list []lcanvas.Primitive, scaled image.Image, crosshair bool) {
	draw.Draw(output, output.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	for _, p := range list {
		r := toRectangle(p.Rect)
		switch p.Kind {
		case lcanvas.KindImage:
			if scaled == nil {
				continue
			}
			sb := scaled.Bounds()
			dst := image.Rectangle{Min: r.Min, Max: r.Min.Add(sb.Size())}
			draw.Draw(output, dst, scaled, sb.Min, draw.Src)
		case lcanvas.KindBox:
			strokeRect(output, r, p.Stroke, p.LineWidth)
		case lcanvas.KindBadge:
			fillRect(output, r, p.Fill)
			drawLabel(output, p.Label, r, p.Stroke, badgeFontSize)
		case lcanvas.KindHandle:
			drawHandle(output, r, p.Fill, p.Stroke)
		case lcanvas.KindPreview:
			dashedRect(output, r, p.Stroke, p.LineWidth, previewDash)
		case lcanvas.KindCrosshair:
			if !crosshair {
				continue
			}
			hLine(output, r.Min.Y, p.Stroke, crosshairDash)
			vLine(output, r.Min.X, p.Stroke, crosshairDash)
		}
	}
}

func toRectangle(r geometry.RectInt) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func toPoint(p fyne.Position) geometry.Point2D {
	return geometry.NewPoint2D(float64(p.X), float64(p.Y))
}

func engineButton(b desktop.MouseButton) (lcanvas.Button, bool) {
	switch b {
	case desktop.MouseButtonPrimary:
		return lcanvas.ButtonPrimary, true
	case desktop.MouseButtonSecondary:
		return lcanvas.ButtonSecondary, true
	case desktop.MouseButtonTertiary:
		return lcanvas.ButtonTertiary, true
	}
	return 0, false
}

// fyneCursor maps engine cursors onto the shapes fyne offers. There are no
// hand or diagonal resize cursors, so those fall back to the nearest shape.
func fyneCursor(c lcanvas.Cursor) desktop.Cursor {
	switch c {
	case lcanvas.CursorOpenHand, lcanvas.CursorClosedHand, lcanvas.CursorMove:
		return desktop.PointerCursor
	case lcanvas.CursorResizeFDiag:
		return desktop.VResizeCursor
	case lcanvas.CursorResizeBDiag:
		return desktop.HResizeCursor
	}
	return desktop.CrosshairCursor
}

// CreateRenderer implements fyne.Widget.
func (ac *AnnotationCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &annotationCanvasRenderer{canvas: ac}
}

// Refresh repaints the raster.
func (ac *AnnotationCanvas) Refresh() {
	ac.raster.Refresh()
}

type annotationCanvasRenderer struct {
	canvas *AnnotationCanvas
}

func (r *annotationCanvasRenderer) Layout(size fyne.Size) {
	r.canvas.raster.Resize(size)
}

func (r *annotationCanvasRenderer) MinSize() fyne.Size {
	return fyne.NewSize(200, 150)
}

func (r *annotationCanvasRenderer) Refresh() {
	r.canvas.raster.Refresh()
}

func (r *annotationCanvasRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.canvas.raster}
}

func (r *annotationCanvasRenderer) Destroy() {}
