package canvas

import (
	"errors"
	"fmt"
	"math"

	"labelsense/internal/annotation"
	"labelsense/pkg/geometry"

	"gonum.org/v1/gonum/floats/scalar"
)

const (
	DefaultMinZoom         = 0.1
	DefaultMaxZoom         = 5.0
	DefaultInitialZoom     = 0.5
	DefaultZoomStep        = 1.1
	DefaultHandleThreshold = 8.0 // screen pixels, independent of zoom
	DefaultMinBoxSize      = 5.0 // scaled-image pixels
	fitMargin              = 0.95
	zoomEpsilon            = 1e-9
)

var (
	// ErrGestureActive is returned when a mode change arrives mid-gesture.
	ErrGestureActive = errors.New("canvas: gesture in progress")
	// ErrInvalidImageSize is returned for non-positive image dimensions.
	ErrInvalidImageSize = errors.New("canvas: invalid image size")
)

// Mode selects what a primary-button press does.
type Mode int

const (
	ModeDraw Mode = iota
	ModeEdit
	ModePan
)

func (m Mode) String() string {
	switch m {
	case ModeDraw:
		return "draw"
	case ModeEdit:
		return "edit"
	case ModePan:
		return "pan"
	default:
		return "unknown"
	}
}

// ParseMode converts "draw", "edit" or "pan" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "draw":
		return ModeDraw, nil
	case "edit":
		return ModeEdit, nil
	case "pan":
		return ModePan, nil
	}
	return ModeDraw, fmt.Errorf("canvas: unknown mode %q", s)
}

// Button identifies the pointer button of a press or release.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonTertiary // pans in every mode
)

// Gesture reports the kind of the active gesture.
type Gesture int

const (
	GestureNone Gesture = iota
	GestureDrawing
	GestureResizing
	GestureMoving
	GesturePanning
)

func (g Gesture) String() string {
	switch g {
	case GestureDrawing:
		return "drawing"
	case GestureResizing:
		return "resizing"
	case GestureMoving:
		return "moving"
	case GesturePanning:
		return "panning"
	default:
		return "none"
	}
}

// Options tunes the engine. Zero fields take the defaults.
type Options struct {
	MinZoom         float64
	MaxZoom         float64
	InitialZoom     float64
	ZoomStep        float64
	HandleThreshold float64
	MinBoxSize      float64
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		MinZoom:         DefaultMinZoom,
		MaxZoom:         DefaultMaxZoom,
		InitialZoom:     DefaultInitialZoom,
		ZoomStep:        DefaultZoomStep,
		HandleThreshold: DefaultHandleThreshold,
		MinBoxSize:      DefaultMinBoxSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinZoom <= 0 {
		o.MinZoom = d.MinZoom
	}
	if o.MaxZoom < o.MinZoom {
		o.MaxZoom = math.Max(d.MaxZoom, o.MinZoom)
	}
	if o.InitialZoom <= 0 {
		o.InitialZoom = d.InitialZoom
	}
	o.InitialZoom = clampZoom(o.InitialZoom, o.MinZoom, o.MaxZoom)
	if o.ZoomStep <= 1 {
		o.ZoomStep = d.ZoomStep
	}
	if o.HandleThreshold <= 0 {
		o.HandleThreshold = d.HandleThreshold
	}
	if o.MinBoxSize <= 0 {
		o.MinBoxSize = d.MinBoxSize
	}
	return o
}

// Event is emitted upward by the state-transition calls.
type Event interface {
	isEvent()
}

// BoxCreated reports a finished draw gesture.
type BoxCreated struct {
	BBox    annotation.BBox
	ClassID int
}

// BoxUpdated reports a finished move or resize of the box at Index.
type BoxUpdated struct {
	Index int
	BBox  annotation.BBox
}

func (BoxCreated) isEvent() {}
func (BoxUpdated) isEvent() {}

// gesture is the active pointer interaction. A nil gesture means idle, so
// at most one of drawing, resizing, moving and panning can be in progress.
type gesture interface {
	kind() Gesture
}

type drawGesture struct {
	start, current geometry.Point2D // scaled-image space
}

type resizeGesture struct {
	index    int
	corner   geometry.Corner
	snapshot geometry.Rect    // box at press time, scaled-image space
	current  geometry.Point2D // scaled-image space
}

type moveGesture struct {
	index    int
	original annotation.BBox
	last     geometry.Point2D // scaled-image space
}

type panGesture struct {
	button Button
	last   geometry.Point2D // screen space
}

func (*drawGesture) kind() Gesture   { return GestureDrawing }
func (*resizeGesture) kind() Gesture { return GestureResizing }
func (*moveGesture) kind() Gesture   { return GestureMoving }
func (*panGesture) kind() Gesture    { return GesturePanning }

// Engine is the canvas state machine for the currently displayed image.
// It is not safe for concurrent use; the host drives it from its event loop.
type Engine struct {
	opts Options

	origW, origH int
	loaded       bool
	view         Viewport

	mode         Mode
	currentClass int
	annotations  []annotation.Annotation
	selected     int
	active       gesture

	hover    geometry.Point2D // screen space
	hovering bool
}

// New creates an engine with no image.
func New(opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		opts:     opts,
		view:     Viewport{Zoom: opts.InitialZoom},
		mode:     ModeDraw,
		selected: -1,
	}
}

// Options returns the effective tuning.
func (e *Engine) Options() Options {
	return e.opts
}

// SetImageSize installs a newly loaded image of w x h original pixels.
// The viewport is reset, annotations are cleared and any gesture is dropped.
// On error the engine keeps its previous image.
func (e *Engine) SetImageSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidImageSize, w, h)
	}
	e.origW, e.origH = w, h
	e.loaded = true
	e.view = Viewport{Zoom: e.opts.InitialZoom}
	e.annotations = nil
	e.resetTransient()
	return nil
}

// Clear removes the image and everything tied to it. Mode, class and
// zoom bounds are kept.
func (e *Engine) Clear() {
	e.origW, e.origH = 0, 0
	e.loaded = false
	e.view = Viewport{Zoom: e.opts.InitialZoom}
	e.annotations = nil
	e.hovering = false
	e.resetTransient()
}

// HasImage reports whether an image is installed.
func (e *Engine) HasImage() bool {
	return e.loaded
}

// ImageSize returns the original image dimensions.
func (e *Engine) ImageSize() (int, int) {
	return e.origW, e.origH
}

// ScaledSize returns the image size in scaled-image space.
func (e *Engine) ScaledSize() geometry.Size {
	return geometry.NewSize(float64(e.origW), float64(e.origH)).Scale(e.view.Zoom)
}

// SetAnnotations replaces the working copy for the displayed image.
func (e *Engine) SetAnnotations(anns []annotation.Annotation) {
	e.annotations = annotation.Clone(anns)
	if e.selected >= len(e.annotations) {
		e.selected = -1
	}
}

// Annotations returns a copy of the working sequence.
func (e *Engine) Annotations() []annotation.Annotation {
	return annotation.Clone(e.annotations)
}

// SetMode switches the interaction mode. It is refused while a gesture is
// active; on success all transient state, including the selection, is reset.
func (e *Engine) SetMode(m Mode) error {
	if e.active != nil {
		return ErrGestureActive
	}
	e.mode = m
	e.resetTransient()
	return nil
}

// Mode returns the interaction mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// SetCurrentClass sets the class id used for new boxes.
func (e *Engine) SetCurrentClass(id int) {
	if id < 0 {
		id = 0
	}
	e.currentClass = id
}

// CurrentClass returns the class id used for new boxes.
func (e *Engine) CurrentClass() int {
	return e.currentClass
}

// Selected returns the selected annotation index or -1.
func (e *Engine) Selected() int {
	return e.selected
}

// Viewport returns the current zoom and pan.
func (e *Engine) Viewport() Viewport {
	return e.view
}

// Gesture returns the kind of the active gesture.
func (e *Engine) Gesture() Gesture {
	if e.active == nil {
		return GestureNone
	}
	return e.active.kind()
}

func (e *Engine) resetTransient() {
	e.active = nil
	e.selected = -1
}

func (e *Engine) imageRect() geometry.Rect {
	s := e.ScaledSize()
	return geometry.NewRect(0, 0, s.Width, s.Height)
}

// boxRect returns annotation i in scaled-image space.
func (e *Engine) boxRect(i int) geometry.Rect {
	s := e.ScaledSize()
	return ToPixelRect(e.annotations[i].BBox, s.Width, s.Height)
}

func (e *Engine) validIndex(i int) bool {
	return i >= 0 && i < len(e.annotations)
}

func (e *Engine) normalize(r geometry.Rect) annotation.BBox {
	return ToNormalized(r, e.view.Zoom, e.origW, e.origH)
}

// PointerDown starts a gesture at screen point p.
func (e *Engine) PointerDown(p geometry.Point2D, b Button) []Event {
	if !e.loaded || e.active != nil {
		return nil
	}
	if b == ButtonTertiary || (b == ButtonPrimary && e.mode == ModePan) {
		e.active = &panGesture{button: b, last: p}
		return nil
	}
	if b != ButtonPrimary {
		return nil
	}

	ip := e.view.ScreenToImage(p)
	switch e.mode {
	case ModeDraw:
		e.selected = -1
		e.active = &drawGesture{start: ip, current: ip}
	case ModeEdit:
		hit := e.hitTest(ip)
		switch hit.Kind {
		case HitCorner:
			e.selected = hit.Index
			e.active = &resizeGesture{
				index:    hit.Index,
				corner:   hit.Corner,
				snapshot: e.boxRect(hit.Index),
				current:  ip,
			}
		case HitInside:
			e.selected = hit.Index
			e.active = &moveGesture{
				index:    hit.Index,
				original: e.annotations[hit.Index].BBox,
				last:     ip,
			}
		default:
			e.selected = -1
		}
	}
	return nil
}

// PointerMove continues the active gesture and tracks the hover position.
func (e *Engine) PointerMove(p geometry.Point2D) {
	e.hover, e.hovering = p, true
	if e.active == nil {
		return
	}

	ip := e.view.ScreenToImage(p)
	switch g := e.active.(type) {
	case *drawGesture:
		g.current = ip
	case *resizeGesture:
		if !e.validIndex(g.index) {
			e.abandon()
			return
		}
		g.current = ip
	case *moveGesture:
		if !e.validIndex(g.index) {
			e.abandon()
			return
		}
		e.moveBy(g, ip)
	case *panGesture:
		e.view.Pan = e.view.Pan.Add(p.Sub(g.last))
		g.last = p
	}
}

// moveBy shifts the moved box by the pointer delta since the last event.
func (e *Engine) moveBy(g *moveGesture, ip geometry.Point2D) {
	delta := ip.Sub(g.last).Scale(1 / e.view.Zoom)
	g.last = ip
	dx := delta.X / float64(e.origW)
	dy := delta.Y / float64(e.origH)
	a := &e.annotations[g.index]
	a.BBox = a.BBox.Translate(dx, dy).ClampCenter()
}

// PointerUp finishes the gesture started by button b.
func (e *Engine) PointerUp(p geometry.Point2D, b Button) []Event {
	if b == ButtonSecondary {
		return e.commitAndDeselect(p)
	}
	if e.active == nil {
		return nil
	}
	if pg, ok := e.active.(*panGesture); ok {
		if pg.button != b {
			return nil
		}
		e.PointerMove(p)
		e.active = nil
		return nil
	}
	if b != ButtonPrimary {
		return nil
	}
	e.PointerMove(p)
	return e.finish()
}

// finish completes a draw, resize or move gesture and returns its event.
func (e *Engine) finish() []Event {
	g := e.active
	e.active = nil

	switch g := g.(type) {
	case *drawGesture:
		r := e.drawRect(g)
		if r.Width <= e.opts.MinBoxSize || r.Height <= e.opts.MinBoxSize {
			return nil
		}
		box := e.normalize(r)
		e.annotations = append(e.annotations, annotation.Annotation{Class: e.currentClass, BBox: box})
		return []Event{BoxCreated{BBox: box, ClassID: e.currentClass}}
	case *resizeGesture:
		if !e.validIndex(g.index) {
			e.selected = -1
			return nil
		}
		r := e.resizeRect(g)
		if r.Empty() {
			return nil
		}
		box := e.normalize(r)
		e.annotations[g.index].BBox = box
		return []Event{BoxUpdated{Index: g.index, BBox: box}}
	case *moveGesture:
		if !e.validIndex(g.index) {
			e.selected = -1
			return nil
		}
		return []Event{BoxUpdated{Index: g.index, BBox: e.annotations[g.index].BBox}}
	}
	return nil
}

// commitAndDeselect handles a secondary-button release in edit mode: an
// active resize or move is committed and the selection is dropped.
func (e *Engine) commitAndDeselect(p geometry.Point2D) []Event {
	if e.mode != ModeEdit || e.selected < 0 {
		return nil
	}
	var events []Event
	switch e.active.(type) {
	case *resizeGesture, *moveGesture:
		e.PointerMove(p)
		events = e.finish()
	}
	e.selected = -1
	return events
}

// abandon drops the active gesture without emitting anything.
func (e *Engine) abandon() {
	e.active = nil
	if !e.validIndex(e.selected) {
		e.selected = -1
	}
}

// Cancel aborts the active gesture. A move in progress is rolled back.
func (e *Engine) Cancel() {
	if g, ok := e.active.(*moveGesture); ok && e.validIndex(g.index) {
		e.annotations[g.index].BBox = g.original
	}
	e.abandon()
}

// PointerLeave forgets the hover position.
func (e *Engine) PointerLeave() {
	e.hovering = false
}

func (e *Engine) drawRect(g *drawGesture) geometry.Rect {
	return geometry.RectFromCorners(g.start, g.current).Intersect(e.imageRect())
}

// resizeRect holds the snapshot corner opposite the dragged one fixed and
// puts the dragged corner at the pointer.
func (e *Engine) resizeRect(g *resizeGesture) geometry.Rect {
	fixed := g.snapshot.Corner(g.corner.Opposite())
	return geometry.RectFromCorners(fixed, g.current).Intersect(e.imageRect())
}

// Scroll zooms by one step about the screen anchor: in for deltaY > 0, out
// for deltaY < 0. It is ignored without an image or during a gesture and
// reports whether the viewport changed.
func (e *Engine) Scroll(anchor geometry.Point2D, deltaY float64) bool {
	switch {
	case deltaY > 0:
		return e.ZoomTo(e.view.Zoom*e.opts.ZoomStep, anchor)
	case deltaY < 0:
		return e.ZoomTo(e.view.Zoom/e.opts.ZoomStep, anchor)
	}
	return false
}

// ZoomTo sets the zoom, clamped to the configured bounds, keeping the image
// point under anchor fixed on screen.
func (e *Engine) ZoomTo(zoom float64, anchor geometry.Point2D) bool {
	if !e.loaded || e.active != nil {
		return false
	}
	zoom = clampZoom(zoom, e.opts.MinZoom, e.opts.MaxZoom)
	if scalar.EqualWithinAbs(zoom, e.view.Zoom, zoomEpsilon) {
		return false
	}
	e.view.ZoomAbout(anchor, zoom)
	return true
}

// FitToView zooms so the whole image fits a viewW x viewH view with a small
// margin, and centers it.
func (e *Engine) FitToView(viewW, viewH float64) bool {
	if !e.loaded || e.active != nil || viewW <= 0 || viewH <= 0 {
		return false
	}
	zoom := math.Min(viewW/float64(e.origW), viewH/float64(e.origH)) * fitMargin
	zoom = clampZoom(zoom, e.opts.MinZoom, e.opts.MaxZoom)
	e.view.Zoom = zoom
	s := e.ScaledSize()
	e.view.Pan = geometry.NewPoint2D((viewW-s.Width)/2, (viewH-s.Height)/2)
	return true
}
