package canvas

import (
	"image/color"
	"strconv"

	"labelsense/pkg/colorutil"
	"labelsense/pkg/geometry"
)

const (
	boxLineWidth      = 2
	selectedLineWidth = 3
	previewLineWidth  = 2
	badgeWidth        = 50
	badgeHeight       = 20
	handleRadius      = 4
)

// PrimitiveKind identifies a draw-list entry.
type PrimitiveKind int

const (
	KindImage     PrimitiveKind = iota // the scaled image
	KindBox                            // annotation outline
	KindBadge                          // filled class label above a box
	KindHandle                         // corner handle of the selected box
	KindPreview                        // dashed in-progress draw/resize rect
	KindCrosshair                      // full-view guide lines through Rect's origin
)

// Primitive is one entry of the render list. All rectangles are in screen
// space, rounded to whole pixels.
type Primitive struct {
	Kind      PrimitiveKind
	Rect      geometry.RectInt
	Stroke    color.RGBA
	Fill      color.RGBA // zero alpha means unfilled
	LineWidth int
	Dashed    bool
	Label     string
	Index     int // annotation index, -1 if not tied to one
}

// RenderList describes the current frame back to front. It only reads state.
func (e *Engine) RenderList() []Primitive {
	if !e.loaded {
		return nil
	}

	out := make([]Primitive, 0, 1+3*len(e.annotations)+6)
	s := e.ScaledSize()
	origin := e.view.ImageToScreen(geometry.Point2D{})
	out = append(out, Primitive{
		Kind:  KindImage,
		Rect:  geometry.NewRect(origin.X, origin.Y, s.Width, s.Height).Round(),
		Index: -1,
	})

	for i, a := range e.annotations {
		col := colorutil.ClassColor(a.Class)
		screen := ToScreenRect(e.boxRect(i), e.view.Pan)
		r := screen.Round()

		box := Primitive{Kind: KindBox, Rect: r, Stroke: col, LineWidth: boxLineWidth, Index: i}
		if i == e.selected {
			box.Stroke = colorutil.Yellow
			box.LineWidth = selectedLineWidth
		}
		out = append(out, box)

		out = append(out, Primitive{
			Kind:   KindBadge,
			Rect:   geometry.RectInt{X: r.X, Y: r.Y - badgeHeight, Width: badgeWidth, Height: badgeHeight},
			Stroke: colorutil.White,
			Fill:   col,
			Label:  strconv.Itoa(a.Class),
			Index:  i,
		})

		if i == e.selected {
			for _, c := range geometry.Corners {
				pt := screen.Corner(c).Round()
				out = append(out, Primitive{
					Kind:      KindHandle,
					Rect:      geometry.RectInt{X: pt.X - handleRadius, Y: pt.Y - handleRadius, Width: 2 * handleRadius, Height: 2 * handleRadius},
					Stroke:    colorutil.Black,
					Fill:      colorutil.White,
					LineWidth: 1,
					Index:     i,
				})
			}
		}
	}

	if preview, ok := e.previewRect(); ok {
		out = append(out, Primitive{
			Kind:      KindPreview,
			Rect:      ToScreenRect(preview, e.view.Pan).Round(),
			Stroke:    colorutil.ClassColor(e.currentClass),
			LineWidth: previewLineWidth,
			Dashed:    true,
			Index:     e.selected,
		})
	}

	if e.hovering {
		at := e.hover.Round()
		out = append(out, Primitive{
			Kind:      KindCrosshair,
			Rect:      geometry.RectInt{X: at.X, Y: at.Y},
			Stroke:    colorutil.Crosshair,
			LineWidth: 1,
			Dashed:    true,
			Index:     -1,
		})
	}
	return out
}

// previewRect returns the in-progress rectangle in scaled-image space.
func (e *Engine) previewRect() (geometry.Rect, bool) {
	switch g := e.active.(type) {
	case *drawGesture:
		return e.drawRect(g), true
	case *resizeGesture:
		if !e.validIndex(g.index) {
			return geometry.Rect{}, false
		}
		return e.resizeRect(g), true
	}
	return geometry.Rect{}, false
}
