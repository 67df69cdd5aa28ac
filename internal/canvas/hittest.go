package canvas

import (
	"labelsense/pkg/geometry"
)

// Cursor is the pointer shape the host should show. It is derived from
// engine state and never stored.
type Cursor int

const (
	CursorCross Cursor = iota
	CursorOpenHand
	CursorClosedHand
	CursorMove
	CursorResizeFDiag // top-left / bottom-right
	CursorResizeBDiag // top-right / bottom-left
)

func (c Cursor) String() string {
	switch c {
	case CursorOpenHand:
		return "open-hand"
	case CursorClosedHand:
		return "closed-hand"
	case CursorMove:
		return "move"
	case CursorResizeFDiag:
		return "resize-fdiag"
	case CursorResizeBDiag:
		return "resize-bdiag"
	default:
		return "cross"
	}
}

// NearestCorner returns the first corner of rect (top-left, top-right,
// bottom-left, bottom-right) within threshold of p.
func NearestCorner(p geometry.Point2D, rect geometry.Rect, threshold float64) (geometry.Corner, bool) {
	for _, c := range geometry.Corners {
		if p.Distance(rect.Corner(c)) <= threshold {
			return c, true
		}
	}
	return geometry.CornerNone, false
}

// ContainsPoint reports whether p lies in rect, edges included.
func ContainsPoint(p geometry.Point2D, rect geometry.Rect) bool {
	return rect.Contains(p)
}

// HitKind classifies what a pointer position touches.
type HitKind int

const (
	HitNone HitKind = iota
	HitCorner
	HitInside
)

// Hit is the result of testing a point against the annotation set.
type Hit struct {
	Kind   HitKind
	Index  int
	Corner geometry.Corner
}

// hitTest runs the edit-mode press rules against a scaled-image point:
// every box's corners first, then every box's interior. Sequence order
// decides ties.
func (e *Engine) hitTest(p geometry.Point2D) Hit {
	for i := range e.annotations {
		if c, ok := NearestCorner(p, e.boxRect(i), e.opts.HandleThreshold); ok {
			return Hit{Kind: HitCorner, Index: i, Corner: c}
		}
	}
	for i := range e.annotations {
		if ContainsPoint(p, e.boxRect(i)) {
			return Hit{Kind: HitInside, Index: i}
		}
	}
	return Hit{Kind: HitNone, Index: -1}
}

// HitTest reports what the screen point touches.
func (e *Engine) HitTest(screen geometry.Point2D) Hit {
	if !e.loaded {
		return Hit{Kind: HitNone, Index: -1}
	}
	return e.hitTest(e.view.ScreenToImage(screen))
}

// CursorAt returns the cursor to show with the pointer at a screen position.
func (e *Engine) CursorAt(screen geometry.Point2D) Cursor {
	switch g := e.active.(type) {
	case *panGesture:
		return CursorClosedHand
	case *moveGesture:
		return CursorMove
	case *resizeGesture:
		return cornerCursor(g.corner)
	}

	if e.mode == ModePan {
		return CursorOpenHand
	}
	if e.mode == ModeEdit {
		switch hit := e.HitTest(screen); hit.Kind {
		case HitCorner:
			return cornerCursor(hit.Corner)
		case HitInside:
			return CursorMove
		}
	}
	return CursorCross
}

func cornerCursor(c geometry.Corner) Cursor {
	if c == geometry.CornerTopLeft || c == geometry.CornerBottomRight {
		return CursorResizeFDiag
	}
	return CursorResizeBDiag
}
