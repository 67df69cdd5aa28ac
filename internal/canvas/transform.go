// Package canvas implements the annotation canvas engine: the viewport
// transform, hit-testing, the pointer-driven gesture state machine and the
// render list consumed by the host view.
//
// Three coordinate spaces are involved:
//
//   - normalized box space: YOLO [cx, cy, w, h] relative to the original image
//   - scaled-image space: original pixels multiplied by the zoom factor,
//     origin at the image's top-left
//   - screen space: scaled-image space translated by the pan offset
package canvas

import (
	"math"

	"labelsense/internal/annotation"
	"labelsense/pkg/geometry"
)

// Viewport holds zoom and pan.
type Viewport struct {
	Zoom float64
	Pan  geometry.Point2D
}

// ScreenToImage converts a screen point to scaled-image space.
func (v Viewport) ScreenToImage(p geometry.Point2D) geometry.Point2D {
	return p.Sub(v.Pan)
}

// ImageToScreen converts a scaled-image point to screen space.
func (v Viewport) ImageToScreen(p geometry.Point2D) geometry.Point2D {
	return p.Add(v.Pan)
}

// ZoomAbout changes the zoom while keeping the image point under anchor
// fixed on screen.
func (v *Viewport) ZoomAbout(anchor geometry.Point2D, newZoom float64) {
	imagePoint := v.ScreenToImage(anchor).Scale(1 / v.Zoom)
	v.Zoom = newZoom
	v.Pan = anchor.Sub(imagePoint.Scale(newZoom))
}

// ToPixelRect maps a normalized box into scaled-image space for an image
// displayed at scaledW x scaledH.
func ToPixelRect(b annotation.BBox, scaledW, scaledH float64) geometry.Rect {
	return geometry.Rect{
		X:      (b.CX - b.W/2) * scaledW,
		Y:      (b.CY - b.H/2) * scaledH,
		Width:  b.W * scaledW,
		Height: b.H * scaledH,
	}
}

// ToScreenRect translates a scaled-image rect by the pan offset.
func ToScreenRect(r geometry.Rect, pan geometry.Point2D) geometry.Rect {
	return r.Translate(pan)
}

// ToNormalized maps a scaled-image rect back to a normalized box for an
// original image of origW x origH pixels.
func ToNormalized(r geometry.Rect, zoom float64, origW, origH int) annotation.BBox {
	if zoom <= 0 || origW <= 0 || origH <= 0 {
		return annotation.BBox{}
	}
	x := r.X / zoom
	y := r.Y / zoom
	w := r.Width / zoom
	h := r.Height / zoom
	return annotation.BBox{
		CX: (x + w/2) / float64(origW),
		CY: (y + h/2) / float64(origH),
		W:  w / float64(origW),
		H:  h / float64(origH),
	}
}

// clampZoom limits z to [lo, hi].
func clampZoom(z, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, z))
}
