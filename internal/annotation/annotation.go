// Package annotation defines the YOLO bounding-box model shared by the canvas,
// the project file and the dataset export.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats/scalar"
)

// ErrInvalidGeometry reports a box with a center outside [0,1] or a
// non-positive extent.
var ErrInvalidGeometry = errors.New("invalid box geometry")

// Tolerance is the largest per-component difference at which two boxes
// are treated as the same box.
const Tolerance = 1e-9

// BBox is a YOLO box: center and size normalized to the original image.
// It marshals as the 4-element array [cx, cy, w, h].
type BBox struct {
	CX, CY float64
	W, H   float64
}

// NewBBox creates a new BBox.
func NewBBox(cx, cy, w, h float64) BBox {
	return BBox{CX: cx, CY: cy, W: w, H: h}
}

// Values returns the box as [cx, cy, w, h].
func (b BBox) Values() [4]float64 {
	return [4]float64{b.CX, b.CY, b.W, b.H}
}

// Validate checks the normalized-box invariants.
func (b BBox) Validate() error {
	for _, v := range b.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in %v", ErrInvalidGeometry, b.Values())
		}
	}
	if b.W <= 0 || b.H <= 0 {
		return fmt.Errorf("%w: extent %gx%g", ErrInvalidGeometry, b.W, b.H)
	}
	if b.CX < 0 || b.CX > 1 || b.CY < 0 || b.CY > 1 {
		return fmt.Errorf("%w: center (%g, %g) outside image", ErrInvalidGeometry, b.CX, b.CY)
	}
	return nil
}

// ClampCenter keeps the whole box inside [0,1] by limiting its center to
// [half_extent, 1-half_extent] on each axis.
func (b BBox) ClampCenter() BBox {
	b.CX = clampCenter(b.CX, b.W/2)
	b.CY = clampCenter(b.CY, b.H/2)
	return b
}

func clampCenter(c, half float64) float64 {
	return math.Max(half, math.Min(1-half, c))
}

// Translate returns the box moved by (dx, dy) in normalized units.
func (b BBox) Translate(dx, dy float64) BBox {
	b.CX += dx
	b.CY += dy
	return b
}

// ApproxEqual reports whether every component is within tol of other's.
func (b BBox) ApproxEqual(other BBox, tol float64) bool {
	a, o := b.Values(), other.Values()
	for i := range a {
		if !scalar.EqualWithinAbs(a[i], o[i], tol) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the box as [cx, cy, w, h].
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Values())
}

// UnmarshalJSON decodes a [cx, cy, w, h] array.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("bbox: expected 4 values, got %d", len(v))
	}
	*b = BBox{CX: v[0], CY: v[1], W: v[2], H: v[3]}
	return nil
}

// Annotation is one labelled box on one image.
type Annotation struct {
	Class int  `json:"class"`
	BBox  BBox `json:"bbox"`
}

// Validate checks the class id and the box.
func (a Annotation) Validate() error {
	if a.Class < 0 {
		return fmt.Errorf("%w: negative class %d", ErrInvalidGeometry, a.Class)
	}
	return a.BBox.Validate()
}

// Clone returns an independent copy of a sequence.
func Clone(anns []Annotation) []Annotation {
	if anns == nil {
		return nil
	}
	out := make([]Annotation, len(anns))
	copy(out, anns)
	return out
}
