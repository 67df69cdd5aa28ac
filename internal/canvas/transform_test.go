package canvas

import (
	"math/rand/v2"
	"testing"

	"labelsense/internal/annotation"
	"labelsense/pkg/geometry"

	"github.com/stretchr/testify/assert"
)

func TestToPixelRect(t *testing.T) {
	r := ToPixelRect(annotation.NewBBox(0.5, 0.5, 0.2, 0.25), 500, 400)
	assert.InDelta(t, 200, r.X, 1e-9)
	assert.InDelta(t, 150, r.Y, 1e-9)
	assert.InDelta(t, 100, r.Width, 1e-9)
	assert.InDelta(t, 100, r.Height, 1e-9)
}

func TestToScreenRectTranslates(t *testing.T) {
	r := ToScreenRect(geometry.NewRect(10, 20, 30, 40), geometry.NewPoint2D(-5, 7))
	assert.Equal(t, geometry.NewRect(5, 27, 30, 40), r)
}

func TestToNormalizedRejectsDegenerateInputs(t *testing.T) {
	r := geometry.NewRect(0, 0, 10, 10)
	assert.Equal(t, annotation.BBox{}, ToNormalized(r, 0, 100, 100))
	assert.Equal(t, annotation.BBox{}, ToNormalized(r, 1, 0, 100))
}

func TestRoundTripAcrossZoomRange(t *testing.T) {
	const w, h = 1000, 800
	rng := rand.New(rand.NewPCG(1, 2))
	zooms := []float64{0.1, 0.13, 0.5, 1, 2.2, 5}

	for i := 0; i < 200; i++ {
		bw := 0.01 + rng.Float64()*0.98
		bh := 0.01 + rng.Float64()*0.98
		b := annotation.NewBBox(
			bw/2+rng.Float64()*(1-bw),
			bh/2+rng.Float64()*(1-bh),
			bw, bh,
		)
		for _, z := range zooms {
			r := ToPixelRect(b, w*z, h*z)
			back := ToNormalized(r, z, w, h)
			assert.Truef(t, b.ApproxEqual(back, 1e-3), "zoom %.2f: %v != %v", z, b, back)
		}
	}
}

func TestZoomAboutKeepsAnchorFixed(t *testing.T) {
	v := Viewport{Zoom: 0.5, Pan: geometry.NewPoint2D(37, -12)}
	anchor := geometry.NewPoint2D(240, 180)
	imagePoint := anchor.Sub(v.Pan).Scale(1 / v.Zoom)

	v.ZoomAbout(anchor, 0.55)

	after := v.ImageToScreen(imagePoint.Scale(v.Zoom))
	assert.InDelta(t, anchor.X, after.X, 1e-9)
	assert.InDelta(t, anchor.Y, after.Y, 1e-9)
	assert.Equal(t, 0.55, v.Zoom)
}

func TestScreenImageConversion(t *testing.T) {
	v := Viewport{Zoom: 2, Pan: geometry.NewPoint2D(10, 20)}
	p := geometry.NewPoint2D(110, 220)
	assert.Equal(t, geometry.NewPoint2D(100, 200), v.ScreenToImage(p))
	assert.Equal(t, p, v.ImageToScreen(v.ScreenToImage(p)))
}
