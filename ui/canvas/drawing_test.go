package canvas

import (
	"image"
	"image/color"
	"testing"

	"labelsense/pkg/colorutil"

	"github.com/stretchr/testify/assert"
)

func newOutput(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestGetCharPattern(t *testing.T) {
	assert.Equal(t, digitPatterns[7], getCharPattern('7'))
	assert.Equal(t, letterPatterns['A'], getCharPattern('a'))
	assert.Equal(t, [5]uint8{}, getCharPattern('#'))
}

func TestTextSize(t *testing.T) {
	w, h := textSize("12", 2)
	assert.Equal(t, 14, w)
	assert.Equal(t, 10, h)

	w, h = textSize("", 2)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestDrawTextSetsGlyphPixels(t *testing.T) {
	out := newOutput(20, 20)
	drawText(out, "1", 2, 2, colorutil.White, 1)

	// '1' is 010 / 110 / 010 / 010 / 111
	assert.Equal(t, colorutil.White, out.RGBAAt(3, 2))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(2, 2))
	assert.Equal(t, colorutil.White, out.RGBAAt(2, 3))
	assert.Equal(t, colorutil.White, out.RGBAAt(4, 6))
}

func TestStrokeRect(t *testing.T) {
	out := newOutput(20, 20)
	red := colorutil.ClassColor(0)
	strokeRect(out, image.Rect(2, 2, 12, 12), red, 2)

	assert.Equal(t, red, out.RGBAAt(2, 2))
	assert.Equal(t, red, out.RGBAAt(11, 11))
	assert.Equal(t, red, out.RGBAAt(3, 6), "second ring")
	assert.Equal(t, color.RGBA{}, out.RGBAAt(4, 6), "interior untouched")
	assert.Equal(t, color.RGBA{}, out.RGBAAt(12, 12), "max edge is exclusive")
}

func TestDrawingClipsToOutput(t *testing.T) {
	out := newOutput(10, 10)
	assert.NotPanics(t, func() {
		strokeRect(out, image.Rect(-5, -5, 50, 50), colorutil.White, 3)
		fillRect(out, image.Rect(-5, -5, 50, 50), colorutil.White)
		drawLine(out, -10, -10, 30, 30, colorutil.White)
		drawText(out, "99", 8, 8, colorutil.White, 3)
		drawHandle(out, image.Rect(-4, -4, 4, 4), colorutil.White, colorutil.Black)
	})
}

func TestDashOn(t *testing.T) {
	assert.True(t, dashOn(0, 4))
	assert.True(t, dashOn(3, 4))
	assert.False(t, dashOn(4, 4))
	assert.True(t, dashOn(8, 4))
	assert.True(t, dashOn(5, 0))
}

func TestDashedRectLeavesGaps(t *testing.T) {
	out := newOutput(40, 40)
	col := colorutil.ClassColor(4)
	dashedRect(out, image.Rect(0, 0, 30, 30), col, 1, 5)

	assert.Equal(t, col, out.RGBAAt(2, 0))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(7, 0))
	assert.Equal(t, col, out.RGBAAt(0, 12))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(0, 17))
}

func TestDrawHandle(t *testing.T) {
	out := newOutput(8, 8)
	drawHandle(out, image.Rect(0, 0, 8, 8), colorutil.White, colorutil.Black)

	assert.Equal(t, colorutil.White, out.RGBAAt(3, 3))
	assert.Equal(t, colorutil.Black, out.RGBAAt(0, 3))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(0, 0), "corner outside the circle")
}

func TestSetPixelBlendsTranslucentColors(t *testing.T) {
	out := newOutput(1, 1)
	out.SetRGBA(0, 0, colorutil.Black)
	setPixel(out, 0, 0, color.RGBA{R: 255, A: 128})

	got := out.RGBAAt(0, 0)
	assert.InDelta(t, 128, int(got.R), 1)
	assert.Equal(t, uint8(255), got.A)
}

func TestRulerStep(t *testing.T) {
	tests := []struct {
		zoom float64
		want int
	}{
		{zoom: 1, want: 100},
		{zoom: 0.5, want: 200},
		{zoom: 0.1, want: 1000},
		{zoom: 5, want: 20},
		{zoom: 2.5, want: 50},
		{zoom: 0, want: 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rulerStep(tt.zoom, rulerMinSpacing), "zoom %v", tt.zoom)
	}
}

func TestDrawRulers(t *testing.T) {
	out := newOutput(200, 200)
	drawRulers(out, 1, 50, 50, 100, 100)

	assert.NotEqual(t, color.RGBA{}, out.RGBAAt(100, 5), "top strip painted")
	assert.NotEqual(t, color.RGBA{}, out.RGBAAt(5, 100), "left strip painted")
	assert.Equal(t, color.RGBA{}, out.RGBAAt(100, 100), "image area untouched")
	assert.Equal(t, colorutil.RulerTick, out.RGBAAt(150, 17), "tick at image x=100")
}
