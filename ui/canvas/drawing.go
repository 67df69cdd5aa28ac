// Drawing primitives for the annotation canvas. All of them clip to the output.
package canvas

import (
	"image"
	"image/color"
	"strconv"

	"labelsense/pkg/colorutil"
)

// digitPatterns contains 3x5 pixel patterns for digits 0-9.
// Each digit is represented as 5 rows of 3 bits.
var digitPatterns = [10][5]uint8{
	{0b111, 0b101, 0b101, 0b101, 0b111}, // 0
	{0b010, 0b110, 0b010, 0b010, 0b111}, // 1
	{0b111, 0b001, 0b111, 0b100, 0b111}, // 2
	{0b111, 0b001, 0b111, 0b001, 0b111}, // 3
	{0b101, 0b101, 0b111, 0b001, 0b001}, // 4
	{0b111, 0b100, 0b111, 0b001, 0b111}, // 5
	{0b111, 0b100, 0b111, 0b101, 0b111}, // 6
	{0b111, 0b001, 0b001, 0b001, 0b001}, // 7
	{0b111, 0b101, 0b111, 0b101, 0b111}, // 8
	{0b111, 0b101, 0b111, 0b001, 0b111}, // 9
}

// letterPatterns contains 3x5 pixel patterns for letters A-Z and common symbols.
var letterPatterns = map[rune][5]uint8{
	'A': {0b010, 0b101, 0b111, 0b101, 0b101},
	'B': {0b110, 0b101, 0b110, 0b101, 0b110},
	'C': {0b011, 0b100, 0b100, 0b100, 0b011},
	'D': {0b110, 0b101, 0b101, 0b101, 0b110},
	'E': {0b111, 0b100, 0b110, 0b100, 0b111},
	'F': {0b111, 0b100, 0b110, 0b100, 0b100},
	'G': {0b011, 0b100, 0b101, 0b101, 0b011},
	'H': {0b101, 0b101, 0b111, 0b101, 0b101},
	'I': {0b111, 0b010, 0b010, 0b010, 0b111},
	'J': {0b001, 0b001, 0b001, 0b101, 0b010},
	'K': {0b101, 0b101, 0b110, 0b101, 0b101},
	'L': {0b100, 0b100, 0b100, 0b100, 0b111},
	'M': {0b101, 0b111, 0b101, 0b101, 0b101},
	'N': {0b101, 0b111, 0b111, 0b101, 0b101},
	'O': {0b010, 0b101, 0b101, 0b101, 0b010},
	'P': {0b110, 0b101, 0b110, 0b100, 0b100},
	'Q': {0b010, 0b101, 0b101, 0b111, 0b011},
	'R': {0b110, 0b101, 0b110, 0b101, 0b101},
	'S': {0b011, 0b100, 0b010, 0b001, 0b110},
	'T': {0b111, 0b010, 0b010, 0b010, 0b010},
	'U': {0b101, 0b101, 0b101, 0b101, 0b111},
	'V': {0b101, 0b101, 0b101, 0b101, 0b010},
	'W': {0b101, 0b101, 0b101, 0b111, 0b101},
	'X': {0b101, 0b101, 0b010, 0b101, 0b101},
	'Y': {0b101, 0b101, 0b010, 0b010, 0b010},
	'Z': {0b111, 0b001, 0b010, 0b100, 0b111},
	'+': {0b000, 0b010, 0b111, 0b010, 0b000},
	'-': {0b000, 0b000, 0b111, 0b000, 0b000},
	'.': {0b000, 0b000, 0b000, 0b000, 0b010},
	'%': {0b101, 0b001, 0b010, 0b100, 0b101},
	' ': {0b000, 0b000, 0b000, 0b000, 0b000},
}

// getCharPattern returns the 3x5 pixel pattern for a character.
// Returns a zero pattern for unsupported characters.
func getCharPattern(ch rune) [5]uint8 {
	if ch >= '0' && ch <= '9' {
		return digitPatterns[ch-'0']
	}
	// Convert lowercase to uppercase
	if ch >= 'a' && ch <= 'z' {
		ch = ch - 'a' + 'A'
	}
	if pattern, ok := letterPatterns[ch]; ok {
		return pattern
	}
	return [5]uint8{}
}

// setPixel writes col at (x, y), blending when col is translucent.
func setPixel(output *image.RGBA, x, y int, col color.RGBA) {
	if !(image.Point{X: x, Y: y}).In(output.Bounds()) {
		return
	}
	if col.A == 255 {
		output.SetRGBA(x, y, col)
		return
	}
	if col.A == 0 {
		return
	}
	output.SetRGBA(x, y, colorutil.Blend(output.RGBAAt(x, y), col, float64(col.A)/255))
}

// fillRect fills r, clipped to the output.
func fillRect(output *image.RGBA, r image.Rectangle, col color.RGBA) {
	r = r.Intersect(output.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPixel(output, x, y, col)
		}
	}
}

// strokeRect draws the outline of r growing inward by width pixels.
func strokeRect(output *image.RGBA, r image.Rectangle, col color.RGBA, width int) {
	if width < 1 {
		width = 1
	}
	for t := 0; t < width; t++ {
		x1, y1 := r.Min.X+t, r.Min.Y+t
		x2, y2 := r.Max.X-1-t, r.Max.Y-1-t
		if x1 > x2 || y1 > y2 {
			return
		}
		for x := x1; x <= x2; x++ {
			setPixel(output, x, y1, col)
			setPixel(output, x, y2, col)
		}
		for y := y1 + 1; y < y2; y++ {
			setPixel(output, x1, y, col)
			setPixel(output, x2, y, col)
		}
	}
}

// dashOn reports whether offset i along a line falls on a dash.
func dashOn(i, dash int) bool {
	if dash <= 0 {
		return true
	}
	if i < 0 {
		i = -i
	}
	return (i/dash)%2 == 0
}

// dashedRect draws the outline of r with dash-length segments.
func dashedRect(output *image.RGBA, r image.Rectangle, col color.RGBA, width, dash int) {
	if width < 1 {
		width = 1
	}
	for t := 0; t < width; t++ {
		x1, y1 := r.Min.X+t, r.Min.Y+t
		x2, y2 := r.Max.X-1-t, r.Max.Y-1-t
		if x1 > x2 || y1 > y2 {
			return
		}
		for x := x1; x <= x2; x++ {
			if dashOn(x-r.Min.X, dash) {
				setPixel(output, x, y1, col)
				setPixel(output, x, y2, col)
			}
		}
		for y := y1 + 1; y < y2; y++ {
			if dashOn(y-r.Min.Y, dash) {
				setPixel(output, x1, y, col)
				setPixel(output, x2, y, col)
			}
		}
	}
}

// hLine draws a horizontal line across the whole output at y.
func hLine(output *image.RGBA, y int, col color.RGBA, dash int) {
	b := output.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		if dashOn(x, dash) {
			setPixel(output, x, y, col)
		}
	}
}

// vLine draws a vertical line across the whole output at x.
func vLine(output *image.RGBA, x int, col color.RGBA, dash int) {
	b := output.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		if dashOn(y, dash) {
			setPixel(output, x, y, col)
		}
	}
}

// drawHandle draws a round handle inscribed in r: filled, then outlined.
func drawHandle(output *image.RGBA, r image.Rectangle, fill, outline color.RGBA) {
	d := r.Dx()
	if r.Dy() < d {
		d = r.Dy()
	}
	if d <= 0 {
		return
	}
	// Work in doubled coordinates so even diameters center on pixel edges.
	cx := 2*r.Min.X + d
	cy := 2*r.Min.Y + d
	rad := d * d
	inner := (d - 2) * (d - 2)
	for y := r.Min.Y; y < r.Min.Y+d; y++ {
		for x := r.Min.X; x < r.Min.X+d; x++ {
			dx := 2*x + 1 - cx
			dy := 2*y + 1 - cy
			dist := dx*dx + dy*dy
			switch {
			case dist > rad:
			case dist > inner:
				setPixel(output, x, y, outline)
			default:
				setPixel(output, x, y, fill)
			}
		}
	}
}

// drawLine draws a line between two points using Bresenham's algorithm.
func drawLine(output *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	dx := x2 - x1
	dy := y2 - y1
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy
	for {
		setPixel(output, x1, y1, col)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// textSize returns the pixel size of label drawn at scale.
func textSize(label string, scale int) (int, int) {
	n := len([]rune(label))
	if n == 0 {
		return 0, 0
	}
	return n*3*scale + (n-1)*scale, 5 * scale
}

// drawText draws label with its top-left corner at (x, y). Each font pixel
// becomes a scale x scale block.
func drawText(output *image.RGBA, label string, x, y int, col color.RGBA, scale int) {
	if scale < 1 {
		scale = 1
	}
	for i, ch := range []rune(label) {
		pattern := getCharPattern(ch)
		charX := x + i*4*scale
		for row := 0; row < 5; row++ {
			for c := 0; c < 3; c++ {
				if pattern[row]&(1<<(2-c)) == 0 {
					continue
				}
				fillRect(output, image.Rect(
					charX+c*scale, y+row*scale,
					charX+(c+1)*scale, y+(row+1)*scale,
				), col)
			}
		}
	}
}

// drawLabel draws a label centered inside r.
func drawLabel(output *image.RGBA, label string, r image.Rectangle, col color.RGBA, scale int) {
	w, h := textSize(label, scale)
	x := r.Min.X + (r.Dx()-w)/2
	y := r.Min.Y + (r.Dy()-h)/2
	drawText(output, label, x, y, col, scale)
}

const (
	rulerThickness  = 18
	rulerMinSpacing = 60 // screen pixels between labelled ticks
)

// rulerStep picks a 1-2-5 tick interval in original-image pixels so
// labelled ticks sit at least minSpacing screen pixels apart.
func rulerStep(zoom, minSpacing float64) int {
	if zoom <= 0 {
		return 1
	}
	for mag := 1; mag < 1_000_000; mag *= 10 {
		for _, m := range []int{1, 2, 5} {
			if float64(m*mag)*zoom >= minSpacing {
				return m * mag
			}
		}
	}
	return 1_000_000
}

// drawRulers draws pixel rulers along the top and left edges. Tick labels
// are original-image coordinates for an image drawn at pan with zoom.
func drawRulers(output *image.RGBA, zoom, panX, panY float64, imgW, imgH int) {
	b := output.Bounds()
	fillRect(output, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+rulerThickness), colorutil.RulerBack)
	fillRect(output, image.Rect(b.Min.X, b.Min.Y+rulerThickness, b.Min.X+rulerThickness, b.Max.Y), colorutil.RulerBack)

	step := rulerStep(zoom, rulerMinSpacing)
	minor := step / 5
	if minor < 1 {
		minor = step
	}

	for v := 0; v <= imgW; v += minor {
		x := int(panX + float64(v)*zoom)
		if x < b.Min.X+rulerThickness || x >= b.Max.X {
			continue
		}
		if v%step == 0 {
			drawLine(output, x, b.Min.Y, x, b.Min.Y+rulerThickness-1, colorutil.RulerTick)
			drawText(output, strconv.Itoa(v), x+2, b.Min.Y+2, colorutil.Black, 1)
		} else {
			drawLine(output, x, b.Min.Y+rulerThickness-5, x, b.Min.Y+rulerThickness-1, colorutil.RulerTick)
		}
	}

	for v := 0; v <= imgH; v += minor {
		y := int(panY + float64(v)*zoom)
		if y < b.Min.Y+rulerThickness || y >= b.Max.Y {
			continue
		}
		if v%step == 0 {
			drawLine(output, b.Min.X, y, b.Min.X+rulerThickness-1, y, colorutil.RulerTick)
			drawText(output, strconv.Itoa(v), b.Min.X+2, y+2, colorutil.Black, 1)
		} else {
			drawLine(output, b.Min.X+rulerThickness-5, y, b.Min.X+rulerThickness-1, y, colorutil.RulerTick)
		}
	}
}
