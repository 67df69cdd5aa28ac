// Package colorutil provides shared color utilities for the annotator.
package colorutil

import (
	"image/color"
)

// Common overlay colors used throughout the application.
var (
	Black     = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Yellow    = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	Crosshair = color.RGBA{R: 64, G: 255, B: 0, A: 255}
	RulerBack = color.RGBA{R: 240, G: 240, B: 240, A: 220}
	RulerTick = color.RGBA{R: 180, G: 180, B: 180, A: 255}
)

// Palette is the fixed class palette. Class ids wrap around it.
var Palette = [10]color.RGBA{
	{R: 255, G: 0, B: 0, A: 255},     // red
	{R: 0, G: 255, B: 0, A: 255},     // green
	{R: 0, G: 0, B: 255, A: 255},     // blue
	{R: 255, G: 255, B: 0, A: 255},   // yellow
	{R: 255, G: 0, B: 255, A: 255},   // magenta
	{R: 0, G: 255, B: 255, A: 255},   // cyan
	{R: 255, G: 165, B: 0, A: 255},   // orange
	{R: 128, G: 0, B: 128, A: 255},   // purple
	{R: 255, G: 192, B: 203, A: 255}, // pink
	{R: 165, G: 42, B: 42, A: 255},   // brown
}

// ClassColor returns the palette color for a class id.
func ClassColor(classID int) color.RGBA {
	n := len(Palette)
	i := classID % n
	if i < 0 {
		i += n
	}
	return Palette[i]
}

// Blend mixes src over dst with the given alpha in [0,1].
func Blend(dst, src color.RGBA, alpha float64) color.RGBA {
	if alpha >= 1 {
		return src
	}
	if alpha <= 0 {
		return dst
	}
	inv := 1 - alpha
	return color.RGBA{
		R: uint8(float64(src.R)*alpha + float64(dst.R)*inv),
		G: uint8(float64(src.G)*alpha + float64(dst.G)*inv),
		B: uint8(float64(src.B)*alpha + float64(dst.B)*inv),
		A: 255,
	}
}
