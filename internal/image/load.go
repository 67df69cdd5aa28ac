// Package image provides image loading, display scaling and folder listing.
package image

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"labelsense/pkg/geometry"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageLoadError reports an image that could not be opened or decoded.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error {
	return e.Err
}

// Source is a decoded image file.
type Source struct {
	Path  string      // Original file path
	Image image.Image // Decoded, EXIF-oriented pixels
}

// Load decodes the image at path. EXIF orientation is applied so boxes are
// drawn over the image the way viewers show it.
func Load(path string) (*Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ImageLoadError{Path: path, Err: err}
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &ImageLoadError{Path: path, Err: err}
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ImageLoadError{Path: path, Err: fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())}
	}
	return &Source{Path: path, Image: img}, nil
}

// Name returns the file name without the directory.
func (s *Source) Name() string {
	return filepath.Base(s.Path)
}

// Width returns the image width in pixels.
func (s *Source) Width() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (s *Source) Height() int {
	if s.Image == nil {
		return 0
	}
	return s.Image.Bounds().Dy()
}

// Size returns the image dimensions.
func (s *Source) Size() geometry.Size {
	return geometry.NewSize(float64(s.Width()), float64(s.Height()))
}

// PixelAt returns the color at the specified pixel coordinates.
func (s *Source) PixelAt(x, y int) color.Color {
	if s.Image == nil {
		return color.Black
	}
	b := s.Image.Bounds()
	if x < 0 || x >= b.Dx() || y < 0 || y >= b.Dy() {
		return color.Black
	}
	return s.Image.At(b.Min.X+x, b.Min.Y+y)
}

// ScaledDims returns the pixel size of a w x h image shown at zoom. Both
// sides are at least one pixel.
func ScaledDims(w, h int, zoom float64) (int, int) {
	sw := int(math.Round(float64(w) * zoom))
	sh := int(math.Round(float64(h) * zoom))
	return max(sw, 1), max(sh, 1)
}

// Scale resizes img for display at zoom.
func Scale(img image.Image, zoom float64) *image.NRGBA {
	b := img.Bounds()
	w, h := ScaledDims(b.Dx(), b.Dy(), zoom)
	if w == b.Dx() && h == b.Dy() {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}

// SupportedFormats returns the list of supported image extensions.
func SupportedFormats() []string {
	return []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".webp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// FileFilter returns a file filter string for use in file dialogs.
func FileFilter() string {
	return "Image Files (*.jpg, *.jpeg, *.png, *.bmp, *.tiff, *.tif, *.webp)"
}

// ListImages returns the supported image file names in dir, sorted.
// Subdirectories are not searched.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image folder: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsSupportedFormat(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	// os.ReadDir sorts by name already
	return names, nil
}
