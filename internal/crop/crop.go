// Package crop extracts a user-selected rectangle from a source image.
//
// The selection is made against the image as it was displayed, which is
// usually scaled down from the image's true pixel size. Extract maps the
// displayed-space rectangle back into source pixels and renders it into an
// output surface sized exactly like the selection, so the result comes out
// at display resolution rather than being rescaled back up.
package crop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	xdraw "golang.org/x/image/draw"
)

// ErrEmptyRegion is returned for a zero-area selection. Callers are expected
// to never reach Extract in that case and fall back to the original image.
var ErrEmptyRegion = errors.New("crop region has zero area")

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// Region is a selection rectangle in displayed-image coordinates.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Empty reports whether the region has no area, i.e. the user never dragged
// a selection.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Extract renders the selected region of src into a Region.Width by
// Region.Height surface and encodes it as a maximum-quality JPEG. The
// source rectangle is the region scaled by natural/displayed per axis,
// where natural is taken from src's own bounds.
//
// Extract performs no I/O; it is a pure transform.
func Extract(src image.Image, displayed Dimensions, region Region) ([]byte, error) {
	if region.Empty() {
		return nil, ErrEmptyRegion
	}
	if displayed.Width <= 0 || displayed.Height <= 0 {
		return nil, fmt.Errorf("displayed dimensions must be positive, got %dx%d", displayed.Width, displayed.Height)
	}

	b := src.Bounds()
	scaleX := float64(b.Dx()) / float64(displayed.Width)
	scaleY := float64(b.Dy()) / float64(displayed.Height)

	srcRect := image.Rect(
		b.Min.X+scale(region.X, scaleX),
		b.Min.Y+scale(region.Y, scaleY),
		b.Min.X+scale(region.X+region.Width, scaleX),
		b.Min.Y+scale(region.Y+region.Height, scaleY),
	)

	dst := image.NewRGBA(image.Rect(0, 0, region.Width, region.Height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, srcRect, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 100}); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

func scale(v int, factor float64) int {
	return int(math.Round(float64(v) * factor))
}
