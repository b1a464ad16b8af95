package camstream

import (
	"image"
	"time"

	"github.com/duncanrhamill/cv-camstream/internal/rectify"
)

// Image is the luma image type produced by captures: single channel
// float32 values in [0, 1], row major. It implements image.Image and
// converts to the stdlib raster types via Gray, Gray16 and RGBA.
type Image = rectify.Image

// NewImage returns a zeroed (black) image of the given size.
func NewImage(w, h int) *Image { return rectify.NewImage(w, h) }

// FromImage converts any stdlib image to an Image, taking fast paths over
// the luma plane for grayscale and YCbCr inputs.
func FromImage(img image.Image) *Image { return rectify.FromImage(img) }

// StereoFrame is one synchronized pair of captures. Left and Right are
// rectified (or pass-through) luma images of identical dimensions.
type StereoFrame struct {
	Left  *Image
	Right *Image
	// Skew is the absolute timestamp difference between the two grabs
	// that produced this pair.
	Skew time.Duration
}

// LumaPair converts both sides to 8-bit grayscale.
func (f *StereoFrame) LumaPair() (left, right *image.Gray) {
	return f.Left.Gray(), f.Right.Gray()
}

// SideBySide composes the pair into a single 8-bit image, left half then
// right half. Useful for quick visual inspection and debug dumps.
func (f *StereoFrame) SideBySide() *image.Gray {
	w, h := f.Left.W, f.Left.H
	out := image.NewGray(image.Rect(0, 0, 2*w, h))
	left, right := f.LumaPair()
	for y := 0; y < h; y++ {
		copy(out.Pix[y*out.Stride:], left.Pix[y*left.Stride:y*left.Stride+w])
		copy(out.Pix[y*out.Stride+w:], right.Pix[y*right.Stride:y*right.Stride+w])
	}
	return out
}
