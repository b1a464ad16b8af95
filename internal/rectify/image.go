package rectify

import (
	"image"
	"image/color"
)

// Image is a single channel floating point image with values in [0, 1],
// stored row major. It is the working pixel format of the rectification
// engine: decoded frames are converted into it once, resampled in it, and
// converted out of it only on demand.
type Image struct {
	// W and H are the dimensions in pixels.
	W int
	H int
	// Pix holds W*H luma values in [0, 1], row major.
	Pix []float32
}

// NewImage returns a zeroed (black) image of the given size.
func NewImage(w, h int) *Image {
	return &Image{W: w, H: h, Pix: make([]float32, w*h)}
}

// ColorModel implements image.Image.
func (p *Image) ColorModel() color.Model { return color.Gray16Model }

// Bounds implements image.Image.
func (p *Image) Bounds() image.Rectangle { return image.Rect(0, 0, p.W, p.H) }

// At implements image.Image. Out-of-bounds coordinates return black.
func (p *Image) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= p.W || y >= p.H {
		return color.Gray16{}
	}
	return color.Gray16{Y: uint16(clamp01(p.Pix[y*p.W+x])*65535 + 0.5)}
}

// FloatAt returns the raw float value at (x, y). Out of bounds returns 0.
func (p *Image) FloatAt(x, y int) float32 {
	if x < 0 || y < 0 || x >= p.W || y >= p.H {
		return 0
	}
	return p.Pix[y*p.W+x]
}

// Gray converts to an 8-bit grayscale image, rounding half up.
func (p *Image) Gray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, p.W, p.H))
	for i, v := range p.Pix {
		out.Pix[i] = uint8(clamp01(v)*255 + 0.5)
	}
	return out
}

// Gray16 converts to a 16-bit grayscale image, rounding half up.
func (p *Image) Gray16() *image.Gray16 {
	out := image.NewGray16(image.Rect(0, 0, p.W, p.H))
	for i, v := range p.Pix {
		g := uint16(clamp01(v)*65535 + 0.5)
		out.Pix[2*i] = uint8(g >> 8)
		out.Pix[2*i+1] = uint8(g)
	}
	return out
}

// RGBA converts to an RGBA image with the luma replicated across the color
// channels and full alpha.
func (p *Image) RGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, p.W, p.H))
	for i, v := range p.Pix {
		g := uint8(clamp01(v)*255 + 0.5)
		out.Pix[4*i] = g
		out.Pix[4*i+1] = g
		out.Pix[4*i+2] = g
		out.Pix[4*i+3] = 0xff
	}
	return out
}

// Clone returns a deep copy.
func (p *Image) Clone() *Image {
	out := &Image{W: p.W, H: p.H, Pix: make([]float32, len(p.Pix))}
	copy(out.Pix, p.Pix)
	return out
}

// FromImage converts any image.Image to luma floats. Grayscale and YCbCr
// inputs (the JPEG decoder's native type) take a direct path over the luma
// plane; everything else goes through BT.601 weights.
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewImage(w, h)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):]
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = float32(row[x]) / 255
			}
		}
	case *image.YCbCr:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Pix[y*w+x] = float32(src.Y[src.YOffset(b.Min.X+x, b.Min.Y+y)]) / 255
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				luma := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bb)
				out.Pix[y*w+x] = float32(luma / 65535)
			}
		}
	}
	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
