package rectify

import "math"

// Map is a precomputed inverse rectification map. For every pixel of the
// rectified output it stores the fractional source coordinates to sample
// from the raw frame. Building it costs O(W*H) trigonometry-free float
// math; applying it is a single bilinear gather per pixel, so the map is
// computed once per stream and reused for every frame.
type Map struct {
	// W and H are the output dimensions the map was built for.
	W int
	H int
	// SX and SY hold, per output pixel, the source sample coordinates.
	// Unmappable pixels (behind the camera, non-finite) carry -1.
	SX []float32
	SY []float32
}

// unmappable marks output pixels with no source preimage.
const unmappable = -1

// ComputeMap builds the inverse map for one sensor. For each output pixel
// center the pixel is normalized through the rectified projection (P, or K
// when P is nil), rotated back into the sensor frame by R transposed
// (identity when R is nil), pushed through the forward distortion model and
// projected through K to source pixel coordinates.
//
// With zero distortion, R absent and P absent the map is the exact
// identity: output pixel (u, v) samples source pixel (u, v).
func ComputeMap(cam Camera, width, height int) *Map {
	m := &Map{
		W:  width,
		H:  height,
		SX: make([]float32, width*height),
		SY: make([]float32, width*height),
	}

	// Intrinsics of the rectified view. Inverting the projection must
	// honor the skew term, so x depends on y.
	np := cam.K
	if cam.P != nil {
		np = *cam.P
	}
	nfx, nskew, ncx := np[0], np[1], np[2]
	nfy, ncy := np[4], np[5]

	var rt Matrix3
	rotate := cam.R != nil
	if rotate {
		rt = cam.R.Transpose()
	}

	fx, skew, cx := cam.K[0], cam.K[1], cam.K[2]
	fy, cy := cam.K[4], cam.K[5]

	i := 0
	for v := 0; v < height; v++ {
		// Pixel centers sit at +0.5 in continuous image coordinates.
		yn := (float64(v) + 0.5 - ncy) / nfy
		for u := 0; u < width; u++ {
			xn := (float64(u) + 0.5 - ncx - nskew*yn) / nfx

			x, y, z := xn, yn, 1.0
			if rotate {
				x, y, z = rt.Apply(xn, yn, 1)
			}
			if z < 1e-9 {
				m.SX[i] = unmappable
				m.SY[i] = unmappable
				i++
				continue
			}
			x /= z
			y /= z

			xd, yd := cam.distort(x, y)

			us := fx*xd + skew*yd + cx - 0.5
			vs := fy*yd + cy - 0.5
			if math.IsNaN(us) || math.IsNaN(vs) || math.IsInf(us, 0) || math.IsInf(vs, 0) {
				us, vs = unmappable, unmappable
			}
			m.SX[i] = float32(us)
			m.SY[i] = float32(vs)
			i++
		}
	}
	return m
}

// Apply resamples src through the map into a freshly allocated image of the
// map's dimensions. Sampling is bilinear over the four neighboring source
// pixels; coordinates outside the source bounds produce black. Neither the
// map nor src is mutated.
func (m *Map) Apply(src *Image) *Image {
	dst := NewImage(m.W, m.H)

	w, h := src.W, src.H
	maxX := float32(w - 1)
	maxY := float32(h - 1)
	pix := src.Pix

	for i := range dst.Pix {
		sx := m.SX[i]
		sy := m.SY[i]
		if sx < 0 || sy < 0 || sx > maxX || sy > maxY {
			continue
		}

		x0 := int(sx)
		y0 := int(sy)
		fx := sx - float32(x0)
		fy := sy - float32(y0)

		x1 := x0 + 1
		if x1 >= w {
			x1 = x0
		}
		y1 := y0 + 1
		if y1 >= h {
			y1 = y0
		}

		top := pix[y0*w+x0]*(1-fx) + pix[y0*w+x1]*fx
		bot := pix[y1*w+x0]*(1-fx) + pix[y1*w+x1]*fx
		dst.Pix[i] = top*(1-fy) + bot*fy
	}
	return dst
}
