package rectify

// Camera bundles the numeric model a rectification map is built from. The
// caller validates it; this package assumes the fields are consistent.
type Camera struct {
	// K is the intrinsic camera matrix of the physical sensor.
	K Matrix3
	// Dist holds Brown-Conrady distortion coefficients in the order
	// k1, k2, p1, p2, k3, k4, k5, k6. Any prefix length in
	// {0, 1, 2, 4, 5, 8} is accepted; missing coefficients are zero.
	Dist []float64
	// R is the rectifying rotation applied to the sensor, or nil for
	// identity. Stereo alignment sets this per side.
	R *Matrix3
	// P is the projection matrix of the rectified view, or nil to reuse K.
	P *Matrix3
}

func (c Camera) coeffs() (k1, k2, p1, p2, k3, k4, k5, k6 float64) {
	d := c.Dist
	get := func(i int) float64 {
		if i < len(d) {
			return d[i]
		}
		return 0
	}
	return get(0), get(1), get(2), get(3), get(4), get(5), get(6), get(7)
}

// distort applies the forward Brown-Conrady model to normalized image
// coordinates, returning the distorted normalized coordinates.
func (c Camera) distort(x, y float64) (float64, float64) {
	k1, k2, p1, p2, k3, k4, k5, k6 := c.coeffs()

	r2 := x*x + y*y
	r4 := r2 * r2
	r6 := r4 * r2

	radial := 1 + k1*r2 + k2*r4 + k3*r6
	if k4 != 0 || k5 != 0 || k6 != 0 {
		radial /= 1 + k4*r2 + k5*r4 + k6*r6
	}

	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y
	return xd, yd
}
