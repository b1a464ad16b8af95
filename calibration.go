package camstream

import (
	"fmt"
	"math"

	"github.com/duncanrhamill/cv-camstream/internal/calibio"
	"github.com/duncanrhamill/cv-camstream/internal/rectify"
)

// Matrix3 is a row-major 3x3 matrix, used for camera intrinsics, rectifying
// rotations and projection matrices.
type Matrix3 = rectify.Matrix3

// CalibrationModel describes one camera: its intrinsic matrix, lens
// distortion, the resolution it was calibrated at, and (for stereo rigs)
// the rectifying rotation and new projection produced by stereo
// calibration.
type CalibrationModel struct {
	// Intrinsics is the 3x3 camera matrix:
	//
	//	fx  s   cx
	//	0   fy  cy
	//	0   0   1
	Intrinsics Matrix3
	// Distortion holds Brown-Conrady coefficients in the order
	// k1, k2, p1, p2, k3, k4, k5, k6. Lengths 0, 1, 2, 4, 5 and 8 are
	// accepted; missing coefficients are treated as zero.
	Distortion []float64
	// ImageWidth and ImageHeight are the resolution the model was
	// calibrated at. Zero means unknown: the builder then skips the
	// resolution cross-check.
	ImageWidth  int
	ImageHeight int
	// Rotation is the rectifying rotation for epipolar alignment, or nil
	// for identity.
	Rotation *Matrix3
	// Projection is the camera matrix of the rectified view, or nil to
	// reuse Intrinsics.
	Projection *Matrix3
}

// StereoCalibration pairs the per-side models of a stereo rig.
type StereoCalibration struct {
	Left  CalibrationModel
	Right CalibrationModel
}

// Validate checks the model is numerically usable. It is called by the
// builder; library users only need it when constructing models by hand.
func (m *CalibrationModel) Validate() error {
	if !m.Intrinsics.IsFinite() {
		return fmt.Errorf("camera matrix has non-finite elements")
	}
	fx, fy := m.Intrinsics[0], m.Intrinsics[4]
	if fx == 0 || fy == 0 {
		return fmt.Errorf("focal lengths must be nonzero, got fx=%v fy=%v", fx, fy)
	}
	if m.Intrinsics[6] != 0 || m.Intrinsics[7] != 0 || m.Intrinsics[8] != 1 {
		return fmt.Errorf("camera matrix bottom row must be [0 0 1], got [%v %v %v]",
			m.Intrinsics[6], m.Intrinsics[7], m.Intrinsics[8])
	}
	switch len(m.Distortion) {
	case 0, 1, 2, 4, 5, 8:
	default:
		return fmt.Errorf("distortion must have 0, 1, 2, 4, 5 or 8 coefficients, got %d", len(m.Distortion))
	}
	for i, d := range m.Distortion {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("distortion coefficient %d is not finite", i)
		}
	}
	if m.ImageWidth < 0 || m.ImageHeight < 0 {
		return fmt.Errorf("image size must not be negative, got %dx%d", m.ImageWidth, m.ImageHeight)
	}
	if m.Rotation != nil {
		if !m.Rotation.IsFinite() {
			return fmt.Errorf("rotation has non-finite elements")
		}
		if !m.Rotation.IsRotation(1e-6) {
			return fmt.Errorf("rotation is not orthonormal")
		}
	}
	if m.Projection != nil {
		if !m.Projection.IsFinite() {
			return fmt.Errorf("projection has non-finite elements")
		}
		if (*m.Projection)[0] == 0 || (*m.Projection)[4] == 0 {
			return fmt.Errorf("projection focal lengths must be nonzero")
		}
	}
	return nil
}

// Validate checks both sides of the rig.
func (c *StereoCalibration) Validate() error {
	if err := c.Left.Validate(); err != nil {
		return fmt.Errorf("left: %w", err)
	}
	if err := c.Right.Validate(); err != nil {
		return fmt.Errorf("right: %w", err)
	}
	return nil
}

// matchesResolution checks the calibrated size against the configured
// capture resolution. Models with an unknown size always match.
func (m *CalibrationModel) matchesResolution(w, h int) error {
	if m.ImageWidth == 0 && m.ImageHeight == 0 {
		return nil
	}
	if m.ImageWidth != w || m.ImageHeight != h {
		return fmt.Errorf("calibrated for %dx%d but capture resolution is %dx%d",
			m.ImageWidth, m.ImageHeight, w, h)
	}
	return nil
}

// camera lowers the model into the rectification engine's form.
func (m *CalibrationModel) camera() rectify.Camera {
	return rectify.Camera{
		K:    m.Intrinsics,
		Dist: m.Distortion,
		R:    m.Rotation,
		P:    m.Projection,
	}
}

// LoadCalibration reads a single-camera calibration from a TOML, YAML or
// JSON file (chosen by extension) and validates it. Failures are reported
// as *CalibrationError.
func LoadCalibration(path string) (*CalibrationModel, error) {
	cam, err := calibio.ReadCamera(path)
	if err != nil {
		return nil, &CalibrationError{Source: path, Err: err}
	}
	model := fromCalibio(cam)
	if err := model.Validate(); err != nil {
		return nil, &CalibrationError{Source: path, Err: err}
	}
	return &model, nil
}

// LoadStereoCalibration reads a two-camera calibration with [left] and
// [right] sections and validates both sides. Failures are reported as
// *CalibrationError.
func LoadStereoCalibration(path string) (*StereoCalibration, error) {
	left, right, err := calibio.ReadStereo(path)
	if err != nil {
		return nil, &CalibrationError{Source: path, Err: err}
	}
	calib := &StereoCalibration{Left: fromCalibio(left), Right: fromCalibio(right)}
	if err := calib.Validate(); err != nil {
		return nil, &CalibrationError{Source: path, Err: err}
	}
	return calib, nil
}

func fromCalibio(c *calibio.Camera) CalibrationModel {
	m := CalibrationModel{
		Intrinsics:  Matrix3(c.CameraMatrix),
		Distortion:  c.Distortion,
		ImageWidth:  c.ImageWidth,
		ImageHeight: c.ImageHeight,
	}
	if c.Rotation != nil {
		r := Matrix3(*c.Rotation)
		m.Rotation = &r
	}
	if c.Projection != nil {
		p := Matrix3(*c.Projection)
		m.Projection = &p
	}
	return m
}
