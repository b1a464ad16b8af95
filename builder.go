package camstream

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type variant int

const (
	variantUnset variant = iota
	variantMono
	variantStereo
)

func (v variant) String() string {
	switch v {
	case variantMono:
		return "mono"
	case variantStereo:
		return "stereo"
	default:
		return "unset"
	}
}

type rectifMode int

const (
	rectifUnset rectifMode = iota
	rectifMono
	rectifStereo
	rectifOff
)

// maxDimension bounds the configurable capture resolution.
const maxDimension = 8192

// CamStreamBuilder assembles a capture stream step by step: select the
// variant, point it at device paths, choose a rectification mode, tune
// capture parameters, then build.
//
// Every setter validates its input immediately and records the first
// failure of each configuration stage; the terminal BuildMono/BuildStereo
// call reports the recorded errors in a fixed order (variant misuse, paths,
// rectification, capture parameters, device open), so a broken chain fails
// with the earliest relevant cause rather than the last setter touched.
//
// A builder may be reused; every successful build opens fresh devices.
type CamStreamBuilder struct {
	variant variant

	monoPath  string
	leftPath  string
	rightPath string

	rectif      rectifMode
	rectifPicks int
	monoModel   CalibrationModel
	stereoCalib StereoCalibration

	params CaptureParameters

	skewTolerance    time.Duration
	skewToleranceSet bool
	skewRetries      int
	skewRetriesSet   bool

	open  SourceOpener
	codec FrameCodec

	errVariant error
	errPath    error
	errRectif  error
	errParams  error
}

// NewBuilder returns a builder with default capture parameters (640x480
// YUYV at 10 FPS, 2 buffers), the V4L2 source opener and the built-in
// codec.
func NewBuilder() *CamStreamBuilder {
	return &CamStreamBuilder{
		params: DefaultCaptureParameters(),
		open:   NewV4L2Source,
		codec:  DefaultCodec,
	}
}

// record keeps the first error of a configuration stage. Later failures in
// the same stage are logged and dropped so the build reports the root
// cause.
func record(slot *error, err error) {
	if *slot == nil {
		*slot = err
		return
	}
	slog.Debug("camstream: builder error suppressed by earlier failure", "err", err)
}

func (b *CamStreamBuilder) needVariant(want variant, option string) bool {
	switch {
	case b.variant == variantUnset:
		record(&b.errVariant, &ConfigurationError{
			Field:  option,
			Reason: "select Mono or Stereo before other options",
		})
		return false
	case b.variant != want:
		record(&b.errVariant, &ConfigurationError{
			Field:  option,
			Reason: fmt.Sprintf("%s-only option on a %s builder", want, b.variant),
		})
		return false
	}
	return true
}

func (b *CamStreamBuilder) needAnyVariant(option string) bool {
	if b.variant == variantUnset {
		record(&b.errVariant, &ConfigurationError{
			Field:  option,
			Reason: "select Mono or Stereo before other options",
		})
		return false
	}
	return true
}

// Mono shapes the builder for a single camera. The choice is final:
// selecting a variant twice, or mixing variants, is a configuration error.
func (b *CamStreamBuilder) Mono() *CamStreamBuilder {
	if b.variant != variantUnset {
		record(&b.errVariant, &ConfigurationError{
			Field:  "variant",
			Reason: fmt.Sprintf("%s already selected", b.variant),
		})
		return b
	}
	b.variant = variantMono
	return b
}

// Stereo shapes the builder for a left/right camera pair. The choice is
// final, like Mono.
func (b *CamStreamBuilder) Stereo() *CamStreamBuilder {
	if b.variant != variantUnset {
		record(&b.errVariant, &ConfigurationError{
			Field:  "variant",
			Reason: fmt.Sprintf("%s already selected", b.variant),
		})
		return b
	}
	b.variant = variantStereo
	return b
}

// checkDevicePath validates a device path at configuration time. Local
// paths must exist and be character devices; anything with a URL scheme is
// left for the source opener to judge.
func checkDevicePath(field, path string) error {
	if path == "" {
		return &ConfigurationError{Field: field, Reason: "must not be empty"}
	}
	if strings.Contains(path, "://") {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return &DeviceError{Path: path, Err: err}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return &DeviceError{Path: path, Err: fmt.Errorf("not a character device")}
	}
	return nil
}

// Path sets the device path of a mono stream, validated immediately.
func (b *CamStreamBuilder) Path(path string) *CamStreamBuilder {
	if !b.needVariant(variantMono, "Path") {
		return b
	}
	if err := checkDevicePath("path", path); err != nil {
		record(&b.errPath, err)
		return b
	}
	b.monoPath = path
	return b
}

// LeftPath sets the left device path of a stereo stream, validated
// immediately.
func (b *CamStreamBuilder) LeftPath(path string) *CamStreamBuilder {
	if !b.needVariant(variantStereo, "LeftPath") {
		return b
	}
	if err := checkDevicePath("left_path", path); err != nil {
		record(&b.errPath, err)
		return b
	}
	b.leftPath = path
	return b
}

// RightPath sets the right device path of a stereo stream, validated
// immediately.
func (b *CamStreamBuilder) RightPath(path string) *CamStreamBuilder {
	if !b.needVariant(variantStereo, "RightPath") {
		return b
	}
	if err := checkDevicePath("right_path", path); err != nil {
		record(&b.errPath, err)
		return b
	}
	b.rightPath = path
	return b
}

// pickRectif claims the single rectification-mode slot.
func (b *CamStreamBuilder) pickRectif(mode rectifMode) bool {
	b.rectifPicks++
	if b.rectifPicks > 1 {
		record(&b.errRectif, &ConfigurationError{
			Field:  "rectification",
			Reason: "mode already selected; choose exactly one of the rectification options",
		})
		return false
	}
	b.rectif = mode
	return true
}

// RectifParams supplies the calibration model of a mono stream directly.
// Exactly one rectification mode must be chosen before building;
// NoRectification is the explicit opt-out.
func (b *CamStreamBuilder) RectifParams(model CalibrationModel) *CamStreamBuilder {
	if !b.needVariant(variantMono, "RectifParams") {
		return b
	}
	if !b.pickRectif(rectifMono) {
		return b
	}
	if err := model.Validate(); err != nil {
		record(&b.errRectif, &CalibrationError{Source: "model", Err: err})
		return b
	}
	b.monoModel = model
	return b
}

// RectifParamsFromFile loads the calibration model of a mono stream from a
// TOML, YAML or JSON file. File and validation problems are recorded as
// *CalibrationError.
func (b *CamStreamBuilder) RectifParamsFromFile(path string) *CamStreamBuilder {
	if !b.needVariant(variantMono, "RectifParamsFromFile") {
		return b
	}
	if !b.pickRectif(rectifMono) {
		return b
	}
	model, err := LoadCalibration(path)
	if err != nil {
		record(&b.errRectif, err)
		return b
	}
	b.monoModel = *model
	return b
}

// StereoRectifParams supplies both calibration models of a stereo rig
// directly.
func (b *CamStreamBuilder) StereoRectifParams(calib StereoCalibration) *CamStreamBuilder {
	if !b.needVariant(variantStereo, "StereoRectifParams") {
		return b
	}
	if !b.pickRectif(rectifStereo) {
		return b
	}
	if err := calib.Left.Validate(); err != nil {
		record(&b.errRectif, &CalibrationError{Source: "left", Err: err})
		return b
	}
	if err := calib.Right.Validate(); err != nil {
		record(&b.errRectif, &CalibrationError{Source: "right", Err: err})
		return b
	}
	b.stereoCalib = calib
	return b
}

// StereoRectifParamsFromFile loads a stereo calibration document with
// [left] and [right] sections.
func (b *CamStreamBuilder) StereoRectifParamsFromFile(path string) *CamStreamBuilder {
	if !b.needVariant(variantStereo, "StereoRectifParamsFromFile") {
		return b
	}
	if !b.pickRectif(rectifStereo) {
		return b
	}
	calib, err := LoadStereoCalibration(path)
	if err != nil {
		record(&b.errRectif, err)
		return b
	}
	b.stereoCalib = *calib
	return b
}

// NoRectification opts out of rectification: captures return decoded
// frames untouched.
func (b *CamStreamBuilder) NoRectification() *CamStreamBuilder {
	if !b.needAnyVariant("NoRectification") {
		return b
	}
	b.pickRectif(rectifOff)
	return b
}

// Interval sets the frame interval as a rational number of seconds;
// {1, 30} requests 30 FPS.
func (b *CamStreamBuilder) Interval(num, den uint32) *CamStreamBuilder {
	if !b.needAnyVariant("Interval") {
		return b
	}
	if num == 0 || den == 0 {
		record(&b.errParams, &ConfigurationError{
			Field:  "interval",
			Reason: fmt.Sprintf("numerator and denominator must be positive, got %d/%d", num, den),
		})
		return b
	}
	b.params.Interval = Interval{Num: num, Den: den}
	return b
}

// Resolution sets the capture resolution. Rectified output uses the same
// dimensions.
func (b *CamStreamBuilder) Resolution(width, height int) *CamStreamBuilder {
	if !b.needAnyVariant("Resolution") {
		return b
	}
	if width <= 0 || height <= 0 || width > maxDimension || height > maxDimension {
		record(&b.errParams, &ConfigurationError{
			Field:  "resolution",
			Reason: fmt.Sprintf("width and height must be within 1..%d, got %dx%d", maxDimension, width, height),
		})
		return b
	}
	b.params.Width = width
	b.params.Height = height
	return b
}

// Format sets the pixel format requested from the device. The format must
// be decodable by the configured codec; when swapping in a custom codec,
// call WithCodec before Format.
func (b *CamStreamBuilder) Format(format FourCC) *CamStreamBuilder {
	if !b.needAnyVariant("Format") {
		return b
	}
	if !b.codec.Supports(format) {
		record(&b.errParams, &ConfigurationError{
			Field:  "format",
			Reason: fmt.Sprintf("format %q not supported by the codec", format),
		})
		return b
	}
	b.params.Format = format
	return b
}

// Buffers sets the number of driver buffers per device.
func (b *CamStreamBuilder) Buffers(n int) *CamStreamBuilder {
	if !b.needAnyVariant("Buffers") {
		return b
	}
	if n < 1 || n > 32 {
		record(&b.errParams, &ConfigurationError{
			Field:  "buffers",
			Reason: fmt.Sprintf("must be within 1..32, got %d", n),
		})
		return b
	}
	b.params.Buffers = n
	return b
}

// SkewTolerance sets the maximum acceptable timestamp skew between the two
// grabs of a stereo pair. Required for stereo builds; zero demands exactly
// matching timestamps.
func (b *CamStreamBuilder) SkewTolerance(d time.Duration) *CamStreamBuilder {
	if !b.needVariant(variantStereo, "SkewTolerance") {
		return b
	}
	if d < 0 {
		record(&b.errParams, &ConfigurationError{
			Field:  "skew_tolerance",
			Reason: fmt.Sprintf("must not be negative, got %v", d),
		})
		return b
	}
	b.skewTolerance = d
	b.skewToleranceSet = true
	return b
}

// SkewRetries sets how many extra pair grabs a stereo capture may spend to
// get under the skew tolerance. Required for stereo builds; zero means a
// single attempt.
func (b *CamStreamBuilder) SkewRetries(n int) *CamStreamBuilder {
	if !b.needVariant(variantStereo, "SkewRetries") {
		return b
	}
	if n < 0 {
		record(&b.errParams, &ConfigurationError{
			Field:  "skew_retries",
			Reason: fmt.Sprintf("must not be negative, got %d", n),
		})
		return b
	}
	b.skewRetries = n
	b.skewRetriesSet = true
	return b
}

// WithSource swaps the capture-source opener. The default opens V4L2
// devices; package gstsource provides an RTSP opener, and tests inject
// fakes here.
func (b *CamStreamBuilder) WithSource(open SourceOpener) *CamStreamBuilder {
	if !b.needAnyVariant("WithSource") {
		return b
	}
	if open == nil {
		record(&b.errParams, &ConfigurationError{Field: "source", Reason: "opener must not be nil"})
		return b
	}
	b.open = open
	return b
}

// WithCodec swaps the frame codec.
func (b *CamStreamBuilder) WithCodec(codec FrameCodec) *CamStreamBuilder {
	if !b.needAnyVariant("WithCodec") {
		return b
	}
	if codec == nil {
		record(&b.errParams, &ConfigurationError{Field: "codec", Reason: "must not be nil"})
		return b
	}
	b.codec = codec
	return b
}

// prebuild surfaces recorded and deferred validation errors in the fixed
// stage order. Devices are only opened once it returns nil.
func (b *CamStreamBuilder) prebuild(want variant) error {
	// Stage 1: variant.
	if b.errVariant != nil {
		return b.errVariant
	}
	if b.variant == variantUnset {
		return &ConfigurationError{Field: "variant", Reason: "select Mono or Stereo before building"}
	}
	if b.variant != want {
		return &ConfigurationError{
			Field:  "variant",
			Reason: fmt.Sprintf("cannot build a %s stream from a %s builder", want, b.variant),
		}
	}

	// Stage 2: paths.
	if b.errPath != nil {
		return b.errPath
	}
	switch b.variant {
	case variantMono:
		if b.monoPath == "" {
			return &ConfigurationError{Field: "path", Reason: "not set"}
		}
	case variantStereo:
		if b.leftPath == "" {
			return &ConfigurationError{Field: "left_path", Reason: "not set"}
		}
		if b.rightPath == "" {
			return &ConfigurationError{Field: "right_path", Reason: "not set"}
		}
	}

	// Stage 3: rectification.
	if b.errRectif != nil {
		return b.errRectif
	}
	if b.rectifPicks == 0 {
		return &ConfigurationError{
			Field:  "rectification",
			Reason: "no mode selected; supply calibration or call NoRectification",
		}
	}

	// Stage 4: capture parameters and collaborators.
	if b.errParams != nil {
		return b.errParams
	}
	if !b.codec.Supports(b.params.Format) {
		return &ConfigurationError{
			Field:  "format",
			Reason: fmt.Sprintf("format %q not supported by the codec", b.params.Format),
		}
	}
	if b.variant == variantStereo {
		if !b.skewToleranceSet {
			return &ConfigurationError{Field: "skew_tolerance", Reason: "required for stereo streams"}
		}
		if !b.skewRetriesSet {
			return &ConfigurationError{Field: "skew_retries", Reason: "required for stereo streams"}
		}
	}

	// Stage 5: calibration against the configured resolution.
	switch b.rectif {
	case rectifMono:
		if err := b.monoModel.matchesResolution(b.params.Width, b.params.Height); err != nil {
			return &CalibrationError{Source: "model", Err: err}
		}
	case rectifStereo:
		if err := b.stereoCalib.Left.matchesResolution(b.params.Width, b.params.Height); err != nil {
			return &CalibrationError{Source: "left", Err: err}
		}
		if err := b.stereoCalib.Right.matchesResolution(b.params.Width, b.params.Height); err != nil {
			return &CalibrationError{Source: "right", Err: err}
		}
	}
	return nil
}

// BuildMono validates the configuration, precomputes the rectification map
// and opens the device. On failure nothing stays open.
func (b *CamStreamBuilder) BuildMono() (*MonoCamStream, error) {
	if err := b.prebuild(variantMono); err != nil {
		return nil, err
	}

	var rmap *RectificationMap
	if b.rectif == rectifMono {
		m, err := ComputeRectificationMap(&b.monoModel, b.params.Width, b.params.Height)
		if err != nil {
			return nil, err
		}
		rmap = m
	}

	src, err := b.open(b.monoPath, b.params)
	if err != nil {
		return nil, &DeviceError{Path: b.monoPath, Err: err}
	}

	slog.Info("camstream: mono stream built",
		"path", b.monoPath,
		"resolution", fmt.Sprintf("%dx%d", b.params.Width, b.params.Height),
		"format", b.params.Format.String(),
		"interval", b.params.Interval.String(),
		"rectified", rmap != nil,
	)
	return &MonoCamStream{
		cam:    sensor{path: b.monoPath, src: src, rmap: rmap},
		codec:  b.codec,
		params: b.params,
	}, nil
}

// BuildStereo validates the configuration, precomputes both rectification
// maps and opens both devices. If the right device fails to open, the left
// one is closed before returning: a stereo stream exists whole or not at
// all.
func (b *CamStreamBuilder) BuildStereo() (*StereoCamStream, error) {
	if err := b.prebuild(variantStereo); err != nil {
		return nil, err
	}

	var lmap, rmap *RectificationMap
	if b.rectif == rectifStereo {
		m, err := ComputeRectificationMap(&b.stereoCalib.Left, b.params.Width, b.params.Height)
		if err != nil {
			return nil, err
		}
		lmap = m
		m, err = ComputeRectificationMap(&b.stereoCalib.Right, b.params.Width, b.params.Height)
		if err != nil {
			return nil, err
		}
		rmap = m
	}

	leftSrc, err := b.open(b.leftPath, b.params)
	if err != nil {
		return nil, &DeviceError{Path: b.leftPath, Err: err}
	}
	rightSrc, err := b.open(b.rightPath, b.params)
	if err != nil {
		if cerr := leftSrc.Close(); cerr != nil {
			slog.Warn("camstream: closing left source after failed right open", "err", cerr)
		}
		return nil, &DeviceError{Path: b.rightPath, Err: err}
	}

	slog.Info("camstream: stereo stream built",
		"left", b.leftPath,
		"right", b.rightPath,
		"resolution", fmt.Sprintf("%dx%d", b.params.Width, b.params.Height),
		"format", b.params.Format.String(),
		"interval", b.params.Interval.String(),
		"rectified", lmap != nil,
		"skew_tolerance", b.skewTolerance,
		"skew_retries", b.skewRetries,
	)
	return &StereoCamStream{
		left:          sensor{path: b.leftPath, side: "left", src: leftSrc, rmap: lmap},
		right:         sensor{path: b.rightPath, side: "right", src: rightSrc, rmap: rmap},
		codec:         b.codec,
		params:        b.params,
		skewTolerance: b.skewTolerance,
		skewRetries:   b.skewRetries,
	}, nil
}
