package camstream

import (
	"fmt"
	"time"
)

// FourCC is a four character pixel format code as used by V4L2, e.g. "YUYV".
type FourCC [4]byte

// Pixel formats understood by the built-in codec.
var (
	// FormatYUYV is packed YUV 4:2:2 (two bytes per pixel, luma first).
	FormatYUYV = FourCC{'Y', 'U', 'Y', 'V'}
	// FormatMJPG is motion JPEG (each frame is a standalone JPEG image).
	FormatMJPG = FourCC{'M', 'J', 'P', 'G'}
	// FormatGREY is 8-bit single channel grayscale.
	FormatGREY = FourCC{'G', 'R', 'E', 'Y'}
	// FormatRGB3 is packed 24-bit RGB.
	FormatRGB3 = FourCC{'R', 'G', 'B', '3'}
)

// ParseFourCC converts a 4-character string such as "MJPG" into a FourCC.
func ParseFourCC(s string) (FourCC, error) {
	if len(s) != 4 {
		return FourCC{}, fmt.Errorf("camstream: fourcc must be exactly 4 characters, got %q", s)
	}
	var f FourCC
	copy(f[:], s)
	return f, nil
}

// String returns the code as a 4-character string.
func (f FourCC) String() string { return string(f[:]) }

// Interval is a frame interval expressed as a rational number of seconds
// (Num/Den). {1, 10} means one frame every tenth of a second, i.e. 10 FPS.
type Interval struct {
	Num uint32
	Den uint32
}

// FPS returns the equivalent frame rate. An interval with a zero numerator
// returns 0.
func (i Interval) FPS() float64 {
	if i.Num == 0 {
		return 0
	}
	return float64(i.Den) / float64(i.Num)
}

// String returns the interval as "num/den".
func (i Interval) String() string { return fmt.Sprintf("%d/%d", i.Num, i.Den) }

// CaptureParameters holds the negotiated capture settings shared by every
// sensor of a stream. The zero value is not valid; start from
// DefaultCaptureParameters.
type CaptureParameters struct {
	// Interval is the requested frame interval.
	Interval Interval
	// Width and Height are the capture resolution in pixels. Rectified
	// output uses the same dimensions.
	Width  int
	Height int
	// Format is the pixel format requested from the device.
	Format FourCC
	// Buffers is the number of driver buffers to allocate.
	Buffers int
}

// DefaultCaptureParameters returns the settings a builder starts from:
// 640x480 YUYV at 10 FPS with 2 buffers.
func DefaultCaptureParameters() CaptureParameters {
	return CaptureParameters{
		Interval: Interval{Num: 1, Den: 10},
		Width:    640,
		Height:   480,
		Format:   FormatYUYV,
		Buffers:  2,
	}
}

// RawFrame is one undecoded frame as delivered by a capture source.
type RawFrame struct {
	// Seq is the source-local monotonic sequence number.
	Seq uint64
	// Timestamp is when the frame was dequeued from the device.
	Timestamp time.Time
	// Width and Height are the frame dimensions reported by the source.
	Width  int
	Height int
	// Format is the pixel format of Data.
	Format FourCC
	// Data is the raw frame payload. Sources hand over an owned copy.
	Data []byte
	// TraceID is a unique identifier for correlating a frame across logs.
	TraceID string
}

// CaptureStats is a snapshot of a stream's capture counters. All fields are
// cumulative since the stream was built; stereo-only fields stay zero on
// mono streams.
type CaptureStats struct {
	// Captures is the number of successful Capture calls.
	Captures uint64
	// Failures is the number of Capture calls that returned an error.
	Failures uint64
	// Retries is the number of stereo pair grabs repeated for skew.
	Retries uint64
	// SyncFailures is the number of captures abandoned with a
	// SynchronizationError.
	SyncFailures uint64
	// LastSkew is the pair skew measured by the most recent stereo grab.
	LastSkew time.Duration
	// LastCapture is when the most recent successful capture finished,
	// zero until the first one.
	LastCapture time.Time
}

// StreamInfo describes a built stream: its shape, device paths and the
// settings it was built with. Returned by Describe.
type StreamInfo struct {
	// Variant is "mono" or "stereo".
	Variant string
	// Paths holds the device path, or the left and right paths in order.
	Paths []string
	// Params are the capture parameters shared by every sensor.
	Params CaptureParameters
	// Rectified reports whether captures pass through rectification maps.
	Rectified bool
	// SkewTolerance and SkewRetries are the stereo pairing knobs; zero on
	// mono streams.
	SkewTolerance time.Duration
	SkewRetries   int
}
