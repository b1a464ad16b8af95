package camstream

import (
	"fmt"
	"time"
)

// ConfigurationError reports builder misuse: a setter called out of order,
// an invalid value, or a missing required option discovered at build time.
type ConfigurationError struct {
	// Field names the builder option at fault (e.g. "variant", "left_path",
	// "interval", "skew_tolerance").
	Field string
	// Reason describes what is wrong with it.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("camstream: invalid configuration: %s: %s", e.Field, e.Reason)
}

// DeviceError reports a capture device that could not be validated, opened
// or negotiated.
type DeviceError struct {
	// Path is the device path (e.g. "/dev/video0").
	Path string
	// Err is the underlying failure.
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camstream: device %s: %v", e.Path, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// CalibrationError reports an unusable calibration parameter source: a file
// that cannot be read or decoded, a model that fails validation, or a model
// whose calibrated size disagrees with the configured resolution.
type CalibrationError struct {
	// Source identifies where the model came from: a file path, or "model",
	// "left", "right" for models supplied directly.
	Source string
	// Reason describes the problem when there is no underlying error.
	Reason string
	// Err is the underlying decode or I/O failure, if any.
	Err error
}

func (e *CalibrationError) Error() string {
	switch {
	case e.Err != nil && e.Reason != "":
		return fmt.Sprintf("camstream: calibration %s: %s: %v", e.Source, e.Reason, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("camstream: calibration %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("camstream: calibration %s: %s", e.Source, e.Reason)
	}
}

func (e *CalibrationError) Unwrap() error { return e.Err }

// CaptureError reports a failed frame acquisition or decode on a built
// stream. The stream remains usable; the next Capture starts fresh.
type CaptureError struct {
	// Side is "left" or "right" for stereo streams, empty for mono.
	Side string
	// Op is the phase that failed: "grab" or "decode".
	Op string
	// Err is the underlying failure.
	Err error
}

func (e *CaptureError) Error() string {
	if e.Side != "" {
		return fmt.Sprintf("camstream: %s %s failed: %v", e.Side, e.Op, e.Err)
	}
	return fmt.Sprintf("camstream: %s failed: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// SynchronizationError reports a stereo capture whose grab pairs stayed
// outside the skew tolerance for every attempt in the retry budget.
type SynchronizationError struct {
	// Skew is the absolute timestamp difference of the final attempt.
	Skew time.Duration
	// Tolerance is the configured maximum acceptable skew.
	Tolerance time.Duration
	// Attempts is the total number of pair grabs performed.
	Attempts int
}

func (e *SynchronizationError) Error() string {
	return fmt.Sprintf("camstream: stereo pair outside skew tolerance after %d attempt(s): skew %v, tolerance %v",
		e.Attempts, e.Skew, e.Tolerance)
}
