package camstream

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "configuration",
			err:  &ConfigurationError{Field: "interval", Reason: "must be positive"},
			want: "camstream: invalid configuration: interval: must be positive",
		},
		{
			name: "device",
			err:  &DeviceError{Path: "/dev/video0", Err: errors.New("busy")},
			want: "camstream: device /dev/video0: busy",
		},
		{
			name: "calibration with reason",
			err:  &CalibrationError{Source: "model", Reason: "map dimensions must be positive"},
			want: "camstream: calibration model: map dimensions must be positive",
		},
		{
			name: "calibration with cause",
			err:  &CalibrationError{Source: "left.toml", Err: errors.New("no such file")},
			want: "camstream: calibration left.toml: no such file",
		},
		{
			name: "calibration with both",
			err:  &CalibrationError{Source: "left.toml", Reason: "decode", Err: errors.New("bad toml")},
			want: "camstream: calibration left.toml: decode: bad toml",
		},
		{
			name: "capture with side",
			err:  &CaptureError{Side: "left", Op: "grab", Err: errors.New("gone")},
			want: "camstream: left grab failed: gone",
		},
		{
			name: "capture without side",
			err:  &CaptureError{Op: "decode", Err: errors.New("short frame")},
			want: "camstream: decode failed: short frame",
		},
		{
			name: "synchronization",
			err:  &SynchronizationError{Skew: 50 * time.Millisecond, Tolerance: 10 * time.Millisecond, Attempts: 3},
			want: "camstream: stereo pair outside skew tolerance after 3 attempt(s): skew 50ms, tolerance 10ms",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("root cause")

	t.Run("device", func(t *testing.T) {
		err := fmt.Errorf("context: %w", &DeviceError{Path: "/dev/video0", Err: cause})
		var devErr *DeviceError
		if !errors.As(err, &devErr) {
			t.Fatal("errors.As failed to find *DeviceError")
		}
		if !errors.Is(err, cause) {
			t.Error("errors.Is failed to reach the cause")
		}
	})

	t.Run("capture", func(t *testing.T) {
		err := &CaptureError{Side: "right", Op: "grab", Err: cause}
		if !errors.Is(err, cause) {
			t.Error("errors.Is failed to reach the cause")
		}
	})

	t.Run("calibration", func(t *testing.T) {
		err := &CalibrationError{Source: "calib.toml", Err: cause}
		if !errors.Is(err, cause) {
			t.Error("errors.Is failed to reach the cause")
		}
	})
}
