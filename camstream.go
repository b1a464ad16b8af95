package camstream

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Stream is the shape shared by built capture streams, generic over the
// frame type: *Image for mono, *StereoFrame for stereo.
//
// Implementations guarantee:
//   - Capture is synchronous and returns a freshly allocated frame the
//     caller owns.
//   - A failed Capture leaves the stream usable; the next call starts
//     fresh.
//   - Stats is safe to call from any goroutine.
//   - Close is idempotent.
//
// Capture itself is not safe for concurrent use: one consumer per stream.
type Stream[F any] interface {
	Capture(ctx context.Context) (F, error)
	Stats() CaptureStats
	Close() error
}

var (
	_ Stream[*Image]       = (*MonoCamStream)(nil)
	_ Stream[*StereoFrame] = (*StereoCamStream)(nil)
)

// sensor is one side of a stream: an open source plus its precomputed
// rectification map (nil when rectification is disabled).
type sensor struct {
	path string
	side string
	src  CaptureSource
	rmap *RectificationMap
}

func (c *sensor) grab(ctx context.Context) (RawFrame, error) {
	raw, err := c.src.Grab(ctx)
	if err != nil {
		return RawFrame{}, &CaptureError{Side: c.side, Op: "grab", Err: err}
	}
	return raw, nil
}

// decode converts a raw frame and resamples it through the map. Without a
// map the decoded image passes through untouched.
func (c *sensor) decode(raw RawFrame, codec FrameCodec) (*Image, error) {
	img, err := codec.Decode(raw)
	if err != nil {
		return nil, &CaptureError{Side: c.side, Op: "decode", Err: err}
	}
	if c.rmap != nil {
		img = c.rmap.Apply(img)
	}
	return img, nil
}

// MonoCamStream captures frames from a single camera, built by
// CamStreamBuilder.BuildMono.
type MonoCamStream struct {
	cam    sensor
	codec  FrameCodec
	params CaptureParameters

	captures    atomic.Uint64
	failures    atomic.Uint64
	lastCapture atomic.Int64
	closed      atomic.Bool
}

// Capture grabs the next frame, decodes it and applies the precomputed
// rectification map when one was built.
func (s *MonoCamStream) Capture(ctx context.Context) (*Image, error) {
	raw, err := s.cam.grab(ctx)
	if err != nil {
		s.failures.Add(1)
		return nil, err
	}
	img, err := s.cam.decode(raw, s.codec)
	if err != nil {
		s.failures.Add(1)
		return nil, err
	}
	s.captures.Add(1)
	s.lastCapture.Store(time.Now().UnixNano())
	slog.Debug("camstream: frame captured",
		"path", s.cam.path, "seq", raw.Seq, "trace_id", raw.TraceID)
	return img, nil
}

// Rectified reports whether captures pass through a rectification map.
func (s *MonoCamStream) Rectified() bool { return s.cam.rmap != nil }

// Params returns the capture parameters the stream was built with.
func (s *MonoCamStream) Params() CaptureParameters { return s.params }

// Describe returns the stream's static configuration.
func (s *MonoCamStream) Describe() StreamInfo {
	return StreamInfo{
		Variant:   "mono",
		Paths:     []string{s.cam.path},
		Params:    s.params,
		Rectified: s.cam.rmap != nil,
	}
}

// Stats returns a snapshot of the capture counters.
func (s *MonoCamStream) Stats() CaptureStats {
	stats := CaptureStats{
		Captures: s.captures.Load(),
		Failures: s.failures.Load(),
	}
	if n := s.lastCapture.Load(); n != 0 {
		stats.LastCapture = time.Unix(0, n)
	}
	return stats
}

// Close releases the device. Safe to call multiple times.
func (s *MonoCamStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	slog.Info("camstream: mono stream closed", "path", s.cam.path)
	return s.cam.src.Close()
}

// StereoCamStream captures synchronized frame pairs from two cameras,
// built by CamStreamBuilder.BuildStereo. Pair synchronization and skew
// accounting live in sync.go.
type StereoCamStream struct {
	left   sensor
	right  sensor
	codec  FrameCodec
	params CaptureParameters

	skewTolerance time.Duration
	skewRetries   int

	captures     atomic.Uint64
	failures     atomic.Uint64
	retries      atomic.Uint64
	syncFailures atomic.Uint64
	lastSkew     atomic.Int64
	lastCapture  atomic.Int64
	closed       atomic.Bool
}

// Rectified reports whether captures pass through rectification maps.
func (s *StereoCamStream) Rectified() bool { return s.left.rmap != nil }

// Params returns the capture parameters the stream was built with.
func (s *StereoCamStream) Params() CaptureParameters { return s.params }

// SkewTolerance returns the configured pair skew tolerance.
func (s *StereoCamStream) SkewTolerance() time.Duration { return s.skewTolerance }

// Describe returns the stream's static configuration.
func (s *StereoCamStream) Describe() StreamInfo {
	return StreamInfo{
		Variant:       "stereo",
		Paths:         []string{s.left.path, s.right.path},
		Params:        s.params,
		Rectified:     s.left.rmap != nil,
		SkewTolerance: s.skewTolerance,
		SkewRetries:   s.skewRetries,
	}
}

// Stats returns a snapshot of the capture counters.
func (s *StereoCamStream) Stats() CaptureStats {
	stats := CaptureStats{
		Captures:     s.captures.Load(),
		Failures:     s.failures.Load(),
		Retries:      s.retries.Load(),
		SyncFailures: s.syncFailures.Load(),
		LastSkew:     time.Duration(s.lastSkew.Load()),
	}
	if n := s.lastCapture.Load(); n != 0 {
		stats.LastCapture = time.Unix(0, n)
	}
	return stats
}

// Close releases both devices. Safe to call multiple times.
func (s *StereoCamStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := errors.Join(s.left.src.Close(), s.right.src.Close())
	slog.Info("camstream: stereo stream closed",
		"left", s.left.path, "right", s.right.path)
	return err
}
