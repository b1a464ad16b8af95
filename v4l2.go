package camstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
)

// NewV4L2Source opens a V4L2 capture device with the given parameters and
// starts streaming. It is the builder's default source opener; use
// WithSource to swap it out.
//
// V4L2 stream parameters take an integral frame rate, so intervals slower
// than one frame per second are clamped to 1 FPS.
func NewV4L2Source(path string, params CaptureParameters) (CaptureSource, error) {
	pixFmt := v4l2.PixelFmtYUYV
	switch params.Format {
	case FormatYUYV:
	case FormatMJPG:
		pixFmt = v4l2.PixelFmtMJPEG
	case FormatGREY:
		pixFmt = v4l2.PixelFmtGrey
	case FormatRGB3:
		pixFmt = v4l2.PixelFmtRGB24
	default:
		return nil, fmt.Errorf("no V4L2 mapping for pixel format %q", params.Format)
	}

	fps := params.Interval.FPS()
	if fps < 1 {
		fps = 1
	}

	dev, err := device.Open(path,
		device.WithPixFormat(v4l2.PixFormat{
			Width:       uint32(params.Width),
			Height:      uint32(params.Height),
			PixelFormat: pixFmt,
			Field:       v4l2.FieldNone,
		}),
		device.WithFPS(uint32(fps+0.5)),
		device.WithBufferSize(uint32(params.Buffers)),
	)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}

	// The streaming goroutine is tied to this context, not to any single
	// Grab; Close cancels it.
	ctx, cancel := context.WithCancel(context.Background())
	if err := dev.Start(ctx); err != nil {
		cancel()
		_ = dev.Close()
		return nil, fmt.Errorf("start streaming: %w", err)
	}

	slog.Debug("camstream: v4l2 device opened",
		"path", path,
		"resolution", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"format", params.Format.String(),
		"buffers", params.Buffers,
	)
	return &v4l2Source{
		path:   path,
		dev:    dev,
		cancel: cancel,
		frames: dev.GetOutput(),
		format: params.Format,
		width:  params.Width,
		height: params.Height,
	}, nil
}

// v4l2Source adapts go4vl's channel of frame buffers to the CaptureSource
// contract.
type v4l2Source struct {
	path   string
	dev    *device.Device
	cancel context.CancelFunc
	frames <-chan []byte
	format FourCC
	width  int
	height int
	seq    atomic.Uint64
	closed atomic.Bool
}

// Grab first drains frames that buffered up while the caller was busy,
// then blocks for the next one, so the returned frame is the freshest the
// device has.
func (s *v4l2Source) Grab(ctx context.Context) (RawFrame, error) {
drain:
	for {
		select {
		case _, ok := <-s.frames:
			if !ok {
				return RawFrame{}, fmt.Errorf("device %s: stream closed", s.path)
			}
		default:
			break drain
		}
	}

	select {
	case data, ok := <-s.frames:
		if !ok {
			return RawFrame{}, fmt.Errorf("device %s: stream closed", s.path)
		}
		// The transport may reuse its buffer for the next frame.
		owned := make([]byte, len(data))
		copy(owned, data)
		return RawFrame{
			Seq:       s.seq.Add(1),
			Timestamp: time.Now(),
			Width:     s.width,
			Height:    s.height,
			Format:    s.format,
			Data:      owned,
			TraceID:   uuid.NewString(),
		}, nil
	case <-ctx.Done():
		return RawFrame{}, ctx.Err()
	}
}

// Close stops streaming and releases the device. Safe to call multiple
// times.
func (s *v4l2Source) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	return s.dev.Close()
}
