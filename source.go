package camstream

import "context"

// CaptureSource is one open capture device delivering raw frames. The
// built-in implementations are the V4L2 source (default) and the GStreamer
// RTSP source in package gstsource; tests inject fakes through the same
// seam.
//
// Implementations must guarantee:
//   - Grab blocks until a frame is available, ctx is done, or the device
//     fails; it returns the freshest frame, not a stale buffered one.
//   - The returned RawFrame owns its Data (no reuse across grabs).
//   - Close is idempotent and unblocks any pending Grab.
type CaptureSource interface {
	Grab(ctx context.Context) (RawFrame, error)
	Close() error
}

// SourceOpener opens the device at path with the negotiated capture
// parameters. The builder calls it once per sensor during build; failures
// are wrapped in *DeviceError.
type SourceOpener func(path string, params CaptureParameters) (CaptureSource, error)

// FrameCodec turns raw frames into luma images. The built-in codec handles
// YUYV, MJPG, GREY and RGB3; WithCodec swaps in another implementation when
// a device speaks something else.
type FrameCodec interface {
	// Supports reports whether Decode understands the format. The builder
	// consults it when validating capture parameters.
	Supports(format FourCC) bool
	// Decode converts one raw frame. The returned image is freshly
	// allocated and owned by the caller.
	Decode(raw RawFrame) (*Image, error)
}
