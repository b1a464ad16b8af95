// Package camstream captures frames from V4L2 cameras and RTSP streams,
// decodes them to normalized grayscale and applies precomputed lens
// rectification, for mono cameras and synchronized stereo pairs.
//
// # Quick Start
//
// The simplest way to capture rectified frames from a local camera:
//
//	stream, err := camstream.NewBuilder().Mono().
//	    Path("/dev/video0").
//	    RectifParamsFromFile("calib.toml").
//	    Resolution(640, 480).
//	    Interval(1, 10).
//	    BuildMono()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Close()
//
//	img, err := stream.Capture(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	png.Encode(out, img.Gray())
//
// The builder is a staged state machine: select the variant first (Mono or
// Stereo), then paths, exactly one rectification mode, capture parameters,
// and finally the matching Build terminal. Every setter validates its
// input immediately; the build call reports the first error of the
// earliest broken stage, so a misassembled chain fails with its root
// cause.
//
// # Stereo Capture
//
// Stereo streams grab both cameras concurrently and only accept pairs
// whose timestamps agree within a tolerance. Both knobs are mandatory:
//
//	stream, err := camstream.NewBuilder().Stereo().
//	    LeftPath("/dev/video0").
//	    RightPath("/dev/video2").
//	    StereoRectifParamsFromFile("stereo.toml").
//	    SkewTolerance(5 * time.Millisecond).
//	    SkewRetries(2).
//	    BuildStereo()
//
//	frame, err := stream.Capture(ctx)
//	// frame.Left and frame.Right are epipolar-aligned luma images;
//	// frame.Skew is the timestamp difference of the accepted pair.
//
// A pair over tolerance is discarded and regrabbed up to the retry
// budget; when the budget runs out Capture returns a
// *SynchronizationError and the stream stays usable. Run MeasureSkew
// after building to judge whether a rig can hold the tolerance at all.
//
// # Rectification
//
// Calibration models carry the intrinsic matrix, Brown-Conrady distortion
// coefficients (k1, k2, p1, p2, k3, k4, k5, k6), the calibrated
// resolution, and optionally the rectifying rotation and projection from
// stereo calibration. Models load from TOML, YAML or JSON files, or are
// supplied directly as values.
//
// The inverse pixel map is computed once at build time and reused for
// every frame: each output pixel samples the raw frame bilinearly at the
// distorted position the model predicts, and positions falling outside
// the frame come out black. A model with zero distortion and no
// rotation or projection yields the identity map, so captures pass
// through unchanged.
//
// # Frame Format
//
// Decoded frames are single-channel luma images with float32 samples in
// [0, 1], row major. Image implements image.Image and converts to stdlib
// rasters via Gray, Gray16 and RGBA. The built-in codec accepts YUYV,
// MJPG, GREY and RGB3 device formats; WithCodec swaps in another decoder
// when a device speaks something else.
//
// # Capture Sources
//
// The default source opens V4L2 devices through go4vl. Package gstsource
// provides a GStreamer-backed opener for RTSP cameras:
//
//	stream, err := camstream.NewBuilder().Mono().
//	    WithSource(gstsource.Open).
//	    Path("rtsp://192.168.1.100:8554/stream").
//	    NoRectification().
//	    BuildMono()
//
// Both sources deliver the freshest frame available rather than the
// oldest buffered one; a consumer that falls behind skips frames instead
// of drifting into the past.
//
// # Error Handling
//
// Failures are typed and match with errors.As:
//
//   - *ConfigurationError: builder misuse (bad value, wrong order,
//     missing option)
//   - *DeviceError: a device that cannot be validated or opened
//   - *CalibrationError: an unreadable or invalid calibration source
//   - *CaptureError: a failed grab or decode on a built stream
//   - *SynchronizationError: a stereo pair that stayed outside the skew
//     tolerance
//
// A failed Capture never wedges a stream; the next call starts fresh.
//
// # Statistics
//
// Stats() returns cumulative counters without blocking captures:
//
//	stats := stream.Stats()
//	fmt.Printf("captures: %d, failures: %d\n", stats.Captures, stats.Failures)
//	fmt.Printf("retries: %d, sync failures: %d, last skew: %v\n",
//	    stats.Retries, stats.SyncFailures, stats.LastSkew)
//
// Describe() returns the static side: variant, device paths and the
// parameters the stream was built with.
//
// # Dependencies
//
// V4L2 capture needs only a Linux kernel with Video4Linux2. RTSP capture
// through package gstsource needs GStreamer 1.x with the base, good and
// libav plugin sets:
//
//	# Ubuntu/Debian
//	sudo apt-get install \
//	    gstreamer1.0-tools \
//	    gstreamer1.0-plugins-base \
//	    gstreamer1.0-plugins-good \
//	    gstreamer1.0-libav
//
// # Thread Safety
//
// Stats and Close are safe from any goroutine, and Close is idempotent.
// Capture is synchronous and meant for a single consumer per stream; run
// one goroutine per stream rather than sharing one stream across many.
//
// # Limitations
//
//   - Video only, no audio.
//   - One consumer per stream; no internal frame fan-out.
//   - Stereo synchronization trusts source timestamps; it cannot fix a
//     rig whose cameras genuinely free-run (use MeasureSkew to find out).
//   - The RTSP source assumes H.264 video.
package camstream
