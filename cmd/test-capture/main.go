// Command test-capture exercises a capture stream from the command line:
// point it at one V4L2 device or RTSP URL (or a left/right pair), watch
// the statistics, and optionally dump frames to disk for inspection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	camstream "github.com/duncanrhamill/cv-camstream"
	"github.com/duncanrhamill/cv-camstream/gstsource"
)

// Version information
const version = "v0.1.0"

func main() {
	device := flag.String("device", "", "Mono device path or rtsp:// URL")
	left := flag.String("left", "", "Left device path or rtsp:// URL (stereo)")
	right := flag.String("right", "", "Right device path or rtsp:// URL (stereo)")
	calib := flag.String("calib", "", "Calibration file (TOML/YAML/JSON); omit for no rectification")
	width := flag.Int("width", 640, "Capture width in pixels")
	height := flag.Int("height", 480, "Capture height in pixels")
	fps := flag.Float64("fps", 10.0, "Target FPS (0.1-120)")
	format := flag.String("pixfmt", "YUYV", "Pixel format: YUYV, MJPG, GREY, RGB3")
	buffers := flag.Int("buffers", 2, "Driver buffers per device")
	skewTolerance := flag.Duration("skew-tolerance", 5*time.Millisecond, "Max stereo pair timestamp skew")
	skewRetries := flag.Int("skew-retries", 2, "Extra pair grabs allowed per stereo capture")
	measurePairs := flag.Int("measure-skew", 20, "Pairs to sample for the skew report before capturing (0 = skip)")
	outputDir := flag.String("output", "", "Directory to save captured frames (optional)")
	outputFormat := flag.String("format", "png", "Output format: png, jpeg")
	jpegQuality := flag.Int("jpeg-quality", 90, "JPEG quality (1-100, only for jpeg format)")
	maxFrames := flag.Int("max-frames", 0, "Maximum frames to capture (0 = unlimited)")
	statsInterval := flag.Int("stats-interval", 10, "Seconds between stats reports")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("test-capture %s\n", version)
		os.Exit(0)
	}

	stereo := *left != "" || *right != ""
	if stereo && (*left == "" || *right == "") {
		fmt.Fprintf(os.Stderr, "Error: stereo capture needs both --left and --right\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if !stereo && *device == "" {
		fmt.Fprintf(os.Stderr, "Error: --device is required (or --left/--right for stereo)\n\n")
		fmt.Fprintf(os.Stderr, "Usage examples:\n")
		fmt.Fprintf(os.Stderr, "  test-capture --device /dev/video0 --calib calib.toml\n")
		fmt.Fprintf(os.Stderr, "  test-capture --device rtsp://192.168.1.100:8554/stream --pixfmt GREY\n")
		fmt.Fprintf(os.Stderr, "  test-capture --left /dev/video0 --right /dev/video2 --calib stereo.toml\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	pixfmt, err := camstream.ParseFourCC(*format)
	if err != nil {
		log.Fatalf("Invalid pixel format: %v", err)
	}
	intervalNum, intervalDen, err := fpsToInterval(*fps)
	if err != nil {
		log.Fatalf("Invalid FPS: %v", err)
	}
	if *outputFormat != "png" && *outputFormat != "jpeg" {
		log.Fatalf("Invalid output format: %s (must be png or jpeg)", *outputFormat)
	}
	if *outputDir != "" {
		if err := os.MkdirAll(*outputDir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
		slog.Info("Frame saving enabled",
			"directory", *outputDir,
			"format", *outputFormat,
			"jpeg_quality", *jpegQuality,
		)
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║                cv-camstream capture test                  ║\n")
	fmt.Printf("║                     Version %s                         ║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
	fmt.Printf("Configuration:\n")
	if stereo {
		fmt.Printf("  Left:          %s\n", *left)
		fmt.Printf("  Right:         %s\n", *right)
		fmt.Printf("  Skew Tol:      %v\n", *skewTolerance)
		fmt.Printf("  Skew Retries:  %d\n", *skewRetries)
	} else {
		fmt.Printf("  Device:        %s\n", *device)
	}
	fmt.Printf("  Resolution:    %dx%d\n", *width, *height)
	fmt.Printf("  Target FPS:    %.2f\n", *fps)
	fmt.Printf("  Pixel Format:  %s\n", pixfmt)
	if *calib != "" {
		fmt.Printf("  Calibration:   %s\n", *calib)
	} else {
		fmt.Printf("  Calibration:   (none - rectification disabled)\n")
	}
	if *outputDir != "" {
		fmt.Printf("  Output Dir:    %s\n", *outputDir)
	} else {
		fmt.Printf("  Output Dir:    (none - frames not saved)\n")
	}
	fmt.Printf("\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	if stereo {
		runStereo(ctx, stereoOptions{
			left:          *left,
			right:         *right,
			calib:         *calib,
			width:         *width,
			height:        *height,
			intervalNum:   intervalNum,
			intervalDen:   intervalDen,
			format:        pixfmt,
			buffers:       *buffers,
			skewTolerance: *skewTolerance,
			skewRetries:   *skewRetries,
			measurePairs:  *measurePairs,
			outputDir:     *outputDir,
			outputFormat:  *outputFormat,
			jpegQuality:   *jpegQuality,
			maxFrames:     *maxFrames,
			statsInterval: *statsInterval,
			startTime:     startTime,
		})
	} else {
		runMono(ctx, monoOptions{
			device:        *device,
			calib:         *calib,
			width:         *width,
			height:        *height,
			intervalNum:   intervalNum,
			intervalDen:   intervalDen,
			format:        pixfmt,
			buffers:       *buffers,
			outputDir:     *outputDir,
			outputFormat:  *outputFormat,
			jpegQuality:   *jpegQuality,
			maxFrames:     *maxFrames,
			statsInterval: *statsInterval,
			startTime:     startTime,
		})
	}
}

// fpsToInterval converts a frame rate into the rational seconds-per-frame
// form the builder takes.
func fpsToInterval(fps float64) (num, den uint32, err error) {
	if fps < 0.1 || fps > 120 {
		return 0, 0, fmt.Errorf("must be within 0.1-120, got %v", fps)
	}
	if fps >= 1 {
		return 1, uint32(fps + 0.5), nil
	}
	return uint32(1/fps + 0.5), 1, nil
}

type monoOptions struct {
	device        string
	calib         string
	width, height int
	intervalNum   uint32
	intervalDen   uint32
	format        camstream.FourCC
	buffers       int
	outputDir     string
	outputFormat  string
	jpegQuality   int
	maxFrames     int
	statsInterval int
	startTime     time.Time
}

func runMono(ctx context.Context, opts monoOptions) {
	b := camstream.NewBuilder().Mono()
	if strings.HasPrefix(opts.device, "rtsp://") {
		b = b.WithSource(gstsource.Open)
	}
	b = b.Path(opts.device)
	if opts.calib != "" {
		b = b.RectifParamsFromFile(opts.calib)
	} else {
		b = b.NoRectification()
	}
	stream, err := b.
		Resolution(opts.width, opts.height).
		Interval(opts.intervalNum, opts.intervalDen).
		Format(opts.format).
		Buffers(opts.buffers).
		BuildMono()
	if err != nil {
		log.Fatalf("Failed to build mono stream: %v", err)
	}
	defer stream.Close()

	fmt.Printf("Starting frame capture...\n")
	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	stopReporter := startStatsReporter(ctx, opts.statsInterval, opts.startTime, stream.Stats)
	defer stopReporter()

	frameCount := 0
	framesSaved := 0
	for {
		img, err := stream.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
				break
			}
			slog.Error("Capture failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		frameCount++

		fmt.Printf("[%s] Frame #%-6d | %dx%d | rectified: %v\n",
			time.Now().Format("15:04:05"),
			frameCount,
			img.W, img.H,
			stream.Rectified(),
		)

		if opts.outputDir != "" {
			name := fmt.Sprintf("frame_%06d.%s", frameCount, opts.outputFormat)
			if err := saveImage(filepath.Join(opts.outputDir, name), img.Gray(), opts.outputFormat, opts.jpegQuality); err != nil {
				slog.Error("Failed to save frame", "error", err, "frame", frameCount)
			} else {
				framesSaved++
			}
		}

		if opts.maxFrames > 0 && frameCount >= opts.maxFrames {
			fmt.Printf("\nReached maximum frames (%d), stopping...\n", opts.maxFrames)
			break
		}
	}

	printFinalStats(stream.Stats(), opts.startTime, framesSaved, opts.outputDir != "")
}

type stereoOptions struct {
	left, right   string
	calib         string
	width, height int
	intervalNum   uint32
	intervalDen   uint32
	format        camstream.FourCC
	buffers       int
	skewTolerance time.Duration
	skewRetries   int
	measurePairs  int
	outputDir     string
	outputFormat  string
	jpegQuality   int
	maxFrames     int
	statsInterval int
	startTime     time.Time
}

func runStereo(ctx context.Context, opts stereoOptions) {
	b := camstream.NewBuilder().Stereo()
	if strings.HasPrefix(opts.left, "rtsp://") || strings.HasPrefix(opts.right, "rtsp://") {
		b = b.WithSource(gstsource.Open)
	}
	b = b.LeftPath(opts.left).RightPath(opts.right)
	if opts.calib != "" {
		b = b.StereoRectifParamsFromFile(opts.calib)
	} else {
		b = b.NoRectification()
	}
	stream, err := b.
		Resolution(opts.width, opts.height).
		Interval(opts.intervalNum, opts.intervalDen).
		Format(opts.format).
		Buffers(opts.buffers).
		SkewTolerance(opts.skewTolerance).
		SkewRetries(opts.skewRetries).
		BuildStereo()
	if err != nil {
		log.Fatalf("Failed to build stereo stream: %v", err)
	}
	defer stream.Close()

	// Judge the rig before committing to captures.
	if opts.measurePairs > 0 {
		fmt.Printf("Measuring pair skew over %d pairs...\n", opts.measurePairs)
		skew, err := stream.MeasureSkew(ctx, opts.measurePairs)
		if err != nil {
			log.Fatalf("Skew measurement failed: %v", err)
		}
		fmt.Printf("\n")
		fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
		fmt.Printf("│ Skew Measurement\n")
		fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
		fmt.Printf("│ Pairs Sampled:      %6d\n", skew.Pairs)
		fmt.Printf("│ Mean Skew:          %12v\n", skew.Mean)
		fmt.Printf("│ StdDev:             %12v\n", skew.StdDev)
		fmt.Printf("│ Range:              %v - %v\n", skew.Min, skew.Max)
		fmt.Printf("│ Within Tolerance:   %6.1f%%\n", skew.WithinTolerance*100)
		fmt.Printf("│ Stable:             %6v\n", skew.IsStable)
		fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
		if !skew.IsStable {
			fmt.Printf("\nWARNING: rig is unstable at tolerance %v; expect retries\n", opts.skewTolerance)
		}
		fmt.Printf("\n")
	}

	fmt.Printf("Starting pair capture...\n")
	fmt.Printf("Press Ctrl+C to stop gracefully\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

	stopReporter := startStatsReporter(ctx, opts.statsInterval, opts.startTime, stream.Stats)
	defer stopReporter()

	frameCount := 0
	framesSaved := 0
	for {
		frame, err := stream.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Printf("\n\nReceived interrupt signal, shutting down...\n")
				break
			}
			var syncErr *camstream.SynchronizationError
			if errors.As(err, &syncErr) {
				slog.Warn("Pair discarded", "skew", syncErr.Skew, "tolerance", syncErr.Tolerance)
			} else {
				slog.Error("Capture failed", "error", err)
				time.Sleep(time.Second)
			}
			continue
		}
		frameCount++

		fmt.Printf("[%s] Pair #%-6d | %dx%d | skew: %v\n",
			time.Now().Format("15:04:05"),
			frameCount,
			frame.Left.W, frame.Left.H,
			frame.Skew,
		)

		if opts.outputDir != "" {
			name := fmt.Sprintf("pair_%06d.%s", frameCount, opts.outputFormat)
			if err := saveImage(filepath.Join(opts.outputDir, name), frame.SideBySide(), opts.outputFormat, opts.jpegQuality); err != nil {
				slog.Error("Failed to save pair", "error", err, "pair", frameCount)
			} else {
				framesSaved++
			}
		}

		if opts.maxFrames > 0 && frameCount >= opts.maxFrames {
			fmt.Printf("\nReached maximum frames (%d), stopping...\n", opts.maxFrames)
			break
		}
	}

	printFinalStats(stream.Stats(), opts.startTime, framesSaved, opts.outputDir != "")
}

// startStatsReporter prints a statistics box every interval until the
// context ends or the returned stop function runs.
func startStatsReporter(ctx context.Context, intervalSeconds int, startTime time.Time, stats func() camstream.CaptureStats) func() {
	done := make(chan struct{})
	ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				printStats(stats(), time.Since(startTime))
			}
		}
	}()
	return func() { close(done) }
}

func printStats(stats camstream.CaptureStats, uptime time.Duration) {
	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Stream Statistics (Uptime: %s)\n", uptime.Round(time.Second))
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Captures:           %6d\n", stats.Captures)
	fmt.Printf("│ Failures:           %6d\n", stats.Failures)
	if stats.Retries > 0 || stats.SyncFailures > 0 {
		fmt.Printf("│ Skew Retries:       %6d\n", stats.Retries)
		fmt.Printf("│ Sync Failures:      %6d\n", stats.SyncFailures)
		fmt.Printf("│ Last Skew:          %12v\n", stats.LastSkew)
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
	fmt.Printf("\n")
}

func printFinalStats(stats camstream.CaptureStats, startTime time.Time, framesSaved int, saving bool) {
	uptime := time.Since(startTime)
	fmt.Printf("\n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("                     Final Statistics                      \n")
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("  Total Uptime:       %s\n", uptime.Round(time.Second))
	fmt.Printf("  Captures:           %d\n", stats.Captures)
	fmt.Printf("  Failures:           %d\n", stats.Failures)
	if stats.Retries > 0 || stats.SyncFailures > 0 {
		fmt.Printf("  Skew Retries:       %d\n", stats.Retries)
		fmt.Printf("  Sync Failures:      %d\n", stats.SyncFailures)
	}
	if saving {
		fmt.Printf("  Frames Saved:       %d\n", framesSaved)
	}
	fmt.Printf("═══════════════════════════════════════════════════════════\n")
	fmt.Printf("\n")

	slog.Info("Test capture completed")
}

// saveImage writes an 8-bit grayscale image as PNG or JPEG.
func saveImage(path string, img image.Image, format string, jpegQuality int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	switch format {
	case "png":
		if err := png.Encode(file, img); err != nil {
			return fmt.Errorf("failed to encode PNG: %w", err)
		}
	case "jpeg":
		if err := jpeg.Encode(file, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return fmt.Errorf("failed to encode JPEG: %w", err)
		}
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	return nil
}
