// Package gstsource provides a GStreamer-backed capture source for RTSP
// network cameras. Wire it into a builder with WithSource(gstsource.Open)
// and pass the rtsp:// URL as the device path.
//
// The pipeline decodes H.264, scales to the configured resolution and
// converts to 8-bit grayscale, so frames arrive as GREY and need no
// further decoding work from the codec. The appsink keeps only the latest
// frame (drop=true); Grab always returns the freshest available image.
//
// GStreamer with the base, good and libav plugin sets must be installed.
package gstsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	camstream "github.com/duncanrhamill/cv-camstream"
)

const (
	// rtspLatencyMS is the jitter buffer given to rtspsrc.
	rtspLatencyMS = 200
	// protocolsTCP forces RTP over TCP; UDP loses too many packets on
	// the networks these rigs live on.
	protocolsTCP = 4
	// playingTimeout bounds the wait for the pipeline to come up.
	playingTimeout = 5 * time.Second
	// busPollInterval is the cadence of the bus watch loop.
	busPollInterval = 250 * time.Millisecond
)

// Open connects to the RTSP camera at url and starts the pipeline. It
// satisfies camstream.SourceOpener.
func Open(url string, params camstream.CaptureParameters) (camstream.CaptureSource, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	rtspsrc, err := gst.NewElement("rtspsrc")
	if err != nil {
		return nil, fmt.Errorf("create rtspsrc: %w", err)
	}
	rtspsrc.SetProperty("location", url)
	rtspsrc.SetProperty("protocols", protocolsTCP)
	rtspsrc.SetProperty("latency", rtspLatencyMS)

	depay, err := gst.NewElement("rtph264depay")
	if err != nil {
		return nil, fmt.Errorf("create rtph264depay: %w", err)
	}

	decoder, err := gst.NewElement("avdec_h264")
	if err != nil {
		return nil, fmt.Errorf("create avdec_h264: %w", err)
	}
	decoder.SetProperty("max-threads", 0)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("create videoconvert: %w", err)
	}

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("create capsfilter: %w", err)
	}
	// The interval is seconds per frame, so the caps fraction flips it.
	capsStr := fmt.Sprintf("video/x-raw,format=GRAY8,width=%d,height=%d,framerate=%d/%d",
		params.Width, params.Height, params.Interval.Den, params.Interval.Num)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 1)
	appsink.SetProperty("drop", true)

	if err := pipeline.AddMany(rtspsrc, depay, decoder, converter, scaler, videorate, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("assemble pipeline: %w", err)
	}
	if err := gst.ElementLinkMany(depay, decoder, converter, scaler, videorate, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("link pipeline: %w", err)
	}

	s := &rtspSource{
		url:      url,
		pipeline: pipeline,
		box:      newMailbox(),
		width:    params.Width,
		height:   params.Height,
		dead:     make(chan struct{}),
		stop:     make(chan struct{}),
		monitorDone: make(chan struct{}),
	}

	// rtspsrc pads appear only once the stream is negotiated.
	rtspsrc.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		linkDynamicPad(srcPad, depay)
	})

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}

	bus := pipeline.GetPipelineBus()
	if msg := bus.TimedPop(playingTimeout); msg != nil && msg.Type() == gst.MessageStateChanged {
		if _, newState := msg.ParseStateChanged(); newState == gst.StatePlaying {
			slog.Debug("gstsource: pipeline reached PLAYING state", "url", url)
		}
	}

	go s.watchBus(bus)

	slog.Info("gstsource: RTSP source opened",
		"url", url,
		"resolution", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"framerate", fmt.Sprintf("%d/%d", params.Interval.Den, params.Interval.Num),
	)
	return s, nil
}

// rtspSource is one live RTSP connection delivering grayscale frames
// through a latest-wins mailbox.
type rtspSource struct {
	url      string
	pipeline *gst.Pipeline
	box      *mailbox
	width    int
	height   int
	seq      atomic.Uint64

	mu    sync.Mutex
	fatal error
	dead  chan struct{}

	closed      atomic.Bool
	stop        chan struct{}
	monitorDone chan struct{}
}

// onNewSample runs on GStreamer's streaming thread: copy the buffer out
// and hand it to the mailbox without ever blocking the pipeline.
func (s *rtspSource) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gstsource: empty buffer received", "url", s.url)
		return gst.FlowOK
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	buffer.Unmap()

	s.box.put(camstream.RawFrame{
		Seq:       s.seq.Add(1),
		Timestamp: time.Now(),
		Width:     s.width,
		Height:    s.height,
		Format:    camstream.FormatGREY,
		Data:      owned,
		TraceID:   uuid.NewString(),
	})
	return gst.FlowOK
}

// watchBus surfaces pipeline errors and end-of-stream to pending grabs.
func (s *rtspSource) watchBus(bus *gst.Bus) {
	defer close(s.monitorDone)
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gstsource: end of stream", "url", s.url)
			s.setFatal(fmt.Errorf("end of stream"))
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			category := classify(gerr)
			slog.Error("gstsource: pipeline error",
				"url", s.url,
				"category", category.String(),
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
			)
			s.setFatal(fmt.Errorf("pipeline error (%s): %s", category, gerr.Error()))
			return
		}
	}
}

// setFatal records the first fatal error and wakes pending grabs.
func (s *rtspSource) setFatal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
		close(s.dead)
	}
}

func (s *rtspSource) fatalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatal
}

// Grab discards any frame that went stale in the mailbox, then blocks for
// the next delivery.
func (s *rtspSource) Grab(ctx context.Context) (camstream.RawFrame, error) {
	s.box.discard()

	select {
	case raw := <-s.box.ch:
		return raw, nil
	case <-ctx.Done():
		return camstream.RawFrame{}, ctx.Err()
	case <-s.dead:
		return camstream.RawFrame{}, fmt.Errorf("rtsp source %s: %w", s.url, s.fatalErr())
	}
}

// Close tears the pipeline down. Safe to call multiple times.
func (s *rtspSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	err := s.pipeline.SetState(gst.StateNull)

	select {
	case <-s.monitorDone:
	case <-time.After(2 * busPollInterval):
		slog.Warn("gstsource: bus watch did not stop in time", "url", s.url)
	}

	slog.Info("gstsource: RTSP source closed",
		"url", s.url,
		"frames", s.seq.Load(),
		"dropped", s.box.dropped.Load(),
	)
	if err != nil {
		return fmt.Errorf("stop pipeline: %w", err)
	}
	return nil
}

// linkDynamicPad links an rtspsrc pad to the depayloader once it appears.
func linkDynamicPad(srcPad *gst.Pad, sinkElement *gst.Element) {
	sinkPad := sinkElement.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("gstsource: depayloader has no sink pad")
		return
	}
	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("gstsource: failed to link dynamic pad",
			"src_pad", srcPad.GetName(),
			"ret", ret,
		)
		return
	}
	slog.Debug("gstsource: dynamic pad linked", "src_pad", srcPad.GetName())
}
