package camstream

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// skewStabilityThreshold is the fraction of measured pairs that must sit
// within the skew tolerance for MeasureSkew to call the rig stable.
const skewStabilityThreshold = 0.90

// Capture grabs one synchronized pair. Both devices are grabbed
// concurrently; if the pair's timestamp skew exceeds the tolerance the
// pair is discarded and regrabbed, up to the configured retry budget.
// Decoding and rectification run only on an accepted pair, and a pair is
// returned whole or not at all.
func (s *StereoCamStream) Capture(ctx context.Context) (*StereoFrame, error) {
	attempts := s.skewRetries + 1
	var skew time.Duration
	for attempt := 1; attempt <= attempts; attempt++ {
		lraw, rraw, err := s.grabPair(ctx)
		if err != nil {
			s.failures.Add(1)
			return nil, err
		}

		skew = absSkew(lraw.Timestamp, rraw.Timestamp)
		s.lastSkew.Store(int64(skew))
		if skew <= s.skewTolerance {
			left, err := s.left.decode(lraw, s.codec)
			if err != nil {
				s.failures.Add(1)
				return nil, err
			}
			right, err := s.right.decode(rraw, s.codec)
			if err != nil {
				s.failures.Add(1)
				return nil, err
			}
			s.captures.Add(1)
			s.lastCapture.Store(time.Now().UnixNano())
			slog.Debug("camstream: stereo pair captured",
				"skew", skew,
				"attempt", attempt,
				"left_seq", lraw.Seq,
				"right_seq", rraw.Seq,
				"left_trace_id", lraw.TraceID,
				"right_trace_id", rraw.TraceID,
			)
			return &StereoFrame{Left: left, Right: right, Skew: skew}, nil
		}

		if attempt < attempts {
			s.retries.Add(1)
			slog.Warn("camstream: stereo pair skew above tolerance, regrabbing",
				"skew", skew,
				"tolerance", s.skewTolerance,
				"attempt", attempt,
				"attempts", attempts,
			)
		}
	}

	s.failures.Add(1)
	s.syncFailures.Add(1)
	return nil, &SynchronizationError{Skew: skew, Tolerance: s.skewTolerance, Attempts: attempts}
}

// grabPair runs both grabs concurrently and joins them, so neither grab is
// left in flight when it returns. The left failure wins when both sides
// fail.
func (s *StereoCamStream) grabPair(ctx context.Context) (RawFrame, RawFrame, error) {
	type result struct {
		raw RawFrame
		err error
	}
	lch := make(chan result, 1)
	rch := make(chan result, 1)

	go func() {
		raw, err := s.left.grab(ctx)
		lch <- result{raw: raw, err: err}
	}()
	go func() {
		raw, err := s.right.grab(ctx)
		rch <- result{raw: raw, err: err}
	}()

	lres := <-lch
	rres := <-rch
	if lres.err != nil {
		return RawFrame{}, RawFrame{}, lres.err
	}
	if rres.err != nil {
		return RawFrame{}, RawFrame{}, rres.err
	}
	return lres.raw, rres.raw, nil
}

func absSkew(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

// SkewStats summarizes the pair skew observed by MeasureSkew.
type SkewStats struct {
	// Pairs is the number of pairs measured.
	Pairs int
	// Mean, StdDev, Min and Max describe the absolute skew distribution.
	Mean   time.Duration
	StdDev time.Duration
	Min    time.Duration
	Max    time.Duration
	// WithinTolerance is the fraction of pairs at or under the stream's
	// skew tolerance, in [0, 1].
	WithinTolerance float64
	// IsStable is true when at least 90% of pairs sit within tolerance.
	IsStable bool
}

// MeasureSkew grabs n pairs and reports skew statistics without enforcing
// the tolerance or decoding anything; the frames are consumed and
// discarded. Run it after building a stereo stream to judge whether the
// rig and the configured tolerance fit before committing to captures.
func (s *StereoCamStream) MeasureSkew(ctx context.Context, pairs int) (SkewStats, error) {
	if pairs <= 0 {
		return SkewStats{}, &ConfigurationError{Field: "pairs", Reason: "must be positive"}
	}

	skews := make([]time.Duration, 0, pairs)
	for i := 0; i < pairs; i++ {
		lraw, rraw, err := s.grabPair(ctx)
		if err != nil {
			return SkewStats{}, err
		}
		skews = append(skews, absSkew(lraw.Timestamp, rraw.Timestamp))
	}

	stats := calculateSkewStats(skews, s.skewTolerance)
	slog.Info("camstream: skew measured",
		"pairs", stats.Pairs,
		"mean", stats.Mean,
		"stddev", stats.StdDev,
		"min", stats.Min,
		"max", stats.Max,
		"within_tolerance", stats.WithinTolerance,
		"stable", stats.IsStable,
	)
	return stats, nil
}

// calculateSkewStats computes mean, standard deviation and extrema over
// the measured skews, plus the within-tolerance fraction.
func calculateSkewStats(skews []time.Duration, tolerance time.Duration) SkewStats {
	n := len(skews)
	if n == 0 {
		return SkewStats{}
	}

	skewMin := skews[0]
	skewMax := skews[0]
	var sum float64
	within := 0
	for _, sk := range skews {
		sum += float64(sk)
		if sk < skewMin {
			skewMin = sk
		}
		if sk > skewMax {
			skewMax = sk
		}
		if sk <= tolerance {
			within++
		}
	}
	mean := sum / float64(n)

	var sumSquares float64
	for _, sk := range skews {
		diff := float64(sk) - mean
		sumSquares += diff * diff
	}
	stdDev := math.Sqrt(sumSquares / float64(n))

	fraction := float64(within) / float64(n)
	return SkewStats{
		Pairs:           n,
		Mean:            time.Duration(mean),
		StdDev:          time.Duration(stdDev),
		Min:             skewMin,
		Max:             skewMax,
		WithinTolerance: fraction,
		IsStable:        fraction >= skewStabilityThreshold,
	}
}
