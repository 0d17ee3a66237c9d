// Package stretch implements the pitch-preserving time-scale stage from
// spec §4.3: a WSOLA (Waveform Similarity Overlap-Add) engine that delivers
// output samples at a configurable speed in [0.2, 1.0] without shifting
// pitch.
//
// The mutex-guarded live SetSpeed/Copy pair and the circular lookahead
// buffer are grounded in technique on
// other_examples/16553856_tinne26-edau__speed_shifter.go.go, which guards a
// live Speed()/SetSpeed() pair with a sync.Mutex and keeps a circular
// lookahead window ahead of the read cursor. That example is a plain
// resampler, though, and a plain resample shifts pitch along with tempo;
// original_source/dictation.cpp's audioStretcher->setSpeed()/copyData() call
// shape expects pitch preservation, so the windowing and overlap-add search
// below is original work grounded on the textbook WSOLA algorithm rather
// than ported from either source.
package stretch

import (
	"math"
	"sync"
)

// Source is anything that can serve frame-addressed sample reads of
// arbitrary size; satisfied structurally by *ringcache.RingCache.
type Source interface {
	ReadData(at int64, n int64) []float32
}

const (
	windowFrames      = 1024 // samples per channel, per analysis window
	hopOutFrames      = windowFrames / 2
	searchRadiusFrames = 128
)

// StretcherState owns the time-scale engine plus the in_pos/out_pos cursors
// described in spec §3/§4.3.
type StretcherState struct {
	source   Source
	channels int64
	rate     int64
	pullSize int64 // samples per ReadData chunk (Ring Cache's MAX_REQUEST)

	mu sync.Mutex

	speed float64

	anchored  bool
	outCursor int64 // absolute file sample index matching the next Copy's outPos anchor

	inputCursorFrames int64 // absolute file frame index of the next WSOLA analysis window
	pending           []float32
	pendingStart      int64 // absolute file sample index of pending[0]

	prevTail     []float32 // windowed tail of the last synthesized window (interleaved)
	havePrevTail bool

	outQueue []float32 // synthesized output not yet delivered to a Copy caller
}

// New creates a stretcher pulling from source, which decodes channels
// interleaved samples at rate Hz. pullSize is the chunk granularity to
// request from source on each top-up (the Ring Cache's MAX_REQUEST).
func New(source Source, channels int, rate uint32, pullSize int64) *StretcherState {
	return &StretcherState{
		source:   source,
		channels: int64(channels),
		rate:     int64(rate),
		pullSize: pullSize,
		speed:    1.0,
	}
}

// SetSpeed clamps speed to [0.2, 1.0], flushes all buffered state, and
// invalidates the cursors so the next Copy re-anchors.
func (s *StretcherState) SetSpeed(speed float64) {
	if speed < 0.2 {
		speed = 0.2
	}
	if speed > 1.0 {
		speed = 1.0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.speed = speed
	s.anchored = false
	s.pending = nil
	s.outQueue = nil
	s.havePrevTail = false
}

// Speed returns the current clamped speed.
func (s *StretcherState) Speed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

// Copy fills dest with len(dest) output samples (interleaved, a multiple of
// channels) for absolute output position outPos, re-anchoring if outPos
// differs from the stretcher's internal cursor. It returns the number of
// input-samples-equivalent the Playback Engine should advance position by.
func (s *StretcherState) Copy(dest []float32, outPos int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.anchored || outPos != s.outCursor {
		s.anchored = true
		s.outCursor = outPos
		s.inputCursorFrames = outPos / s.channels
		s.pending = nil
		s.pendingStart = outPos
		s.outQueue = nil
		s.havePrevTail = false
	}

	need := int64(len(dest))
	s.topUpInput(need)

	for int64(len(s.outQueue)) < need {
		if !s.synthesizeOneWindow() {
			break // ran out of input; pad with silence below
		}
	}

	n := copy(dest, s.outQueue)
	for i := n; i < len(dest); i++ {
		dest[i] = 0
	}
	if n > 0 {
		s.outQueue = s.outQueue[n:]
	}

	advance := int64(math.Round(float64(need) * s.speed))
	advance -= advance % s.channels
	s.outCursor = outPos + advance

	return advance
}

// topUpInput ensures pending holds at least ~3 seconds of input ahead of the
// analysis cursor, per spec §4.3, pulling one pullSize chunk at a time.
func (s *StretcherState) topUpInput(forOutputSamples int64) {
	target := 3 * s.rate * s.channels
	if target < forOutputSamples*2 {
		target = forOutputSamples * 2
	}

	analysisAt := s.inputCursorFrames * s.channels
	for int64(len(s.pending))-(analysisAt-s.pendingStart) < target {
		pullAt := s.pendingStart + int64(len(s.pending))
		chunk := s.source.ReadData(pullAt, s.pullSize)
		if len(chunk) == 0 {
			break
		}
		s.pending = append(s.pending, chunk...)

		// Heuristic termination: a source that has hit EOF returns an
		// all-silent tail forever: not provable from content alone, so we
		// bound total pending growth instead of inspecting samples.
		if int64(len(s.pending)) > target*4 {
			break
		}
	}
}

// synthesizeOneWindow runs one WSOLA analysis/synthesis step, appending
// hopOutFrames worth of output frames to s.outQueue. Returns false if there
// is not enough buffered input left to extract a full window.
func (s *StretcherState) synthesizeOneWindow() bool {
	ch := s.channels
	winLen := int64(windowFrames) * ch
	overlapLen := int64(hopOutFrames) * ch

	idealFrame := s.inputCursorFrames
	idealOffset := idealFrame*ch - s.pendingStart

	searchLo := idealOffset - int64(searchRadiusFrames)*ch
	searchHi := idealOffset + int64(searchRadiusFrames)*ch
	if searchLo < 0 {
		searchLo = 0
	}
	if searchHi+winLen > int64(len(s.pending)) {
		searchHi = int64(len(s.pending)) - winLen
	}
	if searchHi < searchLo {
		return false // not enough input buffered for one more window
	}

	bestOffset := idealOffset
	if idealOffset < searchLo {
		bestOffset = searchLo
	}
	if idealOffset > searchHi {
		bestOffset = searchHi
	}

	if s.havePrevTail && searchHi > searchLo {
		bestOffset = bestCorrelatedOffset(s.pending, s.prevTail, searchLo, searchHi, overlapLen, ch)
	}

	window := make([]float32, winLen)
	copy(window, s.pending[bestOffset:bestOffset+winLen])
	applyHann(window, ch)

	out := make([]float32, overlapLen)
	if s.havePrevTail {
		for i := range out {
			out[i] = s.prevTail[i] + window[i]
		}
	} else {
		copy(out, window[:overlapLen])
	}

	if s.prevTail == nil {
		s.prevTail = make([]float32, overlapLen)
	}
	copy(s.prevTail, window[overlapLen:])
	s.havePrevTail = true

	s.outQueue = append(s.outQueue, out...)

	hopIn := int64(math.Round(float64(hopOutFrames) * s.speed))
	if hopIn < 1 {
		hopIn = 1
	}
	s.inputCursorFrames = idealFrame + hopIn

	// Drop consumed prefix once it's comfortably behind both the analysis
	// cursor and the search window, so pending does not grow unbounded.
	safeTrim := bestOffset
	if safeTrim > int64(searchRadiusFrames)*ch {
		trimAmount := safeTrim - int64(searchRadiusFrames)*ch
		s.pending = s.pending[trimAmount:]
		s.pendingStart += trimAmount
	}

	return true
}

// applyHann multiplies a channels-interleaved buffer by a Hann window,
// frame-synchronized so every channel shares the same envelope.
func applyHann(buf []float32, channels int64) {
	frames := int64(len(buf)) / channels
	for f := int64(0); f < frames; f++ {
		w := float32(0.5 - 0.5*math.Cos(2*math.Pi*float64(f)/float64(frames-1)))
		for c := int64(0); c < channels; c++ {
			buf[f*channels+c] *= w
		}
	}
}

// bestCorrelatedOffset finds, within [lo, hi], the window start that best
// matches tail on the first overlapLen samples, using channel 0 as the
// reference (standard multi-channel WSOLA practice: align once, apply the
// same shift to every channel).
func bestCorrelatedOffset(pending, tail []float32, lo, hi, overlapLen, channels int64) int64 {
	best := lo
	bestScore := math.Inf(-1)

	step := channels // stay frame-aligned
	for off := lo; off <= hi; off += step {
		score := normalizedCorrelation(pending[off:off+overlapLen], tail, channels)
		if score > bestScore {
			bestScore = score
			best = off
		}
	}

	return best
}

func normalizedCorrelation(a, b []float32, channels int64) float64 {
	var dot, na, nb float64
	for c := int64(0); c < channels && int(c) < len(a); c++ {
		for i := int(c); i < len(a) && i < len(b); i += int(channels) {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
	}

	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}
