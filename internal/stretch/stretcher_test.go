package stretch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// toneSource serves an infinite interleaved sawtooth ramp, for stretcher tests
// that only care about continuity and bounds, not exact sample values.
type toneSource struct {
	channels int64
}

func (t *toneSource) ReadData(at int64, n int64) []float32 {
	out := make([]float32, n)
	for i := range out {
		idx := (at + int64(i)) / t.channels
		out[i] = float32(idx%1000) / 1000
	}
	return out
}

func newTestStretcher() *StretcherState {
	return New(&toneSource{channels: 2}, 2, 44100, 1024)
}

func TestCopyProducesRequestedLength(t *testing.T) {
	s := newTestStretcher()
	s.SetSpeed(0.5)

	dest := make([]float32, 512)
	advance := s.Copy(dest, 0)

	require.Equal(t, 512, len(dest))
	require.Greater(t, advance, int64(0))
	require.LessOrEqual(t, advance, int64(512))
}

func TestCopyAdvanceScalesWithSpeed(t *testing.T) {
	s := newTestStretcher()
	s.SetSpeed(1.0)

	dest := make([]float32, 2048)
	advance := s.Copy(dest, 0)

	// At full speed, the engine should advance close to dest's length
	// (input-samples-equivalent), within one analysis window's slack.
	require.InDelta(t, float64(len(dest)), float64(advance), float64(windowFrames*2))
}

func TestReanchorOnPositionJump(t *testing.T) {
	s := newTestStretcher()
	s.SetSpeed(0.5)

	dest := make([]float32, 512)
	s.Copy(dest, 0)

	// A non-sequential outPos must re-anchor rather than silently continue
	// from the old cursor.
	advance := s.Copy(dest, 50000)
	require.Greater(t, advance, int64(0))
}

func TestSetSpeedClampsRange(t *testing.T) {
	s := newTestStretcher()

	s.SetSpeed(0.01)
	require.Equal(t, 0.2, s.Speed())

	s.SetSpeed(5.0)
	require.Equal(t, 1.0, s.Speed())
}
