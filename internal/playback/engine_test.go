package playback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mpharoah/openscribe/internal/engineconf"
	"github.com/stretchr/testify/require"
)

// fakeSink drives next on demand from the test, instead of a real audio
// device, so engine tests run without hardware.
type fakeSink struct {
	next func(out []float32)
}

func (f *fakeSink) Start(channels int, sampleRate float64, framesPerBuffer int, next func(out []float32)) error {
	f.next = next
	return nil
}

func (f *fakeSink) Stop() error { return nil }

func (f *fakeSink) pull(frames, channels int) []float32 {
	out := make([]float32, frames*channels)
	f.next(out)
	return out
}

func writeSilentWAV(t *testing.T, frames int, sampleRate uint32, channels uint16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silence.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	dataSize := frames * int(channels) * 2
	riffSize := 36 + dataSize

	writeStr := func(s string) { _, _ = f.WriteString(s) }
	writeU32 := func(v uint32) {
		b := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
		_, _ = f.Write(b)
	}
	writeU16 := func(v uint16) {
		b := []byte{byte(v), byte(v >> 8)}
		_, _ = f.Write(b)
	}

	writeStr("RIFF")
	writeU32(uint32(riffSize))
	writeStr("WAVE")
	writeStr("fmt ")
	writeU32(16)
	writeU16(1)
	writeU16(channels)
	writeU32(sampleRate)
	writeU32(sampleRate * uint32(channels) * 2)
	writeU16(channels * 2)
	writeU16(16)
	writeStr("data")
	writeU32(uint32(dataSize))

	zeros := make([]byte, dataSize)
	_, _ = f.Write(zeros)

	return path
}

func newOpenEngine(t *testing.T) (*Engine, *fakeSink) {
	t.Helper()
	path := writeSilentWAV(t, 441000, 44100, 1) // 10s mono

	e := New(nil)
	require.NoError(t, e.OpenFile(path, engineconf.Default))

	sink := &fakeSink{}
	require.NoError(t, e.Start(sink))
	t.Cleanup(e.Stop)

	return e, sink
}

func TestOpenStartsPaused(t *testing.T) {
	e, _ := newOpenEngine(t)
	require.True(t, e.IsPaused())
	require.Equal(t, int64(0), e.GetPositionMs())
}

func TestPlayAdvancesPosition(t *testing.T) {
	e, sink := newOpenEngine(t)
	e.Play()

	for i := 0; i < 20; i++ {
		sink.pull(1024, 1)
	}

	require.False(t, e.IsPaused())
	require.Greater(t, e.GetPositionMs(), int64(0))
}

func TestPauseStopsPositionAdvance(t *testing.T) {
	e, sink := newOpenEngine(t)
	e.Play()
	sink.pull(1024, 1)
	e.Pause()
	before := e.GetPositionMs()

	// Give the playback thread a moment to settle into the quiescent wait.
	time.Sleep(10 * time.Millisecond)

	require.True(t, e.IsPaused())
	require.Equal(t, before, e.GetPositionMs())
}

func TestSkipForwardClampsAtBounds(t *testing.T) {
	e, _ := newOpenEngine(t)

	e.SkipForward(-100000)
	require.Equal(t, int64(0), e.GetPositionMs())

	e.SkipForward(100000000)
	require.Equal(t, e.GetLengthMs(), e.GetPositionMs())
}

func TestRewindModeQueries(t *testing.T) {
	e, sink := newOpenEngine(t)
	e.SetPositionMs(5000)
	e.StartRewind()
	require.True(t, e.IsRewinding())

	sink.pull(1024, 1)

	e.StopRewind()
	require.False(t, e.IsRewinding())
}

func TestToggleFastForward(t *testing.T) {
	e, _ := newOpenEngine(t)
	e.ToggleFastForward()
	require.True(t, e.IsFastForwarding())
	e.ToggleFastForward()
	require.False(t, e.IsFastForwarding())
}

func TestIncreaseSlowSpeedClamps(t *testing.T) {
	e, _ := newOpenEngine(t)
	e.SetSlowSpeed(0.9)
	got := e.IncreaseSlowSpeed(0.5)
	require.Equal(t, float32(1.0), got)

	got = e.IncreaseSlowSpeed(-2.0)
	require.Equal(t, float32(0.2), got)
}
