package decoder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTestWAV writes a minimal PCM16 WAV file with the given channel count,
// containing a ramp of known sample values, so reads can be checked against
// an exact expectation.
func writeTestWAV(t *testing.T, dir string, frames int, sampleRate uint32, channels uint16) string {
	t.Helper()

	path := filepath.Join(dir, "ramp.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	dataSize := frames * int(channels) * 2
	riffSize := 36 + dataSize

	writeStr := func(s string) { _, _ = f.WriteString(s) }
	writeU32 := func(v uint32) {
		var b [4]byte
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		b[3] = byte(v >> 24)
		_, _ = f.Write(b[:])
	}
	writeU16 := func(v uint16) {
		var b [2]byte
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		_, _ = f.Write(b[:])
	}

	writeStr("RIFF")
	writeU32(uint32(riffSize))
	writeStr("WAVE")
	writeStr("fmt ")
	writeU32(16)
	writeU16(1) // PCM
	writeU16(channels)
	writeU32(sampleRate)
	byteRate := sampleRate * uint32(channels) * 2
	writeU32(byteRate)
	blockAlign := channels * 2
	writeU16(blockAlign)
	writeU16(16) // bit depth
	writeStr("data")
	writeU32(uint32(dataSize))

	for i := 0; i < frames*int(channels); i++ {
		writeU16(uint16(int16(i)))
	}

	return path
}

func TestOpenPublishesFileInfo(t *testing.T) {
	path := writeTestWAV(t, t.TempDir(), 1000, 44100, 2)

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	info := d.FileInfo()
	require.Equal(t, uint32(44100), info.SampleRate)
	require.Equal(t, uint16(2), info.Channels)
	require.Equal(t, int64(2000), info.TotalSamples)
}

func TestReadSequential(t *testing.T) {
	path := writeTestWAV(t, t.TempDir(), 100, 8000, 1)

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	dest := make([]float32, 10)
	n, err := d.Read(0, dest)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.InDelta(t, float32(0)/32768, dest[0], 1e-6)
	require.InDelta(t, float32(5)/32768, dest[5], 1e-6)
}

func TestReadNonSequentialSeeks(t *testing.T) {
	path := writeTestWAV(t, t.TempDir(), 100, 8000, 1)

	d, err := Open(path)
	require.NoError(t, err)
	defer d.Close()

	dest := make([]float32, 4)
	_, err = d.Read(50, dest)
	require.NoError(t, err)
	require.InDelta(t, float32(50)/32768, dest[0], 1e-6)

	_, err = d.Read(10, dest)
	require.NoError(t, err)
	require.InDelta(t, float32(10)/32768, dest[0], 1e-6)
}

func TestRejectsUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-wav.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file at all"), 0o600))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
