package playback

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// sawtooth reproduces original_source/dictation.cpp:213-216's reference
// formula directly from the interleaved sample index, independent of
// generateSawtooth's implementation, so the test can catch a regression in
// either the stepping or the per-channel mirroring.
func sawtooth(i int64, period int64) float32 {
	return float32(0.125 * (float64(i%period)/float64(period) - 0.5))
}

func TestGenerateRewindSFXMonoMatchesFormula(t *testing.T) {
	dest := make([]float32, 10)
	GenerateRewindSFX(dest, 0, 1)

	for i, v := range dest {
		require.InDelta(t, sawtooth(int64(i), 100), v, 1e-6, "sample %d", i)
	}
}

// TestGenerateRewindSFXStereoStepsByInterleavedIndex is spec §6.3/§8's SFX
// determinism property for a multichannel buffer: the waveform must advance
// one step per frame along the interleaved index (i += channels), with every
// channel in a frame carrying the same value, not one step per frame counted
// separately from the interleaving.
func TestGenerateRewindSFXStereoStepsByInterleavedIndex(t *testing.T) {
	const channels = 2
	dest := make([]float32, 20) // 10 stereo frames

	GenerateRewindSFX(dest, 0, channels)

	for frame := 0; frame < len(dest)/channels; frame++ {
		i := int64(frame * channels)
		want := sawtooth(i, 100)
		require.InDelta(t, want, dest[frame*channels], 1e-6, "frame %d left", frame)
		require.InDelta(t, want, dest[frame*channels+1], 1e-6, "frame %d right", frame)
	}
}

func TestGenerateFastForwardSFXUsesShorterPeriod(t *testing.T) {
	dest := make([]float32, 8)
	GenerateFastForwardSFX(dest, 0, 1)

	for i, v := range dest {
		require.InDelta(t, sawtooth(int64(i), 80), v, 1e-6, "sample %d", i)
	}
}

func TestGenerateRewindSFXPhaseContinuesAcrossChunks(t *testing.T) {
	const channels = 2
	first := make([]float32, 6) // 3 frames
	next := GenerateRewindSFX(first, 0, channels)
	require.Equal(t, int64(6), next)

	second := make([]float32, 6)
	GenerateRewindSFX(second, next, channels)

	want := sawtooth(6, 100)
	require.InDelta(t, want, second[0], 1e-6)
	require.InDelta(t, want, second[1], 1e-6)
}
