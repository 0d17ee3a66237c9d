package playback

// GenerateRewindSFX fills dest (interleaved, channel-aligned) with the
// deterministic rewind sawtooth from spec §6.3, continuing from phase
// startPhase, and returns the phase to resume from on the next call so the
// waveform stays continuous across chunk boundaries.
func GenerateRewindSFX(dest []float32, startPhase int64, channels int) int64 {
	return generateSawtooth(dest, startPhase, channels, 100)
}

// GenerateFastForwardSFX is GenerateRewindSFX's fast-forward counterpart,
// using a period of 80 samples instead of 100.
func GenerateFastForwardSFX(dest []float32, startPhase int64, channels int) int64 {
	return generateSawtooth(dest, startPhase, channels, 80)
}

// generateSawtooth mirrors original_source/dictation.cpp:213-216 exactly:
// the waveform is keyed on the interleaved sample index (stepping by
// channels per frame), not a per-frame counter, so a file with N channels
// advances the sawtooth N steps per frame and cycles N times as often per
// frame as a mono file.
func generateSawtooth(dest []float32, startPhase int64, channels int, period int64) int64 {
	phase := startPhase
	for i := 0; i+channels <= len(dest); i += channels {
		v := float32(0.125 * (float64(phase%period)/float64(period) - 0.5))
		for c := 0; c < channels; c++ {
			dest[i+c] = v
		}
		phase += int64(channels)
	}
	return phase
}
