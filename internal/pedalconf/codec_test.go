package pedalconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mpharoah/openscribe/internal/pedal"
)

// storableTags excludes the four release derivatives (Pause, Unslow,
// StopFastForward, StopRewind), which a configuration never holds directly.
var storableTags = []pedal.ActionTag{
	pedal.Noop, pedal.Play, pedal.TogglePlay, pedal.Slow, pedal.ToggleSlow,
	pedal.FastForward, pedal.ToggleFastForward, pedal.Rewind, pedal.ToggleRewind,
	pedal.Skip, pedal.Restart, pedal.ChangeSlowSpeed, pedal.ToggleModifier, pedal.Modifier,
}

func genAction(t *rapid.T) pedal.Action {
	tag := rapid.SampledFrom(storableTags).Draw(t, "tag")
	a := pedal.Action{Tag: tag}
	if tag == pedal.Skip || tag == pedal.ChangeSlowSpeed {
		a.Amount = int8(rapid.IntRange(-128, 127).Draw(t, "amount"))
	}
	return a
}

func genConfig(t *rapid.T) *pedal.FootPedalConfiguration {
	nb := rapid.IntRange(0, 4).Draw(t, "nb")
	na := rapid.IntRange(0, 3).Draw(t, "na")

	buttons := make(map[uint16]uint16, nb)
	for i := 0; i < nb; i++ {
		buttons[uint16(100+i)] = uint16(i)
	}
	axes := make(map[uint16]uint16, na)
	for i := 0; i < na; i++ {
		axes[uint16(200+i)] = uint16(i)
	}

	info := pedal.PedalInfo{
		Name:    rapid.SampledFrom([]string{"", "acme pedal", "USB Foot Switch", "left pedal v2"}).Draw(t, "name"),
		Buttons: buttons,
		Axes:    axes,
	}
	conf := pedal.NewFootPedalConfiguration(info)

	for i := 0; i < nb; i++ {
		conf.PrimaryButtonActions[i] = genAction(t)
		conf.SecondaryButtonActions[i] = genAction(t)
	}
	for i := 0; i < na; i++ {
		conf.IsInverted[i] = rapid.Bool().Draw(t, "inverted")
		conf.Deadzone[i] = int32(rapid.IntRange(-1000, 1000).Draw(t, "deadzone"))
		conf.PrimaryAxisActions[i] = genAction(t)
		conf.SecondaryAxisActions[i] = genAction(t)
	}

	return conf
}

func TestSaveLoadRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 3).Draw(rt, "ndevices")
		var configs []*pedal.FootPedalConfiguration
		for i := 0; i < n; i++ {
			configs = append(configs, genConfig(rt))
		}

		path := filepath.Join(t.TempDir(), "footpedal.conf")
		require.NoError(rt, Save(path, configs))

		got, err := Load(path)
		require.NoError(rt, err)
		require.Equal(rt, len(configs), len(got))
		for i := range configs {
			require.True(rt, configs[i].Equal(got[i]), "device %d did not round-trip", i)
		}
	})
}

func TestDetectVersionCurrentFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "footpedal.conf")
	require.NoError(t, Save(path, nil))

	v, err := DetectVersion(path)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestDetectVersionLegacyShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "footpedal.conf")
	require.NoError(t, writeRaw(path, []byte("abc")))

	v, err := DetectVersion(path)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestDetectVersionLegacyWrongPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "footpedal.conf")
	require.NoError(t, writeRaw(path, []byte("NOTOSFCHDR")))

	v, err := DetectVersion(path)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestLoadRejectsLegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "footpedal.conf")
	require.NoError(t, writeRaw(path, []byte("legacy-configuration-bytes")))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrLegacyFormat)
}

func writeRaw(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
