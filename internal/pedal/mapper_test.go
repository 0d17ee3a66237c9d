package pedal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// twoButtonConfig builds the device from spec §8 scenario 4: button 1 is
// Play on primary, button 2 is Modifier on primary; button 1's secondary is
// Rewind.
func twoButtonConfig() *FootPedalConfiguration {
	info := PedalInfo{
		Name:    "test pedal",
		Buttons: map[uint16]uint16{1: 0, 2: 1},
	}
	conf := NewFootPedalConfiguration(info)

	conf.PrimaryButtonActions[0] = Action{Tag: Play}
	conf.SecondaryButtonActions[0] = Action{Tag: Rewind}
	conf.PrimaryButtonActions[1] = Action{Tag: Modifier}

	return conf
}

func TestModifierScenarioFromSpec(t *testing.T) {
	conf := twoButtonConfig()
	state := NewDeviceState(conf)

	var emitted []Action

	// press1 -> Play
	emitted = append(emitted, HandleEvent(conf, state, RawEvent{Index: 0, IsPressed: true})...)
	// press2 (modifier on) -> release Play's active, then press Rewind (now active under modifier)
	emitted = append(emitted, HandleEvent(conf, state, RawEvent{Index: 1, IsPressed: true})...)
	// release1 -> Rewind currently active (modifier is on) -> StopRewind
	emitted = append(emitted, HandleEvent(conf, state, RawEvent{Index: 0, IsPressed: false})...)
	// release2 (modifier off) -> pedal 1 already released, nothing held to re-press
	emitted = append(emitted, HandleEvent(conf, state, RawEvent{Index: 1, IsPressed: false})...)

	require.Equal(t, []Action{
		{Tag: Play},
		{Tag: Pause},
		{Tag: Rewind},
		{Tag: StopRewind},
	}, emitted)
}

func TestUnconfiguredAxisIgnored(t *testing.T) {
	info := PedalInfo{Name: "p", Axes: map[uint16]uint16{0: 0}}
	conf := NewFootPedalConfiguration(info)
	state := NewDeviceState(conf)

	emitted := HandleEvent(conf, state, RawEvent{IsAxis: true, Index: 0, Value: 5000})
	require.Nil(t, emitted)
}

func TestAxisDeadzoneAndInvert(t *testing.T) {
	info := PedalInfo{Name: "p", Axes: map[uint16]uint16{0: 0}}
	conf := NewFootPedalConfiguration(info)
	conf.Deadzone[0] = 0
	conf.PrimaryAxisActions[0] = Action{Tag: FastForward}
	state := NewDeviceState(conf)

	emitted := HandleEvent(conf, state, RawEvent{IsAxis: true, Index: 0, Value: 100})
	require.Equal(t, []Action{{Tag: FastForward}}, emitted)

	// No change in crossing direction: repeat above-deadzone value, expect drop.
	emitted = HandleEvent(conf, state, RawEvent{IsAxis: true, Index: 0, Value: 200})
	require.Nil(t, emitted)

	emitted = HandleEvent(conf, state, RawEvent{IsAxis: true, Index: 0, Value: -100})
	require.Equal(t, []Action{{Tag: StopFastForward}}, emitted)

	// Inverted axis: a value below the deadzone counts as pressed.
	conf.IsInverted[0] = true
	state = NewDeviceState(conf)
	emitted = HandleEvent(conf, state, RawEvent{IsAxis: true, Index: 0, Value: -100})
	require.Equal(t, []Action{{Tag: FastForward}}, emitted)
}

func TestToggleModifierOnlyActsOnPress(t *testing.T) {
	info := PedalInfo{Name: "p", Buttons: map[uint16]uint16{9: 0}}
	conf := NewFootPedalConfiguration(info)
	conf.PrimaryButtonActions[0] = Action{Tag: ToggleModifier}
	state := NewDeviceState(conf)

	emitted := HandleEvent(conf, state, RawEvent{Index: 0, IsPressed: true})
	require.Empty(t, emitted)
	require.True(t, state.ModifierActive)

	emitted = HandleEvent(conf, state, RawEvent{Index: 0, IsPressed: false})
	require.Empty(t, emitted)
	require.True(t, state.ModifierActive, "ToggleModifier does nothing on release")
}

func TestSkipActionCarriesAmount(t *testing.T) {
	info := PedalInfo{Name: "p", Buttons: map[uint16]uint16{1: 0}}
	conf := NewFootPedalConfiguration(info)
	conf.PrimaryButtonActions[0] = Action{Tag: Skip, Amount: -30}
	state := NewDeviceState(conf)

	emitted := HandleEvent(conf, state, RawEvent{Index: 0, IsPressed: true})
	require.Equal(t, []Action{{Tag: Skip, Amount: -30}}, emitted)

	// Skip has no release derivative; releasing drops silently.
	emitted = HandleEvent(conf, state, RawEvent{Index: 0, IsPressed: false})
	require.Nil(t, emitted)
}
