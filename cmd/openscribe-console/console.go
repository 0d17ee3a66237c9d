// The keyboard pedal: digit keys 0-9 toggle the corresponding virtual
// button, reusing pedal.HandleEvent/DeviceState exactly as a real evdev
// reader would, so a dictation mapping can be exercised without hardware.
package main

import "github.com/mpharoah/openscribe/internal/pedal"

const maxConsoleButtons = 4

type keyboardPedal struct {
	conf  *pedal.FootPedalConfiguration
	state *pedal.DeviceState
}

// newKeyboardPedal builds a numButtons-button virtual device with a small
// default mapping: button 0 toggles play, button 1 is rewind (with
// fast-forward on the modifier), button 2 is the modifier, button 3 skips
// forward 5s.
func newKeyboardPedal(numButtons int) *keyboardPedal {
	if numButtons > maxConsoleButtons {
		numButtons = maxConsoleButtons
	}

	buttons := make(map[uint16]uint16, numButtons)
	for i := 0; i < numButtons; i++ {
		buttons[uint16(i)] = uint16(i)
	}

	conf := pedal.NewFootPedalConfiguration(pedal.PedalInfo{Name: "keyboard console", Buttons: buttons})

	if numButtons > 0 {
		conf.PrimaryButtonActions[0] = pedal.Action{Tag: pedal.TogglePlay}
	}
	if numButtons > 1 {
		conf.PrimaryButtonActions[1] = pedal.Action{Tag: pedal.Rewind}
		conf.SecondaryButtonActions[1] = pedal.Action{Tag: pedal.FastForward}
	}
	if numButtons > 2 {
		conf.PrimaryButtonActions[2] = pedal.Action{Tag: pedal.Modifier}
	}
	if numButtons > 3 {
		conf.PrimaryButtonActions[3] = pedal.Action{Tag: pedal.Skip, Amount: 50}
	}

	return &keyboardPedal{conf: conf, state: pedal.NewDeviceState(conf)}
}

// handleKey maps one ASCII digit keystroke to a press/release toggle on the
// corresponding button and returns whatever Actions fall out of the mapper.
// Any other byte is ignored.
func (k *keyboardPedal) handleKey(b byte) []pedal.Action {
	if b < '0' || b > '9' {
		return nil
	}
	idx := uint16(b - '0')
	if int(idx) >= k.conf.Info.NumButtons() {
		return nil
	}

	pressed := !k.state.ButtonDown[idx]
	return pedal.HandleEvent(k.conf, k.state, pedal.RawEvent{Index: idx, IsPressed: pressed})
}
