package pedal

// RawEvent is one probed button or axis transition, addressed by dense
// button/axis index; an axis event carries the raw value, and HandleEvent
// applies the axis's deadzone and inversion (spec §4.5's per-device loop
// takes these as input).
type RawEvent struct {
	IsAxis    bool
	Index     uint16
	IsPressed bool  // for a button event
	Value     int32 // raw axis value, for an axis event
}

// DeviceState is the per-device mutable state the dictation loop owns: one
// button_down[]/axis_down[] bitmap plus the modifier latch (spec §4.5).
type DeviceState struct {
	ButtonDown     []bool
	AxisDown       []bool
	ModifierActive bool
}

// NewDeviceState allocates bitmaps sized for conf.
func NewDeviceState(conf *FootPedalConfiguration) *DeviceState {
	return &DeviceState{
		ButtonDown: make([]bool, conf.Info.NumButtons()),
		AxisDown:   make([]bool, conf.Info.NumAxes()),
	}
}

// HandleEvent is the pure per-device event handler described in spec §4.5:
// given the incoming raw event, the device's configuration, and its mutable
// state, it returns the (possibly empty) sequence of Actions to emit to the
// engine, in order.
//
// Factored out as a pure function (conf, state) -> actions so configuration
// reload can reuse it in unit tests without a live device (spec §4.6).
func HandleEvent(conf *FootPedalConfiguration, state *DeviceState, ev RawEvent) []Action {
	if ev.IsAxis {
		return handleAxisEvent(conf, state, ev)
	}
	return handleButtonEvent(conf, state, ev)
}

func handleButtonEvent(conf *FootPedalConfiguration, state *DeviceState, ev RawEvent) []Action {
	state.ButtonDown[ev.Index] = ev.IsPressed

	action := selectAction(conf.PrimaryButtonActions[ev.Index], conf.SecondaryButtonActions[ev.Index], state.ModifierActive)
	return processAction(conf, state, action, ev.IsPressed)
}

func handleAxisEvent(conf *FootPedalConfiguration, state *DeviceState, ev RawEvent) []Action {
	deadzone := conf.Deadzone[ev.Index]
	if deadzone == UnconfiguredDeadzone {
		return nil
	}

	isPressed := (ev.Value > deadzone) != conf.IsInverted[ev.Index] // XOR
	if isPressed == state.AxisDown[ev.Index] {
		return nil // unchanged: drop
	}
	state.AxisDown[ev.Index] = isPressed

	action := selectAction(conf.PrimaryAxisActions[ev.Index], conf.SecondaryAxisActions[ev.Index], state.ModifierActive)
	return processAction(conf, state, action, isPressed)
}

// selectAction implements spec §4.5's primary/secondary gate: use primary
// if the modifier is inactive, or if the primary slot is itself a modifier
// action (so the modifier pedal's own mapping is never shadowed by itself).
func selectAction(primary, secondary Action, modifierActive bool) Action {
	if !modifierActive || primary.IsModifier() {
		return primary
	}
	return secondary
}

func processAction(conf *FootPedalConfiguration, state *DeviceState, action Action, isPressed bool) []Action {
	switch action.Tag {
	case Noop:
		return nil

	case Modifier:
		// Hold-type: switches on both press and release.
		return modifierSwitch(conf, state)

	case ToggleModifier:
		if !isPressed {
			return nil
		}
		return modifierSwitch(conf, state)

	default:
		if isPressed {
			return []Action{action}
		}
		release := action.ReleaseAction()
		if release.Tag == Noop {
			return nil
		}
		return []Action{release}
	}
}

// modifierSwitch implements spec §4.5's modifier switch sub-protocol: for
// every currently-pressed non-modifier pedal, release its active action
// (under the old modifier state), flip the latch, then press its new active
// action (under the new modifier state) — all within the caller's single
// funnel-locked critical section, so the engine never observes the pedal as
// "not held" mid-transition.
func modifierSwitch(conf *FootPedalConfiguration, state *DeviceState) []Action {
	var emitted []Action

	emitted = append(emitted, releaseHeldNonModifiers(conf, state)...)
	state.ModifierActive = !state.ModifierActive
	emitted = append(emitted, pressHeldNonModifiers(conf, state)...)

	return emitted
}

func releaseHeldNonModifiers(conf *FootPedalConfiguration, state *DeviceState) []Action {
	var emitted []Action

	for i, down := range state.ButtonDown {
		if !down {
			continue
		}
		action := selectAction(conf.PrimaryButtonActions[i], conf.SecondaryButtonActions[i], state.ModifierActive)
		if action.IsModifier() || action.Tag == Noop {
			continue
		}
		if release := action.ReleaseAction(); release.Tag != Noop {
			emitted = append(emitted, release)
		}
	}

	for i, down := range state.AxisDown {
		if !down {
			continue
		}
		action := selectAction(conf.PrimaryAxisActions[i], conf.SecondaryAxisActions[i], state.ModifierActive)
		if action.IsModifier() || action.Tag == Noop {
			continue
		}
		if release := action.ReleaseAction(); release.Tag != Noop {
			emitted = append(emitted, release)
		}
	}

	return emitted
}

func pressHeldNonModifiers(conf *FootPedalConfiguration, state *DeviceState) []Action {
	var emitted []Action

	for i, down := range state.ButtonDown {
		if !down {
			continue
		}
		action := selectAction(conf.PrimaryButtonActions[i], conf.SecondaryButtonActions[i], state.ModifierActive)
		if action.IsModifier() || action.Tag == Noop {
			continue
		}
		emitted = append(emitted, action)
	}

	for i, down := range state.AxisDown {
		if !down {
			continue
		}
		action := selectAction(conf.PrimaryAxisActions[i], conf.SecondaryAxisActions[i], state.ModifierActive)
		if action.IsModifier() || action.Tag == Noop {
			continue
		}
		emitted = append(emitted, action)
	}

	return emitted
}
