// Package pedal implements the input-device coordinator, action mapper, and
// the data types they share (spec §3, §4.5, §4.6): PedalInfo,
// FootPedalConfiguration, and Action.
//
// Grounded on original_source/actions.hpp and original_source/footPedal.hpp
// for the type shapes and equality semantics, reimplemented without manual
// memory management: Go maps and slices replace the originals'
// new[]/delete[] pairs and std::map<unsigned short, unsigned short>.
package pedal

// ActionTag is Action's discriminant (original_source/actions.hpp's
// anonymous enum).
type ActionTag uint8

const (
	Noop ActionTag = iota
	Play
	TogglePlay
	Slow
	ToggleSlow
	FastForward
	ToggleFastForward
	Rewind
	ToggleRewind
	Skip
	Restart
	ChangeSlowSpeed
	// Release derivatives: never stored in a configuration, only emitted.
	Pause
	Unslow
	StopFastForward
	StopRewind
	// Configuration-only: never delivered to the engine.
	ToggleModifier
	Modifier
)

// Action is a tagged value: Amount carries the signed payload for Skip
// (deciseconds) and ChangeSlowSpeed (percent); zero for every other tag.
type Action struct {
	Tag    ActionTag
	Amount int8
}

// ReleaseAction returns the release derivative of a (stored on press. Every
// tag other than the four below releases to Noop and is dropped by the
// caller.
func (a Action) ReleaseAction() Action {
	b := a
	switch a.Tag {
	case Play:
		b.Tag = Pause
	case Slow:
		b.Tag = Unslow
	case FastForward:
		b.Tag = StopFastForward
	case Rewind:
		b.Tag = StopRewind
	default:
		b.Tag = Noop
	}
	return b
}

// IsModifier reports whether a is one of the two configuration-only
// modifier tags.
func (a Action) IsModifier() bool {
	return a.Tag == Modifier || a.Tag == ToggleModifier
}

// PedalInfo is the per-device descriptor published by the coordinator's
// probe (spec §3). Two PedalInfos are equal iff IsProtected matches, both
// mappings have the same size, and the names match — ported directly from
// original_source/footPedal.hpp's PedalInfo::operator==.
type PedalInfo struct {
	Name        string
	IsProtected bool
	Buttons     map[uint16]uint16 // event code -> dense button index
	Axes        map[uint16]uint16 // event code -> dense axis index
	AxisMin     []int32            // indexed by axis index
	AxisMax     []int32
}

func (p PedalInfo) NumButtons() int { return len(p.Buttons) }
func (p PedalInfo) NumAxes() int    { return len(p.Axes) }

// Equal implements original_source/footPedal.hpp's PedalInfo::operator==.
func (p PedalInfo) Equal(other PedalInfo) bool {
	return p.IsProtected == other.IsProtected &&
		len(p.Buttons) == len(other.Buttons) &&
		len(p.Axes) == len(other.Axes) &&
		p.Name == other.Name
}

// UnconfiguredDeadzone is the sentinel marking an axis with no configured
// action (spec §3).
const UnconfiguredDeadzone int32 = 0x7FFFFFFF

// FootPedalConfiguration is a device's full action table: four parallel
// arrays indexed by button or axis index, plus per-axis calibration.
type FootPedalConfiguration struct {
	Info PedalInfo

	IsInverted []bool
	Deadzone   []int32

	PrimaryButtonActions   []Action
	SecondaryButtonActions []Action
	PrimaryAxisActions     []Action
	SecondaryAxisActions   []Action
}

// NewFootPedalConfiguration allocates a configuration sized for info, with
// every action defaulted to Noop and every axis unconfigured.
func NewFootPedalConfiguration(info PedalInfo) *FootPedalConfiguration {
	nb, na := info.NumButtons(), info.NumAxes()

	c := &FootPedalConfiguration{
		Info:                   info,
		IsInverted:             make([]bool, na),
		Deadzone:               make([]int32, na),
		PrimaryButtonActions:   make([]Action, nb),
		SecondaryButtonActions: make([]Action, nb),
		PrimaryAxisActions:     make([]Action, na),
		SecondaryAxisActions:   make([]Action, na),
	}
	for i := range c.Deadzone {
		c.Deadzone[i] = UnconfiguredDeadzone
	}

	return c
}

// Equal ports original_source/footPedal.hpp's FootPedalConfiguration's
// operator== field-by-field.
func (c *FootPedalConfiguration) Equal(other *FootPedalConfiguration) bool {
	if !c.Info.Equal(other.Info) {
		return false
	}
	if c.Info.NumAxes() != other.Info.NumAxes() || c.Info.NumButtons() != other.Info.NumButtons() {
		return false
	}

	for i := 0; i < c.Info.NumAxes(); i++ {
		if c.IsInverted[i] != other.IsInverted[i] ||
			c.Deadzone[i] != other.Deadzone[i] ||
			c.PrimaryAxisActions[i] != other.PrimaryAxisActions[i] ||
			c.SecondaryAxisActions[i] != other.SecondaryAxisActions[i] {
			return false
		}
	}

	for i := 0; i < c.Info.NumButtons(); i++ {
		if c.PrimaryButtonActions[i] != other.PrimaryButtonActions[i] ||
			c.SecondaryButtonActions[i] != other.SecondaryButtonActions[i] {
			return false
		}
	}

	return true
}

// PedalEvent is the normalized event forwarded to a Configuration-mode
// editor (spec §4.5).
type PedalEvent struct {
	IsAxis             bool
	Index              uint16
	IsPressed          bool    // button event
	NormalizedPosition float64 // axis event, in [0, 1]
}
