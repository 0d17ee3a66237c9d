package playback

import "github.com/mpharoah/openscribe/internal/pedal"

// Dispatch is the glue between the Input Device Coordinator's Action stream
// and an Engine. It owns exactly one composite the engine itself must not
// know about: "play with skip-back" (spec §4.4's closing note — the
// coordinator, not the engine, issues skip_back(skip_back_on_play) before
// Play).
type Dispatch struct {
	engine           *Engine
	skipBackOnPlayMs int64
}

// NewDispatch wires engine to receive commands derived from pedal Actions.
// skipBackOnPlayMs is Options.SkipBackOnPlayMS for the currently open file.
func NewDispatch(engine *Engine, skipBackOnPlayMs int64) *Dispatch {
	return &Dispatch{engine: engine, skipBackOnPlayMs: skipBackOnPlayMs}
}

// SetSkipBackOnPlay updates the skip-back duration applied to future Play
// actions (e.g. after opening a different file with different Options).
func (d *Dispatch) SetSkipBackOnPlay(ms int64) {
	d.skipBackOnPlayMs = ms
}

// Handle applies one Action to the engine, exactly as the coordinator would
// deliver it from the event funnel (spec §4.5: "the engine treats those as
// independent commands").
func (d *Dispatch) Handle(a pedal.Action) {
	switch a.Tag {
	case pedal.Play:
		if d.skipBackOnPlayMs > 0 {
			d.engine.SkipForward(-d.skipBackOnPlayMs)
		}
		d.engine.Play()
	case pedal.Pause:
		d.engine.Pause()
	case pedal.TogglePlay:
		d.engine.TogglePlay()
	case pedal.Slow:
		d.engine.Slow()
	case pedal.Unslow:
		d.engine.Unslow()
	case pedal.ToggleSlow:
		d.engine.ToggleSlow()
	case pedal.FastForward:
		d.engine.StartFastForward()
	case pedal.StopFastForward:
		d.engine.StopFastForward()
	case pedal.ToggleFastForward:
		d.engine.ToggleFastForward()
	case pedal.Rewind:
		d.engine.StartRewind()
	case pedal.StopRewind:
		d.engine.StopRewind()
	case pedal.ToggleRewind:
		d.engine.ToggleRewind()
	case pedal.Skip:
		d.engine.SkipForward(int64(a.Amount) * 100) // Amount is deciseconds
	case pedal.Restart:
		d.engine.SetPositionMs(0)
	case pedal.ChangeSlowSpeed:
		d.engine.IncreaseSlowSpeed(float32(a.Amount) / 100)
	case pedal.Noop:
		// nothing to do
	}
}
