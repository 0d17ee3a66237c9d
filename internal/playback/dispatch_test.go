package playback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mpharoah/openscribe/internal/pedal"
)

func TestDispatchPlaySkipsBackFirst(t *testing.T) {
	e, sink := newOpenEngine(t)
	e.SetPositionMs(5000)

	d := NewDispatch(e, 1000)
	d.Handle(pedal.Action{Tag: pedal.Play})

	require.False(t, e.IsPaused())
	require.InDelta(t, 4000, e.GetPositionMs(), 50)

	sink.pull(1024, 1) // drain so t.Cleanup(e.Stop) doesn't race the reader
}

func TestDispatchPlayWithNoSkipBackConfigured(t *testing.T) {
	e, sink := newOpenEngine(t)
	e.SetPositionMs(5000)

	d := NewDispatch(e, 0)
	d.Handle(pedal.Action{Tag: pedal.Play})

	require.InDelta(t, 5000, e.GetPositionMs(), 50)
	sink.pull(1024, 1)
}

func TestDispatchPauseStopsPlayback(t *testing.T) {
	e, sink := newOpenEngine(t)
	d := NewDispatch(e, 0)

	d.Handle(pedal.Action{Tag: pedal.Play})
	d.Handle(pedal.Action{Tag: pedal.Pause})

	require.True(t, e.IsPaused())
	sink.pull(1024, 1)
}

func TestDispatchSkipUsesDeciseconds(t *testing.T) {
	e, sink := newOpenEngine(t)
	d := NewDispatch(e, 0)

	d.Handle(pedal.Action{Tag: pedal.Skip, Amount: 50}) // 5s

	require.InDelta(t, 5000, e.GetPositionMs(), 50)
	sink.pull(1024, 1)
}

func TestDispatchChangeSlowSpeed(t *testing.T) {
	e, sink := newOpenEngine(t)
	d := NewDispatch(e, 0)

	d.Handle(pedal.Action{Tag: pedal.ChangeSlowSpeed, Amount: -10})

	current := e.IncreaseSlowSpeed(0) // read back without mutating
	require.InDelta(t, 0.6, current, 0.001)
	sink.pull(1024, 1)
}
