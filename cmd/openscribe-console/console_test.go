package main

import (
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"

	"github.com/mpharoah/openscribe/internal/pedal"
)

func TestHandleKeyTogglesButton(t *testing.T) {
	kp := newKeyboardPedal(4)

	emitted := kp.handleKey('0')
	require.Equal(t, []pedal.Action{{Tag: pedal.TogglePlay}}, emitted)
	require.True(t, kp.state.ButtonDown[0])

	emitted = kp.handleKey('0')
	require.Nil(t, emitted, "TogglePlay has no release derivative")
	require.False(t, kp.state.ButtonDown[0])
}

func TestHandleKeyIgnoresOutOfRangeAndNonDigit(t *testing.T) {
	kp := newKeyboardPedal(2)

	require.Nil(t, kp.handleKey('9'))
	require.Nil(t, kp.handleKey('a'))
}

func TestHandleKeyModifierGatesRewindButton(t *testing.T) {
	kp := newKeyboardPedal(4)

	emitted := kp.handleKey('1') // rewind on
	require.Equal(t, []pedal.Action{{Tag: pedal.Rewind}}, emitted)

	emitted = kp.handleKey('2') // modifier on: releases rewind, presses fast-forward
	require.Equal(t, []pedal.Action{{Tag: pedal.StopRewind}, {Tag: pedal.FastForward}}, emitted)
}

// TestRunConsoleOverRealPTY drives the keyboard pedal through a real
// pseudo-terminal to exercise runConsole's Read loop end to end. The pty is
// left in its default line-buffered mode, so the keystrokes are followed by
// a newline to release them to the reader.
func TestRunConsoleOverRealPTY(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()

	kp := newKeyboardPedal(4)

	var received []pedal.Action
	recorder := func(a pedal.Action) { received = append(received, a) }

	quit := make(chan struct{})
	done := make(chan struct{})
	go func() {
		runConsole(tty, kp, recorder, quit)
		close(done)
	}()

	_, err = ptmx.Write([]byte("0x\n"))
	require.NoError(t, err)

	<-done
	require.Equal(t, []pedal.Action{{Tag: pedal.TogglePlay}}, received)
}
