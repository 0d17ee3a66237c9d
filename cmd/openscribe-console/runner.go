package main

import (
	"io"

	"github.com/mpharoah/openscribe/internal/pedal"
)

// runConsole reads one byte at a time from r, calling handle for every
// Action the keyboard pedal produces, until 'x', Ctrl-C (0x03), EOF, or quit
// fires. handle is normally (*playback.Dispatch).Handle; tests pass a
// recorder instead.
func runConsole(r io.Reader, kp *keyboardPedal, handle func(pedal.Action), quit <-chan struct{}) {
	buf := make([]byte, 1)

	for {
		select {
		case <-quit:
			return
		default:
		}

		n, err := r.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		b := buf[0]
		if b == 'x' || b == 0x03 {
			return
		}

		for _, a := range kp.handleKey(b) {
			handle(a)
		}
	}
}
