// Command openscribe-console is a keyboard-emulated foot pedal for
// exercising a dictation mapping without physical hardware: digit keys
// stand in for pedal buttons, raw-mode terminal I/O grounded on
// src/serial_port.go's term.Open(name, term.RawMode) usage.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/term"
	"github.com/spf13/pflag"

	"github.com/mpharoah/openscribe/internal/engineconf"
	"github.com/mpharoah/openscribe/internal/logging"
	"github.com/mpharoah/openscribe/internal/playback"
)

func main() {
	var numButtons = pflag.IntP("buttons", "b", 4, "Number of virtual pedal buttons (max 4).")
	var verbose = pflag.BoolP("verbose", "d", false, "Enable debug logging.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "openscribe-console - keyboard-emulated foot pedal.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: openscribe-console [options] <audio-file>\n")
		fmt.Fprintf(os.Stderr, "Digit keys 0-9 toggle the corresponding virtual button. 'x' or Ctrl-C quits.\n\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}
	if len(pflag.Args()) != 1 {
		fmt.Fprintln(os.Stderr, "exactly one audio file argument is required")
		pflag.Usage()
		os.Exit(1)
	}
	audioFile := pflag.Arg(0)

	logging.Init(*verbose)

	opt := engineconf.Default
	engine := playback.New(nil)
	engine.RegisterErrorHandler(func(code int32) {
		logging.Error("engine reported a fatal error", "code", code)
	})

	if err := engine.OpenFile(audioFile, opt); err != nil {
		logging.Error("could not open audio file", "path", audioFile, "err", err)
		os.Exit(1)
	}

	sink := playback.NewPortAudioSink()
	if err := engine.Start(sink); err != nil {
		logging.Error("could not start audio output", "err", err)
		os.Exit(1)
	}
	defer engine.Stop()

	tty, err := term.Open("/dev/tty", term.RawMode)
	if err != nil {
		logging.Error("could not open controlling terminal in raw mode", "err", err)
		os.Exit(1)
	}
	defer tty.Close()

	dispatch := playback.NewDispatch(engine, int64(opt.SkipBackOnPlayMS))
	kp := newKeyboardPedal(*numButtons)

	fmt.Fprintf(os.Stderr, "openscribe-console ready. Digit keys 0-%d drive the pedal, 'x' quits.\n", kp.conf.Info.NumButtons()-1)

	quit := make(chan struct{})
	runConsole(tty, kp, dispatch.Handle, quit)
}
