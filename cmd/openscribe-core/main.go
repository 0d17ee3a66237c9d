// Command openscribe-core is the headless transcription playback engine:
// it opens an audio file, starts the output pump, and drives playback from
// whatever foot pedal or other evdev input device is plugged in.
//
// Flag handling follows cmd/direwolf/main.go's pflag style: one StringP/
// BoolP/IntP per option plus a pflag.Usage override, without the teacher's
// cgo/C-config bridge (this binary has no legacy C configuration struct to
// populate).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mpharoah/openscribe/internal/engineconf"
	"github.com/mpharoah/openscribe/internal/logging"
	"github.com/mpharoah/openscribe/internal/pedal"
	"github.com/mpharoah/openscribe/internal/pedalconf"
	"github.com/mpharoah/openscribe/internal/playback"
	"github.com/mpharoah/openscribe/internal/sessionlog"
)

const currentVersion = "1.2.0"

func main() {
	var deviceDir = pflag.StringP("device-dir", "i", "/dev/input", "Directory to watch for USB input devices.")
	var pedalConfigPath = pflag.StringP("pedal-config", "p", "", "Foot pedal configuration file (defaults to <config dir>/footpedal.conf).")
	var sessionLogPath = pflag.StringP("session-log", "l", "", "CSV file to append control events to. Empty disables session logging.")
	var verbose = pflag.BoolP("verbose", "d", false, "Enable debug logging.")
	var rewindSpeed = pflag.IntP("rewind-speed", "r", 0, "Override rewind speed multiplier [1, 64]. 0 uses the saved setting.")
	var fastForwardSpeed = pflag.IntP("fast-forward-speed", "f", 0, "Override fast-forward speed multiplier [2, 64]. 0 uses the saved setting.")
	var noSFX = pflag.BoolP("no-sound-effects", "s", false, "Disable rewind/fast-forward sound effects.")

	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "openscribe-core - transcription playback engine.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: openscribe-core [options] <audio-file>\n")
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

	if err := engineconf.Touch(); err != nil {
		logging.Warn("could not record last-run version", "err", err)
	}

	opt := engineconf.Load(engineconf.LastVersion())
	if *rewindSpeed != 0 {
		opt.RewindSpeed = *rewindSpeed
	}
	if *fastForwardSpeed != 0 {
		opt.FastForwardSpeed = *fastForwardSpeed
	}
	if *noSFX {
		opt.PlaySoundEffects = false
	}
	opt = opt.Clamp()

	if err := engineconf.Save(opt); err != nil {
		logging.Warn("could not persist settings", "err", err)
	}
	if v, err := parseCurrentVersion(); err == nil {
		if err := engineconf.SaveVersion(v); err != nil {
			logging.Warn("could not record version", "err", err)
		}
	}

	var sessLog *sessionlog.Logger
	if *sessionLogPath != "" {
		var err error
		sessLog, err = sessionlog.Open(*sessionLogPath, "")
		if err != nil {
			logging.Error("could not open session log", "path", *sessionLogPath, "err", err)
			os.Exit(1)
		}
		defer sessLog.Close()
	}

	engine := playback.New(sessLog)
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

	confPath := *pedalConfigPath
	if confPath == "" {
		confPath = pedalConfigDefaultPath()
	}
	configs, err := pedalconf.Load(confPath)
	if err != nil {
		logging.Warn("no usable pedal configuration on disk, starting with defaults", "path", confPath, "err", err)
		configs = nil
	}

	aliases, err := pedal.LoadAliasTable(pedal.AliasFilePath(engineconf.Dir()))
	if err != nil {
		logging.Warn("could not load device alias table", "err", err)
	}

	dispatch := playback.NewDispatch(engine, int64(opt.SkipBackOnPlayMS))

	coordinator := pedal.New(*deviceDir)
	ok := coordinator.Start(
		dispatch.Handle,
		func(info pedal.PedalInfo, id string) {
			name := info.Name
			if aliases != nil {
				name = aliases.Lookup(info.Name)
			}
			logging.Info("pedal connected", "device", id, "name", name, "protected", info.IsProtected)
		},
		func(id string) {
			logging.Info("pedal disconnected", "device", id)
		},
		nil, // onRawEvent: unused in Dictation-only mode
		configs,
	)
	if !ok {
		logging.Warn("pedal coordinator could not watch device directory", "dir", *deviceDir)
	}
	defer coordinator.Stop()

	waitForShutdownSignal()
}

func pedalConfigDefaultPath() string {
	return filepath.Join(engineconf.Dir(), "footpedal.conf")
}

func parseCurrentVersion() (engineconf.Version, error) {
	var v engineconf.Version
	_, err := fmt.Sscanf(currentVersion, "%d.%d.%d", &v.Major, &v.Minor, &v.Patch)
	return v, err
}

func waitForShutdownSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logging.Info("shutting down")
	time.Sleep(50 * time.Millisecond) // let in-flight log lines flush
}
