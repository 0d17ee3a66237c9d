// Package logging provides the one process-wide leveled logger used across
// the playback core and the input-device coordinator.
//
// This replaces the teacher's hand-rolled text_color_set/dw_printf pairing
// (src/textcolor.go, src/log.go in the Dire Wolf port) with a real structured
// logger. Colors still mean something: errors are loud, debug is quiet.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05.000",
})

// Init sets the minimum level that will be emitted. verbose requests debug
// output, matching the -d / --verbose flags on cmd/openscribe-core.
func Init(verbose bool) {
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

func Debug(msg string, kv ...interface{}) { logger.Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { logger.Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { logger.Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { logger.Error(msg, kv...) }

// With returns a child logger carrying a fixed set of key/value pairs, for
// per-device or per-file log lines (e.g. logging.With("device", name)).
func With(kv ...interface{}) *log.Logger {
	return logger.With(kv...)
}
