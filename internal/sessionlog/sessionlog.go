// Package sessionlog records a CSV trail of transcriber control events
// (play/pause/seek/mode changes) for later review.
//
// Purpose: grounded on the teacher's src/log.go ("Save received packets to a
// log file... write separated properties into CSV format for easy reading"),
// re-purposed here for dictation control events instead of AX.25 frames.
package sessionlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// Default matches the teacher's strftime-formatted timestamp convention
// (src/tq.go, src/xmit.go: strftime.Format(timestamp_format, time.Now())).
const DefaultTimestampFormat = "%Y-%m-%d %H:%M:%S"

// Logger appends one CSV row per recorded event. It is safe for concurrent use.
type Logger struct {
	mu        sync.Mutex
	w         *csv.Writer
	f         *os.File
	formatter *strftime.Strftime
}

// Open creates or appends to path, writing a header row if the file is new.
func Open(path string, timestampFormat string) (*Logger, error) {
	if timestampFormat == "" {
		timestampFormat = DefaultTimestampFormat
	}

	formatter, err := strftime.New(timestampFormat)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: invalid timestamp format %q: %w", timestampFormat, err)
	}

	needsHeader := false
	if info, statErr := os.Stat(path); statErr != nil || info.Size() == 0 {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: open %s: %w", path, err)
	}

	l := &Logger{w: csv.NewWriter(f), f: f, formatter: formatter}

	if needsHeader {
		_ = l.w.Write([]string{"timestamp", "event", "position_ms", "detail"})
		l.w.Flush()
	}

	return l, nil
}

// Record appends one event row, flushing immediately so a crash does not
// lose the trailing entry.
func (l *Logger) Record(event string, positionMS int64, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.formatter.FormatString(time.Now())
	_ = l.w.Write([]string{ts, event, fmt.Sprintf("%d", positionMS), detail})
	l.w.Flush()
}

// Close flushes and releases the underlying file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.w.Flush()
	return l.f.Close()
}
