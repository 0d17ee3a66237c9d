package decoder

import (
	"errors"
	"strconv"
)

// Open-time errors (spec §7). Read and I/O failures after a successful open
// are reported as DecodeError.
var (
	ErrUnsupportedFormat = errors.New("decoder: unsupported format")
	ErrNotSeekable       = errors.New("decoder: backend is not seekable")
	ErrFileTooLarge      = errors.New("decoder: total sample count exceeds 2^32")
	ErrInvalidSampleRate = errors.New("decoder: invalid sample rate")
)

// DecodeError wraps a runtime read failure that survived the close-and-reopen
// retry described in spec §4.1. The Ring Cache treats this as fatal.
type DecodeError struct {
	At  int64
	Err error
}

func (e *DecodeError) Error() string {
	return "decoder: read failed at sample " + strconv.FormatInt(e.At, 10) + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }
