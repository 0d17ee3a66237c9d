// Package decoder opens a WAV file, publishes its FileInfo, and serves
// frame-addressed reads of 32-bit float PCM at an arbitrary sample offset
// (spec §4.1).
//
// Grounded on schollz/collidertracker's internal/getbpm/getbpm.go for the
// go-audio/wav header-parsing surface (NewDecoder, ReadInfo, IsValidFile,
// FwdToPCM, PCMLen, SampleRate, NumChans, BitDepth, WavAudioFormat). That
// library's only read API, PCMBuffer, streams sequentially; the Ring Cache
// above us seeks to arbitrary, non-monotonic offsets on every scrub, so
// frame reads here bypass PCMBuffer entirely and seek the underlying
// *os.File directly past the PCM chunk's byte offset.
package decoder

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/wav"
)

const (
	wavFormatPCM       = 1
	wavFormatExtensible = 65534
)

// FileInfo is the immutable per-open-file descriptor (spec §3).
type FileInfo struct {
	SampleRate   uint32
	Channels     uint16
	TotalSamples int64 // interleaved sample count (frames × channels); TotalSamples % Channels == 0
}

// Decoder serves frame-addressed reads against one open WAV file. Not safe
// for concurrent use by multiple goroutines: the Ring Cache's single
// producer thread is the only caller.
type Decoder struct {
	path string
	f    *os.File

	info FileInfo

	bitDepth  uint16
	pcmOffset int64 // byte offset of the first PCM sample in f
	pcmBytes  int64 // total PCM byte length

	head int64 // current absolute frame position of f's read cursor
}

// Open decodes the WAV header and positions the file at the first PCM frame.
func Open(path string) (*Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decoder: open %s: %w", path, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, ErrNotSeekable
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, ErrUnsupportedFormat
	}

	d.ReadInfo()
	if d.Err() != nil {
		f.Close()
		return nil, fmt.Errorf("decoder: read header: %w", d.Err())
	}

	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		f.Close()
		return nil, ErrUnsupportedFormat
	}

	if d.SampleRate == 0 {
		f.Close()
		return nil, ErrInvalidSampleRate
	}

	if d.NumChans == 0 {
		f.Close()
		return nil, ErrUnsupportedFormat
	}

	switch d.BitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		return nil, ErrUnsupportedFormat
	}

	d.FwdToPCM()
	pcmOffset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return nil, ErrNotSeekable
	}

	pcmBytes := int64(d.PCMLen())
	bytesPerFrame := int64(d.NumChans) * int64(d.BitDepth/8)
	if bytesPerFrame == 0 {
		f.Close()
		return nil, ErrUnsupportedFormat
	}

	totalFrames := pcmBytes / bytesPerFrame
	if totalFrames >= 1<<32 {
		f.Close()
		return nil, ErrFileTooLarge
	}

	return &Decoder{
		path: path,
		f:    f,
		info: FileInfo{
			SampleRate:   d.SampleRate,
			Channels:     d.NumChans,
			TotalSamples: totalFrames * int64(d.NumChans),
		},
		bitDepth:  d.BitDepth,
		pcmOffset: pcmOffset,
		pcmBytes:  pcmBytes,
		head:      0,
	}, nil
}

// FileInfo returns the immutable descriptor published at Open.
func (d *Decoder) FileInfo() FileInfo { return d.info }

// Close releases the underlying file handle.
func (d *Decoder) Close() error { return d.f.Close() }

func (d *Decoder) bytesPerFrame() int64 {
	return int64(d.info.Channels) * int64(d.bitDepth/8)
}

// Read fills dest (interleaved float32 samples, len(dest) a multiple of
// Channels) starting at absolute frame-aligned sample offset at. It returns
// the number of samples written, which is less than len(dest) only at EOF.
//
// A zero-byte, non-EOF read from the backend triggers one close-and-reopen
// retry at the last known head (spec §4.1); a second failure is reported as
// DecodeError. This mirrors the defensive reopen Dire Wolf's audio_open/read
// retry loop performs around flaky device reads in its ALSA backend.
func (d *Decoder) Read(at int64, dest []float32) (int, error) {
	if at != d.head {
		if err := d.seekTo(at); err != nil {
			return 0, &DecodeError{At: at, Err: err}
		}
	}

	stalled := func(n int) bool {
		return n == 0 && len(dest) > 0 && at < d.info.TotalSamples
	}

	n, err := d.readRaw(dest)
	if err == nil && stalled(n) {
		err = io.ErrNoProgress
	}
	if err != nil {
		if reopenErr := d.reopen(at); reopenErr != nil {
			return 0, &DecodeError{At: at, Err: reopenErr}
		}
		n, err = d.readRaw(dest)
		if err == nil && stalled(n) {
			err = io.ErrNoProgress
		}
		if err != nil {
			return 0, &DecodeError{At: at, Err: err}
		}
	}

	d.head = at + int64(n)
	return n, nil
}

func (d *Decoder) seekTo(at int64) error {
	frame := at / int64(d.info.Channels)
	byteOffset := d.pcmOffset + frame*d.bytesPerFrame()
	if _, err := d.f.Seek(byteOffset, io.SeekStart); err != nil {
		return err
	}
	d.head = at
	return nil
}

// readRaw reads raw PCM bytes for len(dest) samples and converts to float32
// in [-1, 1), scaling signed integer samples by 1/2^(bitDepth-1).
func (d *Decoder) readRaw(dest []float32) (int, error) {
	if len(dest) == 0 {
		return 0, nil
	}

	bytesPerSample := int(d.bitDepth / 8)
	raw := make([]byte, len(dest)*bytesPerSample)

	n, err := io.ReadFull(d.f, raw)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, err
	}

	samplesRead := n / bytesPerSample
	if samplesRead == 0 && n != 0 {
		return 0, fmt.Errorf("decoder: truncated sample at tail of file")
	}

	switch d.bitDepth {
	case 8:
		for i := 0; i < samplesRead; i++ {
			dest[i] = (float32(raw[i]) - 128) / 128
		}
	case 16:
		for i := 0; i < samplesRead; i++ {
			v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			dest[i] = float32(v) / float32(math.MaxInt16+1)
		}
	case 24:
		for i := 0; i < samplesRead; i++ {
			b := raw[i*3 : i*3+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			dest[i] = float32(v) / float32(1<<23)
		}
	case 32:
		for i := 0; i < samplesRead; i++ {
			v := int32(binary.LittleEndian.Uint32(raw[i*4:]))
			dest[i] = float32(float64(v) / float64(math.MaxInt32+1))
		}
	}

	return samplesRead, nil
}

func (d *Decoder) reopen(at int64) error {
	if err := d.f.Close(); err != nil {
		return err
	}

	f, err := os.Open(d.path)
	if err != nil {
		return err
	}

	d.f = f
	return d.seekTo(at)
}
