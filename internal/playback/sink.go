package playback

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Sink abstracts the audio output device. Start wires next as the driving
// callback: next is invoked on the audio thread once per buffer and must
// return quickly, per spec §9's design note modeling the sink's callback as
// a short synchronous "produce one chunk" call rather than an
// unbounded-lifetime C callback capturing engine state.
type Sink interface {
	Start(channels int, sampleRate float64, framesPerBuffer int, next func(out []float32)) error
	Stop() error
}

// PortAudioSink drives gordonklaus/portaudio's callback-based
// OpenDefaultStream, grounded on the teacher's src/audio.go buffer-sizing
// conventions (a fixed frames-per-buffer chosen from the configured chunk
// size) — replacing Dire Wolf's CGo ALSA/OSS backend and the original
// OpenScribe's raw PulseAudio mainloop with the one real-time audio
// dependency the teacher's go.mod already declares but never imports.
type PortAudioSink struct {
	stream *portaudio.Stream
}

// NewPortAudioSink returns an unstarted sink.
func NewPortAudioSink() *PortAudioSink { return &PortAudioSink{} }

func (p *PortAudioSink) Start(channels int, sampleRate float64, framesPerBuffer int, next func(out []float32)) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("playback: portaudio init: %w", err)
	}

	stream, err := portaudio.OpenDefaultStream(0, channels, sampleRate, framesPerBuffer, next)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("playback: open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("playback: start stream: %w", err)
	}

	p.stream = stream
	return nil
}

func (p *PortAudioSink) Stop() error {
	if p.stream == nil {
		return nil
	}

	if err := p.stream.Stop(); err != nil {
		return err
	}
	if err := p.stream.Close(); err != nil {
		return err
	}
	p.stream = nil

	return portaudio.Terminate()
}
