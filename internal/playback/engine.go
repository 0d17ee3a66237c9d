// Package playback implements the mode machine and output pump from spec
// §4.4: it drives an audio sink with exactly one chunk per callback, mixing
// in synthesized scan SFX in Rewind/FastForward, and advancing the logical
// file position.
//
// Grounded on original_source/dictation.cpp's fetchAudioData/mainloop (mode
// dispatch, the pause condition-variable wait, position clamping) and on the
// teacher's src/audio.go buffer-sizing conventions.
package playback

import (
	"fmt"
	"sync"

	"github.com/mpharoah/openscribe/internal/decoder"
	"github.com/mpharoah/openscribe/internal/engineconf"
	"github.com/mpharoah/openscribe/internal/logging"
	"github.com/mpharoah/openscribe/internal/ringcache"
	"github.com/mpharoah/openscribe/internal/sessionlog"
	"github.com/mpharoah/openscribe/internal/stretch"
)

// Mode is the engine's scan mode (spec §3).
type Mode int

const (
	Normal Mode = iota
	Rewind
	FastForward
)

// PlaybackState is the engine's runtime snapshot (spec §3).
type PlaybackState struct {
	Position     int64
	Mode         Mode
	Paused       bool
	Slowed       bool
	SlowSpeed    float32
	RewindSpeed  int
	FFwdSpeed    int
	PlaySFX      bool
}

// Engine is the playback mode machine and output pump. The zero value is
// not usable; construct with New.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	alive  bool
	isOpen bool

	filename string
	dec      *decoder.Decoder
	cache    *ringcache.RingCache
	stretcher *stretch.StretcherState

	info decoder.FileInfo
	opt  engineconf.Options

	state PlaybackState

	rewindPhase int64
	ffwdPhase   int64

	errHandler func(int32)
	sessionLog *sessionlog.Logger

	sink        Sink
	ready       chan []float32
	quit        chan struct{}
	chunkFrames int64
}

// New creates a closed Engine. sessionLog may be nil.
func New(sessionLog *sessionlog.Logger) *Engine {
	e := &Engine{sessionLog: sessionLog}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// RegisterErrorHandler installs fn, invoked with a taxonomy code (spec §7)
// whenever an unrecoverable runtime error closes the engine.
func (e *Engine) RegisterErrorHandler(fn func(int32)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errHandler = fn
}

// Taxonomy codes passed to the registered error handler.
const (
	ErrCodeDecode int32 = iota + 1
	ErrCodeSink
)

// OpenFile opens path, replacing any currently open file. Playback starts
// paused at position 0.
func (e *Engine) OpenFile(path string, opt engineconf.Options) error {
	opt = opt.Clamp()

	dec, err := decoder.Open(path)
	if err != nil {
		return err
	}
	info := dec.FileInfo()

	e.mu.Lock()
	e.closeFileLocked()

	chunkFrames := int64(opt.ChunkSizeMS) * int64(info.SampleRate) / 1000
	if chunkFrames < 1 {
		chunkFrames = 1
	}

	cache := ringcache.New(dec, ringcache.Params{
		SampleRate:   info.SampleRate,
		Channels:     int(info.Channels),
		TotalSamples: info.TotalSamples,
		HistorySec:   opt.HistorySec,
		PreloadSec:   opt.PreloadSec,
		ChunkSizeMS:  opt.ChunkSizeMS,
	}, 0, e.onCacheErrorLocked)

	stretcher := stretch.New(cache, int(info.Channels), info.SampleRate, cache.MaxRequest())
	stretcher.SetSpeed(float64(opt.SlowSpeed))

	e.filename = path
	e.dec = dec
	e.cache = cache
	e.stretcher = stretcher
	e.info = info
	e.opt = opt
	e.chunkFrames = chunkFrames

	e.state = PlaybackState{
		Position:    0,
		Mode:        Normal,
		Paused:      true,
		Slowed:      false,
		SlowSpeed:   opt.SlowSpeed,
		RewindSpeed: opt.RewindSpeed,
		FFwdSpeed:   opt.FastForwardSpeed,
		PlaySFX:     opt.PlaySoundEffects,
	}
	e.isOpen = true
	e.mu.Unlock()

	if e.sessionLog != nil {
		e.sessionLog.Record("open", 0, path)
	}

	return nil
}

// SetOptions implements spec §6.1's set_options: the current file is closed
// and reopened with the new Options, same as original_source/dictation.cpp's
// setOptions, then the previous position and pause state are restored (a
// live reconfigure isn't attempted since cache/stretcher sizing depends on
// Options).
func (e *Engine) SetOptions(opt engineconf.Options) error {
	opt = opt.Clamp()

	e.mu.Lock()
	if !e.isOpen {
		e.mu.Unlock()
		return fmt.Errorf("playback: SetOptions called with no file open")
	}
	path := e.filename
	savedPosition := e.state.Position
	savedPaused := e.state.Paused
	e.mu.Unlock()

	if err := e.OpenFile(path, opt); err != nil {
		return err
	}

	e.mu.Lock()
	e.state.Position = clampPosition(savedPosition, int64(e.info.Channels), e.info.TotalSamples)
	e.state.Paused = savedPaused
	e.wakeLocked()
	e.mu.Unlock()

	return nil
}

// CloseFile tears down the current file's Ring Cache and Decoder, joining
// all background threads before returning.
func (e *Engine) CloseFile() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeFileLocked()
}

// closeFileLocked must be called with e.mu held.
func (e *Engine) closeFileLocked() {
	if !e.isOpen {
		return
	}

	if e.cache != nil {
		e.cache.Close()
	}
	if e.dec != nil {
		e.dec.Close()
	}

	e.isOpen = false
	e.dec = nil
	e.cache = nil
	e.stretcher = nil
	e.state = PlaybackState{Paused: true}
}

// onCacheErrorLocked is registered with the Ring Cache as its one-shot error
// callback (spec §4.2 Failure). It must not be called with e.mu held.
func (e *Engine) onCacheErrorLocked(err error) {
	logging.Error("ring cache reported a fatal decode error, closing engine", "err", err)

	// This runs on the cache's producer goroutine, and closing the cache
	// joins that goroutine, so the close happens on a goroutine of its own.
	go func() {
		e.mu.Lock()
		if e.cache != nil && e.cache.Dead() {
			e.closeFileLocked()
		}
		handler := e.errHandler
		e.mu.Unlock()

		if handler != nil {
			handler(ErrCodeDecode)
		}
	}()
}

// Start begins driving sink, spawning the playback thread described in
// spec §5. framesPerBuffer is derived from the currently open file's chunk
// size; Start must be called after at least one OpenFile.
func (e *Engine) Start(sink Sink) error {
	e.mu.Lock()
	if !e.isOpen {
		e.mu.Unlock()
		return fmt.Errorf("playback: Start called with no file open")
	}
	channels := int(e.info.Channels)
	rate := float64(e.info.SampleRate)
	frames := e.chunkFrames
	e.mu.Unlock()

	e.ready = make(chan []float32, 4)
	e.quit = make(chan struct{})
	e.sink = sink
	e.alive = true

	go e.playbackThread()

	if err := sink.Start(channels, rate, int(frames), e.audioCallback); err != nil {
		e.mu.Lock()
		e.alive = false
		e.mu.Unlock()
		e.cond.Broadcast()
		close(e.quit)
		return err
	}

	return nil
}

// Stop signals the playback thread to exit and stops the sink. It returns
// without waiting for the playback thread to finish; that thread exits the
// next time it observes the cleared alive flag or the closed quit channel.
// Callers close the pedal coordinator before calling Stop, so device and
// coordinator threads are gone before playback is stopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	alreadyStopped := !e.alive
	e.alive = false
	e.mu.Unlock()
	e.cond.Broadcast()

	if alreadyStopped {
		return
	}
	if e.quit != nil {
		close(e.quit)
	}

	if e.sink != nil {
		_ = e.sink.Stop()
	}
}

// audioCallback runs on the real-time audio thread. It must not block: it
// copies exactly one precomputed chunk from the ready channel, or writes
// silence on underrun.
func (e *Engine) audioCallback(out []float32) {
	select {
	case chunk := <-e.ready:
		n := copy(out, chunk)
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
	default:
		for i := range out {
			out[i] = 0
		}
	}
}

// playbackThread is spec §5's "one playback thread that drives the sink
// main loop": it waits on e.cond while quiescent, otherwise synthesizes
// one chunk at a time and hands it to the audio callback via e.ready.
func (e *Engine) playbackThread() {
	for {
		e.mu.Lock()
		for e.alive && e.isOpen && e.state.Paused && e.state.Mode == Normal {
			e.cond.Wait()
		}
		if !e.alive {
			e.mu.Unlock()
			return
		}
		if !e.isOpen {
			e.mu.Unlock()
			continue
		}

		chunk := e.produceChunkLocked()
		e.mu.Unlock()

		select {
		case e.ready <- chunk:
		case <-e.quit:
			return
		}
	}
}

// produceChunkLocked implements spec §4.4 steps 1-5. Must be called with
// e.mu held.
func (e *Engine) produceChunkLocked() []float32 {
	channels := int64(e.info.Channels)
	request := e.chunkFrames * channels
	if max := e.cache.MaxRequest(); request > max {
		request = max - (max % channels)
	}

	out := make([]float32, request)

	if e.cache.Dead() {
		return out // silence
	}

	if e.state.Position > e.info.TotalSamples {
		e.state.Position = e.info.TotalSamples
		e.state.Paused = true
	}

	switch e.state.Mode {
	case Rewind:
		if e.state.PlaySFX {
			e.rewindPhase = GenerateRewindSFX(out, e.rewindPhase, int(channels))
		}
		step := request * int64(e.state.RewindSpeed)
		e.state.Position -= step
		if e.state.Position < 0 {
			e.state.Position = 0
		}

	case FastForward:
		if e.state.PlaySFX {
			e.ffwdPhase = GenerateFastForwardSFX(out, e.ffwdPhase, int(channels))
		}
		step := request * int64(e.state.FFwdSpeed)
		e.state.Position += step
		if e.state.Position > e.info.TotalSamples {
			e.state.Position = e.info.TotalSamples
		}

	default: // Normal
		if e.state.Paused {
			// silence, position unchanged
		} else if e.state.Slowed && e.state.SlowSpeed != 1 {
			advance := e.stretcher.Copy(out, e.state.Position)
			e.state.Position += advance
		} else {
			data := e.cache.ReadData(e.state.Position, request)
			copy(out, data)
			e.state.Position += request
		}
		if e.state.Position > e.info.TotalSamples {
			e.state.Position = e.info.TotalSamples
		}
	}

	return out
}

func (e *Engine) wakeLocked() { e.cond.Broadcast() }

// --- Commands (spec §4.4/§6.1) ---

func (e *Engine) Play() {
	e.mu.Lock()
	e.state.Paused = false
	e.wakeLocked()
	e.mu.Unlock()
	e.logEvent("play")
}

func (e *Engine) Pause() {
	e.mu.Lock()
	e.state.Paused = true
	e.mu.Unlock()
	e.logEvent("pause")
}

func (e *Engine) TogglePlay() {
	e.mu.Lock()
	e.state.Paused = !e.state.Paused
	e.wakeLocked()
	e.mu.Unlock()
}

func (e *Engine) Slow() {
	e.mu.Lock()
	e.state.Slowed = true
	e.mu.Unlock()
}

func (e *Engine) Unslow() {
	e.mu.Lock()
	e.state.Slowed = false
	e.mu.Unlock()
}

func (e *Engine) ToggleSlow() {
	e.mu.Lock()
	e.state.Slowed = !e.state.Slowed
	e.mu.Unlock()
}

func (e *Engine) StartRewind() {
	e.mu.Lock()
	e.state.Mode = Rewind
	e.rewindPhase = 0
	e.wakeLocked()
	e.mu.Unlock()
}

func (e *Engine) StopRewind() {
	e.mu.Lock()
	if e.state.Mode == Rewind {
		e.state.Mode = Normal
	}
	e.wakeLocked()
	e.mu.Unlock()
}

func (e *Engine) ToggleRewind() {
	e.mu.Lock()
	if e.state.Mode == Rewind {
		e.state.Mode = Normal
	} else {
		e.state.Mode = Rewind
		e.rewindPhase = 0
	}
	e.wakeLocked()
	e.mu.Unlock()
}

func (e *Engine) StartFastForward() {
	e.mu.Lock()
	e.state.Mode = FastForward
	e.ffwdPhase = 0
	e.wakeLocked()
	e.mu.Unlock()
}

func (e *Engine) StopFastForward() {
	e.mu.Lock()
	if e.state.Mode == FastForward {
		e.state.Mode = Normal
	}
	e.wakeLocked()
	e.mu.Unlock()
}

func (e *Engine) ToggleFastForward() {
	e.mu.Lock()
	if e.state.Mode == FastForward {
		e.state.Mode = Normal
	} else {
		e.state.Mode = FastForward
		e.ffwdPhase = 0
	}
	e.wakeLocked()
	e.mu.Unlock()
}

func (e *Engine) SetPositionMs(ms int64) {
	e.mu.Lock()
	if e.isOpen {
		pos := ms * int64(e.info.SampleRate) * int64(e.info.Channels) / 1000
		e.state.Position = clampPosition(pos, int64(e.info.Channels), e.info.TotalSamples)
	}
	e.mu.Unlock()
}

func (e *Engine) SetPositionFraction(f float64) {
	e.mu.Lock()
	if e.isOpen {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		pos := int64(f * float64(e.info.TotalSamples))
		e.state.Position = clampPosition(pos, int64(e.info.Channels), e.info.TotalSamples)
	}
	e.mu.Unlock()
}

// SkipForward moves position by ms milliseconds; negative skips backward.
func (e *Engine) SkipForward(ms int64) {
	e.mu.Lock()
	if e.isOpen {
		delta := ms * int64(e.info.SampleRate) * int64(e.info.Channels) / 1000
		pos := e.state.Position + delta
		e.state.Position = clampPosition(pos, int64(e.info.Channels), e.info.TotalSamples)
	}
	e.mu.Unlock()
}

func (e *Engine) SetSlowSpeed(speed float32) {
	e.mu.Lock()
	speed = clampSpeed(speed)
	e.state.SlowSpeed = speed
	stretcher := e.stretcher
	e.mu.Unlock()

	if stretcher != nil {
		stretcher.SetSpeed(float64(speed))
	}
}

// IncreaseSlowSpeed adjusts the current slow speed by delta and returns the
// resulting clamped speed.
func (e *Engine) IncreaseSlowSpeed(delta float32) float32 {
	e.mu.Lock()
	newSpeed := clampSpeed(e.state.SlowSpeed + delta)
	e.state.SlowSpeed = newSpeed
	stretcher := e.stretcher
	e.mu.Unlock()

	if stretcher != nil {
		stretcher.SetSpeed(float64(newSpeed))
	}

	return newSpeed
}

func clampSpeed(s float32) float32 {
	if s < 0.2 {
		return 0.2
	}
	if s > 1.0 {
		return 1.0
	}
	return s
}

func clampPosition(pos, channels, total int64) int64 {
	pos -= pos % channels
	if pos < 0 {
		return 0
	}
	if pos > total {
		return total
	}
	return pos
}

// --- Queries (spec §6.1) ---

func (e *Engine) GetFilename() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filename
}

func (e *Engine) GetPositionMs() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isOpen || e.info.SampleRate == 0 {
		return 0
	}
	return e.state.Position * 1000 / (int64(e.info.SampleRate) * int64(e.info.Channels))
}

func (e *Engine) GetLengthMs() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isOpen || e.info.SampleRate == 0 {
		return 0
	}
	return e.info.TotalSamples * 1000 / (int64(e.info.SampleRate) * int64(e.info.Channels))
}

func (e *Engine) GetPositionFraction() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.isOpen || e.info.TotalSamples == 0 {
		return 0
	}
	return float64(e.state.Position) / float64(e.info.TotalSamples)
}

func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.isOpen || e.state.Paused
}

func (e *Engine) IsSlowed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Slowed
}

func (e *Engine) IsRewinding() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Mode == Rewind
}

func (e *Engine) IsFastForwarding() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Mode == FastForward
}

func (e *Engine) logEvent(event string) {
	if e.sessionLog == nil {
		return
	}
	e.sessionLog.Record(event, e.GetPositionMs(), "")
}
