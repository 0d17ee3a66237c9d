// Package ringcache implements the bounded, seek-aware window of decoded
// samples described in spec §4.2: a background producer keeps a circular
// buffer filled ahead of the play position, while reads inside the window
// never block on I/O.
//
// Grounded on the *shape* of the teacher's src/rrbb.go (one owned sample
// array with explicit clear/extend operations), but built on sync.Mutex plus
// three sync.Cond instead of rrbb_t's C-struct-with-magic-numbers design: no
// ring-buffer library in the retrieval pack models a three-cursor window with
// background prefetch, so the producer/consumer coordination here is written
// by hand, following the teacher's own by-hand concurrency primitives.
package ringcache

import (
	"sync"

	"github.com/mpharoah/openscribe/internal/logging"
)

// Source is anything that can serve frame-addressed sample reads; satisfied
// structurally by *decoder.Decoder.
type Source interface {
	Read(at int64, dest []float32) (int, error)
}

// Params configures the cache's window sizing (spec §3).
type Params struct {
	SampleRate   uint32
	Channels     int
	TotalSamples int64
	HistorySec   int
	PreloadSec   int
	ChunkSizeMS  int
}

// RingCache is the producer/consumer ring described in spec §4.2. Create one
// per open file with New; call Close to join the producer thread.
type RingCache struct {
	source       Source
	channels     int64
	totalSamples int64

	maxPre     int64
	maxPost    int64
	bufferSize int64
	maxRequest int64

	mu              sync.Mutex
	bufferMoved     *sync.Cond
	readRequest     *sync.Cond
	resetRequestCV  *sync.Cond
	buffer          []float32
	preValid        int64
	pos             int64
	postValid       int64
	resetRequested  bool
	resetTarget     int64
	alive           bool
	dead            bool

	onError func(error)

	wg sync.WaitGroup
}

// New creates a RingCache and starts its producer goroutine, primed at
// absolute sample position start.
func New(source Source, p Params, start int64, onError func(error)) *RingCache {
	maxPre := int64(p.HistorySec) * int64(p.SampleRate) * int64(p.Channels)

	chunkFrames := int64(p.ChunkSizeMS) * int64(p.SampleRate) / 1000
	maxRequest := chunkFrames * int64(p.Channels)

	maxPost := maxRequest + int64(p.PreloadSec)*int64(p.SampleRate)*int64(p.Channels)
	bufferSize := maxPre + maxPost

	c := &RingCache{
		source:       source,
		channels:     int64(p.Channels),
		totalSamples: p.TotalSamples,
		maxPre:       maxPre,
		maxPost:      maxPost,
		bufferSize:   bufferSize,
		maxRequest:   maxRequest,
		buffer:       make([]float32, bufferSize+maxRequest),
		preValid:     start,
		pos:          start,
		postValid:    start,
		alive:        true,
		onError:      onError,
	}
	c.bufferMoved = sync.NewCond(&c.mu)
	c.readRequest = sync.NewCond(&c.mu)
	c.resetRequestCV = sync.NewCond(&c.mu)

	// Prime the window so the first ReadData is not forced through a miss.
	c.resetRequested = true
	c.resetTarget = start

	c.wg.Add(1)
	go c.producerLoop()

	return c
}

// MaxRequest is one chunk's worth of samples, the largest n ReadData should
// ever be asked to serve in a single call.
func (c *RingCache) MaxRequest() int64 { return c.maxRequest }

// BufferSize returns the cache's window size in samples, for diagnostics
// and tests.
func (c *RingCache) BufferSize() int64 { return c.bufferSize }

// Close stops the producer thread and releases the cache. Safe to call once.
func (c *RingCache) Close() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
	c.bufferMoved.Broadcast()
	c.readRequest.Broadcast()
	c.resetRequestCV.Broadcast()
	c.wg.Wait()
}

// Dead reports whether a decode failure has permanently disabled the cache.
func (c *RingCache) Dead() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dead
}

// Snapshot returns the three cursors, for invariant tests.
func (c *RingCache) Snapshot() (preValid, pos, postValid int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preValid, c.pos, c.postValid
}

// ReadData serves spec §4.2's consumer protocol: a hit returns immediately,
// an in-flight region waits for the producer to extend postValid, and a miss
// requests a reset and waits for the producer to re-anchor the window at at.
//
// n must be <= MaxRequest() and channel-aligned. The returned slice always
// has length n; samples past totalSamples are zero (the producer simply
// never writes past EOF, and the buffer starts zeroed).
func (c *RingCache) ReadData(at int64, n int64) []float32 {
	out := make([]float32, n)

	c.mu.Lock()
	if at >= c.totalSamples || c.dead {
		c.mu.Unlock()
		return out
	}

	for {
		if c.dead {
			c.mu.Unlock()
			return out
		}

		hit := at >= c.preValid &&
			(at+n <= c.postValid || (at+n > c.totalSamples && c.postValid == c.totalSamples))
		if hit {
			break
		}

		inFlight := at >= c.preValid && at <= c.postValid && c.postValid+n <= c.pos+c.maxPost
		if inFlight {
			c.readRequest.Wait()
			continue
		}

		// Miss.
		c.resetRequested = true
		c.resetTarget = at
		c.mu.Unlock()
		c.bufferMoved.Broadcast()
		c.mu.Lock()
		c.resetRequestCV.Wait()
	}

	c.copyOut(at, out)
	c.pos = at + n
	c.mu.Unlock()
	c.bufferMoved.Broadcast()

	return out
}

// copyOut must be called with c.mu held.
func (c *RingCache) copyOut(at int64, dest []float32) {
	n := int64(len(dest))
	avail := c.postValid - at
	if avail < 0 {
		avail = 0
	}
	if avail > n {
		avail = n
	}

	start := at % c.bufferSize
	copy(dest[:avail], c.buffer[start:start+avail])
	// dest[avail:] stays zero — either past EOF, or (in degenerate overlap
	// cases) not yet decoded.
}

func (c *RingCache) producerLoop() {
	defer c.wg.Done()

	for {
		c.mu.Lock()
		for {
			if !c.alive || c.dead {
				c.mu.Unlock()
				return
			}
			if c.resetRequested {
				break
			}
			if c.postValid+c.maxRequest <= c.pos+c.maxPost && c.postValid < c.totalSamples {
				break
			}
			c.bufferMoved.Wait()
		}

		if c.resetRequested {
			c.producerReset()
		} else {
			c.producerExtend()
		}
	}
}

// producerReset must be called with c.mu held; it releases and reacquires
// the lock around the decode I/O.
func (c *RingCache) producerReset() {
	target := c.resetTarget
	c.preValid = target
	c.postValid = target
	c.pos = target
	c.mu.Unlock()

	scratch := make([]float32, c.maxRequest)
	n, err := c.source.Read(target, scratch)
	if err != nil {
		c.fail(err)
		return
	}

	c.mu.Lock()
	c.writeAt(target, scratch[:n])
	c.postValid = clampInt64(target+int64(n), c.totalSamples)
	c.resetRequested = false
	c.resetRequestCV.Broadcast()
	c.mu.Unlock()
}

// producerExtend must be called with c.mu held; it releases and reacquires
// the lock around the decode I/O.
func (c *RingCache) producerExtend() {
	if c.postValid+c.maxRequest > c.preValid+c.bufferSize {
		c.preValid = c.postValid + c.maxRequest - c.bufferSize
	}
	reqStart := c.postValid
	c.mu.Unlock()

	scratch := make([]float32, c.maxRequest)
	n, err := c.source.Read(reqStart, scratch)
	if err != nil {
		c.fail(err)
		return
	}

	c.mu.Lock()
	c.writeAt(reqStart, scratch[:n])
	c.postValid = clampInt64(reqStart+int64(n), c.totalSamples)
	c.readRequest.Broadcast()
	c.mu.Unlock()
}

func (c *RingCache) fail(err error) {
	c.mu.Lock()
	c.dead = true
	c.resetRequested = false
	c.mu.Unlock()
	c.readRequest.Broadcast()
	c.resetRequestCV.Broadcast()

	logging.Error("ring cache decode failed, cache marked dead", "err", err)
	if c.onError != nil {
		c.onError(err)
	}
}

// writeAt must be called with c.mu held. It writes data starting at absolute
// position start, mirroring into the guard region so any [index, index+n)
// read with n <= maxRequest is contiguous regardless of wraparound.
func (c *RingCache) writeAt(start int64, data []float32) {
	for i, v := range data {
		p := (start + int64(i)) % c.bufferSize
		c.buffer[p] = v
		if p < c.maxRequest {
			c.buffer[c.bufferSize+p] = v
		}
	}
}

func clampInt64(v, max int64) int64 {
	if v > max {
		return max
	}
	return v
}
