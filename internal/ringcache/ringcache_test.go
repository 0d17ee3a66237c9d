package ringcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// rampSource serves deterministic samples: value at absolute index i is
// float32(i), letting tests check exact content after a read.
type rampSource struct {
	total int64
}

func (r *rampSource) Read(at int64, dest []float32) (int, error) {
	n := 0
	for i := range dest {
		idx := at + int64(i)
		if idx >= r.total {
			break
		}
		dest[i] = float32(idx)
		n++
	}
	return n, nil
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newTestCache(total int64) *RingCache {
	src := &rampSource{total: total}
	return New(src, Params{
		SampleRate:   8000,
		Channels:     1,
		TotalSamples: total,
		HistorySec:   1,
		PreloadSec:   1,
		ChunkSizeMS:  25,
	}, 0, nil)
}

func TestReadDataHitReturnsDecodedContent(t *testing.T) {
	c := newTestCache(100000)
	defer c.Close()

	waitUntil(t, time.Second, func() bool {
		_, _, post := c.Snapshot()
		return post > 0
	})

	n := c.MaxRequest()
	out := c.ReadData(0, n)
	require.Len(t, out, int(n))
	require.Equal(t, float32(0), out[0])
	require.Equal(t, float32(1), out[1])
}

func TestReadDataPastEOFIsZero(t *testing.T) {
	total := int64(50)
	c := newTestCache(total)
	defer c.Close()

	waitUntil(t, time.Second, func() bool {
		_, _, post := c.Snapshot()
		return post >= total
	})

	n := c.MaxRequest()
	if n > total {
		out := c.ReadData(total-10, n)
		require.Len(t, out, int(n))
		require.Equal(t, make([]float32, int(n)-10), out[10:])
	}
}

func TestInvariantsHoldUnderRandomSeeks(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		total := int64(rapid.IntRange(1000, 200000).Draw(rt, "total"))
		c := newTestCache(total)
		defer c.Close()

		waitUntil(t, time.Second, func() bool {
			_, _, post := c.Snapshot()
			return post > 0
		})

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			at := int64(rapid.IntRange(0, int(total)-1).Draw(rt, "at"))
			n := c.MaxRequest()
			if at+n > total {
				n = total - at
				if n <= 0 {
					continue
				}
			}

			out := c.ReadData(at, n)
			require.Len(rt, out, int(n))

			preValid, pos, postValid := c.Snapshot()
			require.LessOrEqual(rt, preValid, pos)
			require.LessOrEqual(rt, pos, postValid)
			require.LessOrEqual(rt, postValid, total)
			require.LessOrEqual(rt, postValid-preValid, c.BufferSize())
		}
	})
}

func TestCloseJoinsProducer(t *testing.T) {
	c := newTestCache(100000)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Close()
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not join producer thread in time")
	}
}
