package cache

import "sync/atomic"

const chunkBytes = entriesPerChunk*entrySize + entriesPerChunk*4 +
	(512 - entriesPerChunk*entrySize - entriesPerChunk*4)

// Cache is the process-wide prediction cache: a flat array of chunks sized
// from a GiB budget at construction time. It never grows, never frees
// individual entries, and is safe for concurrent Probe/Store from any
// number of worker goroutines without a lock.
type Cache struct {
	chunks []chunk

	probeCount    uint64
	hitCount      uint64
	evictionCount uint64
}

// New allocates a Cache sized so that len(chunks)*512B is approximately
// sizeGb gigabytes, with a minimum of one chunk.
func New(sizeGb float64) *Cache {
	var bytes = int64(sizeGb * (1 << 30))
	var count = bytes / chunkBytes
	if count < 1 {
		count = 1
	}
	return &Cache{chunks: make([]chunk, count)}
}

func (c *Cache) chunkFor(key uint64) *chunk {
	return &c.chunks[key%uint64(len(c.chunks))]
}

// Probe looks up key for a position with moveCount legal moves. It
// returns ok=false without touching priorsOut if moveCount exceeds
// MaxMoves (the position is never cache-eligible), and ok=false on a
// genuine miss, in which case priorsOut may have been overwritten.
// priorsOut must have length >= moveCount.
func (c *Cache) Probe(key uint64, moveCount int, priorsOut []float32) (value float32, ok bool) {
	if moveCount > MaxMoves {
		return 0, false
	}
	atomic.AddUint64(&c.probeCount, 1)

	value, ok = c.chunkFor(key).tryGet(key, moveCount, priorsOut)
	if ok {
		atomic.AddUint64(&c.hitCount, 1)
	}
	return value, ok
}

// Store writes value/priors for key, for a position with len(priors)
// legal moves. A no-op if len(priors) exceeds MaxMoves.
func (c *Cache) Store(key uint64, value float32, priors []float32) {
	if len(priors) > MaxMoves {
		return
	}

	var target = c.chunkFor(key)
	if target.occupiedAll() {
		atomic.AddUint64(&c.evictionCount, 1)
	}
	target.put(key, value, priors)
}

// Clear zeroes every entry and age in the cache, and resets probe
// metrics.
func (c *Cache) Clear() {
	for i := range c.chunks {
		c.chunks[i].clear()
	}
	c.ResetProbeMetrics()
}

// ResetProbeMetrics zeroes the hit/probe/eviction counters without
// touching stored entries.
func (c *Cache) ResetProbeMetrics() {
	atomic.StoreUint64(&c.probeCount, 0)
	atomic.StoreUint64(&c.hitCount, 0)
	atomic.StoreUint64(&c.evictionCount, 0)
}

// PermilleFull reports occupancy scaled to parts-per-thousand.
func (c *Cache) PermilleFull() int {
	var occupied, capacity = 0, len(c.chunks)*entriesPerChunk
	for i := range c.chunks {
		occupied += c.chunks[i].occupiedCount()
	}
	if capacity == 0 {
		return 0
	}
	return occupied * 1000 / capacity
}

// PermilleHits reports hit rate scaled to parts-per-thousand of probes
// since the last ResetProbeMetrics.
func (c *Cache) PermilleHits() int {
	var probes = atomic.LoadUint64(&c.probeCount)
	if probes == 0 {
		return 0
	}
	return int(atomic.LoadUint64(&c.hitCount) * 1000 / probes)
}

// PermilleEvictions reports evictions scaled to parts-per-thousand of
// probes since the last ResetProbeMetrics.
func (c *Cache) PermilleEvictions() int {
	var probes = atomic.LoadUint64(&c.probeCount)
	if probes == 0 {
		return 0
	}
	return int(atomic.LoadUint64(&c.evictionCount) * 1000 / probes)
}
