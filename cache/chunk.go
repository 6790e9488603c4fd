package cache

import "sync/atomic"

// entriesPerChunk is E in the spec's terms: seven 64-byte entries fill seven
// of a chunk's eight cache lines, leaving the eighth for per-entry ages
// plus padding out to the 512-byte chunk boundary.
const entriesPerChunk = 7

// chunk is 512-byte aligned in intent (the surrounding Cache allocates
// chunks contiguously in a single slice, so in practice each chunk starts
// on a 512-byte boundary only up to the allocator's own alignment
// guarantees; see Cache for the allocation strategy).
type chunk struct {
	entries [entriesPerChunk]Entry
	ages    [entriesPerChunk]int32
	_       [512 - entriesPerChunk*entrySize - entriesPerChunk*4]byte
}

// tryGet scans every entry in the chunk for key, following the
// lock-free read protocol: read everything but the key field, read the
// key last (with acquire semantics), and only then compare. A match is
// accepted as-is; a mismatch (including one caused by a concurrent
// store tearing the entry) is simply treated as a miss, never a crash.
//
// priorsOut must have length at least moveCount. The first moveCount
// priors of every scanned entry are written into it before its key is
// compared, so after a miss priorsOut holds the last scanned entry's
// priors rather than its previous contents.
func (c *chunk) tryGet(key uint64, moveCount int, priorsOut []float32) (value float32, ok bool) {
	for i := range c.entries {
		var e = &c.entries[i]

		value = e.Value
		for j := 0; j < moveCount && j < MaxMoves; j++ {
			priorsOut[j] = dequantize(e.Priors[j])
		}

		// Every entry scanned during this access ages, not just one that
		// happens to match: otherwise a just-inserted entry (age 0) would
		// stay the chunk's weakest entry until it personally gets a hit,
		// making it the first eviction victim even though it was just put.
		atomic.AddInt32(&c.ages[i], 1)

		var readKey = atomic.LoadUint64(&e.Key)
		if readKey == key {
			return value, true
		}
	}
	return 0, false
}

// put writes key/value/priors into the chunk: into an empty slot if one
// exists (key == 0, reserved as "never written"), else evicting the
// entry with the lowest age, ties broken by lowest index. The key is
// written last so a concurrent tryGet never observes a fully-new value
// or priors paired with a stale (or zero) key.
func (c *chunk) put(key uint64, value float32, priors []float32) {
	var victim = 0
	for i := range c.entries {
		if atomic.LoadUint64(&c.entries[i].Key) == 0 {
			victim = i
			goto write
		}
		if c.ages[i] < c.ages[victim] {
			victim = i
		}
	}

write:
	var e = &c.entries[victim]
	e.Value = value
	for j := 0; j < MaxMoves; j++ {
		if j < len(priors) {
			e.Priors[j] = quantize(priors[j])
		} else {
			e.Priors[j] = 0
		}
	}
	atomic.StoreUint64(&e.Key, key)
	atomic.StoreInt32(&c.ages[victim], 0)
}

func (c *chunk) clear() {
	for i := range c.entries {
		atomic.StoreUint64(&c.entries[i].Key, 0)
		c.entries[i].Value = 0
		for j := range c.entries[i].Priors {
			c.entries[i].Priors[j] = 0
		}
		atomic.StoreInt32(&c.ages[i], 0)
	}
}

// occupiedAll reports whether every entry in the chunk is already in use,
// meaning the next put necessarily evicts rather than filling a gap.
func (c *chunk) occupiedAll() bool {
	for i := range c.entries {
		if atomic.LoadUint64(&c.entries[i].Key) == 0 {
			return false
		}
	}
	return true
}

func (c *chunk) occupiedCount() int {
	var n = 0
	for i := range c.entries {
		if atomic.LoadUint64(&c.entries[i].Key) != 0 {
			n++
		}
	}
	return n
}
