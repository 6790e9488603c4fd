package cache

import "testing"

func TestStoreThenProbeRoundTrip(t *testing.T) {
	c := New(0.001)
	var priors = []float32{0.1, 0.6, 0.3}
	c.Store(0xABCD, 0.75, priors)

	out := make([]float32, 3)
	value, ok := c.Probe(0xABCD, 3, out)
	if !ok {
		t.Fatal("expected a hit after store")
	}
	if value != 0.75 {
		t.Errorf("value = %v, want 0.75", value)
	}
	for i, want := range priors {
		if diff := out[i] - want; diff > 1.0/255 || diff < -1.0/255 {
			t.Errorf("prior[%d] = %v, want %v within 1/255", i, out[i], want)
		}
	}
}

func TestProbeMissOnUnstoredKey(t *testing.T) {
	c := New(0.001)
	out := make([]float32, 1)
	if _, ok := c.Probe(0x1234, 1, out); ok {
		t.Error("expected a miss on a key never stored")
	}
}

func TestPositionsAboveMaxMovesNeverCached(t *testing.T) {
	c := New(0.001)
	var priors = make([]float32, MaxMoves+1)
	for i := range priors {
		priors[i] = 1.0 / float32(len(priors))
	}
	c.Store(0x5555, 0.5, priors)

	out := make([]float32, MaxMoves+1)
	if _, ok := c.Probe(0x5555, MaxMoves+1, out); ok {
		t.Error("expected a position with > MaxMoves legal moves to never be stored")
	}
}

func TestEvictionPicksLowestAgeThenLowestIndex(t *testing.T) {
	// New(0) allocates the minimum of one chunk, so every store below
	// necessarily lands in the same chunk regardless of key.
	c := New(0)
	for i := uint64(0); i < entriesPerChunk; i++ {
		c.Store(i+1, float32(i), []float32{float32(i)})
	}
	// All seven entries are now occupied with age 0. Bump every age except
	// indices 0 and 1, so those two tie for the minimum and the lower
	// index (0) must be evicted next.
	ch := &c.chunks[0]
	for i := 2; i < entriesPerChunk; i++ {
		ch.ages[i] = 5
	}

	c.Store(999, 0.42, []float32{0.42})

	out := make([]float32, 1)
	if _, ok := c.Probe(1, 1, out); ok {
		t.Error("expected the lowest-age entry (key=1) to have been evicted")
	}
	if _, ok := c.Probe(999, 1, out); !ok {
		t.Error("expected the newly stored key to be present")
	}
}

func TestClearRemovesAllEntries(t *testing.T) {
	c := New(0.001)
	c.Store(42, 0.5, []float32{0.5})
	c.Clear()

	out := make([]float32, 1)
	if _, ok := c.Probe(42, 1, out); ok {
		t.Error("expected Clear to remove previously stored entries")
	}
	if full := c.PermilleFull(); full != 0 {
		t.Errorf("PermilleFull() after Clear = %d, want 0", full)
	}
}

func TestPermilleHitsTracksProbeOutcomes(t *testing.T) {
	c := New(0.001)
	c.Store(7, 0.5, []float32{0.5})

	out := make([]float32, 1)
	c.Probe(7, 1, out)  // hit
	c.Probe(8, 1, out)  // miss
	c.Probe(9, 1, out)  // miss
	c.Probe(7, 1, out)  // hit

	if hits := c.PermilleHits(); hits != 500 {
		t.Errorf("PermilleHits() = %d, want 500 (2 hits of 4 probes)", hits)
	}
}
