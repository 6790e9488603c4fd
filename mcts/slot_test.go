package mcts

import (
	"testing"

	"github.com/chesscoach-go/chesscoach/cache"
	"github.com/chesscoach-go/chesscoach/chess"
)

func applyLAN(t *testing.T, g *chess.Game, lan string) {
	t.Helper()
	var moves = g.GenerateLegalMoves()
	var m = chess.ParseMoveLAN(moves, lan)
	if m == chess.MoveNone {
		t.Fatalf("move %q not found among legal moves", lan)
	}
	g.ApplyMove(m)
}

func newStaticSlot(t *testing.T, fen string, searchRootPly int) (*Slot, *Node) {
	t.Helper()
	var pos, err = chess.NewPositionFromFEN(fen)
	if err != nil {
		t.Fatalf("NewPositionFromFEN: %v", err)
	}
	var game = chess.NewGameFromPosition(pos)
	var pool = NewPool()
	var slot = NewSlot(game, pool, nil, 0, true)
	slot.SearchRootPly = searchRootPly
	var leaf = pool.NewNode(1)
	return slot, leaf
}

func TestExpandAndEvaluateStalemateIsImmediateDraw(t *testing.T) {
	// King h8, king f7 and queen g6 for white: black to move has no legal
	// moves and is not in check.
	var slot, leaf = newStaticSlot(t, "7k/5K2/6Q1/8/8/8/8/8 b - - 0 1", 0)

	var v = slot.ExpandAndEvaluate(leaf)
	if leaf.terminalValue != Draw {
		t.Fatalf("terminalValue = %v, want Draw", leaf.terminalValue)
	}
	if v != Draw.ImmediateValue() {
		t.Fatalf("value = %v, want %v", v, Draw.ImmediateValue())
	}
	if leaf.ChildCount() != 0 {
		t.Fatalf("stalemate leaf should have no children, got %d", leaf.ChildCount())
	}
}

func TestExpandAndEvaluateCheckmateIsImmediateMate(t *testing.T) {
	// Fool's mate: white to move, in check, no legal moves.
	var slot, leaf = newStaticSlot(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 0 3", 0)

	var v = slot.ExpandAndEvaluate(leaf)
	if leaf.terminalValue != MateIn(1) {
		t.Fatalf("terminalValue = %v, want MateIn(1)", leaf.terminalValue)
	}
	if v != MateIn(1).ImmediateValue() {
		t.Fatalf("value = %v, want %v", v, MateIn(1).ImmediateValue())
	}
	if leaf.ChildCount() != 0 {
		t.Fatalf("checkmate leaf should have no children, got %d", leaf.ChildCount())
	}
}

func TestExpandAndEvaluateRepetitionRespectsSearchRootSnap(t *testing.T) {
	// e2e4 d7d6 d1g4 g8f6 g4d1 f6g8 d1g4: the queen shuffles out to g4 and
	// back twice, reaching the position after move 3 (d1g4) again at
	// move 7.
	var lans = []string{"e2e4", "d7d6", "d1g4", "g8f6", "g4d1", "f6g8", "d1g4"}

	var game = chess.NewGame()
	for _, lan := range lans {
		applyLAN(t, game, lan)
	}

	// Search root at the starting position: the repetition (move 3 vs.
	// move 7) lies entirely within the live search tree.
	var poolA = NewPool()
	var slotA = NewSlot(game, poolA, nil, 0, true)
	slotA.SearchRootPly = 0
	var leafA = poolA.NewNode(1)
	var vA = slotA.ExpandAndEvaluate(leafA)
	if leafA.terminalValue != Draw {
		t.Fatalf("terminalValue = %v, want Draw (repetition within search root)", leafA.terminalValue)
	}
	if vA != Draw.ImmediateValue() {
		t.Fatalf("value = %v, want %v", vA, Draw.ImmediateValue())
	}

	// Search root snapped after the first 6 moves: the matching earlier
	// occurrence (move 3) now lies before the search root and is not a
	// claimable repetition, so the slot must park awaiting a prediction.
	var poolB = NewPool()
	var slotB = NewSlot(game, poolB, nil, 0, true)
	slotB.SearchRootPly = 6
	var leafB = poolB.NewNode(1)
	slotB.ExpandAndEvaluate(leafB)
	if slotB.Phase() != WaitingForPrediction {
		t.Fatalf("expected slot to park awaiting a prediction (no draw claim), got phase %v, terminalValue %v", slotB.Phase(), leafB.terminalValue)
	}
}

func TestExpandAndEvaluateAboveCacheLimitNeverProbesOrStores(t *testing.T) {
	// The textbook maximum-mobility position: 218 legal moves for white,
	// far above cache.MaxMoves (52), so this position must never be
	// probed or stored.
	var fen = "R6R/3Q4/1Q4Q1/4Q3/2Q4Q/Q4Q2/pp1Q4/kBNN1KB1 w - - 0 1"

	var predictionCache = cache.New(0.01)

	var pos, err = chess.NewPositionFromFEN(fen)
	if err != nil {
		t.Fatalf("NewPositionFromFEN: %v", err)
	}

	runOnce := func() map[chess.Move]float32 {
		var game = chess.NewGameFromPosition(pos)
		var pool = NewPool()
		var slot = NewSlot(game, pool, predictionCache, 0, true)
		var leaf = pool.NewNode(1)

		var v = slot.ExpandAndEvaluate(leaf)
		if slot.Phase() != WaitingForPrediction {
			t.Fatalf("expected slot to park waiting for a prediction, got phase %v (value %v)", slot.Phase(), v)
		}

		slot.Value = 0
		for i := range slot.Policy {
			slot.Policy[i] = 1
		}
		slot.ExpandAndEvaluate(leaf)

		var priors = make(map[chess.Move]float32, leaf.ChildCount())
		leaf.EachChild(func(m chess.Move, c *Node) {
			priors[m] = c.Prior()
		})
		return priors
	}

	var first = runOnce()
	var second = runOnce()

	if len(first) != len(second) {
		t.Fatalf("prior count differs between runs: %d vs %d", len(first), len(second))
	}
	for m, p := range first {
		var q, ok = second[m]
		if !ok {
			t.Fatalf("move %v present in first run's children but not second's", m)
		}
		if diff := p - q; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("prior for move %v differs between runs: %v vs %v", m, p, q)
		}
	}

	if predictionCache.PermilleFull() != 0 {
		t.Fatalf("an over-limit position must never be stored in the cache, got permille full = %d", predictionCache.PermilleFull())
	}
}

func TestSoftmaxInPlaceIsInvariantUnderAdditiveShift(t *testing.T) {
	var a = []float32{1.5, -2.0, 0.25, 3.0, -0.75}
	var b = make([]float32, len(a))
	for i, v := range a {
		b[i] = v + 7.0
	}

	softmaxInPlace(a)
	softmaxInPlace(b)

	var sum float32
	for i := range a {
		if diff := a[i] - b[i]; diff > 1e-5 || diff < -1e-5 {
			t.Errorf("softmax[%d] differs under additive shift: %v vs %v", i, a[i], b[i])
		}
		sum += a[i]
	}
	if diff := sum - 1; diff > 1e-5 || diff < -1e-5 {
		t.Errorf("softmax output sums to %v, want 1", sum)
	}
}

func TestSoftmaxInPlaceHandlesEmptyInput(t *testing.T) {
	var logits = []float32{}
	softmaxInPlace(logits)
	if len(logits) != 0 {
		t.Fatalf("softmaxInPlace mutated length of an empty slice")
	}
}
