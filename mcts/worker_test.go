package mcts

import (
	"context"
	"math/rand"
	"testing"

	"github.com/chesscoach-go/chesscoach/chess"
	"github.com/chesscoach-go/chesscoach/network"
)

func newTestWorker(t *testing.T, value float32) (*Worker, *Slot) {
	t.Helper()
	var pool = NewPool()
	var game = chess.NewGame()
	var slot = NewSlot(game, pool, nil, 0, true)
	var evaluator = network.ConstantEvaluator{Value: value}
	var params = Params{ExplorationRateBase: 19652, ExplorationRateInit: 1.25}
	return NewWorker(evaluator, params, []*Slot{slot}), slot
}

func TestOneSimulationExpandsStartingPositionUniformly(t *testing.T) {
	// A tanh-scaled evaluator value of 0 maps to 0.5 after (v+1)/2, and the
	// subsequent parent-perspective flip (1-0.5) leaves it at 0.5 too,
	// matching the scenario's "value=0.5" framing.
	var w, slot = newTestWorker(t, 0)

	if err := w.RunSimulations(context.Background(), 1); err != nil {
		t.Fatalf("RunSimulations: %v", err)
	}

	if got := slot.Root.ChildCount(); got != 20 {
		t.Fatalf("root child count = %d, want 20", got)
	}
	slot.Root.EachChild(func(_ chess.Move, c *Node) {
		if diff := c.Prior() - 1.0/20; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("child prior = %v, want 1/20", c.Prior())
		}
	})
	if slot.Root.VisitCount() != 1 {
		t.Errorf("root visitCount = %d, want 1", slot.Root.VisitCount())
	}
	if diff := slot.Root.Value() - 0.5; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("root value = %v, want 0.5", slot.Root.Value())
	}
}

func TestMateProvingCascades(t *testing.T) {
	var pool = NewPool()
	var root = pool.NewNode(1)

	// Root has three children; each grows its own single-child chain to a
	// different depth, so only the root-level branching can keep a node
	// non-terminal once its whole chain below is proven, mirroring the
	// end-to-end MateProving scenario's "3-ply root, 3 children each" tree.
	var rootMoves = []chess.Move{chess.Move(10), chess.Move(11), chess.Move(12)}
	root.children = map[chess.Move]*Node{
		rootMoves[0]: pool.NewNode(1.0 / 3),
		rootMoves[1]: pool.NewNode(1.0 / 3),
		rootMoves[2]: pool.NewNode(1.0 / 3),
	}

	// extendChain grows a single-child line of the given length below
	// start, returning the full path from root through the new leaf.
	var chainMove = chess.Move(1)
	extendChain := func(start *Node, fromRoot chess.Move, length int) []pathEntry {
		var path = []pathEntry{{move: chess.MoveNone, node: root}, {move: fromRoot, node: start}}
		var cur = start
		for i := 0; i < length; i++ {
			var child = pool.NewNode(1)
			cur.children = map[chess.Move]*Node{chainMove: child}
			path = append(path, pathEntry{move: chainMove, node: child})
			cur = child
		}
		return path
	}

	var worker = &Worker{}

	// Leaf (move0, move0) becomes MateIn(1): chain of length 1 below child0.
	var child0 = root.children[rootMoves[0]]
	var path1 = extendChain(child0, rootMoves[0], 1)
	path1[len(path1)-1].node.terminalValue = MateIn(1)
	worker.backpropagateMate(path1)

	if got := child0.terminalValue; got != OpponentMateIn(1) {
		t.Fatalf("(move0) terminalValue = %v, want OpponentMateIn(1)", got)
	}
	if got := root.terminalValue; got != NonTerminal {
		t.Fatalf("root terminalValue = %v, want NonTerminal", got)
	}

	// Leaf (move1,1,0,0) becomes MateIn(1): chain of length 3 below child1.
	var child1 = root.children[rootMoves[1]]
	var path2 = extendChain(child1, rootMoves[1], 3)
	path2[len(path2)-1].node.terminalValue = MateIn(1)
	worker.backpropagateMate(path2)

	if got := child1.terminalValue; got != OpponentMateIn(2) {
		t.Fatalf("(move1) terminalValue = %v, want OpponentMateIn(2)", got)
	}
	if got := root.terminalValue; got != NonTerminal {
		t.Fatalf("root terminalValue = %v, want still NonTerminal", got)
	}

	// Leaf (move2,2,0,0,0,0) becomes MateIn(1): chain of length 5 below child2.
	var child2 = root.children[rootMoves[2]]
	var path3 = extendChain(child2, rootMoves[2], 5)
	path3[len(path3)-1].node.terminalValue = MateIn(1)
	worker.backpropagateMate(path3)

	if got := root.terminalValue; got != MateIn(4) {
		t.Fatalf("root terminalValue = %v, want MateIn(4)", got)
	}
}

func TestMateComparisonsStrictlyIncreasing(t *testing.T) {
	var pool = NewPool()
	var nodes = []*Node{
		pool.NewNode(0),
		pool.NewNode(0),
		pool.NewNode(0),
		pool.NewNode(0),
		pool.NewNode(0),
		pool.NewNode(0),
		pool.NewNode(0),
	}
	nodes[0].terminalValue = OpponentMateIn(2)
	nodes[1].terminalValue = OpponentMateIn(4)
	nodes[2].visitCount = 10
	nodes[3].terminalValue = Draw
	nodes[3].visitCount = 15
	nodes[4].visitCount = 100
	nodes[5].terminalValue = MateIn(3)
	nodes[6].terminalValue = MateIn(1)

	for i := 0; i < len(nodes)-1; i++ {
		if !worseThan(nodes[i], nodes[i+1]) {
			t.Errorf("expected nodes[%d] WorseThan nodes[%d]", i, i+1)
		}
		if worseThan(nodes[i+1], nodes[i]) {
			t.Errorf("expected nodes[%d] NOT WorseThan nodes[%d]", i+1, i)
		}
	}
}

func TestWorseThanNilIsWorseThanAnything(t *testing.T) {
	var pool = NewPool()
	var n = pool.NewNode(0.5)
	if !worseThan(nil, n) {
		t.Error("WorseThan(nil, n) should be true for any defined n")
	}
}

func TestGammaSampleProducesPositiveValues(t *testing.T) {
	var rng = rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		if g := gammaSample(rng, 0.3); g < 0 {
			t.Fatalf("gammaSample returned negative value %v", g)
		}
	}
}

// countDescendantVisits sums the visitCount of node's immediate children.
// With no virtual visits outstanding (no simulation in flight), that sum is
// one less than the node's own visitCount, since the visit that expanded
// the node reached none of its children.
func countDescendantVisits(node *Node) int32 {
	var sum int32
	node.EachChild(func(_ chess.Move, c *Node) { sum += c.visitCount })
	return sum
}

func TestVisitCountIsOneMoreThanSumOfChildVisits(t *testing.T) {
	var w, slot = newTestWorker(t, 0.1)

	if err := w.RunSimulations(context.Background(), 64); err != nil {
		t.Fatalf("RunSimulations: %v", err)
	}

	var queue = []*Node{slot.Root}
	for len(queue) > 0 {
		var n = queue[0]
		queue = queue[1:]
		if n.ChildCount() == 0 {
			// Terminal or never-expanded nodes carry no children to sum
			// over; a terminal leaf's own visitCount can grow unbounded
			// since selection stops there every time it's reached.
			continue
		}
		if got, want := countDescendantVisits(n), n.VisitCount()-1; got != want {
			t.Errorf("node with %d visits has children summing to %d visits, want %d", n.VisitCount(), got, want)
		}
		n.EachChild(func(_ chess.Move, c *Node) { queue = append(queue, c) })
	}
}

func TestBestChildNeverWorseThanAnyVisitedSibling(t *testing.T) {
	var w, slot = newTestWorker(t, 0.1)

	if err := w.RunSimulations(context.Background(), 64); err != nil {
		t.Fatalf("RunSimulations: %v", err)
	}

	var _, best = slot.Root.BestChild()
	if best == nil {
		t.Fatal("root has no bestChild after simulations")
	}
	slot.Root.EachChild(func(_ chess.Move, c *Node) {
		if c.VisitCount() == 0 {
			return
		}
		if worseThan(best, c) {
			t.Errorf("bestChild is WorseThan a visited sibling (visits %d vs %d)", best.VisitCount(), c.VisitCount())
		}
	})
}

func TestPrincipalVariationNeverRunsThroughAnUnvisitedInteriorNode(t *testing.T) {
	var w, slot = newTestWorker(t, 0.1)

	if err := w.RunSimulations(context.Background(), 64); err != nil {
		t.Fatalf("RunSimulations: %v", err)
	}

	var node = slot.Root
	for {
		var _, child = node.BestChild()
		if child == nil {
			break
		}
		if child.VisitCount() == 0 && child.ChildCount() > 0 {
			t.Fatalf("PV passes through an unvisited node that itself has children")
		}
		node = child
	}
}

func TestPrincipalVariationMonotoneUnderConstantEvaluator(t *testing.T) {
	var w, slot = newTestWorker(t, 0.1)

	var _, prevBest *Node
	for i := 0; i < 32; i++ {
		if err := w.RunSimulations(context.Background(), 1); err != nil {
			t.Fatalf("RunSimulations: %v", err)
		}
		var _, best = slot.Root.BestChild()
		if prevBest != nil && prevBest != best {
			if worseThan(best, prevBest) {
				t.Fatalf("principal variation regressed: new bestChild is WorseThan the old one")
			}
		}
		prevBest = best
	}
}
