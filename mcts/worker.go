package mcts

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chesscoach-go/chesscoach/chess"
	"github.com/chesscoach-go/chesscoach/network"
)

// Params is the subset of config.Config the MCTS worker consults. Kept
// as its own small struct (rather than importing config directly) so
// mcts has no dependency on the flag-parsing package.
type Params struct {
	RootDirichletAlpha      float64
	RootExplorationFraction float64
	ExplorationRateBase     float64
	ExplorationRateInit     float64
	NumSamplingMoves        int
}

type pathEntry struct {
	move chess.Move
	node *Node
}

// simSlot pairs a Slot with the per-simulation bookkeeping the worker
// needs across the suspension point: the search path built during
// selection, and whether exploration noise has already been applied at
// the current root.
type simSlot struct {
	*Slot
	path       []pathEntry
	noiseDrawn bool
}

// Worker drives a fixed set of slots cooperatively: on each round every
// slot not already parked advances on CPU until it either completes a
// simulation or parks awaiting prediction; once every slot is parked (or
// has exhausted its share of the budget), one batched prediction call
// resumes them all.
type Worker struct {
	Evaluator network.Evaluator
	Params    Params

	slots []*simSlot
	rng   *rand.Rand

	PrincipalVariationChanged bool
	failedNodeCount           int64
	nodeCount                 int64

	imageBatch  []float32
	valueBatch  []float32
	policyBatch []float32
}

var workerSeedCounter atomic.Int64

// NewWorker builds a worker over slots, all of which must share the same
// evaluator batch size (len(slots)).
func NewWorker(evaluator network.Evaluator, params Params, slots []*Slot) *Worker {
	var wrapped = make([]*simSlot, len(slots))
	for i, s := range slots {
		wrapped[i] = &simSlot{Slot: s}
	}
	var seed = time.Now().UnixNano() + workerSeedCounter.Add(1)
	return &Worker{
		Evaluator:   evaluator,
		Params:      params,
		slots:       wrapped,
		rng:         rand.New(rand.NewSource(seed)),
		imageBatch:  make([]float32, len(slots)*chess.InputPlaneCount*chess.BoardSize*chess.BoardSize),
		valueBatch:  make([]float32, len(slots)),
		policyBatch: make([]float32, len(slots)*network.PolicySize),
	}
}

// WarmUp sends a few dummy batches through the evaluator so the first
// real batch during search doesn't pay a cold-start latency spike.
func (w *Worker) WarmUp(rounds int) error {
	for r := 0; r < rounds; r++ {
		if err := w.Evaluator.PredictBatch(len(w.slots), w.imageBatch, w.valueBatch, w.policyBatch); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) NodeCount() int64       { return w.nodeCount }
func (w *Worker) FailedNodeCount() int64 { return w.failedNodeCount }

// RunSimulations drives every slot until simulationBudget total
// completed simulations (successful or failed) have been consumed across
// all slots, or ctx is cancelled.
func (w *Worker) RunSimulations(ctx context.Context, simulationBudget int) error {
	var completed = 0
	for completed < simulationBudget {
		if err := ctx.Err(); err != nil {
			return err
		}

		var anyParked = false
		for _, sl := range w.slots {
			if sl.Phase() == WaitingForPrediction {
				anyParked = true
				continue
			}
			if w.advanceUntilParkedOrDone(sl) {
				completed++
			} else if sl.Phase() == WaitingForPrediction {
				anyParked = true
			}
			if completed >= simulationBudget {
				break
			}
		}

		if anyParked {
			var resolved, err = w.resolveBatch()
			completed += resolved
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// advanceUntilParkedOrDone runs sl's current simulation from wherever it
// left off. It returns true iff a full simulation completed (including a
// failed selection), false iff the slot parked awaiting prediction.
func (w *Worker) advanceUntilParkedOrDone(sl *simSlot) bool {
	if sl.path == nil {
		w.beginSimulation(sl)
	}

	var leaf, failed = w.selectLeaf(sl)
	if failed {
		w.undoPath(sl)
		w.failedNodeCount++
		sl.path = nil
		return true
	}

	var v = sl.ExpandAndEvaluate(leaf)
	if sl.Phase() == WaitingForPrediction {
		return false
	}

	w.finishSimulation(sl, leaf, v)
	sl.path = nil
	return true
}

// beginSimulation copies the real game into scratch, pushes the root
// with MoveNone, and increments the root's visitingCount.
func (w *Worker) beginSimulation(sl *simSlot) {
	sl.Game = sl.RealGame.Clone()
	sl.path = append(sl.path[:0], pathEntry{move: chess.MoveNone, node: sl.Root})
	sl.Root.visitingCount++

	if !sl.TryHard && !sl.noiseDrawn && sl.Root.ChildCount() > 0 {
		w.applyRootExplorationNoise(sl.Root)
		sl.noiseDrawn = true
	}
}

// selectLeaf descends from the path's current tip while it's expanded,
// choosing at each step the unblocked child with the highest UCB score.
// It returns (nil, true) if no unblocked child existed at some node
// (selection failed and the caller must undo virtual visits), or
// (leaf, false) with sl.Game advanced to leaf's position otherwise.
func (w *Worker) selectLeaf(sl *simSlot) (*Node, bool) {
	for {
		var current = sl.path[len(sl.path)-1].node
		if current.IsLeaf() {
			return current, false
		}

		var bestMove chess.Move
		var best *Node
		var bestScore = float32(math.Inf(-1))
		current.EachChild(func(m chess.Move, c *Node) {
			if c.expanding {
				return
			}
			var score = ucbScore(current, c, w.Params)
			if best == nil || score > bestScore {
				bestMove, best, bestScore = m, c, score
			}
		})
		if best == nil {
			return nil, true
		}

		sl.Game.ApplyMove(bestMove)
		sl.path = append(sl.path, pathEntry{move: bestMove, node: best})
		best.visitingCount++
	}
}

func (w *Worker) undoPath(sl *simSlot) {
	for _, e := range sl.path {
		e.node.visitingCount--
	}
}

// ucbScore implements the PUCT formula from §4.5.
func ucbScore(parent, child *Node, params Params) float32 {
	var nvp = float32(parent.visitCount + parent.visitingCount)
	var nvc = float32(child.visitCount + child.visitingCount)
	var cBase = float32(params.ExplorationRateBase)
	var cInit = float32(params.ExplorationRateInit)
	var c = (logf((nvp+cBase+1)/cBase) + cInit) * sqrtf(nvp) / (nvc + 1)
	return child.Value() + c*child.prior + child.terminalValue.MateScore(c)
}

func logf(x float32) float32  { return float32(math.Log(float64(x))) }
func sqrtf(x float32) float32 { return float32(math.Sqrt(float64(x))) }

// finishSimulation backpropagates v (flipping once if the scratch game's
// final side-to-move differs from the real game's) along sl.path from root
// to leaf, alternating perspective at each step, runs mate backpropagation
// whenever the leaf is a proven MateIn(1) (a repeat stops at the first
// parent already marked), and updates the principal variation.
func (w *Worker) finishSimulation(sl *simSlot, leaf *Node, v float32) {
	if sl.Game.ToPlay() != sl.RealGame.ToPlay() {
		v = 1 - v
	}

	for i := 0; i < len(sl.path); i++ {
		var node = sl.path[i].node
		node.visitingCount--
		node.visitCount++
		node.valueSum += v
		v = 1 - v
		w.nodeCount++
	}

	if leaf.terminalValue.IsMate() && leaf.terminalValue.MateN() == 1 {
		w.backpropagateMate(sl.path)
	}

	w.updatePrincipalVariation(sl.path)
}

// backpropagateMate walks sl.path from leaf toward root applying the
// alternation-aware mate-status update of §4.5-mate.
func (w *Worker) backpropagateMate(path []pathEntry) {
	var childIsMate = true
	for i := len(path) - 2; i >= 0; i-- {
		var parent = path[i].node
		var child = path[i+1].node

		if childIsMate {
			var n = child.terminalValue.MateN()
			if !parent.terminalValue.IsOpponentMate() || parent.terminalValue.OpponentMateN() > n {
				parent.terminalValue = OpponentMateIn(n)
				w.fixPrincipalVariation(parent)
			} else {
				break
			}
		} else {
			var maxN = 0
			var allOpponentMate = true
			parent.EachChild(func(_ chess.Move, c *Node) {
				if !c.terminalValue.IsOpponentMate() {
					allOpponentMate = false
					return
				}
				if n := c.terminalValue.OpponentMateN(); n > maxN {
					maxN = n
				}
			})
			if !allOpponentMate {
				break
			}
			parent.terminalValue = MateIn(maxN + 1)
			w.fixPrincipalVariation(parent)
		}

		childIsMate = !childIsMate
	}
}

// fixPrincipalVariation re-derives node's bestChild from scratch: a
// mate-status change can make a previously-worse child now the best,
// violating the "bestChild only gets better" assumption selection relies
// on incrementally.
func (w *Worker) fixPrincipalVariation(node *Node) {
	var bestMove chess.Move
	var best *Node
	node.EachChild(func(m chess.Move, c *Node) {
		if best == nil || worseThan(best, c) {
			bestMove, best = m, c
		}
	})
	node.bestChildMove, node.bestChild = bestMove, best
	w.PrincipalVariationChanged = true
}

// updatePrincipalVariation walks path and, for each parent, replaces
// bestChild with the next node in the path if the old bestChild is
// WorseThan it.
func (w *Worker) updatePrincipalVariation(path []pathEntry) {
	for i := 0; i < len(path)-1; i++ {
		var parent = path[i].node
		var next = path[i+1].node
		if worseThan(parent.bestChild, next) {
			parent.bestChildMove, parent.bestChild = path[i+1].move, next
			w.PrincipalVariationChanged = true
		}
	}
}

// worseThan is the strict total order over sibling nodes described in
// §4.5: nil is worse than anything defined; mate status dominates visit
// count; within a mate-status category, more visits is better.
func worseThan(lhs, rhs *Node) bool {
	if lhs == nil {
		return true
	}
	if rhs == nil {
		return false
	}

	var l, r = mateOrderKey(lhs), mateOrderKey(rhs)
	if l != r {
		return l > r // smaller key sorts first (is "better")
	}
	return lhs.visitCount < rhs.visitCount
}

// mateOrderKey maps EitherMateN onto the category-separated order
// described in §4.5: self-mates (positive n) sort first, fastest first;
// unknown/draw (0) sorts in the middle; opponent-mates (negative n) sort
// last, slowest (most negative distance magnitude push furthest) first
// within that group.
func mateOrderKey(n *Node) int {
	var x = n.terminalValue.EitherMateN()
	switch {
	case x == 0:
		return 0
	case x > 0:
		return x - 2*chess.MaxMoves
	default:
		return x + 2*chess.MaxMoves
	}
}

// applyRootExplorationNoise samples Dirichlet(alpha) over root's children
// and blends it into each child's prior: prior <- (1-eps)*prior +
// eps*noise. Self-play only; callers gate this by never calling it for a
// try_hard slot (see beginSimulation, which defers to the caller's
// Params — a zero RootExplorationFraction makes this a no-op).
func (w *Worker) applyRootExplorationNoise(root *Node) {
	var eps = float32(w.Params.RootExplorationFraction)
	if eps <= 0 {
		return
	}

	var n = root.ChildCount()
	var noise = make([]float32, n)
	var sum float32
	for i := range noise {
		var g = gammaSample(w.rng, w.Params.RootDirichletAlpha)
		noise[i] = g
		sum += g
	}
	if sum == 0 {
		return
	}
	for i := range noise {
		noise[i] /= sum
	}

	var i = 0
	root.EachChild(func(_ chess.Move, c *Node) {
		c.prior = (1-eps)*c.prior + eps*noise[i]
		i++
	})
}

// gammaSample draws from Gamma(alpha, 1) via Marsaglia-Tsang squeeze,
// which is what Dirichlet sampling needs (Dirichlet is Gamma-per-component
// normalized). math/rand has no Gamma distribution built in.
func gammaSample(rng *rand.Rand, alpha float64) float32 {
	if alpha < 1 {
		var u = rng.Float64()
		return gammaSample(rng, alpha+1) * float32(math.Pow(u, 1/alpha))
	}
	var d = alpha - 1.0/3.0
	var c = 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		var u = rng.Float64()
		if u < 1-0.0331*x*x*x*x || math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return float32(d * v)
		}
	}
}

// SelectMove picks the move to play from root after a simulation budget
// is exhausted: temperature-1 sampling by visit count during self-play's
// exploration phase, or the incrementally-maintained bestChild otherwise.
func SelectMove(root *Node, ply int, tryHard bool, numSamplingMoves int, rng *rand.Rand) chess.Move {
	if !tryHard && ply < numSamplingMoves && root.ChildCount() > 0 {
		var moves []chess.Move
		var weights []int32
		var total int32
		root.EachChild(func(m chess.Move, c *Node) {
			moves = append(moves, m)
			weights = append(weights, c.visitCount)
			total += c.visitCount
		})
		if total > 0 {
			var target = rng.Int31n(total)
			var acc int32
			for i, w := range weights {
				acc += w
				if target < acc {
					return moves[i]
				}
			}
		}
	}
	var move, _ = root.BestChild()
	return move
}

// resolveBatch assembles the pending (image) buffer of every parked
// slot, packing the parked slots' images at the front of the batch
// buffer, issues one PredictBatch call sized to the number of parked
// slots, resumes
// every parked slot, and returns how many simulations it just finished so
// the caller can count them toward its budget.
func (w *Worker) resolveBatch() (int, error) {
	var parked []*simSlot
	for _, sl := range w.slots {
		if sl.Phase() == WaitingForPrediction {
			parked = append(parked, sl)
		}
	}
	if len(parked) == 0 {
		return 0, nil
	}

	for i, sl := range parked {
		copy(w.imageBatch[i*len(sl.Image):(i+1)*len(sl.Image)], sl.Image)
	}

	if err := w.Evaluator.PredictBatch(len(parked), w.imageBatch, w.valueBatch, w.policyBatch); err != nil {
		return 0, err
	}

	for i, sl := range parked {
		sl.Value = w.valueBatch[i]
		copy(sl.Policy, w.policyBatch[i*network.PolicySize:(i+1)*network.PolicySize])

		var leaf = sl.pendingLeaf
		var v = sl.ExpandAndEvaluate(leaf)
		w.finishSimulation(sl, leaf, v)
		sl.path = nil
	}
	return len(parked), nil
}

// RunWorkerPool drives count workers concurrently, each executing
// simulationBudget simulations, fanned out with errgroup the way the
// teacher's internal tools fan out work across goroutines.
func RunWorkerPool(ctx context.Context, workers []*Worker, simulationBudget int) error {
	var g, gctx = errgroup.WithContext(ctx)
	for _, w := range workers {
		var w = w
		g.Go(func() error { return w.RunSimulations(gctx, simulationBudget) })
	}
	return g.Wait()
}
