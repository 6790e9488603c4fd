package mcts

import (
	"math"

	"github.com/chesscoach-go/chesscoach/cache"
	"github.com/chesscoach-go/chesscoach/chess"
	"github.com/chesscoach-go/chesscoach/network"
)

// Phase is the explicit state of a Slot's two-phase ExpandAndEvaluate
// coroutine: the worker drives this state machine itself, no
// stack-switching required.
type Phase int

const (
	Working Phase = iota
	WaitingForPrediction
)

// Slot bundles a scratch Position (via chess.Game, which already tracks
// the history needed for repetition/fifty-move checks), a pointer to the
// root of its tree, the frozen ply of the search root, a try-hard flag
// (true for UCI search, false for self-play), and the three preallocated
// buffers sized for one network prediction.
type Slot struct {
	// RealGame is the actual, authoritative position this slot is
	// searching from; it only changes when the controller applies a real
	// move. Game is a scratch clone of RealGame, reset at the start of
	// every simulation and advanced move-by-move during selection.
	RealGame      *chess.Game
	Game          *chess.Game
	Root          *Node
	SearchRootPly int
	TryHard       bool

	Image  []float32
	Value  float32 // tanh-scaled (-1,1) network output, written by the worker after PredictBatch
	Policy []float32

	phase Phase

	pendingLeaf          *Node
	pendingMoves         []chess.Move
	pendingKey           uint64
	pendingCacheEligible bool
	priorsScratch        []float32

	pool            *Pool
	predictionCache *cache.Cache
	maxCachePly     int

	owns bool // false for a shadow slot: it must never prune Root
}

// NewSlot constructs a slot rooted at an unexpanded root over game, ready
// to drive simulations. predictionCache may be nil to disable caching
// entirely (tests that don't want cache interference use this).
func NewSlot(game *chess.Game, pool *Pool, predictionCache *cache.Cache, maxCachePly int, tryHard bool) *Slot {
	return &Slot{
		RealGame:        game,
		Game:            game.Clone(),
		Root:            pool.NewNode(1),
		SearchRootPly:   game.Ply(),
		TryHard:         tryHard,
		Image:           make([]float32, chess.InputPlaneCount*chess.BoardSize*chess.BoardSize),
		Policy:          make([]float32, network.PolicySize),
		priorsScratch:   make([]float32, cache.MaxMoves),
		pool:            pool,
		predictionCache: predictionCache,
		maxCachePly:     maxCachePly,
		owns:            true,
	}
}

// Shadow returns a new slot aliasing s's tree root for tree-parallel MCTS:
// it gets its own scratch game clone and I/O buffers but shares Root,
// pool, and cache. Exactly one slot (the one Shadow was called on) owns
// the tree for pruning purposes; shadows must never call PruneExcept or
// PruneAll on Root.
func (s *Slot) Shadow() *Slot {
	return &Slot{
		RealGame:        s.RealGame.Clone(),
		Game:            s.RealGame.Clone(),
		Root:            s.Root,
		SearchRootPly:   s.SearchRootPly,
		TryHard:         s.TryHard,
		Image:           make([]float32, len(s.Image)),
		Policy:          make([]float32, len(s.Policy)),
		priorsScratch:   make([]float32, cache.MaxMoves),
		pool:            s.pool,
		predictionCache: s.predictionCache,
		maxCachePly:     s.maxCachePly,
		owns:            false,
	}
}

func (s *Slot) Phase() Phase { return s.phase }

// ExpandAndEvaluate drives leaf's two-phase coroutine one step. leaf is
// the node at the tip of the current search path; s.Game must already be
// advanced to leaf's position. Call it again, after the worker has
// copied a completed batch prediction into s.Value/s.Policy, to resume a
// slot left WaitingForPrediction.
func (s *Slot) ExpandAndEvaluate(leaf *Node) float32 {
	switch s.phase {
	case Working:
		return s.expandWorking(leaf)
	case WaitingForPrediction:
		return s.completeExpansion(leaf)
	default:
		panic("mcts: unknown phase")
	}
}

func (s *Slot) expandWorking(leaf *Node) float32 {
	if leaf.terminalValue.IsImmediate() {
		return leaf.terminalValue.ImmediateValue()
	}

	var ply = s.Game.Ply()
	var moves = s.Game.GenerateLegalMoves()

	if len(moves) == 0 {
		if s.Game.IsCheck() {
			leaf.terminalValue = MateIn(1)
		} else {
			leaf.terminalValue = Draw
		}
		return leaf.terminalValue.ImmediateValue()
	}

	var cacheEligible = s.predictionCache != nil &&
		(s.TryHard || ply <= s.maxCachePly) &&
		len(moves) <= cache.MaxMoves

	if cacheEligible {
		var priorsBuf = s.priorsScratch[:len(moves)]
		if value, ok := s.predictionCache.Probe(s.Game.ZobristKey(), len(moves), priorsBuf); ok {
			s.createChildren(leaf, moves, priorsBuf)
			return value
		}
	}

	if s.Game.IsDrawByRuleOrRepetition(ply - s.SearchRootPly) {
		leaf.terminalValue = Draw
		return Draw.ImmediateValue()
	}

	s.Game.GenerateInputPlanes(s.Image)
	s.pendingLeaf = leaf
	s.pendingMoves = append(s.pendingMoves[:0], moves...)
	s.pendingKey = s.Game.ZobristKey()
	s.pendingCacheEligible = cacheEligible
	leaf.expanding = true
	s.phase = WaitingForPrediction
	return float32(math.NaN())
}

func (s *Slot) completeExpansion(leaf *Node) float32 {
	if leaf != s.pendingLeaf {
		panic("mcts: completeExpansion called on a different leaf than was parked")
	}

	// The evaluator trait returns tanh-scaled (-1,1) values; map to [0,1]
	// before the parent-perspective flip below.
	var v = (s.Value + 1) / 2
	v = 1 - v

	var sideToMove = s.Game.ToPlay()
	if cap(s.priorsScratch) < len(s.pendingMoves) {
		s.priorsScratch = make([]float32, len(s.pendingMoves))
	}
	var priors = s.priorsScratch[:len(s.pendingMoves)]
	for i, m := range s.pendingMoves {
		priors[i] = s.Policy[network.PolicyIndex(m, sideToMove)]
	}
	softmaxInPlace(priors)

	if s.pendingCacheEligible {
		s.predictionCache.Store(s.pendingKey, v, priors)
	}

	s.createChildren(leaf, s.pendingMoves, priors)
	leaf.expanding = false
	s.pendingLeaf = nil
	s.phase = Working
	return v
}

func (s *Slot) createChildren(leaf *Node, moves []chess.Move, priors []float32) {
	leaf.children = make(map[chess.Move]*Node, len(moves))
	for i, m := range moves {
		leaf.children[m] = s.pool.NewNode(priors[i])
	}
}

func softmaxInPlace(logits []float32) {
	if len(logits) == 0 {
		return
	}
	var max = logits[0]
	for _, l := range logits[1:] {
		if l > max {
			max = l
		}
	}
	var sum float32
	for i, l := range logits {
		var e = float32(math.Exp(float64(l - max)))
		logits[i] = e
		sum += e
	}
	for i := range logits {
		logits[i] /= sum
	}
}
