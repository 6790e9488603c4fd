// Package uci implements the search controller and UCI wire protocol
// sitting on top of the mcts package: a small state machine that owns one
// live tree per game, reuses it across a prefix-extending sequence of
// positions, and drives it with a single MCTS worker under a time budget.
package uci

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chesscoach-go/chesscoach/cache"
	"github.com/chesscoach-go/chesscoach/chess"
	"github.com/chesscoach-go/chesscoach/config"
	"github.com/chesscoach-go/chesscoach/mcts"
	"github.com/chesscoach-go/chesscoach/network"
)

// State is the controller's own state machine, independent of whatever
// command loop drives it.
type State int

const (
	Idle State = iota
	Searching
	Stopping
)

// TimeControl carries the `go` parameters recognized by the UCI subset in
// spec §6. Zero fields mean "not specified".
type TimeControl struct {
	Infinite  bool
	MoveTime  int // ms
	WhiteTime int // ms
	BlackTime int // ms
	WhiteInc  int // ms
	BlackInc  int // ms
}

// Controller owns the live search tree for one game and drives simulation
// budgets with a single MCTS worker.
type Controller struct {
	cfg       config.Config
	evaluator network.Evaluator
	cache     *cache.Cache
	pool      *mcts.Pool

	game  *chess.Game
	root  *Slot
	state State

	debug bool
}

// Slot is the controller's name for the one owning slot driving the live
// tree; kept as a type alias so callers outside this package don't need to
// import mcts just to hold a reference.
type Slot = mcts.Slot

// NewController builds a controller starting from the standard initial
// position.
func NewController(cfg config.Config, evaluator network.Evaluator) *Controller {
	var c = &Controller{
		cfg:       cfg,
		evaluator: evaluator,
		cache:     cache.New(cfg.PredictionCacheSizeGb),
		pool:      mcts.NewPool(),
	}
	c.resetTree(chess.NewGame())
	return c
}

func (c *Controller) resetTree(game *chess.Game) {
	if c.root != nil {
		c.pool.PruneAll(c.root.Root)
	}
	c.game = game
	c.root = mcts.NewSlot(game, c.pool, c.cache, c.cfg.PredictionCacheMaxPly, true)
}

// SetPosition installs game as the position to search from next. appliedMoves
// is the full move list that carried game's own starting position to game
// (the UCI "position ... moves ..." list, always resent from scratch by the
// GUI). If the live tree's current root sits at one of the plies that list
// passes through, the matching subtree is kept and only the remaining tail
// of moves is applied to it; otherwise the whole tree is rebuilt.
func (c *Controller) SetPosition(game *chess.Game, appliedMoves []chess.Move) {
	if c.state != Idle {
		log.Warn().Msg("position set while a search was still active")
	}

	if newRoot, tail, ok := c.findExtension(game, appliedMoves); ok {
		for _, m := range tail {
			var kept = c.pool.PruneExcept(newRoot, m)
			if kept == nil {
				kept = c.pool.NewNode(1)
			}
			newRoot = kept
		}
		c.root.Root = newRoot
		c.game = game
		c.root.RealGame = game
		c.root.Game = game.Clone()
		c.root.SearchRootPly = game.Ply()
		return
	}

	c.resetTree(game)
}

// findExtension reports whether the live root's current position occurs at
// some ply along game's own history (as reconstructed from appliedMoves),
// in which case the tree can be kept and advanced by only the moves after
// that ply instead of rebuilt from scratch. It verifies the match by
// Zobrist key rather than by comparing move lists directly, since
// appliedMoves is indexed from game's own start, not from the live root.
func (c *Controller) findExtension(game *chess.Game, appliedMoves []chess.Move) (newRoot *mcts.Node, tail []chess.Move, ok bool) {
	if c.root == nil || len(appliedMoves) == 0 {
		return nil, nil, false
	}

	var oldPly = c.root.RealGame.Ply()
	var startPly = game.Ply() - len(appliedMoves)
	if oldPly < startPly || oldPly > game.Ply() {
		return nil, nil, false
	}

	var key, found = game.KeyAtPly(oldPly)
	if !found || key != c.root.RealGame.ZobristKey() {
		return nil, nil, false
	}

	return c.root.Root, appliedMoves[oldPly-startPly:], true
}

// InfoFunc is called by Go whenever the principal variation changes (or a
// periodic heartbeat fires), and once more with the final result.
type InfoFunc func(SearchInfo)

// SearchInfo is the subset of search state the UCI protocol layer prints.
type SearchInfo struct {
	Depth    int
	ScoreCp  int
	MateIn   int // 0 if not a proven mate
	Nodes    int64
	TimeMs   int64
	Hashfull int
	PV       []chess.Move
}

// Go begins a search under tc, calling info whenever the PV changes or at
// least every five seconds, and returns the best move once the search
// ends (budget exhausted, stop requested, or ctx cancelled).
func (c *Controller) Go(ctx context.Context, tc TimeControl, info InfoFunc) chess.Move {
	c.state = Searching
	defer func() { c.state = Idle }()

	var budget = c.timeBudget(tc)
	var searchCtx = ctx
	var cancel context.CancelFunc
	if budget >= 0 {
		searchCtx, cancel = context.WithTimeout(ctx, time.Duration(budget)*time.Millisecond)
		defer cancel()
	}

	var worker = mcts.NewWorker(c.evaluator, c.mctsParams(), []*mcts.Slot{c.root})
	if err := worker.WarmUp(1); err != nil {
		log.Warn().Err(err).Msg("evaluator warm-up failed, continuing without it")
	}

	var started = time.Now()
	var lastInfo = started
	var depth int
	var evaluatorFailed bool

	for {
		if err := searchCtx.Err(); err != nil {
			break
		}
		if err := worker.RunSimulations(searchCtx, 1); err != nil {
			if searchCtx.Err() == nil {
				// Not a cancellation: the evaluator itself failed.
				log.Error().Err(err).Msg("evaluator failed, aborting search")
				evaluatorFailed = true
			}
			break
		}
		depth++

		var changed = worker.PrincipalVariationChanged
		worker.PrincipalVariationChanged = false
		if changed || time.Since(lastInfo) >= 5*time.Second {
			info(c.buildSearchInfo(worker, depth, started))
			lastInfo = time.Now()
		}
		if c.debug && changed {
			log.Debug().Int("depth", depth).Int64("nodes", worker.NodeCount()).
				Int64("failedNodes", worker.FailedNodeCount()).Msg("pv changed")
		}

		if tc.Infinite {
			continue
		}
		if budget < 0 && depth >= c.cfg.NumSimulations {
			break
		}
	}

	info(c.buildSearchInfo(worker, depth, started))

	if evaluatorFailed {
		return chess.MoveNone
	}
	return mcts.SelectMove(c.root.Root, c.root.SearchRootPly, true, 0, nil)
}

// Stop requests the current search wind down at the next controller
// check; RunSimulations' per-simulation ctx.Err() poll picks this up.
func (c *Controller) Stop(cancel context.CancelFunc) {
	c.state = Stopping
	if cancel != nil {
		cancel()
	}
}

// Debug toggles info-string verbosity.
func (c *Controller) Debug(on bool) { c.debug = on }

func (c *Controller) mctsParams() mcts.Params {
	return mcts.Params{
		RootDirichletAlpha:      c.cfg.RootDirichletAlpha,
		RootExplorationFraction: 0, // try_hard search never adds root noise
		ExplorationRateBase:     c.cfg.ExplorationRateBase,
		ExplorationRateInit:     c.cfg.ExplorationRateInit,
		NumSamplingMoves:        0,
	}
}

// timeBudget computes the allowed search time in ms per spec §4.6's
// priority order, or -1 to mean "no wall-clock limit, use NumSimulations".
func (c *Controller) timeBudget(tc TimeControl) int {
	if tc.Infinite {
		return -1
	}
	if tc.MoveTime > 0 {
		return tc.MoveTime
	}

	var toPlayTime, toPlayInc = tc.WhiteTime, tc.WhiteInc
	if c.game.ToPlay() == chess.Black {
		toPlayTime, toPlayInc = tc.BlackTime, tc.BlackInc
	}
	if toPlayTime > 0 {
		var allowed = float64(toPlayTime)/c.cfg.TimeControlFractionOfRemaining +
			float64(toPlayInc) - float64(c.cfg.TimeControlSafetyBufferMs)
		if allowed > 0 {
			return int(allowed)
		}
	}

	return -1
}

func (c *Controller) buildSearchInfo(worker *mcts.Worker, depth int, started time.Time) SearchInfo {
	var elapsed = time.Since(started)
	var si = SearchInfo{
		Depth:    depth,
		Nodes:    worker.NodeCount(),
		TimeMs:   elapsed.Milliseconds(),
		Hashfull: c.cache.PermilleFull(),
	}

	var tv = c.root.Root.TerminalValue()
	if tv.IsMate() {
		si.MateIn = tv.MateN()
	} else if tv.IsOpponentMate() {
		si.MateIn = -tv.OpponentMateN()
	} else {
		si.ScoreCp = winProbabilityToCentipawns(c.root.Root.Value())
	}

	var node = c.root.Root
	for {
		var m, child = node.BestChild()
		if child == nil {
			break
		}
		si.PV = append(si.PV, m)
		node = child
	}

	return si
}

// winProbabilityToCentipawns is an implementation-defined probability to
// centipawn mapping (spec §4.6 leaves the exact curve open): the logistic
// inverse of the usual centipawn-to-winrate conversion, clamped to a
// sensible display range.
func winProbabilityToCentipawns(p float32) int {
	if p <= 0 {
		return -1000
	}
	if p >= 1 {
		return 1000
	}
	var cp = 400 * math.Log10(float64(p)/(1-float64(p)))
	if cp > 1000 {
		cp = 1000
	}
	if cp < -1000 {
		cp = -1000
	}
	return int(cp)
}
