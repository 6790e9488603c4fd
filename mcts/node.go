package mcts

import "github.com/chesscoach-go/chesscoach/chess"

// Node is one tree vertex. All values stored on a node are from that
// node's parent's to-play perspective (see Slot.ExpandAndEvaluate).
type Node struct {
	prior         float32
	originalPrior float32 // pre-Dirichlet-noise prior, kept for diagnostics

	visitCount    int32
	visitingCount int32
	valueSum      float32

	terminalValue TerminalValue
	expanding     bool

	children map[chess.Move]*Node

	bestChildMove Move
	bestChild     *Node
}

// Move is a type alias kept local to mcts so bestChildMove reads as a
// domain concept rather than a raw chess.Move everywhere it's threaded
// through selection/backprop code.
type Move = chess.Move

// newNode initializes a node with zero visits, NonTerminal, and no
// children. Always called through Pool.NewNode so allocation comes from
// the thread-local block pool.
func newNode(prior float32) *Node {
	return &Node{prior: prior, originalPrior: prior}
}

// Value is valueSum/visitCount, or 0 (first-play urgency: a loss from the
// parent's perspective) if the node has never been visited.
func (n *Node) Value() float32 {
	if n.visitCount == 0 {
		return 0
	}
	return n.valueSum / float32(n.visitCount)
}

func (n *Node) VisitCount() int32    { return n.visitCount }
func (n *Node) Prior() float32       { return n.prior }
func (n *Node) OriginalPrior() float32 { return n.originalPrior }
func (n *Node) TerminalValue() TerminalValue { return n.terminalValue }
func (n *Node) IsExpanded() bool     { return len(n.children) > 0 || n.terminalValue != NonTerminal }
func (n *Node) IsLeaf() bool         { return len(n.children) == 0 }

// Child returns the child reached by m, or nil.
func (n *Node) Child(m chess.Move) *Node { return n.children[m] }

// BestChild returns the cached (move, child) pair maintained by selection
// and backpropagation, or (MoveNone, nil) if the node has never had a PV
// established (e.g. it has no children yet).
func (n *Node) BestChild() (chess.Move, *Node) { return n.bestChildMove, n.bestChild }

// EachChild calls f for every (move, child) pair. Iteration order is the
// Go map's, i.e. unspecified.
func (n *Node) EachChild(f func(m chess.Move, c *Node)) {
	for m, c := range n.children {
		f(m, c)
	}
}

func (n *Node) ChildCount() int { return len(n.children) }
