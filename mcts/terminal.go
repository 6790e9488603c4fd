// Package mcts implements the search tree, the search-game-slot coroutine
// that interleaves tree traversal with batched network evaluation, and the
// worker that drives many such slots in lockstep.
package mcts

// TerminalValue tags a node's proven game-theoretic status. The zero value
// is NonTerminal.
type TerminalValue int32

const (
	NonTerminal TerminalValue = 0
	Draw        TerminalValue = -1
)

// MateIn and OpponentMateIn encode mate distances into the TerminalValue's
// range: MateIn(n) is n, above NonTerminal, and OpponentMateIn(n) is -n-1,
// below Draw, so all three kinds occupy disjoint ranges
// and ordinary integer comparison already separates "self mates" from
// "gets mated" from everything else.
func MateIn(n int) TerminalValue {
	if n < 1 {
		panic("mcts: MateIn requires n >= 1")
	}
	return TerminalValue(n)
}

func OpponentMateIn(n int) TerminalValue {
	if n < 1 {
		panic("mcts: OpponentMateIn requires n >= 1")
	}
	return TerminalValue(-n - 1)
}

func (t TerminalValue) IsNonTerminal() bool { return t == NonTerminal }
func (t TerminalValue) IsDraw() bool        { return t == Draw }
func (t TerminalValue) IsMate() bool        { return t > NonTerminal }
func (t TerminalValue) IsOpponentMate() bool {
	return t < Draw
}

// MateN returns n for MateIn(n); panics if t is not a MateIn.
func (t TerminalValue) MateN() int {
	if !t.IsMate() {
		panic("mcts: MateN called on a non-MateIn value")
	}
	return int(t)
}

// OpponentMateN returns n for OpponentMateIn(n); panics if t is not one.
func (t TerminalValue) OpponentMateN() int {
	if !t.IsOpponentMate() {
		panic("mcts: OpponentMateN called on a non-OpponentMateIn value")
	}
	return int(-t - 1)
}

// EitherMateN returns the signed mate distance used by WorseThan's total
// order: positive n for MateIn(n), negative -n for OpponentMateIn(n), 0
// for anything else (including Draw and NonTerminal).
func (t TerminalValue) EitherMateN() int {
	switch {
	case t.IsMate():
		return t.MateN()
	case t.IsOpponentMate():
		return -t.OpponentMateN()
	default:
		return 0
	}
}

// IsImmediate reports whether evaluating the position directly (without
// any network call) already answers the terminal question: MateIn(1) and
// Draw both qualify, matching §3's invariant that those two are the only
// terminal values a leaf expansion can assign without first visiting
// children.
func (t TerminalValue) IsImmediate() bool {
	return t == Draw || t == MateIn(1)
}

// ImmediateValue returns the parent-perspective value of an immediate
// terminal: a mate-in-1 is a win for the side that just moved (1.0 from
// the mated side's parent's perspective is wrong framing — see Node.Value
// callers, which always read this as "value from the position's own
// parent's point of view", i.e. a win for whoever delivered the mate).
func (t TerminalValue) ImmediateValue() float32 {
	switch t {
	case Draw:
		return 0.5
	case MateIn(1):
		return 1
	default:
		panic("mcts: ImmediateValue called on a non-immediate terminal")
	}
}

// UMax bounds the pre-tabulated mate-incentive table: mates deeper than
// UMax-1 all share the table's last (smallest) incentive.
const UMax = 64

// UcbMateTerm[n] is the PUCT exploration bonus granted to a child proven
// MateIn(n+1), strictly decreasing in n so faster mates are preferred
// during selection even before they dominate by value alone.
var UcbMateTerm [UMax]float32

func init() {
	for n := range UcbMateTerm {
		UcbMateTerm[n] = 1.0 / float32(n+1)
	}
}

// MateScore is the additive UCB term §4.5 adds to a child's score: zero
// for anything but a proven MateIn, and otherwise c times a pre-tabulated,
// strictly mate-distance-decreasing incentive.
func (t TerminalValue) MateScore(c float32) float32 {
	if !t.IsMate() {
		return 0
	}
	var n = t.MateN() - 1
	if n >= UMax {
		n = UMax - 1
	}
	return c * UcbMateTerm[n]
}
