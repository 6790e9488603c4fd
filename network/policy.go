package network

import "github.com/chesscoach-go/chesscoach/chess"

// Policy output planes follow the standard AlphaZero move encoding: 56
// "queen move" planes (8 directions x 7 distances), 8 knight-move planes,
// and 9 underpromotion planes (3 directions x {knight, bishop, rook}),
// each plane laid out as an 8x8 grid indexed by the move's from-square.
// Everything is expressed in the side-to-move's own perspective, the same
// orientation chess.Game.GenerateInputPlanes renders the board in.
const (
	queenPlanes        = 56
	knightPlaneBase    = queenPlanes
	underpromotionBase = queenPlanes + 8
)

var queenDirections = [8][2]int{
	{0, 1}, {1, 1}, {1, 0}, {1, -1},
	{0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
}

var knightDeltas = [8][2]int{
	{1, 2}, {2, 1}, {2, -1}, {1, -2},
	{-1, -2}, {-2, -1}, {-2, 1}, {-1, 2},
}

// underpromotionDirections covers the three ways a pawn can reach the
// back rank: straight push, capture toward the a-file, capture toward
// the h-file — expressed as the same (deltaFile, deltaRank) pairs as
// queenDirections so the index lines up with a pawn's one-step move.
var underpromotionDirections = [3][2]int{
	{0, 1}, {-1, 1}, {1, 1},
}

var underpromotionPieces = [3]int{chess.Knight, chess.Bishop, chess.Rook}

func perspectiveSquare(sq int, white bool) int {
	if white {
		return sq
	}
	return (7-sq/8)*8 + sq%8
}

// PolicyIndex maps a legal move to its index into the flat PolicySize
// policy output, from sideToMove's perspective.
func PolicyIndex(m chess.Move, sideToMove chess.Color) int {
	var white = sideToMove == chess.White
	var from = perspectiveSquare(m.From(), white)
	var to = perspectiveSquare(m.To(), white)

	var deltaFile = to%8 - from%8
	var deltaRank = to/8 - from/8

	if m.Promotion() != chess.Empty && m.Promotion() != chess.Queen {
		for i, piece := range underpromotionPieces {
			if piece != m.Promotion() {
				continue
			}
			for d, dir := range underpromotionDirections {
				if dir[0] == sign(deltaFile) && dir[1] == sign(deltaRank) {
					return (underpromotionBase+i*3+d)*chess.BoardSize*chess.BoardSize + from
				}
			}
		}
	}

	if isKnightDelta(deltaFile, deltaRank) {
		for i, d := range knightDeltas {
			if d[0] == deltaFile && d[1] == deltaRank {
				return (knightPlaneBase+i)*chess.BoardSize*chess.BoardSize + from
			}
		}
	}

	var dist = maxAbs(deltaFile, deltaRank)
	for i, dir := range queenDirections {
		if dir[0] == sign(deltaFile) && dir[1] == sign(deltaRank) {
			return (i*7+dist-1)*chess.BoardSize*chess.BoardSize + from
		}
	}

	// Unreachable for a legal chess move: every legal move is either a
	// knight move, a single-step underpromotion, or a sliding/king/pawn
	// step along one of the eight queen directions.
	panic("network: move does not fit the policy encoding")
}

func isKnightDelta(deltaFile, deltaRank int) bool {
	var af, ar = abs(deltaFile), abs(deltaRank)
	return (af == 1 && ar == 2) || (af == 2 && ar == 1)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxAbs(a, b int) int {
	var aa, ab = abs(a), abs(b)
	if aa > ab {
		return aa
	}
	return ab
}
