package chess

import "strings"

// Move is an opaque handle identifying a legal chess move: from-square,
// to-square, and promotion/special bits packed into 32 bits (the spec's
// "16-bit handle" is widened here to also self-describe the moving and
// captured piece, which the tree and UCB scoring never need to recompute).
type Move int32

// MoveNone is the reserved empty move handle.
const MoveNone = Move(0)

func makeMove(from, to, movingPiece, capturedPiece int) Move {
	return Move(from ^ (to << 6) ^ (movingPiece << 12) ^ (capturedPiece << 15))
}

func makePawnMove(from, to, capturedPiece, promotion int) Move {
	return Move(from ^ (to << 6) ^ (Pawn << 12) ^ (capturedPiece << 15) ^ (promotion << 18))
}

func (m Move) From() int          { return int(m & 63) }
func (m Move) To() int            { return int((m >> 6) & 63) }
func (m Move) MovingPiece() int   { return int((m >> 12) & 7) }
func (m Move) CapturedPiece() int { return int((m >> 15) & 7) }
func (m Move) Promotion() int     { return int((m >> 18) & 7) }

// String renders a move in long algebraic notation, e.g. "e2e4" or "a7a8q".
func (m Move) String() string {
	if m == MoveNone {
		return "0000"
	}
	var promotion = ""
	if m.Promotion() != Empty {
		promotion = string("nbrq"[m.Promotion()-Knight])
	}
	return SquareName(m.From()) + SquareName(m.To()) + promotion
}

// ParseMoveLAN finds the legal move in ml matching a long-algebraic string.
func ParseMoveLAN(ml []Move, lan string) Move {
	for _, m := range ml {
		if strings.EqualFold(m.String(), lan) {
			return m
		}
	}
	return MoveNone
}
