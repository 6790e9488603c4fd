package network

import (
	"testing"

	"github.com/chesscoach-go/chesscoach/chess"
)

func TestPolicyIndexDistinctForEveryStartingMove(t *testing.T) {
	var g = chess.NewGame()
	var moves = g.GenerateLegalMoves()
	if len(moves) != 20 {
		t.Fatalf("expected 20 legal moves from the starting position, got %d", len(moves))
	}

	var seen = make(map[int]chess.Move)
	for _, m := range moves {
		var idx = PolicyIndex(m, g.ToPlay())
		if idx < 0 || idx >= PolicySize {
			t.Fatalf("PolicyIndex(%v) = %d out of range [0,%d)", m, idx, PolicySize)
		}
		if prev, ok := seen[idx]; ok {
			t.Fatalf("moves %v and %v collide at policy index %d", prev, m, idx)
		}
		seen[idx] = m
	}
}

func TestPolicyIndexSymmetricAcrossPerspective(t *testing.T) {
	var g = chess.NewGame()
	var whiteMoves = g.GenerateLegalMoves()
	var e2e4 chess.Move
	for _, m := range whiteMoves {
		if m.String() == "e2e4" {
			e2e4 = m
		}
	}
	if e2e4 == chess.MoveNone {
		t.Fatal("e2e4 not found among starting moves")
	}
	g.ApplyMove(e2e4)

	var blackMoves = g.GenerateLegalMoves()
	var e7e5 chess.Move
	for _, m := range blackMoves {
		if m.String() == "e7e5" {
			e7e5 = m
		}
	}
	if e7e5 == chess.MoveNone {
		t.Fatal("e7e5 not found among black's replies")
	}

	// e7e5 viewed from black's own perspective should land on the same
	// policy index as e2e4 did from white's: both are a king pawn's
	// symmetric two-square push toward the center.
	if PolicyIndex(e7e5, chess.Black) != PolicyIndex(e2e4, chess.White) {
		t.Errorf("PolicyIndex(e7e5, Black) = %d, PolicyIndex(e2e4, White) = %d, want equal",
			PolicyIndex(e7e5, chess.Black), PolicyIndex(e2e4, chess.White))
	}
}

func TestPolicyIndexUnderpromotion(t *testing.T) {
	var pos, err = chess.NewPositionFromFEN("8/4P3/8/8/8/8/8/4k2K w - - 0 1")
	if err != nil {
		t.Fatalf("NewPositionFromFEN: %v", err)
	}
	var g = chess.NewGameFromPosition(pos)

	var promos = g.GenerateLegalMoves()
	var queenIdx, knightIdx = -1, -1
	for _, m := range promos {
		if m.From() == chess.SquareE7 && m.To() == chess.SquareE8 {
			switch m.Promotion() {
			case chess.Queen:
				queenIdx = PolicyIndex(m, chess.White)
			case chess.Knight:
				knightIdx = PolicyIndex(m, chess.White)
			}
		}
	}
	if queenIdx < 0 || knightIdx < 0 {
		t.Fatal("expected both queen and knight promotion moves for e7e8")
	}
	if queenIdx == knightIdx {
		t.Error("queen and knight promotions of the same move must use distinct policy indices")
	}
	if queenIdx/(chess.BoardSize*chess.BoardSize) >= queenPlanes {
		t.Errorf("queen promotion should share the plain queen-direction planes, got plane %d", queenIdx/(chess.BoardSize*chess.BoardSize))
	}
	if knightIdx < underpromotionBase*chess.BoardSize*chess.BoardSize {
		t.Errorf("knight underpromotion should land in the underpromotion planes, got index %d", knightIdx)
	}
}
