package chess

import "testing"

func TestFENRoundTrip(t *testing.T) {
	var fens = []string{
		InitialFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"rnbqkbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
	}
	for _, fen := range fens {
		pos, err := NewPositionFromFEN(fen)
		if err != nil {
			t.Fatalf("NewPositionFromFEN(%q) failed: %v", fen, err)
		}
		if got := pos.FEN(); got != fen {
			t.Errorf("FEN() = %q, want %q", got, fen)
		}
	}
}

func TestMakeMoveUpdatesZobristKeyConsistently(t *testing.T) {
	pos, err := NewPositionFromFEN(InitialFEN)
	if err != nil {
		t.Fatal(err)
	}
	var moved Position
	var e2e4 Move
	for _, m := range pos.GenerateLegalMoves(make([]Move, 0, MaxMoves)) {
		if m.String() == "e2e4" {
			e2e4 = m
		}
	}
	if !pos.MakeMove(e2e4, &moved) {
		t.Fatal("e2e4 should be legal from the initial position")
	}

	var recomputed = moved.computeKey()
	if moved.Key != recomputed {
		t.Errorf("incremental Key = %#x, recomputed = %#x", moved.Key, recomputed)
	}
}

func TestEnPassantCapture(t *testing.T) {
	pos, err := NewPositionFromFEN("rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 3")
	if err != nil {
		t.Fatal(err)
	}
	var found = false
	for _, m := range pos.GenerateLegalMoves(make([]Move, 0, MaxMoves)) {
		if m.String() == "d4e3" {
			found = true
			if m.CapturedPiece() != Pawn {
				t.Errorf("en passant capture should record CapturedPiece() = Pawn, got %d", m.CapturedPiece())
			}
		}
	}
	if !found {
		t.Fatal("d4e3 en passant capture not found among legal moves")
	}
}

func TestCastlingRightsLostAfterRookMove(t *testing.T) {
	// The g1 knight is simply left off the board so the h1 rook has a move
	// without needing a realistic game history.
	custom, err := NewPositionFromFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKB1R w KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	var m = makeMove(SquareH1, SquareG1, Rook, Empty)
	var result Position
	if !custom.MakeMove(m, &result) {
		t.Fatal("rook move h1g1 should be legal")
	}
	if result.CastleRights&WhiteKingSide != 0 {
		t.Error("moving the h1 rook should clear WhiteKingSide castling rights")
	}
	if result.CastleRights&WhiteQueenSide == 0 {
		t.Error("moving the h1 rook should not clear WhiteQueenSide castling rights")
	}
}
