package chess

import (
	"bytes"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"unicode"
)

// Position is an immutable chess position: applying a move produces a new
// Position rather than mutating in place, which is what lets the search
// tree keep many positions alive (one per node's path) without an
// undo/redo stack.
type Position struct {
	Pawns, Knights, Bishops, Rooks, Queens, Kings, White, Black, Checkers uint64
	WhiteMove                                                             bool
	CastleRights, Rule50, EpSquare                                       int
	Key                                                                  uint64
	LastMove                                                             Move
}

type coloredPiece struct {
	Type int
	Side bool
}

var castleMask [64]int

var (
	sideKey        uint64
	enpassantKey   [8]uint64
	castlingKey    [16]uint64
	pieceSquareKey [7 * 2 * 64]uint64
)

// pieceSquareKeyFor returns the Zobrist component for one piece-on-square.
func pieceSquareKeyFor(piece int, side bool, square int) uint64 {
	return pieceSquareKey[makePieceIndex(piece, side)*64+square]
}

func makePieceIndex(pieceType int, side bool) int {
	if side {
		return pieceType
	}
	return pieceType + 7
}

func createPosition(board [64]coloredPiece, whiteToMove bool, castleRights, ep, rule50 int) (Position, bool) {
	var p = Position{
		WhiteMove:    whiteToMove,
		CastleRights: castleRights,
		EpSquare:     ep,
		Rule50:       rule50,
		LastMove:     MoveNone,
	}

	for sq, piece := range board {
		if piece.Type != Empty {
			xorPiece(&p, piece.Type, piece.Side, sq)
		}
	}

	p.Key = p.computeKey()
	p.Checkers = p.computeCheckers()

	if !p.isLegal() {
		return Position{}, false
	}
	return p, true
}

// NewPositionFromFEN parses Forsyth-Edwards notation.
func NewPositionFromFEN(fen string) (Position, error) {
	var tokens = strings.Split(strings.TrimSpace(fen), " ")
	if len(tokens) < 4 {
		return Position{}, fmt.Errorf("parse fen failed: %v", fen)
	}

	var board [64]coloredPiece
	var i = 0
	for _, ch := range tokens[0] {
		if unicode.IsDigit(ch) {
			n, _ := strconv.Atoi(string(ch))
			i += n
		} else if unicode.IsLetter(ch) {
			board[flipSquare(i)] = parsePiece(ch)
			i++
		}
	}

	var whiteMove = tokens[1] == "w"

	var cr = 0
	if strings.Contains(tokens[2], "K") {
		cr |= WhiteKingSide
	}
	if strings.Contains(tokens[2], "Q") {
		cr |= WhiteQueenSide
	}
	if strings.Contains(tokens[2], "k") {
		cr |= BlackKingSide
	}
	if strings.Contains(tokens[2], "q") {
		cr |= BlackQueenSide
	}

	var epSquare = ParseSquare(tokens[3])

	var rule50 = 0
	if len(tokens) > 4 {
		rule50, _ = strconv.Atoi(tokens[4])
	}

	pos, ok := createPosition(board, whiteMove, cr, epSquare, rule50)
	if !ok {
		return Position{}, fmt.Errorf("parse fen failed (illegal position): %v", fen)
	}
	return pos, nil
}

func parsePiece(ch rune) coloredPiece {
	var side = unicode.IsUpper(ch)
	var i = strings.Index("pnbrqk", string(unicode.ToLower(ch)))
	if i < 0 {
		return coloredPiece{Empty, false}
	}
	return coloredPiece{i + Pawn, side}
}

// FEN renders the position back to Forsyth-Edwards notation.
func (p *Position) FEN() string {
	var sb bytes.Buffer
	var emptyCount = 0

	for i := 0; i < 64; i++ {
		var sq = flipSquare(i)
		var piece = p.WhatPiece(sq)
		if piece == Empty {
			emptyCount++
		} else {
			if emptyCount != 0 {
				sb.WriteString(strconv.Itoa(emptyCount))
				emptyCount = 0
			}
			var side = (p.White & squareMask[sq]) != 0
			sb.WriteString(pieceToChar(piece, side))
		}

		if file(sq) == FileH {
			if emptyCount != 0 {
				sb.WriteString(strconv.Itoa(emptyCount))
				emptyCount = 0
			}
			if rank(sq) != Rank1 {
				sb.WriteString("/")
			}
		}
	}
	sb.WriteString(" ")
	if p.WhiteMove {
		sb.WriteString("w")
	} else {
		sb.WriteString("b")
	}
	sb.WriteString(" ")
	if p.CastleRights == 0 {
		sb.WriteString("-")
	} else {
		if p.CastleRights&WhiteKingSide != 0 {
			sb.WriteString("K")
		}
		if p.CastleRights&WhiteQueenSide != 0 {
			sb.WriteString("Q")
		}
		if p.CastleRights&BlackKingSide != 0 {
			sb.WriteString("k")
		}
		if p.CastleRights&BlackQueenSide != 0 {
			sb.WriteString("q")
		}
	}
	sb.WriteString(" ")
	if p.EpSquare == SquareNone {
		sb.WriteString("-")
	} else {
		sb.WriteString(SquareName(p.EpSquare))
	}
	sb.WriteString(" ")
	sb.WriteString(strconv.Itoa(p.Rule50))
	sb.WriteString(" ")
	sb.WriteString(strconv.Itoa(p.Rule50/2 + 1))
	return sb.String()
}

func pieceToChar(pieceType int, side bool) string {
	var result = string("pnbrqk"[pieceType-Pawn])
	if side {
		result = strings.ToUpper(result)
	}
	return result
}

// WhatPiece returns the piece type on sq, or Empty if sq is unoccupied. It
// panics only if sq is set in a color bitboard but in no piece bitboard.
func (p *Position) WhatPiece(sq int) int {
	var bb = squareMask[sq]
	if (p.White|p.Black)&bb == 0 {
		return Empty
	}
	switch {
	case p.Pawns&bb != 0:
		return Pawn
	case p.Knights&bb != 0:
		return Knight
	case p.Bishops&bb != 0:
		return Bishop
	case p.Rooks&bb != 0:
		return Rook
	case p.Queens&bb != 0:
		return Queen
	case p.Kings&bb != 0:
		return King
	}
	panic(fmt.Errorf("no piece on %s", SquareName(sq)))
}

func (p *Position) piecesByColor(white bool) uint64 {
	if white {
		return p.White
	}
	return p.Black
}

func xorPiece(p *Position, piece int, side bool, square int) {
	var b = squareMask[square]
	if side {
		p.White ^= b
	} else {
		p.Black ^= b
	}
	switch piece {
	case Pawn:
		p.Pawns ^= b
	case Knight:
		p.Knights ^= b
	case Bishop:
		p.Bishops ^= b
	case Rook:
		p.Rooks ^= b
	case Queen:
		p.Queens ^= b
	case King:
		p.Kings ^= b
	}
	p.Key ^= pieceSquareKeyFor(piece, side, square)
}

func movePiece(p *Position, piece int, side bool, from, to int) {
	var b = squareMask[from] ^ squareMask[to]
	if side {
		p.White ^= b
	} else {
		p.Black ^= b
	}
	switch piece {
	case Pawn:
		p.Pawns ^= b
	case Knight:
		p.Knights ^= b
	case Bishop:
		p.Bishops ^= b
	case Rook:
		p.Rooks ^= b
	case Queen:
		p.Queens ^= b
	case King:
		p.Kings ^= b
	}
	p.Key ^= pieceSquareKeyFor(piece, side, from) ^ pieceSquareKeyFor(piece, side, to)
}

// MakeMove applies m on top of p, writing the resulting position into
// result and reporting whether it's legal (the moving side's king isn't
// left in check). On an illegal move result's contents are unspecified.
func (p *Position) MakeMove(m Move, result *Position) bool {
	var from = m.From()
	var to = m.To()
	var movingPiece = m.MovingPiece()
	var capturedPiece = m.CapturedPiece()

	result.Pawns = p.Pawns
	result.Knights = p.Knights
	result.Bishops = p.Bishops
	result.Rooks = p.Rooks
	result.Queens = p.Queens
	result.Kings = p.Kings
	result.White = p.White
	result.Black = p.Black

	result.WhiteMove = !p.WhiteMove
	result.Key = p.Key ^ sideKey

	result.CastleRights = p.CastleRights & castleMask[from] & castleMask[to]
	result.Key ^= castlingKey[result.CastleRights^p.CastleRights]

	if movingPiece == Pawn || capturedPiece != Empty {
		result.Rule50 = 0
	} else {
		result.Rule50 = p.Rule50 + 1
	}

	result.EpSquare = SquareNone
	if p.EpSquare != SquareNone {
		result.Key ^= enpassantKey[file(p.EpSquare)]
	}

	if capturedPiece != Empty {
		if capturedPiece == Pawn && to == p.EpSquare {
			xorPiece(result, Pawn, !p.WhiteMove, to+pick(p.WhiteMove, -8, 8))
		} else {
			xorPiece(result, capturedPiece, !p.WhiteMove, to)
		}
	}

	movePiece(result, movingPiece, p.WhiteMove, from, to)

	if movingPiece == Pawn {
		if p.WhiteMove {
			if to == from+16 {
				result.EpSquare = from + 8
				result.Key ^= enpassantKey[file(from+8)]
			}
			if rank(to) == Rank8 {
				xorPiece(result, Pawn, true, to)
				xorPiece(result, m.Promotion(), true, to)
			}
		} else {
			if to == from-16 {
				result.EpSquare = from - 8
				result.Key ^= enpassantKey[file(from-8)]
			}
			if rank(to) == Rank1 {
				xorPiece(result, Pawn, false, to)
				xorPiece(result, m.Promotion(), false, to)
			}
		}
	} else if movingPiece == King {
		if p.WhiteMove {
			if from == SquareE1 && to == SquareG1 {
				movePiece(result, Rook, true, SquareH1, SquareF1)
			}
			if from == SquareE1 && to == SquareC1 {
				movePiece(result, Rook, true, SquareA1, SquareD1)
			}
		} else {
			if from == SquareE8 && to == SquareG8 {
				movePiece(result, Rook, false, SquareH8, SquareF8)
			}
			if from == SquareE8 && to == SquareC8 {
				movePiece(result, Rook, false, SquareA8, SquareD8)
			}
		}
	}

	if !result.isLegal() {
		return false
	}
	result.Checkers = result.computeCheckers()
	result.LastMove = m
	return true
}

func (p *Position) isAttackedBySide(sq int, bySideWhite bool) bool {
	var enemy = p.piecesByColor(bySideWhite)
	if pawnAttacks(sq, colorOf(!bySideWhite))&p.Pawns&enemy != 0 {
		return true
	}
	if knightAttacks[sq]&p.Knights&enemy != 0 {
		return true
	}
	if kingAttacks[sq]&p.Kings&enemy != 0 {
		return true
	}
	var occ = p.White | p.Black
	if bishopAttacksFrom(sq, occ)&(p.Bishops|p.Queens)&enemy != 0 {
		return true
	}
	if rookAttacksFrom(sq, occ)&(p.Rooks|p.Queens)&enemy != 0 {
		return true
	}
	return false
}

func colorOf(white bool) Color {
	if white {
		return White
	}
	return Black
}

func (p *Position) attackersTo(sq int) uint64 {
	var occ = p.White | p.Black
	return (blackPawnAttacks[sq] & p.Pawns & p.White) |
		(whitePawnAttacks[sq] & p.Pawns & p.Black) |
		(knightAttacks[sq] & p.Knights) |
		(bishopAttacksFrom(sq, occ) & (p.Bishops | p.Queens)) |
		(rookAttacksFrom(sq, occ) & (p.Rooks | p.Queens)) |
		(kingAttacks[sq] & p.Kings)
}

func (p *Position) computeCheckers() uint64 {
	if p.WhiteMove {
		return p.attackersTo(firstOne(p.Kings&p.White)) & p.Black
	}
	return p.attackersTo(firstOne(p.Kings&p.Black)) & p.White
}

func (p *Position) isLegal() bool {
	var kingSq = firstOne(p.Kings & p.piecesByColor(!p.WhiteMove))
	return !p.isAttackedBySide(kingSq, p.WhiteMove)
}

// IsInCheck reports whether the side to move is currently in check.
func (p *Position) IsInCheck() bool {
	return p.Checkers != 0
}

func (p *Position) computeKey() uint64 {
	var result uint64
	if p.WhiteMove {
		result ^= sideKey
	}
	result ^= castlingKey[p.CastleRights]
	if p.EpSquare != SquareNone {
		result ^= enpassantKey[file(p.EpSquare)]
	}
	for i := 0; i < 64; i++ {
		if piece := p.WhatPiece(i); piece != Empty {
			var side = (p.White & squareMask[i]) != 0
			result ^= pieceSquareKeyFor(piece, side, i)
		}
	}
	return result
}

func initZobristKeys() {
	var r = rand.New(rand.NewSource(0))
	sideKey = r.Uint64()
	for i := range enpassantKey {
		enpassantKey[i] = r.Uint64()
	}
	for i := range pieceSquareKey {
		pieceSquareKey[i] = r.Uint64()
	}

	var castle [4]uint64
	for i := range castle {
		castle[i] = r.Uint64()
	}
	for i := range castlingKey {
		for j := 0; j < 4; j++ {
			if i&(1<<uint(j)) != 0 {
				castlingKey[i] ^= castle[j]
			}
		}
	}
}

func init() {
	initZobristKeys()
	for i := range castleMask {
		castleMask[i] = WhiteKingSide | WhiteQueenSide | BlackKingSide | BlackQueenSide
	}
	castleMask[SquareA1] &^= WhiteQueenSide
	castleMask[SquareE1] &^= WhiteQueenSide | WhiteKingSide
	castleMask[SquareH1] &^= WhiteKingSide
	castleMask[SquareA8] &^= BlackQueenSide
	castleMask[SquareE8] &^= BlackQueenSide | BlackKingSide
	castleMask[SquareH8] &^= BlackKingSide
}
