package chess

// GenerateLegalMoves writes every legal move available to the side to
// move in p into moves' backing array, starting at index 0 (any existing
// elements are discarded), and returns the resulting slice. It generates
// pseudo-legal moves first and filters out the ones that leave the mover's
// own king in check by trial-applying them, which is simpler (if slower)
// than maintaining pin information and is what the search core needs:
// it builds the move list once per node, not once per nanosecond.
func (p *Position) GenerateLegalMoves(moves []Move) []Move {
	var pseudo = p.generatePseudoLegalMoves(moves[:0:cap(moves)])
	var legal = moves[:0]
	var trial Position
	for _, m := range pseudo {
		if p.MakeMove(m, &trial) {
			legal = append(legal, m)
		}
	}
	return legal
}

func (p *Position) generatePseudoLegalMoves(moves []Move) []Move {
	moves = p.generatePawnMoves(moves)
	moves = p.generateKnightMoves(moves)
	moves = p.generateSlidingMoves(moves, Bishop)
	moves = p.generateSlidingMoves(moves, Rook)
	moves = p.generateSlidingMoves(moves, Queen)
	moves = p.generateKingMoves(moves)
	moves = p.generateCastlingMoves(moves)
	return moves
}

// ownPieces/enemyPieces are named from the mover's perspective.
func (p *Position) ownPieces() uint64 {
	if p.WhiteMove {
		return p.White
	}
	return p.Black
}

func (p *Position) enemyPieces() uint64 {
	if p.WhiteMove {
		return p.Black
	}
	return p.White
}

func (p *Position) generatePawnMoves(moves []Move) []Move {
	var own = p.ownPieces()
	var occ = p.White | p.Black
	var pawns = p.Pawns & own

	var push, doublePush uint64
	var promoRankMask uint64
	var pushDelta int

	if p.WhiteMove {
		push = up(pawns) &^ occ
		doublePush = up(push&Rank3Mask) &^ occ
		promoRankMask = Rank8Mask
		pushDelta = 8
	} else {
		push = down(pawns) &^ occ
		doublePush = down(push&Rank6Mask) &^ occ
		promoRankMask = Rank1Mask
		pushDelta = -8
	}

	for b := push; b != 0; {
		var to = firstOne(b)
		b &= b - 1
		var from = to - pushDelta
		if squareMask[to]&promoRankMask != 0 {
			moves = appendPromotions(moves, from, to, Empty)
		} else {
			moves = append(moves, makePawnMove(from, to, Empty, Empty))
		}
	}
	for b := doublePush; b != 0; {
		var to = firstOne(b)
		b &= b - 1
		moves = append(moves, makePawnMove(to-2*pushDelta, to, Empty, Empty))
	}

	var enemy = p.enemyPieces()
	for f := pawns; f != 0; {
		var from = firstOne(f)
		f &= f - 1
		var attacks = pawnAttacks(from, colorOf(p.WhiteMove)) & enemy
		for a := attacks; a != 0; {
			var to = firstOne(a)
			a &= a - 1
			var captured = p.WhatPiece(to)
			if squareMask[to]&promoRankMask != 0 {
				moves = appendPromotions(moves, from, to, captured)
			} else {
				moves = append(moves, makePawnMove(from, to, captured, Empty))
			}
		}
		if p.EpSquare != SquareNone {
			var epAttacks = pawnAttacks(from, colorOf(p.WhiteMove)) & squareMask[p.EpSquare]
			for a := epAttacks; a != 0; {
				var to = firstOne(a)
				a &= a - 1
				moves = append(moves, makePawnMove(from, to, Pawn, Empty))
			}
		}
	}

	return moves
}

func appendPromotions(moves []Move, from, to, captured int) []Move {
	moves = append(moves, makePawnMove(from, to, captured, Queen))
	moves = append(moves, makePawnMove(from, to, captured, Rook))
	moves = append(moves, makePawnMove(from, to, captured, Bishop))
	moves = append(moves, makePawnMove(from, to, captured, Knight))
	return moves
}

func (p *Position) generateSlidingMoves(moves []Move, pieceType int) []Move {
	var own = p.ownPieces()
	var enemy = p.enemyPieces()
	var occ = own | enemy

	var pieces uint64
	switch pieceType {
	case Bishop:
		pieces = p.Bishops & own
	case Rook:
		pieces = p.Rooks & own
	case Queen:
		pieces = p.Queens & own
	}

	for f := pieces; f != 0; {
		var from = firstOne(f)
		f &= f - 1

		var attacks uint64
		switch pieceType {
		case Bishop:
			attacks = bishopAttacksFrom(from, occ)
		case Rook:
			attacks = rookAttacksFrom(from, occ)
		case Queen:
			attacks = queenAttacksFrom(from, occ)
		}
		attacks &^= own

		for a := attacks; a != 0; {
			var to = firstOne(a)
			a &= a - 1
			moves = append(moves, makeMove(from, to, pieceType, p.WhatPiece(to)))
		}
	}
	return moves
}

func (p *Position) generateKnightMoves(moves []Move) []Move {
	var own = p.ownPieces()
	for f := p.Knights & own; f != 0; {
		var from = firstOne(f)
		f &= f - 1
		var attacks = knightAttacks[from] &^ own
		for a := attacks; a != 0; {
			var to = firstOne(a)
			a &= a - 1
			moves = append(moves, makeMove(from, to, Knight, p.WhatPiece(to)))
		}
	}
	return moves
}

func (p *Position) generateKingMoves(moves []Move) []Move {
	var own = p.ownPieces()
	var from = firstOne(p.Kings & own)
	var attacks = kingAttacks[from] &^ own
	for a := attacks; a != 0; {
		var to = firstOne(a)
		a &= a - 1
		moves = append(moves, makeMove(from, to, King, p.WhatPiece(to)))
	}
	return moves
}

func (p *Position) generateCastlingMoves(moves []Move) []Move {
	var occ = p.White | p.Black
	if p.WhiteMove {
		if p.CastleRights&WhiteKingSide != 0 &&
			occ&(squareMask[SquareF1]|squareMask[SquareG1]) == 0 &&
			!p.isAttackedBySide(SquareE1, false) &&
			!p.isAttackedBySide(SquareF1, false) &&
			!p.isAttackedBySide(SquareG1, false) {
			moves = append(moves, makeMove(SquareE1, SquareG1, King, Empty))
		}
		if p.CastleRights&WhiteQueenSide != 0 &&
			occ&(squareMask[SquareB1]|squareMask[SquareC1]|squareMask[SquareD1]) == 0 &&
			!p.isAttackedBySide(SquareE1, false) &&
			!p.isAttackedBySide(SquareD1, false) &&
			!p.isAttackedBySide(SquareC1, false) {
			moves = append(moves, makeMove(SquareE1, SquareC1, King, Empty))
		}
	} else {
		if p.CastleRights&BlackKingSide != 0 &&
			occ&(squareMask[SquareF8]|squareMask[SquareG8]) == 0 &&
			!p.isAttackedBySide(SquareE8, true) &&
			!p.isAttackedBySide(SquareF8, true) &&
			!p.isAttackedBySide(SquareG8, true) {
			moves = append(moves, makeMove(SquareE8, SquareG8, King, Empty))
		}
		if p.CastleRights&BlackQueenSide != 0 &&
			occ&(squareMask[SquareB8]|squareMask[SquareC8]|squareMask[SquareD8]) == 0 &&
			!p.isAttackedBySide(SquareE8, true) &&
			!p.isAttackedBySide(SquareD8, true) &&
			!p.isAttackedBySide(SquareC8, true) {
			moves = append(moves, makeMove(SquareE8, SquareC8, King, Empty))
		}
	}
	return moves
}
