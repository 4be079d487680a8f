package tactics

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/danielpmchugh/chess-pattern-analyzer/internal/domain/analysis"
)

// Scan detects every tactical motif present in the position. The scan is a
// pure function of the position plus, for fork detection, the move that
// produced it. Discovered attacks are not detected; the entry is absent by
// design, not an oversight.
func Scan(pos *chess.Position, lastMove *chess.Move) []analysis.TacticalPattern {
	var patterns []analysis.TacticalPattern

	patterns = append(patterns, hangingPieces(pos)...)
	if lastMove != nil {
		if fork := detectFork(pos, lastMove); fork != nil {
			patterns = append(patterns, *fork)
		}
	}
	patterns = append(patterns, pins(pos)...)
	patterns = append(patterns, skewers(pos)...)
	if br := backRankWeakness(pos); br != nil {
		patterns = append(patterns, *br)
	}
	patterns = append(patterns, trappedPieces(pos)...)

	return patterns
}

// hangingPieces flags side-to-move pieces that are attacked with no defender,
// plus pieces that lose at least a pawn of material on a straight exchange.
func hangingPieces(pos *chess.Position) []analysis.TacticalPattern {
	var out []analysis.TacticalPattern
	board := pos.Board()
	turn := pos.Turn()

	for sq := 0; sq < 64; sq++ {
		square := chess.Square(sq)
		piece := board.Piece(square)
		if piece == chess.NoPiece || piece.Color() != turn {
			continue
		}

		attackers := Attackers(board, turn.Other(), square)
		defenders := Attackers(board, turn, square)

		if len(attackers) > 0 && len(defenders) == 0 {
			if piece.Type() == chess.Pawn && !pawnIsAdvanced(square, turn) {
				continue
			}

			value := PieceValue(piece.Type())
			out = append(out, analysis.TacticalPattern{
				Kind:        analysis.PatternHangingPiece,
				Severity:    analysis.SeverityForValue(value),
				Pieces:      []string{pieceLetter(piece)},
				Squares:     []string{square.String()},
				Centipawns:  value,
				Description: fmt.Sprintf("%s on %s is hanging", pieceLetter(piece), square),
			})
		} else if len(attackers) > len(defenders) {
			cheapest := 0
			for i, atk := range attackers {
				v := PieceValue(board.Piece(atk).Type())
				if i == 0 || v < cheapest {
					cheapest = v
				}
			}
			value := PieceValue(piece.Type())
			if loss := value - cheapest; loss >= 100 {
				out = append(out, analysis.TacticalPattern{
					Kind:        analysis.PatternHangingPiece,
					Severity:    analysis.SeverityForValue(loss),
					Pieces:      []string{pieceLetter(piece)},
					Squares:     []string{square.String()},
					Centipawns:  loss,
					Description: fmt.Sprintf("%s on %s loses material on exchange", pieceLetter(piece), square),
				})
			}
		}
	}
	return out
}

// pawnIsAdvanced reports whether a pawn has crossed the middle of the board.
func pawnIsAdvanced(sq chess.Square, c chess.Color) bool {
	rank := int(sq.Rank())
	if c == chess.White {
		return rank >= 5
	}
	return rank <= 2
}

// detectFork checks whether the piece that just moved attacks two or more
// enemy pieces valued at knight or above.
func detectFork(pos *chess.Position, lastMove *chess.Move) *analysis.TacticalPattern {
	board := pos.Board()
	from := lastMove.S2()
	attacker := board.Piece(from)
	if attacker == chess.NoPiece {
		return nil
	}

	var targets []string
	var targetSquares []string
	total := 0
	for _, sq := range AttackedSquares(board, from) {
		target := board.Piece(sq)
		if target == chess.NoPiece || target.Color() == attacker.Color() {
			continue
		}
		if value := PieceValue(target.Type()); value >= PieceValue(chess.Knight) {
			targets = append(targets, pieceLetter(target))
			targetSquares = append(targetSquares, sq.String())
			total += value
		}
	}

	if len(targets) < 2 {
		return nil
	}

	kind := analysis.PatternFork
	if attacker.Type() == chess.Knight {
		kind = analysis.PatternKnightFork
	}
	return &analysis.TacticalPattern{
		Kind:        kind,
		Severity:    analysis.SeverityHigh,
		Pieces:      append([]string{pieceLetter(attacker)}, targets...),
		Squares:     append([]string{from.String()}, targetSquares...),
		Centipawns:  total,
		Description: fmt.Sprintf("%s forks %d pieces", pieceLetter(attacker), len(targets)),
	}
}

// pins finds side-to-move pieces pinned against their own king by an enemy
// sliding piece. Exactly one piece may stand between slider and king.
func pins(pos *chess.Position) []analysis.TacticalPattern {
	var out []analysis.TacticalPattern
	board := pos.Board()
	turn := pos.Turn()

	kingSq := KingSquare(board, turn)
	if kingSq < 0 {
		return nil
	}

	for sq := 0; sq < 64; sq++ {
		square := chess.Square(sq)
		piece := board.Piece(square)
		if piece == chess.NoPiece || piece.Color() == turn {
			continue
		}
		d := dirBetween[square][kingSq]
		if d < 0 || !slidesAlong(piece.Type(), int(d)) {
			continue
		}

		var pinnedSq chess.Square
		var pinned chess.Piece
		count := 0
		for _, between := range SquaresBetween(square, kingSq) {
			if p := board.Piece(between); p != chess.NoPiece {
				pinnedSq, pinned = between, p
				count++
			}
		}
		if count != 1 || pinned.Color() != turn {
			continue
		}

		value := PieceValue(pinned.Type())
		out = append(out, analysis.TacticalPattern{
			Kind:        analysis.PatternPin,
			Severity:    analysis.SeverityForValue(value),
			Pieces:      []string{pieceLetter(piece), pieceLetter(pinned)},
			Squares:     []string{square.String(), pinnedSq.String(), kingSq.String()},
			Centipawns:  value,
			Description: fmt.Sprintf("%s on %s is pinned to king", pieceLetter(pinned), pinnedSq),
		})
	}
	return out
}

// skewers finds enemy sliders attacking a side-to-move piece that shields a
// cheaper piece directly behind it on the same ray.
func skewers(pos *chess.Position) []analysis.TacticalPattern {
	var out []analysis.TacticalPattern
	board := pos.Board()
	turn := pos.Turn()

	for sq := 0; sq < 64; sq++ {
		square := chess.Square(sq)
		piece := board.Piece(square)
		if piece == chess.NoPiece || piece.Color() == turn {
			continue
		}
		switch piece.Type() {
		case chess.Bishop, chess.Rook, chess.Queen:
		default:
			continue
		}

		for _, targetSq := range AttackedSquares(board, square) {
			target := board.Piece(targetSq)
			if target == chess.NoPiece || target.Color() != turn {
				continue
			}
			if sk := skewerBehind(board, turn, square, targetSq, target); sk != nil {
				out = append(out, *sk)
			}
		}
	}
	return out
}

func skewerBehind(board *chess.Board, turn chess.Color, attackerSq, targetSq chess.Square, target chess.Piece) *analysis.TacticalPattern {
	for _, sq := range RayBeyond(attackerSq, targetSq) {
		behind := board.Piece(sq)
		if behind == chess.NoPiece {
			continue
		}
		if behind.Color() != turn {
			return nil
		}
		targetValue := PieceValue(target.Type())
		behindValue := PieceValue(behind.Type())
		if targetValue <= behindValue {
			return nil
		}
		return &analysis.TacticalPattern{
			Kind:        analysis.PatternSkewer,
			Severity:    analysis.SeverityHigh,
			Pieces:      []string{pieceLetter(target), pieceLetter(behind)},
			Squares:     []string{targetSq.String(), sq.String()},
			Centipawns:  behindValue,
			Description: fmt.Sprintf("Skewer: %s must move, exposing %s", pieceLetter(target), pieceLetter(behind)),
		}
	}
	return nil
}

// backRankWeakness flags a king stuck on its own back rank with no escape
// square while the opponent still has a major piece.
func backRankWeakness(pos *chess.Position) *analysis.TacticalPattern {
	board := pos.Board()
	turn := pos.Turn()

	kingSq := KingSquare(board, turn)
	if kingSq < 0 {
		return nil
	}

	backRank := 0
	if turn == chess.Black {
		backRank = 7
	}
	if int(kingSq.Rank()) != backRank {
		return nil
	}

	canEscape := false
	for _, esc := range kingSteps[kingSq] {
		if len(Attackers(board, turn.Other(), esc)) > 0 {
			continue
		}
		if p := board.Piece(esc); p == chess.NoPiece || p.Color() != turn {
			canEscape = true
			break
		}
	}
	if canEscape {
		return nil
	}

	// The weakness is only real when an enemy rook or queen can actually
	// land on the back rank; a hemmed-in startpos king is not weak.
	hasInfiltrator := false
	for sq := 0; sq < 64 && !hasInfiltrator; sq++ {
		p := board.Piece(chess.Square(sq))
		if p == chess.NoPiece || p.Color() == turn || (p.Type() != chess.Rook && p.Type() != chess.Queen) {
			continue
		}
		for _, atk := range AttackedSquares(board, chess.Square(sq)) {
			if int(atk.Rank()) != backRank {
				continue
			}
			if occupant := board.Piece(atk); occupant == chess.NoPiece || occupant.Color() == turn {
				hasInfiltrator = true
				break
			}
		}
	}
	if !hasInfiltrator {
		return nil
	}

	return &analysis.TacticalPattern{
		Kind:        analysis.PatternBackRankWeakness,
		Severity:    analysis.SeverityHigh,
		Pieces:      []string{"K"},
		Squares:     []string{kingSq.String()},
		Centipawns:  500,
		Description: "King has back rank mate vulnerability",
	}
}

// trappedPieces flags minor and major pieces with at most two legal
// destinations, all of them attacked by the opponent.
func trappedPieces(pos *chess.Position) []analysis.TacticalPattern {
	var out []analysis.TacticalPattern
	board := pos.Board()
	turn := pos.Turn()
	legal := pos.ValidMoves()

	for sq := 0; sq < 64; sq++ {
		square := chess.Square(sq)
		piece := board.Piece(square)
		if piece == chess.NoPiece || piece.Color() != turn {
			continue
		}
		if piece.Type() == chess.King || piece.Type() == chess.Pawn {
			continue
		}

		var destinations []chess.Square
		for _, m := range legal {
			if m.S1() == square {
				destinations = append(destinations, m.S2())
			}
		}
		// Zero destinations means the piece is blocked in, not hunted down;
		// the startpos rooks must not be flagged.
		if len(destinations) == 0 || len(destinations) > 2 {
			continue
		}

		allAttacked := true
		for _, dst := range destinations {
			if len(Attackers(board, turn.Other(), dst)) == 0 {
				allAttacked = false
				break
			}
		}
		if !allAttacked {
			continue
		}

		value := PieceValue(piece.Type())
		out = append(out, analysis.TacticalPattern{
			Kind:        analysis.PatternTrappedPiece,
			Severity:    analysis.SeverityForValue(value),
			Pieces:      []string{pieceLetter(piece)},
			Squares:     []string{square.String()},
			Centipawns:  value,
			Description: fmt.Sprintf("%s on %s is trapped", pieceLetter(piece), square),
		})
	}
	return out
}
