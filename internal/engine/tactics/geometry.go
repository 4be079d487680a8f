// Package tactics scans chess positions for tactical motifs using
// precomputed square-indexed attack geometry.
package tactics

import (
	"strings"

	"github.com/notnil/chess"
)

// Compass directions, clockwise from north. Odd indices are diagonals.
const (
	north = iota
	northEast
	east
	southEast
	south
	southWest
	west
	northWest
	numDirections
)

var dirDeltas = [numDirections][2]int{
	{0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1},
}

// The lookup arena below is built once at process start. Rays are ordered
// outward from the origin square.
var (
	rays         [numDirections][64][]chess.Square
	knightHops   [64][]chess.Square
	kingSteps    [64][]chess.Square
	pawnCaptures [2][64][]chess.Square // [colorIndex][from] squares a pawn attacks
	dirBetween   [64][64]int8          // direction a->b when aligned, else -1
)

func init() {
	for sq := 0; sq < 64; sq++ {
		file, rank := sq%8, sq/8

		for d := 0; d < numDirections; d++ {
			f, r := file+dirDeltas[d][0], rank+dirDeltas[d][1]
			for f >= 0 && f < 8 && r >= 0 && r < 8 {
				rays[d][sq] = append(rays[d][sq], squareAt(f, r))
				f += dirDeltas[d][0]
				r += dirDeltas[d][1]
			}
		}

		for _, hop := range [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}} {
			if f, r := file+hop[0], rank+hop[1]; f >= 0 && f < 8 && r >= 0 && r < 8 {
				knightHops[sq] = append(knightHops[sq], squareAt(f, r))
			}
		}

		for d := 0; d < numDirections; d++ {
			if f, r := file+dirDeltas[d][0], rank+dirDeltas[d][1]; f >= 0 && f < 8 && r >= 0 && r < 8 {
				kingSteps[sq] = append(kingSteps[sq], squareAt(f, r))
			}
		}

		for _, df := range []int{-1, 1} {
			if f, r := file+df, rank+1; f >= 0 && f < 8 && r < 8 {
				pawnCaptures[0][sq] = append(pawnCaptures[0][sq], squareAt(f, r))
			}
			if f, r := file+df, rank-1; f >= 0 && f < 8 && r >= 0 {
				pawnCaptures[1][sq] = append(pawnCaptures[1][sq], squareAt(f, r))
			}
		}
	}

	for a := 0; a < 64; a++ {
		for b := 0; b < 64; b++ {
			dirBetween[a][b] = -1
		}
		for d := 0; d < numDirections; d++ {
			for _, sq := range rays[d][a] {
				dirBetween[a][sq] = int8(d)
			}
		}
	}
}

func squareAt(file, rank int) chess.Square {
	return chess.Square(rank*8 + file)
}

func colorIndex(c chess.Color) int {
	if c == chess.White {
		return 0
	}
	return 1
}

func isDiagonal(d int) bool { return d%2 == 1 }

// slidesAlong reports whether a piece type can travel direction d.
func slidesAlong(pt chess.PieceType, d int) bool {
	switch pt {
	case chess.Queen:
		return true
	case chess.Rook:
		return !isDiagonal(d)
	case chess.Bishop:
		return isDiagonal(d)
	}
	return false
}

// Attackers returns the squares of byColor pieces that attack target on the
// given board, occupancy considered.
func Attackers(board *chess.Board, byColor chess.Color, target chess.Square) []chess.Square {
	var out []chess.Square

	for _, sq := range knightHops[target] {
		if p := board.Piece(sq); p != chess.NoPiece && p.Color() == byColor && p.Type() == chess.Knight {
			out = append(out, sq)
		}
	}
	for _, sq := range kingSteps[target] {
		if p := board.Piece(sq); p != chess.NoPiece && p.Color() == byColor && p.Type() == chess.King {
			out = append(out, sq)
		}
	}
	// A byColor pawn attacks target from the squares a pawn of the other
	// color on target would attack.
	for _, sq := range pawnCaptures[colorIndex(byColor.Other())][target] {
		if p := board.Piece(sq); p != chess.NoPiece && p.Color() == byColor && p.Type() == chess.Pawn {
			out = append(out, sq)
		}
	}
	for d := 0; d < numDirections; d++ {
		for _, sq := range rays[d][target] {
			p := board.Piece(sq)
			if p == chess.NoPiece {
				continue
			}
			if p.Color() == byColor && slidesAlong(p.Type(), d) {
				out = append(out, sq)
			}
			break
		}
	}
	return out
}

// AttackedSquares returns the squares attacked by the piece standing on from.
func AttackedSquares(board *chess.Board, from chess.Square) []chess.Square {
	p := board.Piece(from)
	if p == chess.NoPiece {
		return nil
	}
	switch p.Type() {
	case chess.Pawn:
		return pawnCaptures[colorIndex(p.Color())][from]
	case chess.Knight:
		return knightHops[from]
	case chess.King:
		return kingSteps[from]
	}

	var out []chess.Square
	for d := 0; d < numDirections; d++ {
		if !slidesAlong(p.Type(), d) {
			continue
		}
		for _, sq := range rays[d][from] {
			out = append(out, sq)
			if board.Piece(sq) != chess.NoPiece {
				break
			}
		}
	}
	return out
}

// SquaresBetween returns the squares strictly between a and b when they share
// a rank, file or diagonal, ordered from a towards b.
func SquaresBetween(a, b chess.Square) []chess.Square {
	d := dirBetween[a][b]
	if d < 0 {
		return nil
	}
	var out []chess.Square
	for _, sq := range rays[d][a] {
		if sq == b {
			break
		}
		out = append(out, sq)
	}
	return out
}

// RayBeyond returns the squares past b continuing along the a->b direction.
func RayBeyond(a, b chess.Square) []chess.Square {
	d := dirBetween[a][b]
	if d < 0 {
		return nil
	}
	ray := rays[d][a]
	for i, sq := range ray {
		if sq == b {
			return ray[i+1:]
		}
	}
	return nil
}

// KingSquare finds the king of the given color, or -1 when absent.
func KingSquare(board *chess.Board, c chess.Color) chess.Square {
	for sq := 0; sq < 64; sq++ {
		p := board.Piece(chess.Square(sq))
		if p != chess.NoPiece && p.Color() == c && p.Type() == chess.King {
			return chess.Square(sq)
		}
	}
	return chess.Square(-1)
}

// PieceValue is the standard material value in centipawns.
func PieceValue(pt chess.PieceType) int {
	switch pt {
	case chess.Pawn:
		return 100
	case chess.Knight:
		return 320
	case chess.Bishop:
		return 330
	case chess.Rook:
		return 500
	case chess.Queen:
		return 900
	case chess.King:
		return 20000
	}
	return 0
}

// pieceLetter renders a piece the FEN way: uppercase white, lowercase black.
func pieceLetter(p chess.Piece) string {
	var l string
	switch p.Type() {
	case chess.King:
		l = "K"
	case chess.Queen:
		l = "Q"
	case chess.Rook:
		l = "R"
	case chess.Bishop:
		l = "B"
	case chess.Knight:
		l = "N"
	case chess.Pawn:
		l = "P"
	}
	if p.Color() == chess.Black {
		return strings.ToLower(l)
	}
	return l
}
